// Package crm pushes entity field updates back to the CRM whose change
// events this engine consumes. The CRM owns the entity records; update_lead
// actions only patch fields through its API.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/omniflowhq/omniflow/pkg/providers"
)

// Client updates lead records over the CRM HTTP API.
type Client struct {
	baseURL string
	apiKey  string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// UpdateEntity patches the given fields onto a lead. The CRM applies the
// patch atomically; a non-2xx response surfaces as an error.
func (c *Client) UpdateEntity(ctx context.Context, companyID, entityID string, fields map[string]any) error {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return fmt.Errorf("failed to encode entity update: %w", err)
	}

	_, result := providers.Do(ctx, providers.Call{
		Method:   http.MethodPatch,
		URL:      fmt.Sprintf("%s/api/v1/companies/%s/leads/%s", c.baseURL, companyID, entityID),
		Headers:  map[string]string{"Authorization": "Bearer " + c.apiKey},
		JSONBody: string(body),
	})
	if !result.Success {
		return fmt.Errorf("crm rejected entity update: %s", result.Detail)
	}

	return nil
}

// LogUpdater is the local-development stand-in for a CRM backend: it records
// the update and reports success.
type LogUpdater struct {
	logger *slog.Logger
}

func NewLogUpdater(logger *slog.Logger) *LogUpdater {
	return &LogUpdater{logger: logger.With("module", "crm")}
}

func (u *LogUpdater) UpdateEntity(ctx context.Context, companyID, entityID string, fields map[string]any) error {
	u.logger.InfoContext(ctx, "Entity update (no CRM configured)",
		"company_id", companyID, "entity_id", entityID, "fields", fields)

	return nil
}
