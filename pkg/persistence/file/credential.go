package file

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/omniflowhq/omniflow/pkg/models"
)

type CredentialRepository struct {
	dir string
	mu  sync.RWMutex
}

func credentialKey(companyID string, channel models.Channel, provider string) string {
	return fmt.Sprintf("%s_%s_%s", companyID, channel, provider)
}

func (r *CredentialRepository) Save(_ context.Context, credential *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := credentialKey(credential.CompanyID, credential.Channel, credential.Provider)

	return writeJSON(r.dir, name, credential)
}

// GetByCompanyChannel returns configured credentials keyed by provider ID.
// An empty map means the channel is not configured for the company.
func (r *CredentialRepository) GetByCompanyChannel(_ context.Context, companyID string, channel models.Channel) (map[string]*models.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	credentials := make(map[string]*models.Credential)

	err := readAll(r.dir, func(body []byte) error {
		var credential models.Credential
		if err := json.Unmarshal(body, &credential); err != nil {
			return err
		}

		if credential.CompanyID == companyID && credential.Channel == channel {
			credentials[credential.Provider] = &credential
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return credentials, nil
}
