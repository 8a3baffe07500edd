package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/omniflowhq/omniflow/pkg/models"
)

// CredentialRepository handles provider credential database operations.
type CredentialRepository struct {
	db *sql.DB
}

func (r *CredentialRepository) Save(ctx context.Context, credential *models.Credential) error {
	settings, err := json.Marshal(credential.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal credential settings: %w", err)
	}

	credential.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO credentials (company_id, channel, provider, settings, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, channel, provider) DO UPDATE SET
			settings = EXCLUDED.settings,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		credential.CompanyID,
		credential.Channel,
		credential.Provider,
		settings,
		credential.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

func (r *CredentialRepository) GetByCompanyChannel(ctx context.Context, companyID string, channel models.Channel) (map[string]*models.Credential, error) {
	query := `
		SELECT company_id, channel, provider, settings, updated_at
		FROM credentials
		WHERE company_id = $1 AND channel = $2
	`

	rows, err := r.db.QueryContext(ctx, query, companyID, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	defer func() { _ = rows.Close() }()

	credentials := make(map[string]*models.Credential)

	for rows.Next() {
		var (
			credential models.Credential
			settings   []byte
		)

		err := rows.Scan(
			&credential.CompanyID,
			&credential.Channel,
			&credential.Provider,
			&settings,
			&credential.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}

		if err := json.Unmarshal(settings, &credential.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal credential settings: %w", err)
		}

		credentials[credential.Provider] = &credential
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return credentials, nil
}
