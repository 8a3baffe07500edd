package services

import (
	"context"
	"fmt"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence"
)

// CacheInvalidator drops cached credentials for a company after a settings
// write, so the dispatcher picks up the change within the same process.
type CacheInvalidator interface {
	Invalidate(companyID string)
}

// Credential manages per-company provider credentials.
type Credential struct {
	persistence persistence.Persistence
	cache       CacheInvalidator
}

// NewCredential creates a new credential service. Cache may be nil when the
// process runs no dispatcher.
func NewCredential(p persistence.Persistence, cache CacheInvalidator) *Credential {
	return &Credential{persistence: p, cache: cache}
}

// Save stores a provider credential and invalidates the company's cache entry.
func (s *Credential) Save(ctx context.Context, credential *models.Credential) error {
	if credential.CompanyID == "" {
		return ErrCompanyIDRequired
	}

	if credential.Provider == "" || credential.Channel == "" {
		return NewValidationError("save_credential", "invalid_credential",
			"provider and channel are required", ErrInvalidRequest)
	}

	err := s.persistence.CredentialRepository().Save(ctx, credential)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(credential.CompanyID)
	}

	return nil
}

// ListByChannel returns a company's configured credentials for one channel,
// keyed by provider ID.
func (s *Credential) ListByChannel(ctx context.Context, companyID string, channel models.Channel) (map[string]*models.Credential, error) {
	if companyID == "" {
		return nil, ErrCompanyIDRequired
	}

	return s.persistence.CredentialRepository().GetByCompanyChannel(ctx, companyID, channel)
}
