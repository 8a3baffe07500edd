package cmd

import (
	"context"

	"github.com/omniflowhq/omniflow/pkg/dispatcher"
	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence"
)

// NewCredentialResolver adapts the credential repository to the dispatcher's
// resolver interface.
func NewCredentialResolver(p persistence.Persistence) dispatcher.CredentialResolver {
	return &persistenceResolver{repository: p.CredentialRepository()}
}

type persistenceResolver struct {
	repository persistence.CredentialRepository
}

func (r *persistenceResolver) ProviderCredentials(ctx context.Context, companyID string, channel models.Channel) (map[string]*models.Credential, error) {
	return r.repository.GetByCompanyChannel(ctx, companyID, channel)
}
