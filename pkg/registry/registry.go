// Package registry holds the provider factories available per channel.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/providers"
)

// Registry maps channels to provider factories. Registration order per
// channel is the dispatch priority order: the first factory whose provider
// the company has a credential for wins.
type Registry struct {
	logger    *slog.Logger
	factories map[models.Channel][]providers.Factory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[models.Channel][]providers.Factory),
	}
}

// RegisterProvider appends a factory to its channel's priority list.
func (r *Registry) RegisterProvider(factory providers.Factory) {
	channel := factory.Channel()
	r.factories[channel] = append(r.factories[channel], factory)

	r.logger.Debug("Registered provider factory",
		"provider", factory.ID(),
		"channel", channel,
		"priority", len(r.factories[channel]))
}

// ProvidersForChannel returns the channel's factories in priority order.
func (r *Registry) ProvidersForChannel(channel models.Channel) []providers.Factory {
	return r.factories[channel]
}

// CreateSender builds a sender for the given provider id on a channel.
func (r *Registry) CreateSender(channel models.Channel, providerID string, credential *models.Credential) (providers.Sender, error) {
	for _, factory := range r.factories[channel] {
		if factory.ID() == providerID {
			return factory.Create(credential)
		}
	}

	return nil, fmt.Errorf("provider %q not registered for channel %q", providerID, channel)
}
