// Package dispatcher routes action nodes to messaging provider backends with
// per-company credential resolution.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/providers"
	"github.com/omniflowhq/omniflow/pkg/registry"
	"github.com/omniflowhq/omniflow/pkg/template"
)

// DetailCredentialMissing is the detail code carried on a failed result when
// the company has no configured provider for the action's channel.
const DetailCredentialMissing = "no_provider_configured_for_channel"

// CredentialResolver supplies decrypted per-company credentials. Owned by the
// settings subsystem; the dispatcher only reads. A company with nothing
// configured for a channel yields an empty map, not an error.
type CredentialResolver interface {
	ProviderCredentials(ctx context.Context, companyID string, channel models.Channel) (map[string]*models.Credential, error)
}

// EntityUpdater applies update_lead actions back onto the CRM store. External
// collaborator, like the messaging vendors.
type EntityUpdater interface {
	UpdateEntity(ctx context.Context, companyID, entityID string, fields map[string]any) error
}

// Outcome is the dispatch result plus the output fields an action merges into
// the execution context on success.
type Outcome struct {
	providers.Result

	Output map[string]any
}

// Dispatcher renders an action's payload, selects a provider backend by
// channel priority, and invokes its send. Failures are captured and returned
// as typed results; nothing raises past this boundary.
type Dispatcher struct {
	registry    *registry.Registry
	credentials CredentialResolver
	updater     EntityUpdater
	logger      *slog.Logger
}

func NewDispatcher(reg *registry.Registry, credentials CredentialResolver, updater EntityUpdater, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry:    reg,
		credentials: credentials,
		updater:     updater,
		logger:      logger.With("module", "dispatcher"),
	}
}

// Dispatch executes one action node against the execution context. The state
// machine records the outcome; no state is mutated here.
func (d *Dispatcher) Dispatch(ctx context.Context, action *models.ActionSpec, state *models.ExecutionState) Outcome {
	if action.Type == models.ActionTypeUpdateLead {
		return d.dispatchEntityUpdate(ctx, action, state)
	}

	channel, ok := models.ChannelForAction(action.Type)
	if !ok {
		return failure(providers.ErrorKindPermanent, fmt.Sprintf("unknown action type %q", action.Type))
	}

	target := template.Render(action.To, state.Context)
	if target == "" {
		return failure(providers.ErrorKindPermanent, "action target rendered empty")
	}

	payload := template.RenderPayload(action.Payload, state.Context)
	msg := providers.Message{
		Subject: payload["subject"],
		Body:    messageBody(payload),
		Fields:  payload,
	}

	sender, result := d.selectSender(ctx, action, state.CompanyID, channel)
	if !result.Success {
		return Outcome{Result: result}
	}

	d.logger.Info("Dispatching action",
		"company_id", state.CompanyID,
		"execution_id", state.ID,
		"channel", channel,
		"provider", sender.ID())

	sendResult := sender.Send(ctx, target, msg)
	if !sendResult.Success {
		d.logger.Warn("Provider send failed",
			"company_id", state.CompanyID,
			"provider", sender.ID(),
			"error_kind", sendResult.ErrorKind,
			"detail", sendResult.Detail)

		return Outcome{Result: sendResult}
	}

	return Outcome{
		Result: sendResult,
		Output: map[string]any{
			"channel":             string(channel),
			"provider":            sender.ID(),
			"provider_message_id": sendResult.ProviderMessageID,
			"target":              target,
		},
	}
}

// selectSender resolves credentials and picks the first configured provider
// in the channel's priority order, or the action's pinned provider.
func (d *Dispatcher) selectSender(ctx context.Context, action *models.ActionSpec, companyID string, channel models.Channel) (providers.Sender, providers.Result) {
	credentials, err := d.credentials.ProviderCredentials(ctx, companyID, channel)
	if err != nil {
		return nil, providers.Failure(providers.ErrorKindTransient, fmt.Sprintf("credential lookup failed: %v", err))
	}

	if action.Provider != "" {
		credential, ok := credentials[action.Provider]
		if !ok {
			return nil, providers.Failure(providers.ErrorKindCredentialMissing, DetailCredentialMissing)
		}

		return d.createSender(channel, action.Provider, credential)
	}

	for _, factory := range d.registry.ProvidersForChannel(channel) {
		credential, ok := credentials[factory.ID()]
		if !ok {
			continue
		}

		return d.createSender(channel, factory.ID(), credential)
	}

	return nil, providers.Failure(providers.ErrorKindCredentialMissing, DetailCredentialMissing)
}

func (d *Dispatcher) createSender(channel models.Channel, providerID string, credential *models.Credential) (providers.Sender, providers.Result) {
	sender, err := d.registry.CreateSender(channel, providerID, credential)
	if err != nil {
		// A malformed credential document reads like a missing one: the
		// company has nothing usable configured for this channel.
		return nil, providers.Failure(providers.ErrorKindCredentialMissing, fmt.Sprintf("provider %s unusable: %v", providerID, err))
	}

	return sender, providers.Result{Success: true}
}

func (d *Dispatcher) dispatchEntityUpdate(ctx context.Context, action *models.ActionSpec, state *models.ExecutionState) Outcome {
	if d.updater == nil {
		return failure(providers.ErrorKindPermanent, "no entity updater configured")
	}

	rendered := template.RenderPayload(action.Payload, state.Context)

	fields := make(map[string]any, len(rendered))
	for key, value := range rendered {
		fields[key] = value
	}

	err := d.updater.UpdateEntity(ctx, state.CompanyID, state.EntityID, fields)
	if err != nil {
		return failure(providers.ErrorKindTransient, fmt.Sprintf("entity update failed: %v", err))
	}

	return Outcome{
		Result: providers.Result{Success: true},
		Output: map[string]any{"updated_fields": fields},
	}
}

// messageBody picks the rendered body: "body" wins, "message" is the alias
// the SMS/WhatsApp editor writes.
func messageBody(payload map[string]string) string {
	if body := payload["body"]; body != "" {
		return body
	}

	return payload["message"]
}

func failure(kind providers.ErrorKind, detail string) Outcome {
	return Outcome{Result: providers.Failure(kind, detail)}
}
