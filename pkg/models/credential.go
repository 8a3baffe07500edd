package models

import "time"

// Channel is a messaging modality. Each channel routes to one of several
// vendor providers in a fixed priority order.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// ChannelForAction maps an action type to the channel it sends on. Actions
// without a messaging channel (update_lead) return false.
func ChannelForAction(actionType ActionType) (Channel, bool) {
	switch actionType {
	case ActionTypeSendEmail:
		return ChannelEmail, true
	case ActionTypeSendSMS:
		return ChannelSMS, true
	case ActionTypeSendWhatsApp:
		return ChannelWhatsApp, true
	default:
		return "", false
	}
}

// Credential holds one company's decrypted settings for one provider on one
// channel. The settings writer lives in an external settings subsystem; this
// engine only reads fully-formed documents.
type Credential struct {
	CompanyID string            `json:"company_id" validate:"required"`
	Channel   Channel           `json:"channel"    validate:"required,oneof=email sms whatsapp"`
	Provider  string            `json:"provider"   validate:"required"`
	Settings  map[string]string `json:"settings"`
	UpdatedAt time.Time         `json:"updated_at"`
}
