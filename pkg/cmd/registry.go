package cmd

import (
	"log/slog"

	"github.com/omniflowhq/omniflow/pkg/providers/brevo"
	"github.com/omniflowhq/omniflow/pkg/providers/exotel"
	"github.com/omniflowhq/omniflow/pkg/providers/gupshup"
	"github.com/omniflowhq/omniflow/pkg/providers/plivo"
	"github.com/omniflowhq/omniflow/pkg/providers/smtp"
	"github.com/omniflowhq/omniflow/pkg/providers/twilio"
	"github.com/omniflowhq/omniflow/pkg/registry"
)

// NewRegistry builds the provider registry with every built-in messaging
// backend. Registration order per channel is the dispatch priority order.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterProvider(brevo.NewFactory())
	reg.RegisterProvider(smtp.NewFactory())

	reg.RegisterProvider(twilio.NewSMSFactory())
	reg.RegisterProvider(plivo.NewFactory())
	reg.RegisterProvider(exotel.NewFactory())

	reg.RegisterProvider(twilio.NewWhatsAppFactory())
	reg.RegisterProvider(gupshup.NewFactory())

	return reg
}
