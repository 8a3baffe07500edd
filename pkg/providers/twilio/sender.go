// Package twilio provides the Twilio backends for SMS and WhatsApp. Both
// channels share the Messages endpoint; WhatsApp targets carry the
// "whatsapp:" address prefix.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/providers"
)

type Factory struct {
	channel models.Channel
}

// NewSMSFactory creates the Twilio SMS factory.
func NewSMSFactory() *Factory {
	return &Factory{channel: models.ChannelSMS}
}

// NewWhatsAppFactory creates the Twilio WhatsApp factory.
func NewWhatsAppFactory() *Factory {
	return &Factory{channel: models.ChannelWhatsApp}
}

func (*Factory) ID() string {
	return "twilio"
}

func (f *Factory) Channel() models.Channel {
	return f.channel
}

func (f *Factory) Create(credential *models.Credential) (providers.Sender, error) {
	accountSID := credential.Settings["account_sid"]
	authToken := credential.Settings["auth_token"]

	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio credential missing 'account_sid' or 'auth_token'")
	}

	from := credential.Settings["from_number"]
	if from == "" {
		return nil, errors.New("twilio credential missing 'from_number'")
	}

	return &Sender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		whatsapp:   f.channel == models.ChannelWhatsApp,
	}, nil
}

type Sender struct {
	accountSID string
	authToken  string
	from       string
	whatsapp   bool
}

func (*Sender) ID() string {
	return "twilio"
}

func (s *Sender) Send(ctx context.Context, target string, msg providers.Message) providers.Result {
	from := s.from
	if s.whatsapp {
		from = "whatsapp:" + from
		target = "whatsapp:" + target
	}

	form := url.Values{}
	form.Set("From", from)
	form.Set("To", target)
	form.Set("Body", msg.Body)

	respBody, result := providers.Do(ctx, providers.Call{
		Method:    http.MethodPost,
		URL:       fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", s.accountSID),
		Form:      form,
		BasicUser: s.accountSID,
		BasicPass: s.authToken,
	})
	if !result.Success {
		return result
	}

	var resp struct {
		SID string `json:"sid"`
	}

	_ = json.Unmarshal([]byte(respBody), &resp)

	return providers.OK(resp.SID)
}
