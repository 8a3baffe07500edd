// Package exotel provides the Exotel SMS backend, the regional gateway for
// Indian numbers.
package exotel

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

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "exotel"
}

func (*Factory) Channel() models.Channel {
	return models.ChannelSMS
}

func (f *Factory) Create(credential *models.Credential) (providers.Sender, error) {
	accountSID := credential.Settings["account_sid"]
	apiKey := credential.Settings["api_key"]
	apiToken := credential.Settings["api_token"]

	if accountSID == "" || apiKey == "" || apiToken == "" {
		return nil, errors.New("exotel credential missing 'account_sid', 'api_key' or 'api_token'")
	}

	from := credential.Settings["sender_id"]
	if from == "" {
		return nil, errors.New("exotel credential missing 'sender_id'")
	}

	subdomain := credential.Settings["subdomain"]
	if subdomain == "" {
		subdomain = "api.exotel.com"
	}

	return &Sender{
		accountSID: accountSID,
		apiKey:     apiKey,
		apiToken:   apiToken,
		from:       from,
		subdomain:  subdomain,
	}, nil
}

type Sender struct {
	accountSID string
	apiKey     string
	apiToken   string
	from       string
	subdomain  string
}

func (*Sender) ID() string {
	return "exotel"
}

func (s *Sender) Send(ctx context.Context, target string, msg providers.Message) providers.Result {
	form := url.Values{}
	form.Set("From", s.from)
	form.Set("To", target)
	form.Set("Body", msg.Body)

	respBody, result := providers.Do(ctx, providers.Call{
		Method:    http.MethodPost,
		URL:       fmt.Sprintf("https://%s/v1/Accounts/%s/Sms/send.json", s.subdomain, s.accountSID),
		Form:      form,
		BasicUser: s.apiKey,
		BasicPass: s.apiToken,
	})
	if !result.Success {
		return result
	}

	var resp struct {
		SMSMessage struct {
			Sid string `json:"Sid"`
		} `json:"SMSMessage"`
	}

	_ = json.Unmarshal([]byte(respBody), &resp)

	return providers.OK(resp.SMSMessage.Sid)
}
