// Package gupshup provides the Gupshup WhatsApp backend.
package gupshup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/providers"
)

const endpoint = "https://api.gupshup.io/wa/api/v1/msg"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "gupshup"
}

func (*Factory) Channel() models.Channel {
	return models.ChannelWhatsApp
}

func (f *Factory) Create(credential *models.Credential) (providers.Sender, error) {
	apiKey := credential.Settings["api_key"]
	if apiKey == "" {
		return nil, errors.New("gupshup credential missing 'api_key'")
	}

	source := credential.Settings["source_number"]
	if source == "" {
		return nil, errors.New("gupshup credential missing 'source_number'")
	}

	return &Sender{
		apiKey:  apiKey,
		source:  source,
		appName: credential.Settings["app_name"],
	}, nil
}

type Sender struct {
	apiKey  string
	source  string
	appName string
}

func (*Sender) ID() string {
	return "gupshup"
}

func (s *Sender) Send(ctx context.Context, target string, msg providers.Message) providers.Result {
	message, err := json.Marshal(map[string]string{
		"type": "text",
		"text": msg.Body,
	})
	if err != nil {
		return providers.Failure(providers.ErrorKindPermanent, "failed to encode gupshup message: "+err.Error())
	}

	form := url.Values{}
	form.Set("channel", "whatsapp")
	form.Set("source", s.source)
	form.Set("destination", target)
	form.Set("message", string(message))

	if s.appName != "" {
		form.Set("src.name", s.appName)
	}

	respBody, result := providers.Do(ctx, providers.Call{
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: map[string]string{"apikey": s.apiKey},
		Form:    form,
	})
	if !result.Success {
		return result
	}

	var resp struct {
		MessageID string `json:"messageId"`
	}

	_ = json.Unmarshal([]byte(respBody), &resp)

	return providers.OK(resp.MessageID)
}
