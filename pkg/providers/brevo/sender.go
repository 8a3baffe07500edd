// Package brevo provides the Brevo transactional email backend.
package brevo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/providers"
)

const endpoint = "https://api.brevo.com/v3/smtp/email"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "brevo"
}

func (*Factory) Channel() models.Channel {
	return models.ChannelEmail
}

func (f *Factory) Create(credential *models.Credential) (providers.Sender, error) {
	apiKey := credential.Settings["api_key"]
	if apiKey == "" {
		return nil, errors.New("brevo credential missing 'api_key'")
	}

	return &Sender{
		apiKey:    apiKey,
		fromEmail: credential.Settings["from_email"],
		fromName:  credential.Settings["from_name"],
	}, nil
}

type Sender struct {
	apiKey    string
	fromEmail string
	fromName  string
}

func (*Sender) ID() string {
	return "brevo"
}

func (s *Sender) Send(ctx context.Context, target string, msg providers.Message) providers.Result {
	payload := map[string]any{
		"sender": map[string]string{
			"email": s.fromEmail,
			"name":  s.fromName,
		},
		"to":          []map[string]string{{"email": target}},
		"subject":     msg.Subject,
		"htmlContent": msg.Body,
	}

	if replyTo := msg.Fields["reply_to"]; replyTo != "" {
		payload["replyTo"] = map[string]string{"email": replyTo}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return providers.Failure(providers.ErrorKindPermanent, "failed to encode brevo payload: "+err.Error())
	}

	respBody, result := providers.Do(ctx, providers.Call{
		Method:   http.MethodPost,
		URL:      endpoint,
		Headers:  map[string]string{"api-key": s.apiKey, "accept": "application/json"},
		JSONBody: string(body),
	})
	if !result.Success {
		return result
	}

	var resp struct {
		MessageID string `json:"messageId"`
	}

	// Message id extraction is best-effort; the send already succeeded.
	_ = json.Unmarshal([]byte(respBody), &resp)

	return providers.OK(resp.MessageID)
}
