// Package plivo provides the Plivo SMS backend.
package plivo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/providers"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "plivo"
}

func (*Factory) Channel() models.Channel {
	return models.ChannelSMS
}

func (f *Factory) Create(credential *models.Credential) (providers.Sender, error) {
	authID := credential.Settings["auth_id"]
	authToken := credential.Settings["auth_token"]

	if authID == "" || authToken == "" {
		return nil, errors.New("plivo credential missing 'auth_id' or 'auth_token'")
	}

	from := credential.Settings["from_number"]
	if from == "" {
		return nil, errors.New("plivo credential missing 'from_number'")
	}

	return &Sender{authID: authID, authToken: authToken, from: from}, nil
}

type Sender struct {
	authID    string
	authToken string
	from      string
}

func (*Sender) ID() string {
	return "plivo"
}

func (s *Sender) Send(ctx context.Context, target string, msg providers.Message) providers.Result {
	payload, err := json.Marshal(map[string]string{
		"src":  s.from,
		"dst":  target,
		"text": msg.Body,
	})
	if err != nil {
		return providers.Failure(providers.ErrorKindPermanent, "failed to encode plivo payload: "+err.Error())
	}

	respBody, result := providers.Do(ctx, providers.Call{
		Method:    http.MethodPost,
		URL:       fmt.Sprintf("https://api.plivo.com/v1/Account/%s/Message/", s.authID),
		JSONBody:  string(payload),
		BasicUser: s.authID,
		BasicPass: s.authToken,
	})
	if !result.Success {
		return result
	}

	var resp struct {
		MessageUUID []string `json:"message_uuid"`
	}

	_ = json.Unmarshal([]byte(respBody), &resp)

	messageID := ""
	if len(resp.MessageUUID) > 0 {
		messageID = resp.MessageUUID[0]
	}

	return providers.OK(messageID)
}
