// Package smtp provides the raw SMTP email backend, the lowest-priority
// email provider when no transactional vendor is configured.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/providers"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "smtp"
}

func (*Factory) Channel() models.Channel {
	return models.ChannelEmail
}

func (f *Factory) Create(credential *models.Credential) (providers.Sender, error) {
	host := credential.Settings["host"]
	if host == "" {
		return nil, errors.New("smtp credential missing 'host'")
	}

	port := credential.Settings["port"]
	if port == "" {
		port = "587"
	}

	return &Sender{
		addr:     net.JoinHostPort(host, port),
		host:     host,
		username: credential.Settings["username"],
		password: credential.Settings["password"],
		from:     credential.Settings["from_email"],
	}, nil
}

type Sender struct {
	addr     string
	host     string
	username string
	password string
	from     string
}

func (*Sender) ID() string {
	return "smtp"
}

func (s *Sender) Send(_ context.Context, target string, msg providers.Message) providers.Result {
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	var raw strings.Builder

	fmt.Fprintf(&raw, "From: %s\r\n", s.from)
	fmt.Fprintf(&raw, "To: %s\r\n", target)
	fmt.Fprintf(&raw, "Subject: %s\r\n", msg.Subject)
	raw.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n")
	raw.WriteString(msg.Body)

	err := smtp.SendMail(s.addr, auth, s.from, []string{target}, []byte(raw.String()))
	if err != nil {
		// SMTP failures are treated as transient; the relay may recover.
		return providers.Failure(providers.ErrorKindTransient, fmt.Sprintf("smtp send failed: %v", err))
	}

	return providers.OK("")
}
