// Package providers defines the vendor send capability used by the action
// dispatcher: one Sender implementation per integrated messaging vendor,
// selected per channel by a fixed priority order.
package providers

import (
	"context"

	"github.com/omniflowhq/omniflow/pkg/models"
)

// ErrorKind classifies a failed send for the execution state machine.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindCredentialMissing ErrorKind = "credential_missing"
	ErrorKindTransient         ErrorKind = "transient"
	ErrorKindPermanent         ErrorKind = "permanent"
)

// Message is a fully rendered outbound message. Subject applies to email;
// Fields carries any extra rendered payload entries a vendor understands.
type Message struct {
	Subject string
	Body    string
	Fields  map[string]string
}

// Result is the dispatch outcome. Provider failures are captured here, never
// raised: the state machine decides what a failure means for the run.
type Result struct {
	Success           bool
	ProviderMessageID string
	ErrorKind         ErrorKind
	Detail            string
}

// OK builds a successful result.
func OK(providerMessageID string) Result {
	return Result{Success: true, ProviderMessageID: providerMessageID}
}

// Failure builds a failed result with a classification and detail.
func Failure(kind ErrorKind, detail string) Result {
	return Result{Success: false, ErrorKind: kind, Detail: detail}
}

// Sender is the capability interface implemented once per vendor.
type Sender interface {
	ID() string
	Send(ctx context.Context, target string, msg Message) Result
}

// Factory creates a Sender bound to one company's credential.
type Factory interface {
	ID() string
	Channel() models.Channel
	Create(credential *models.Credential) (Sender, error)
}
