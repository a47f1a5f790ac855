// Package channel delivers one alert message to one recipient over one
// medium. Adapters report outcomes instead of returning errors and never
// touch the alert record or the delivery ledger.
package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
	// StatusSkipped means the recipient has no contact data for the channel.
	StatusSkipped Status = "skipped"
)

type Outcome struct {
	Status      Status
	ErrorDetail string
}

func Sent() Outcome    { return Outcome{Status: StatusSent} }
func Pending() Outcome { return Outcome{Status: StatusPending} }
func Skipped() Outcome { return Outcome{Status: StatusSkipped} }

func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, ErrorDetail: err.Error()}
}

// Message is the content delivered for an alert.
type Message struct {
	AlertID   string
	Type      models.AlertType
	Severity  models.AlertSeverity
	Title     string
	Body      string
	ExpiresAt time.Time
}

func MessageFor(a *models.Alert) Message {
	return Message{
		AlertID:   a.ID,
		Type:      a.Type,
		Severity:  a.Severity,
		Title:     a.Title,
		Body:      a.Message,
		ExpiresAt: a.ExpiresAt,
	}
}

// Subject is the one-line headline used by email subjects and SMS prefixes.
func (m Message) Subject() string {
	return fmt.Sprintf("[%s %s] %s", strings.ToUpper(string(m.Severity)), strings.ToUpper(string(m.Type)), m.Title)
}

type Adapter interface {
	Kind() models.DeliveryMethod
	// Attempt must be safe for concurrent use.
	Attempt(ctx context.Context, r models.Recipient, msg Message) Outcome
}

// SafeAttempt calls the adapter and converts a panic into a failed outcome.
func SafeAttempt(ctx context.Context, a Adapter, r models.Recipient, msg Message) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = Outcome{Status: StatusFailed, ErrorDetail: fmt.Sprintf("adapter panic: %v", rec)}
		}
	}()
	out = a.Attempt(ctx, r, msg)
	if out.Status == "" {
		out = Outcome{Status: StatusFailed, ErrorDetail: "adapter returned no status"}
	}
	return out
}

type Registry map[models.DeliveryMethod]Adapter

func NewRegistry(adapters ...Adapter) Registry {
	reg := make(Registry, len(adapters))
	for _, a := range adapters {
		if a == nil {
			continue
		}
		reg[a.Kind()] = a
	}
	return reg
}

func (r Registry) Get(kind models.DeliveryMethod) (Adapter, bool) {
	a, ok := r[kind]
	return a, ok
}
