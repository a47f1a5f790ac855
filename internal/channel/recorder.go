package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

type Call struct {
	Recipient models.Recipient
	Message   Message
}

// Recorder records every attempt without side effects. FailFor and PanicFor
// make attempts for the given recipient ids fail or panic.
type Recorder struct {
	kind     models.DeliveryMethod
	mu       sync.Mutex
	calls    []Call
	failFor  map[string]bool
	panicFor map[string]bool
	outcome  Outcome
}

func NewRecorder(kind models.DeliveryMethod) *Recorder {
	return &Recorder{
		kind:     kind,
		failFor:  make(map[string]bool),
		panicFor: make(map[string]bool),
		outcome:  Sent(),
	}
}

func (r *Recorder) FailFor(ids ...string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.failFor[id] = true
	}
	return r
}

func (r *Recorder) PanicFor(ids ...string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.panicFor[id] = true
	}
	return r
}

// Respond sets the outcome returned for attempts that neither fail nor panic.
func (r *Recorder) Respond(o Outcome) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcome = o
	return r
}

func (r *Recorder) Kind() models.DeliveryMethod { return r.kind }

func (r *Recorder) Attempt(ctx context.Context, rcpt models.Recipient, msg Message) Outcome {
	if !rcpt.Eligible(r.kind) {
		return Skipped()
	}

	r.mu.Lock()
	r.calls = append(r.calls, Call{Recipient: rcpt, Message: msg})
	shouldPanic := r.panicFor[rcpt.ID]
	shouldFail := r.failFor[rcpt.ID]
	outcome := r.outcome
	r.mu.Unlock()

	if shouldPanic {
		panic("recorder: simulated adapter crash for " + rcpt.ID)
	}
	if shouldFail {
		return Failed(errors.New("recorder: simulated failure"))
	}
	return outcome
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}
