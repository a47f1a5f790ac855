// Package dispatch issues alerts: it validates an intent, snapshots the
// audience, persists the alert and fans delivery attempts out to the
// channel adapters, recording every outcome in the delivery ledger.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/go-alert-dispatch/internal/audience"
	"github.com/mr1hm/go-alert-dispatch/internal/channel"
	"github.com/mr1hm/go-alert-dispatch/internal/logging"
	"github.com/mr1hm/go-alert-dispatch/internal/models"
	"github.com/mr1hm/go-alert-dispatch/internal/progress"
	"github.com/mr1hm/go-alert-dispatch/internal/repository"
)

const (
	defaultWorkers    = 16
	defaultBufferSize = 64
)

// Resolver snapshots the recipients of one dispatch.
type Resolver interface {
	Resolve(ctx context.Context, senderID string, scope models.TargetScope, communityID string) (audience.Resolution, error)
}

// Publisher receives every alert once it has been stored.
type Publisher interface {
	Publish(a *models.Alert)
}

type Options struct {
	Store     repository.AlertStore
	Ledger    repository.DeliveryLedger
	Resolver  Resolver
	Adapters  channel.Registry
	Counter   progress.Counter // optional
	Publisher Publisher        // optional
	Workers   int              // concurrent attempts per dispatch
	Buffer    int              // queued attempts per dispatch
	Now       func() time.Time // defaults to time.Now
	Logger    *slog.Logger
}

type Engine struct {
	store     repository.AlertStore
	ledger    repository.DeliveryLedger
	resolver  Resolver
	adapters  channel.Registry
	counter   progress.Counter
	publisher Publisher
	workers   int
	buffer    int
	now       func() time.Time
	logger    *slog.Logger
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		store:     opts.Store,
		ledger:    opts.Ledger,
		resolver:  opts.Resolver,
		adapters:  opts.Adapters,
		counter:   opts.Counter,
		publisher: opts.Publisher,
		workers:   opts.Workers,
		buffer:    opts.Buffer,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if e.adapters == nil {
		e.adapters = channel.Registry{}
	}
	if e.counter == nil {
		e.counter = progress.Nop{}
	}
	if e.workers < 1 {
		e.workers = defaultWorkers
	}
	if e.buffer <= 0 {
		e.buffer = defaultBufferSize
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.logger = logging.Component(e.logger, "dispatch")
	return e
}

// ComposeAndSend dispatches the intent and returns the new alert's id.
func (e *Engine) ComposeAndSend(ctx context.Context, senderID string, intent models.AlertIntent) (string, error) {
	alert, err := e.Dispatch(ctx, senderID, intent)
	if err != nil {
		return "", err
	}
	return alert.ID, nil
}

// Dispatch returns once every delivery attempt has finished or ctx is done.
// Channel failures never fail the dispatch; they are only visible through
// the ledger.
func (e *Engine) Dispatch(ctx context.Context, senderID string, intent models.AlertIntent) (*models.Alert, error) {
	if err := validate(senderID, intent); err != nil {
		return nil, err
	}
	methods := intent.UniqueMethods()

	communityID := ""
	if intent.Scope.RequiresCommunity() {
		communityID = strings.TrimSpace(intent.CommunityID)
	}
	res, err := e.resolver.Resolve(ctx, senderID, intent.Scope, communityID)
	if err != nil {
		var resErr *audience.ResolutionError
		if errors.As(err, &resErr) {
			return nil, invalid("community_id", resErr.Reason)
		}
		return nil, err
	}

	// Millisecond precision is what the store keeps, so expiresAt - sentAt
	// stays exactly the TTL after a round trip.
	now := e.now().UTC().Truncate(time.Millisecond)
	alert := &models.Alert{
		ID:              uuid.NewString(),
		SenderID:        senderID,
		Type:            intent.Type,
		Severity:        intent.Severity,
		Title:           strings.TrimSpace(intent.Title),
		Message:         strings.TrimSpace(intent.Message),
		TargetScope:     intent.Scope,
		DeliveryMethods: methods,
		RecipientsCount: res.Count,
		SentAt:          now,
		ExpiresAt:       now.Add(intent.TTL),
	}
	if communityID != "" {
		alert.TargetCommunityID = &communityID
	}

	if err := e.store.InsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	e.logger.Info("alert issued",
		"alert_id", alert.ID,
		"sender_id", senderID,
		"scope", alert.TargetScope,
		"recipients", alert.RecipientsCount,
		"methods", models.JoinDeliveryMethods(methods),
	)

	if e.publisher != nil {
		e.publisher.Publish(alert)
	}

	e.fanOut(ctx, alert, res.Recipients)

	if err := e.counter.IncrementAlertsSent(ctx, senderID); err != nil {
		e.logger.Warn("error updating sender progress", "sender_id", senderID, "error", err)
	}

	return alert, nil
}

func validate(senderID string, intent models.AlertIntent) error {
	if strings.TrimSpace(senderID) == "" {
		return invalid("sender_id", "is required")
	}
	if strings.TrimSpace(intent.Title) == "" {
		return invalid("title", "is required")
	}
	if strings.TrimSpace(intent.Message) == "" {
		return invalid("message", "is required")
	}
	if !intent.Type.Valid() {
		return invalid("type", fmt.Sprintf("unknown alert type %q", intent.Type))
	}
	if !intent.Severity.Valid() {
		return invalid("severity", fmt.Sprintf("unknown severity %q", intent.Severity))
	}
	if !intent.Scope.Valid() {
		return invalid("target_scope", fmt.Sprintf("unknown scope %q", intent.Scope))
	}
	if intent.Scope.RequiresCommunity() && strings.TrimSpace(intent.CommunityID) == "" {
		return invalid("community_id", fmt.Sprintf("is required for scope %q", intent.Scope))
	}
	if len(intent.Methods) == 0 {
		return invalid("delivery_methods", "at least one delivery method is required")
	}
	for _, m := range intent.Methods {
		if !m.Valid() {
			return invalid("delivery_methods", fmt.Sprintf("unknown delivery method %q", m))
		}
	}
	if intent.TTL <= 0 {
		return invalid("ttl", "must be positive")
	}
	return nil
}

func (e *Engine) History(ctx context.Context, senderID string) ([]models.AlertSummary, error) {
	alerts, err := e.store.ListBySender(ctx, senderID)
	if err != nil {
		return nil, err
	}
	return e.summarize(ctx, alerts)
}

// ActiveAlerts lists unexpired alerts, optionally only those targeted at
// one community.
func (e *Engine) ActiveAlerts(ctx context.Context, communityID *string) ([]models.AlertSummary, error) {
	alerts, err := e.store.ListActive(ctx, communityID, e.now())
	if err != nil {
		return nil, err
	}
	return e.summarize(ctx, alerts)
}

func (e *Engine) summarize(ctx context.Context, alerts []models.Alert) ([]models.AlertSummary, error) {
	now := e.now()
	summaries := make([]models.AlertSummary, 0, len(alerts))
	for _, a := range alerts {
		delivery, err := e.ledger.Summarize(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, models.AlertSummary{
			Alert:    a,
			Active:   a.Active(now),
			Delivery: delivery,
		})
	}
	return summaries, nil
}

// Alert returns a stored alert or ErrAlertNotFound.
func (e *Engine) Alert(ctx context.Context, alertID string) (*models.Alert, error) {
	return e.store.GetAlert(ctx, alertID)
}

// DeliveryStatus aggregates the ledger for a known alert. The counts may
// grow while the alert's dispatch is still running.
func (e *Engine) DeliveryStatus(ctx context.Context, alertID string) (models.DeliverySummary, error) {
	if _, err := e.store.GetAlert(ctx, alertID); err != nil {
		return models.DeliverySummary{}, err
	}
	return e.ledger.Summarize(ctx, alertID)
}

func (e *Engine) Deliveries(ctx context.Context, alertID string) ([]models.DeliveryLogEntry, error) {
	if _, err := e.store.GetAlert(ctx, alertID); err != nil {
		return nil, err
	}
	return e.ledger.ListDeliveries(ctx, alertID)
}
