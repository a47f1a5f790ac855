package dispatch

import (
	"context"
	"errors"

	"github.com/mr1hm/go-alert-dispatch/internal/channel"
	"github.com/mr1hm/go-alert-dispatch/internal/models"
	"github.com/mr1hm/go-alert-dispatch/internal/worker"
)

var errNoAdapter = errors.New("no adapter configured")

// attempt is one (channel, recipient) delivery task.
type attempt struct {
	method    models.DeliveryMethod
	recipient models.Recipient
	message   channel.Message
}

// fanOut runs one attempt per requested method and eligible recipient on a
// bounded pool. Pending tasks are dropped once ctx is done; entries already
// recorded stay.
func (e *Engine) fanOut(ctx context.Context, alert *models.Alert, recipients []models.Recipient) {
	msg := channel.MessageFor(alert)

	var tasks []attempt
	for _, method := range alert.DeliveryMethods {
		for _, r := range recipients {
			if !r.Eligible(method) {
				continue
			}
			tasks = append(tasks, attempt{method: method, recipient: r, message: msg})
		}
	}
	if len(tasks) == 0 {
		return
	}

	pool := worker.NewWorkerPool(min(e.workers, len(tasks)), e.buffer, func(ctx context.Context, job worker.Job) error {
		e.deliver(ctx, alert.ID, job.(attempt))
		return nil
	})
	pool.Start(ctx)

	submitted := 0
	for _, t := range tasks {
		if !pool.Submit(ctx, t) {
			break
		}
		submitted++
	}
	pool.Stop()

	if submitted < len(tasks) {
		e.logger.Warn("dispatch interrupted",
			"alert_id", alert.ID,
			"submitted", submitted,
			"planned", len(tasks),
			"error", ctx.Err(),
		)
	}
}

func (e *Engine) deliver(ctx context.Context, alertID string, t attempt) {
	var out channel.Outcome
	if adapter, ok := e.adapters.Get(t.method); ok {
		out = channel.SafeAttempt(ctx, adapter, t.recipient, t.message)
	} else {
		out = channel.Failed(errNoAdapter)
	}
	if out.Status == channel.StatusSkipped {
		return
	}

	entry := &models.DeliveryLogEntry{
		AlertID:     alertID,
		RecipientID: t.recipient.ID,
		Channel:     t.method,
		Status:      models.DeliveryStatus(out.Status),
		ErrorDetail: out.ErrorDetail,
		Timestamp:   e.now().UTC(),
	}
	// A finished attempt is recorded even if the dispatch was cancelled meanwhile.
	if err := e.ledger.Record(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("error recording delivery",
			"alert_id", alertID,
			"channel", t.method,
			"recipient_id", t.recipient.ID,
			"error", err,
		)
		return
	}

	if out.Status == channel.StatusFailed {
		e.logger.Debug("delivery failed",
			"alert_id", alertID,
			"channel", t.method,
			"recipient_id", t.recipient.ID,
			"error", out.ErrorDetail,
		)
	}
}
