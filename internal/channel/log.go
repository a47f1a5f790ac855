package channel

import (
	"context"
	"log/slog"

	"github.com/mr1hm/go-alert-dispatch/internal/logging"
	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

// LogAdapter only logs the delivery. It stands in for a medium whose
// transport is not configured, e.g. during local development.
type LogAdapter struct {
	kind   models.DeliveryMethod
	logger *slog.Logger
}

func NewLogAdapter(kind models.DeliveryMethod, logger *slog.Logger) *LogAdapter {
	return &LogAdapter{
		kind:   kind,
		logger: logging.Component(logger, "log_adapter").With("channel", string(kind)),
	}
}

func (l *LogAdapter) Kind() models.DeliveryMethod { return l.kind }

func (l *LogAdapter) Attempt(ctx context.Context, r models.Recipient, msg Message) Outcome {
	if !r.Eligible(l.kind) {
		return Skipped()
	}
	l.logger.Info("alert delivery (log only)",
		"alert_id", msg.AlertID,
		"recipient_id", r.ID,
		"subject", msg.Subject(),
	)
	return Sent()
}
