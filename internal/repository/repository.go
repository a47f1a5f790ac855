package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

var ErrNotFound = errors.New("not found")

type AlertStore interface {
	InsertAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListBySender(ctx context.Context, senderID string) ([]models.Alert, error)
	// ListActive returns alerts with expires_at after now, optionally limited
	// to one target community.
	ListActive(ctx context.Context, communityID *string, now time.Time) ([]models.Alert, error)
}

// DeliveryLedger is append-only. Record must be safe for concurrent use.
type DeliveryLedger interface {
	Record(ctx context.Context, e *models.DeliveryLogEntry) error
	Summarize(ctx context.Context, alertID string) (models.DeliverySummary, error)
	ListDeliveries(ctx context.Context, alertID string) ([]models.DeliveryLogEntry, error)
}

// Directory is the read-only membership lookup used for audience resolution.
type Directory interface {
	MembersOf(ctx context.Context, communityID string) ([]models.Member, error)
	CommunitiesLedBy(ctx context.Context, senderID string) ([]models.Community, error)
}

type DrillStore interface {
	CreateDrill(ctx context.Context, d *models.Drill) error
	GetDrill(ctx context.Context, id string) (*models.Drill, error)
	MarkNotificationSent(ctx context.Context, id string) error
}
