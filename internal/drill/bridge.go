// Package drill turns scheduled drills into low-severity community alerts.
package drill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mr1hm/go-alert-dispatch/internal/logging"
	"github.com/mr1hm/go-alert-dispatch/internal/models"
	"github.com/mr1hm/go-alert-dispatch/internal/repository"
)

const DefaultGrace = time.Hour

var ErrInvalidDrill = errors.New("invalid drill")

// Dispatcher issues one alert on behalf of a sender.
type Dispatcher interface {
	ComposeAndSend(ctx context.Context, senderID string, intent models.AlertIntent) (string, error)
}

type Bridge struct {
	drills     repository.DrillStore
	dispatcher Dispatcher
	grace      time.Duration
	now        func() time.Time
	group      singleflight.Group
	logger     *slog.Logger
}

// NewBridge keeps each drill alert active for grace after the drill starts.
// A negative grace selects DefaultGrace.
func NewBridge(drills repository.DrillStore, dispatcher Dispatcher, grace time.Duration, logger *slog.Logger) *Bridge {
	if grace < 0 {
		grace = DefaultGrace
	}
	return &Bridge{
		drills:     drills,
		dispatcher: dispatcher,
		grace:      grace,
		now:        time.Now,
		logger:     logging.Component(logger, "drill_bridge"),
	}
}

// ScheduleDrill stores a new drill and announces it.
func (b *Bridge) ScheduleDrill(ctx context.Context, d *models.Drill, communityIDs []string, methods []models.DeliveryMethod) ([]string, error) {
	if strings.TrimSpace(d.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidDrill)
	}
	if d.CommunityID == "" {
		return nil, fmt.Errorf("%w: community is required", ErrInvalidDrill)
	}
	if d.OrganizerID == "" {
		return nil, fmt.Errorf("%w: organizer is required", ErrInvalidDrill)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = b.now().UTC().Truncate(time.Millisecond)
	}
	d.NotificationSent = false

	if err := b.drills.CreateDrill(ctx, d); err != nil {
		return nil, err
	}
	return b.NotifyDrillScheduled(ctx, d, communityIDs, methods)
}

// NotifyDrillScheduled sends one alert per target community and then marks
// the drill as notified. It is a no-op for a drill already notified. If any
// dispatch fails the flag stays unset, so a retry re-sends to every target.
func (b *Bridge) NotifyDrillScheduled(ctx context.Context, d *models.Drill, communityIDs []string, methods []models.DeliveryMethod) ([]string, error) {
	if d.NotificationSent {
		return nil, nil
	}

	v, err, _ := b.group.Do(d.ID, func() (interface{}, error) {
		// Re-read so a caller holding a stale copy does not notify twice.
		stored, err := b.drills.GetDrill(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		if stored.NotificationSent {
			return []string(nil), nil
		}
		return b.notify(ctx, stored, communityIDs, methods)
	})
	if err != nil {
		return nil, err
	}
	d.NotificationSent = true
	return v.([]string), nil
}

func (b *Bridge) notify(ctx context.Context, d *models.Drill, communityIDs []string, methods []models.DeliveryMethod) ([]string, error) {
	targets := communityIDs
	if len(targets) == 0 {
		targets = []string{d.CommunityID}
	}

	intent := b.intentFor(d, methods)
	ids := make([]string, 0, len(targets))
	for _, communityID := range targets {
		intent.CommunityID = communityID
		id, err := b.dispatcher.ComposeAndSend(ctx, d.OrganizerID, intent)
		if err != nil {
			return nil, fmt.Errorf("error notifying community %s of drill %s: %w", communityID, d.ID, err)
		}
		ids = append(ids, id)
	}

	if err := b.drills.MarkNotificationSent(ctx, d.ID); err != nil {
		return nil, fmt.Errorf("error marking drill %s notified: %w", d.ID, err)
	}

	b.logger.Info("drill notified", "drill_id", d.ID, "communities", len(targets), "alerts", len(ids))
	return ids, nil
}

func (b *Bridge) intentFor(d *models.Drill, methods []models.DeliveryMethod) models.AlertIntent {
	return models.AlertIntent{
		Type:     models.AlertTypeGeneral,
		Severity: models.AlertSeverityLow,
		Title:    "Drill scheduled: " + d.Title,
		Message:  drillMessage(d),
		Scope:    models.TargetScopeCommunity,
		Methods:  methods,
		TTL:      b.ttlFor(d),
	}
}

// ttlFor keeps the alert active until the drill starts plus the grace period.
// A drill scheduled in the past still gets the grace period.
func (b *Bridge) ttlFor(d *models.Drill) time.Duration {
	until := d.ScheduledAt.Sub(b.now())
	if until < 0 {
		until = 0
	}
	ttl := (until + b.grace).Truncate(time.Millisecond)
	if ttl <= 0 {
		ttl = DefaultGrace
	}
	return ttl
}

func drillMessage(d *models.Drill) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A drill %q is scheduled for %s.", d.Title, d.ScheduledAt.UTC().Format(time.RFC1123))
	if d.Location != "" {
		fmt.Fprintf(&sb, " Location: %s.", d.Location)
	}
	if desc := strings.TrimSpace(d.Description); desc != "" {
		sb.WriteString(" ")
		sb.WriteString(desc)
	}
	return sb.String()
}
