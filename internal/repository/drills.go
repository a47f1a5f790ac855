package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

func (s *SQLiteDB) CreateDrill(ctx context.Context, d *models.Drill) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO drills
		(id, community_id, organizer_id, title, description, location, scheduled_at, notification_sent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.CommunityID, d.OrganizerID, d.Title, d.Description, d.Location,
		toMillis(d.ScheduledAt), d.NotificationSent, toMillis(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("error creating drill %s: %w", d.ID, err)
	}
	return nil
}

func (s *SQLiteDB) GetDrill(ctx context.Context, id string) (*models.Drill, error) {
	var (
		d           models.Drill
		scheduledAt int64
		createdAt   int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, community_id, organizer_id, title, description, location,
		scheduled_at, notification_sent, created_at FROM drills WHERE id = ?`, id).
		Scan(&d.ID, &d.CommunityID, &d.OrganizerID, &d.Title, &d.Description, &d.Location,
			&scheduledAt, &d.NotificationSent, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting drill %s: %w", id, err)
	}
	d.ScheduledAt = fromMillis(scheduledAt)
	d.CreatedAt = fromMillis(createdAt)
	return &d, nil
}

func (s *SQLiteDB) MarkNotificationSent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE drills SET notification_sent = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error marking drill %s notified: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error marking drill %s notified: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
