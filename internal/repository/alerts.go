package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

const alertColumns = `id, sender_id, alert_type, severity, title, message, target_scope,
	target_community_id, delivery_methods, recipients_count, sent_at, expires_at`

func (s *SQLiteDB) InsertAlert(ctx context.Context, a *models.Alert) error {
	var communityID sql.NullString
	if a.TargetCommunityID != nil {
		communityID = sql.NullString{String: *a.TargetCommunityID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SenderID, string(a.Type), string(a.Severity), a.Title, a.Message,
		string(a.TargetScope), communityID, models.JoinDeliveryMethods(a.DeliveryMethods),
		a.RecipientsCount, toMillis(a.SentAt), toMillis(a.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("error inserting alert %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteDB) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting alert %s: %w", id, err)
	}
	return a, nil
}

func (s *SQLiteDB) ListBySender(ctx context.Context, senderID string) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM alerts
		WHERE sender_id = ? ORDER BY sent_at DESC, id`, senderID)
	if err != nil {
		return nil, fmt.Errorf("error listing alerts for sender: %w", err)
	}
	return collectAlerts(rows)
}

func (s *SQLiteDB) ListActive(ctx context.Context, communityID *string, now time.Time) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE expires_at > ?`
	args := []any{toMillis(now)}
	if communityID != nil {
		query += ` AND target_community_id = ?`
		args = append(args, *communityID)
	}
	query += ` ORDER BY sent_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing active alerts: %w", err)
	}
	return collectAlerts(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var (
		a           models.Alert
		alertType   string
		severity    string
		scope       string
		communityID sql.NullString
		methods     string
		sentAt      int64
		expiresAt   int64
	)
	err := row.Scan(&a.ID, &a.SenderID, &alertType, &severity, &a.Title, &a.Message, &scope,
		&communityID, &methods, &a.RecipientsCount, &sentAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	a.Type = models.AlertType(alertType)
	a.Severity = models.AlertSeverity(severity)
	a.TargetScope = models.TargetScope(scope)
	if communityID.Valid {
		id := communityID.String
		a.TargetCommunityID = &id
	}
	a.DeliveryMethods = models.ParseDeliveryMethods(methods)
	a.SentAt = fromMillis(sentAt)
	a.ExpiresAt = fromMillis(expiresAt)
	return &a, nil
}

func collectAlerts(rows *sql.Rows) ([]models.Alert, error) {
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}
