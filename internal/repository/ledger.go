package repository

import (
	"context"
	"fmt"

	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

// Record appends one delivery attempt. Entries are never updated or deleted.
func (s *SQLiteDB) Record(ctx context.Context, e *models.DeliveryLogEntry) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO delivery_log
		(alert_id, recipient_id, channel, status, error_detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.AlertID, e.RecipientID, string(e.Channel), string(e.Status), e.ErrorDetail, toMillis(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("error recording delivery for alert %s: %w", e.AlertID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (s *SQLiteDB) Summarize(ctx context.Context, alertID string) (models.DeliverySummary, error) {
	var summary models.DeliverySummary

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM delivery_log
		WHERE alert_id = ? GROUP BY status`, alertID)
	if err != nil {
		return summary, fmt.Errorf("error summarizing deliveries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return summary, fmt.Errorf("error scanning delivery summary: %w", err)
		}
		summary.Total += count
		switch models.DeliveryStatus(status) {
		case models.DeliverySent:
			summary.Sent = count
		case models.DeliveryFailed:
			summary.Failed = count
		case models.DeliveryPending:
			summary.Pending = count
		}
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("error iterating delivery summary: %w", err)
	}
	return summary, nil
}

func (s *SQLiteDB) ListDeliveries(ctx context.Context, alertID string) ([]models.DeliveryLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, alert_id, recipient_id, channel, status, error_detail, created_at
		FROM delivery_log WHERE alert_id = ? ORDER BY id`, alertID)
	if err != nil {
		return nil, fmt.Errorf("error listing deliveries: %w", err)
	}
	defer rows.Close()

	var entries []models.DeliveryLogEntry
	for rows.Next() {
		var (
			e         models.DeliveryLogEntry
			channel   string
			status    string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.AlertID, &e.RecipientID, &channel, &status, &e.ErrorDetail, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning delivery: %w", err)
		}
		e.Channel = models.DeliveryMethod(channel)
		e.Status = models.DeliveryStatus(status)
		e.Timestamp = fromMillis(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deliveries: %w", err)
	}
	return entries, nil
}
