package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *SQLiteDB) IncrementAlertsSent(ctx context.Context, senderID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sender_progress (sender_id, alerts_sent) VALUES (?, 1)
		ON CONFLICT(sender_id) DO UPDATE SET alerts_sent = alerts_sent + 1`, senderID)
	if err != nil {
		return fmt.Errorf("error incrementing alerts sent for %s: %w", senderID, err)
	}
	return nil
}

func (s *SQLiteDB) AlertsSent(ctx context.Context, senderID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT alerts_sent FROM sender_progress WHERE sender_id = ?`, senderID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error reading alerts sent for %s: %w", senderID, err)
	}
	return n, nil
}
