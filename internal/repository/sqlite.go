package repository

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// One connection serializes writers; concurrent ledger appends queue on
	// the pool instead of hitting SQLITE_BUSY. It also keeps ":memory:"
	// databases from splitting across connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			target_scope TEXT NOT NULL,
			target_community_id TEXT,
			delivery_methods TEXT NOT NULL,
			recipients_count INTEGER NOT NULL DEFAULT 0,
			sent_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS delivery_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_id TEXT NOT NULL,
			recipient_id TEXT NOT NULL DEFAULT '',
			channel TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('sent', 'failed', 'pending')),
			error_detail TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			FOREIGN KEY (alert_id) REFERENCES alerts(id)
		);

		CREATE TABLE IF NOT EXISTS communities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			leader_id TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS community_members (
			community_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (community_id, user_id),
			FOREIGN KEY (community_id) REFERENCES communities(id)
		);

		CREATE TABLE IF NOT EXISTS drills (
			id TEXT PRIMARY KEY,
			community_id TEXT NOT NULL,
			organizer_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			scheduled_at INTEGER NOT NULL,
			notification_sent INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sender_progress (
			sender_id TEXT PRIMARY KEY,
			alerts_sent INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_sender_id ON alerts(sender_id);
		CREATE INDEX IF NOT EXISTS idx_alerts_expires_at ON alerts(expires_at);
		CREATE INDEX IF NOT EXISTS idx_alerts_target_community ON alerts(target_community_id);
		CREATE INDEX IF NOT EXISTS idx_delivery_log_alert_id ON delivery_log(alert_id);
		CREATE INDEX IF NOT EXISTS idx_communities_leader_id ON communities(leader_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Timestamps are stored as unix milliseconds.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
