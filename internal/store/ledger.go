package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LedgerStore remembers which sweep notifications already went out so
// repeated sweeps do not resend them.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// RecordSent records that a notification was sent (for dedup).
func (s *LedgerStore) RecordSent(ctx context.Context, userID, category, refID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sent_notifications (user_id, category, reference_id, sent_at)
		 VALUES (?, ?, ?, ?)`,
		userID, category, refID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record sent notification: %w", err)
	}
	return nil
}

// WasSent checks if a notification was already sent.
func (s *LedgerStore) WasSent(ctx context.Context, userID, category, refID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_notifications
		 WHERE user_id = ? AND category = ? AND reference_id = ?`,
		userID, category, refID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return count > 0, nil
}

// CleanupSent deletes ledger entries older than the given time.
func (s *LedgerStore) CleanupSent(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sent_notifications WHERE sent_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup sent notifications: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
