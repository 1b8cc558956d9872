package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/daybook/internal/model"
)

type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record appends one history row for a dispatched notification.
func (s *HistoryStore) Record(ctx context.Context, userID, category, title string, body *string, data map[string]any, sentAt time.Time) error {
	var encoded sql.NullString
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode history data: %w", err)
		}
		encoded = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_history (id, user_id, category, title, body, data, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		newID(), userID, category, title, nullString(body), encoded, sentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert notification history: %w", err)
	}
	return nil
}

// ListByUser returns the user's history, newest first.
func (s *HistoryStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.NotificationHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, category, title, body, data, sent_at FROM notification_history
		 WHERE user_id = ? ORDER BY sent_at DESC, id LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list notification history: %w", err)
	}
	defer rows.Close()

	out := []model.NotificationHistory{}
	for rows.Next() {
		var h model.NotificationHistory
		var body, data sql.NullString
		if err := rows.Scan(&h.ID, &h.UserID, &h.Category, &h.Title, &body, &data, &h.SentAt); err != nil {
			return nil, fmt.Errorf("scan notification history: %w", err)
		}
		h.Body = stringPtr(body)
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &h.Data); err != nil {
				return nil, fmt.Errorf("decode history data: %w", err)
			}
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// CountByUser returns the number of history rows for a user.
func (s *HistoryStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_history WHERE user_id = ?`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count notification history: %w", err)
	}
	return n, nil
}
