package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/daybook/internal/model"
)

// DueBatchSize caps how many scheduled notifications one sweep picks up.
const DueBatchSize = 100

type ScheduledStore struct {
	db *sql.DB
}

func NewScheduledStore(db *sql.DB) *ScheduledStore {
	return &ScheduledStore{db: db}
}

const scheduledCols = `id, user_id, category, reference_id, title, body, scheduled_for, status, sent_at, error_message, created_at`

func scanScheduled(scanner interface{ Scan(...any) error }) (*model.ScheduledNotification, error) {
	var n model.ScheduledNotification
	var refID, body, errMsg sql.NullString
	var sentAt sql.NullTime
	err := scanner.Scan(
		&n.ID, &n.UserID, &n.Category, &refID, &n.Title, &body,
		&n.ScheduledFor, &n.Status, &sentAt, &errMsg, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.ReferenceID = stringPtr(refID)
	n.Body = stringPtr(body)
	n.SentAt = timePtr(sentAt)
	n.ErrorMessage = stringPtr(errMsg)
	return &n, nil
}

func (s *ScheduledStore) Create(ctx context.Context, userID, category string, referenceID *string, title string, body *string, scheduledFor time.Time) (*model.ScheduledNotification, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_notifications (id, user_id, category, reference_id, title, body, scheduled_for, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, category, nullString(referenceID), title, nullString(body),
		scheduledFor.UTC(), model.StatusPending, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert scheduled notification: %w", err)
	}
	return s.GetByID(ctx, userID, id)
}

func (s *ScheduledStore) GetByID(ctx context.Context, userID, id string) (*model.ScheduledNotification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduledCols+` FROM scheduled_notifications WHERE id = ? AND user_id = ?`, id, userID,
	)
	n, err := scanScheduled(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled notification: %w", err)
	}
	return n, nil
}

// ListByUser returns the user's scheduled notifications, soonest first.
// An empty status returns every status.
func (s *ScheduledStore) ListByUser(ctx context.Context, userID, status string) ([]model.ScheduledNotification, error) {
	query := `SELECT ` + scheduledCols + ` FROM scheduled_notifications WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY scheduled_for ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scheduled notifications: %w", err)
	}
	defer rows.Close()
	return collectScheduled(rows)
}

// ListDue returns up to limit pending notifications whose time has come,
// across all users, oldest first.
func (s *ScheduledStore) ListDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledNotification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduledCols+` FROM scheduled_notifications
		 WHERE status = ? AND scheduled_for <= ?
		 ORDER BY scheduled_for ASC LIMIT ?`,
		model.StatusPending, now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due scheduled notifications: %w", err)
	}
	defer rows.Close()
	return collectScheduled(rows)
}

// MarkSent moves a pending notification to sent. It reports false when the
// row was no longer pending.
func (s *ScheduledStore) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.transition(ctx,
		`UPDATE scheduled_notifications SET status = ?, sent_at = ? WHERE id = ? AND status = ?`,
		model.StatusSent, at.UTC(), id, model.StatusPending,
	)
}

// MarkFailed moves a pending notification to failed with a reason.
func (s *ScheduledStore) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	return s.transition(ctx,
		`UPDATE scheduled_notifications SET status = ?, error_message = ? WHERE id = ? AND status = ?`,
		model.StatusFailed, reason, id, model.StatusPending,
	)
}

// Cancel cancels one of the user's pending notifications. It reports false
// when there is no pending notification with that id.
func (s *ScheduledStore) Cancel(ctx context.Context, userID, id string) (bool, error) {
	return s.transition(ctx,
		`UPDATE scheduled_notifications SET status = ? WHERE id = ? AND user_id = ? AND status = ?`,
		model.StatusCancelled, id, userID, model.StatusPending,
	)
}

func (s *ScheduledStore) transition(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update scheduled notification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func collectScheduled(rows *sql.Rows) ([]model.ScheduledNotification, error) {
	out := []model.ScheduledNotification{}
	for rows.Next() {
		n, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}
