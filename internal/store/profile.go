package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/daybook/internal/model"
)

// ErrNotFound is returned when a user-scoped record does not exist.
var ErrNotFound = errors.New("not found")

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Ensure creates the profile for an authenticated identity if it does not
// exist yet. Notification fields stay NULL so reads fall back to defaults.
func (s *ProfileStore) Ensure(ctx context.Context, id, email string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, email, now, now,
	)
	if err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, created_at, updated_at FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// GetSettings returns the user's notification settings merged with the
// defaults. It returns ErrNotFound when the profile does not exist.
func (s *ProfileStore) GetSettings(ctx context.Context, userID string) (*model.NotificationSettings, error) {
	stored, err := s.getStored(ctx, userID)
	if err != nil {
		return nil, err
	}
	settings := model.MergeDefaults(*stored)
	return &settings, nil
}

func (s *ProfileStore) getStored(ctx context.Context, userID string) (*model.StoredSettings, error) {
	var (
		enabled    sql.NullInt64
		categories sql.NullString
		start, end sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT notifications_enabled, notification_categories, quiet_hours_start, quiet_hours_end
		 FROM profiles WHERE id = ?`, userID,
	).Scan(&enabled, &categories, &start, &end)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification settings: %w", err)
	}

	var stored model.StoredSettings
	if enabled.Valid {
		v := enabled.Int64 != 0
		stored.NotificationsEnabled = &v
	}
	if categories.Valid && categories.String != "" {
		if err := json.Unmarshal([]byte(categories.String), &stored.NotificationCategories); err != nil {
			return nil, fmt.Errorf("decode notification categories: %w", err)
		}
	}
	if start.Valid {
		stored.QuietHoursStart = &start.String
	}
	if end.Valid {
		stored.QuietHoursEnd = &end.String
	}
	return &stored, nil
}

// UpdateSettings applies a partial update and returns the merged settings.
// A provided category replaces the stored value for that category; other
// categories are left as they were.
func (s *ProfileStore) UpdateSettings(ctx context.Context, userID string, patch model.SettingsPatch) (*model.NotificationSettings, error) {
	current, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if patch.NotificationsEnabled != nil {
		sets = append(sets, "notifications_enabled = ?")
		args = append(args, boolToInt(*patch.NotificationsEnabled))
	}
	if patch.NotificationCategories != nil {
		merged := current.NotificationCategories
		for name, cat := range patch.NotificationCategories {
			merged[name] = cat
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("encode notification categories: %w", err)
		}
		sets = append(sets, "notification_categories = ?")
		args = append(args, string(data))
	}
	if patch.QuietHoursStart.Set {
		sets = append(sets, "quiet_hours_start = ?")
		args = append(args, nullString(patch.QuietHoursStart.Value))
	}
	if patch.QuietHoursEnd.Set {
		sets = append(sets, "quiet_hours_end = ?")
		args = append(args, nullString(patch.QuietHoursEnd.Value))
	}

	args = append(args, userID)
	query := "UPDATE profiles SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update notification settings: %w", err)
	}

	return s.GetSettings(ctx, userID)
}
