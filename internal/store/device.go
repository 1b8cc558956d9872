package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/daybook/internal/model"
)

type DeviceStore struct {
	db *sql.DB
}

func NewDeviceStore(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

const deviceCols = `id, user_id, push_token, platform, device_name, is_active, created_at, updated_at`

func scanDevice(scanner interface{ Scan(...any) error }) (*model.DeviceToken, error) {
	var d model.DeviceToken
	var name sql.NullString
	var active int
	if err := scanner.Scan(&d.ID, &d.UserID, &d.PushToken, &d.Platform, &name, &active, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.DeviceName = stringPtr(name)
	d.IsActive = active != 0
	return &d, nil
}

// Register upserts a device token keyed on (userID, pushToken). Registering
// an existing token overwrites platform and name and reactivates it.
func (s *DeviceStore) Register(ctx context.Context, userID, pushToken, platform string, deviceName *string) (*model.DeviceToken, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_tokens (id, user_id, push_token, platform, device_name, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT(user_id, push_token) DO UPDATE SET
		   platform = excluded.platform,
		   device_name = excluded.device_name,
		   is_active = 1,
		   updated_at = excluded.updated_at`,
		newID(), userID, pushToken, platform, nullString(deviceName), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+deviceCols+` FROM device_tokens WHERE user_id = ? AND push_token = ?`,
		userID, pushToken,
	)
	d, err := scanDevice(row)
	if err != nil {
		return nil, fmt.Errorf("get registered device: %w", err)
	}
	return d, nil
}

// Unregister marks a token inactive. The row is kept for audit. found is
// false when the user has no such token.
func (s *DeviceStore) Unregister(ctx context.Context, userID, pushToken string) (found bool, err error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE device_tokens SET is_active = 0, updated_at = ? WHERE user_id = ? AND push_token = ?`,
		time.Now().UTC(), userID, pushToken,
	)
	if err != nil {
		return false, fmt.Errorf("unregister device: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListActive returns the user's active devices, oldest first.
func (s *DeviceStore) ListActive(ctx context.Context, userID string) ([]model.DeviceToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceCols+` FROM device_tokens
		 WHERE user_id = ? AND is_active = 1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active devices: %w", err)
	}
	defer rows.Close()

	devices := []model.DeviceToken{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}
