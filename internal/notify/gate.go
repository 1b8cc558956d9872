package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/store"
)

// CategoryEnabled reports whether a category may notify under the given
// settings. The global switch wins over the category flag.
func CategoryEnabled(s *model.NotificationSettings, category string) bool {
	if s == nil || !s.NotificationsEnabled {
		return false
	}
	return s.Category(category).Enabled
}

// InQuietHours reports whether now, read on the wall clock of loc, falls in
// the quiet window. Bounds are inclusive; start > end wraps past midnight.
func InQuietHours(s *model.NotificationSettings, now time.Time, loc *time.Location) bool {
	if s == nil || s.QuietHoursStart == nil || s.QuietHoursEnd == nil {
		return false
	}
	if loc == nil {
		loc = time.Local
	}
	return inWindow(now.In(loc).Format("15:04"), *s.QuietHoursStart, *s.QuietHoursEnd)
}

// inWindow compares zero-padded HH:mm strings lexicographically.
func inWindow(cur, start, end string) bool {
	if start > end {
		return cur >= start || cur <= end
	}
	return cur >= start && cur <= end
}

// Gate answers per-user gating questions from stored settings.
type Gate struct {
	profiles *store.ProfileStore
	loc      *time.Location
}

func NewGate(profiles *store.ProfileStore, loc *time.Location) *Gate {
	return &Gate{profiles: profiles, loc: loc}
}

// Settings loads a user's settings. A missing user yields nil settings,
// which every check treats as closed.
func (g *Gate) Settings(ctx context.Context, userID string) (*model.NotificationSettings, error) {
	s, err := g.profiles.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}

func (g *Gate) IsCategoryEnabled(ctx context.Context, userID, category string) (bool, error) {
	s, err := g.Settings(ctx, userID)
	if err != nil {
		return false, err
	}
	return CategoryEnabled(s, category), nil
}

func (g *Gate) IsInQuietHours(ctx context.Context, userID string, now time.Time) (bool, error) {
	s, err := g.Settings(ctx, userID)
	if err != nil {
		return false, err
	}
	return InQuietHours(s, now, g.loc), nil
}

// Location is the wall clock used for quiet hours and habit digests.
func (g *Gate) Location() *time.Location {
	if g.loc == nil {
		return time.Local
	}
	return g.loc
}
