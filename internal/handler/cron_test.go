package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/daybook/internal/notify"
)

type stubRunner struct {
	at time.Time
}

func (s *stubRunner) Run(ctx context.Context, now time.Time) notify.Summary {
	s.at = now
	return notify.Summary{
		Success: true,
		Results: notify.Results{
			ScheduledNotifications: notify.ScheduledCounts{Processed: 2, Failed: 1},
			ReminderNotifications:  notify.SendCounts{Sent: 3},
			HabitNotifications:     notify.SendCounts{Failed: 1},
		},
		Timestamp: now,
	}
}

func TestCronNotifications(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	runner := &stubRunner{}
	h := NewCronHandler(runner, discard)
	h.now = func() time.Time { return now }

	rec := httptest.NewRecorder()
	h.Notifications(rec, httptest.NewRequest(http.MethodGet, "/cron/notifications", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, now, runner.at)
	assert.JSONEq(t, `{
		"success": true,
		"results": {
			"scheduledNotifications": {"processed": 2, "failed": 1},
			"reminderNotifications": {"sent": 3, "failed": 0},
			"habitNotifications": {"sent": 0, "failed": 1}
		},
		"timestamp": "2026-05-04T09:00:00Z"
	}`, rec.Body.String())
}
