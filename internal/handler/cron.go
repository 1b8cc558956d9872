package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/daybook/internal/notify"
)

// SweepRunner runs one pass of the notification sweeps.
type SweepRunner interface {
	Run(ctx context.Context, now time.Time) notify.Summary
}

type CronHandler struct {
	runner SweepRunner
	logger *slog.Logger
	now    func() time.Time
}

func NewCronHandler(runner SweepRunner, logger *slog.Logger) *CronHandler {
	return &CronHandler{runner: runner, logger: logger, now: time.Now}
}

// Notifications handles GET /cron/notifications
func (h *CronHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	summary := h.runner.Run(r.Context(), h.now())
	res := summary.Results
	h.logger.Info("cron sweep",
		"scheduled_processed", res.ScheduledNotifications.Processed,
		"scheduled_failed", res.ScheduledNotifications.Failed,
		"reminders_sent", res.ReminderNotifications.Sent,
		"habits_sent", res.HabitNotifications.Sent,
	)
	writeJSON(w, http.StatusOK, summary)
}
