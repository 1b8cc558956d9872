package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/daybook/internal/metrics"
	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/store"
)

const (
	reminderWindow  = time.Hour
	habitDigestMax  = 3
	ledgerRetention = 7 * 24 * time.Hour
)

// Summary is the result of one scheduler run.
type Summary struct {
	Success   bool      `json:"success"`
	Results   Results   `json:"results"`
	Timestamp time.Time `json:"timestamp"`
}

type Results struct {
	ScheduledNotifications ScheduledCounts `json:"scheduledNotifications"`
	ReminderNotifications  SendCounts      `json:"reminderNotifications"`
	HabitNotifications     SendCounts      `json:"habitNotifications"`
}

type ScheduledCounts struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

type SendCounts struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Scheduler runs the due-work sweeps. Each Run is independent; all state
// lives in the database.
type Scheduler struct {
	dispatcher *Dispatcher
	gate       *Gate
	scheduled  *store.ScheduledStore
	reminders  *store.ReminderStore
	habits     *store.HabitStore
	ledger     *store.LedgerStore
	logger     *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewScheduler(
	dispatcher *Dispatcher,
	gate *Gate,
	scheduled *store.ScheduledStore,
	reminders *store.ReminderStore,
	habits *store.HabitStore,
	ledger *store.LedgerStore,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		dispatcher: dispatcher,
		gate:       gate,
		scheduled:  scheduled,
		reminders:  reminders,
		habits:     habits,
		ledger:     ledger,
		logger:     logger,
	}
}

// Run performs the three sweeps in order. A failing sweep is logged and
// reported as zero counts; it never stops the others.
func (s *Scheduler) Run(ctx context.Context, now time.Time) Summary {
	start := time.Now()

	var res Results
	res.ScheduledNotifications = s.sweepScheduled(ctx, now)
	res.ReminderNotifications = s.sweepReminders(ctx, now)
	res.HabitNotifications = s.sweepHabits(ctx, now)

	if n, err := s.ledger.CleanupSent(ctx, now.Add(-ledgerRetention)); err != nil {
		s.logger.Error("cleanup sent ledger", "error", err)
	} else if n > 0 {
		s.logger.Debug("cleaned up sent ledger", "deleted", n)
	}

	metrics.ObserveSweep(time.Since(start))
	return Summary{Success: true, Results: res, Timestamp: now.UTC()}
}

func (s *Scheduler) sweepScheduled(ctx context.Context, now time.Time) ScheduledCounts {
	var counts ScheduledCounts

	due, err := s.scheduled.ListDue(ctx, now, store.DueBatchSize)
	if err != nil {
		s.logger.Error("scheduled sweep: list due", "error", err)
		return counts
	}

	for _, n := range due {
		notif := Notification{Category: n.Category, Title: n.Title, At: now}
		if n.Body != nil {
			notif.Body = *n.Body
		}
		if n.ReferenceID != nil {
			notif.ReferenceID = *n.ReferenceID
		}

		sendErr := s.dispatcher.Send(ctx, n.UserID, notif)

		var moved bool
		if sendErr == nil {
			counts.Processed++
			moved, err = s.scheduled.MarkSent(ctx, n.ID, now)
		} else {
			counts.Failed++
			s.logger.Warn("scheduled sweep: send failed", "id", n.ID, "user_id", n.UserID, "error", sendErr)
			moved, err = s.scheduled.MarkFailed(ctx, n.ID, Message(sendErr))
		}
		if err != nil {
			s.logger.Error("scheduled sweep: update status", "id", n.ID, "error", err)
		} else if !moved {
			s.logger.Warn("scheduled sweep: notification no longer pending", "id", n.ID)
		}
	}

	metrics.RecordSweepItems("scheduled", "processed", counts.Processed)
	metrics.RecordSweepItems("scheduled", "failed", counts.Failed)
	return counts
}

// reminderKey identifies one due date of a reminder in the sent ledger, so
// moving the due date arms the reminder again.
func reminderKey(r model.Reminder) string {
	return r.ID + "@" + r.DueDate.UTC().Format(time.RFC3339)
}

func (s *Scheduler) sweepReminders(ctx context.Context, now time.Time) SendCounts {
	var counts SendCounts

	due, err := s.reminders.ListDueBetween(ctx, now, now.Add(reminderWindow))
	if err != nil {
		s.logger.Error("reminder sweep: list due", "error", err)
		return counts
	}

	for _, r := range due {
		key := reminderKey(r)
		sent, err := s.ledger.WasSent(ctx, r.UserID, model.CategoryReminders, key)
		if err != nil {
			s.logger.Warn("reminder sweep: check ledger", "reminder_id", r.ID, "error", err)
			continue
		}
		if sent {
			continue
		}

		err = s.dispatcher.Send(ctx, r.UserID, Notification{
			Category:    model.CategoryReminders,
			Title:       "Reminder Due",
			Body:        r.Title,
			ReferenceID: r.ID,
			Data:        map[string]any{"reminder_id": r.ID},
			At:          now,
		})
		if err != nil {
			counts.Failed++
			s.logger.Debug("reminder sweep: not sent", "reminder_id", r.ID, "outcome", Outcome(err))
			continue
		}
		counts.Sent++
		if err := s.ledger.RecordSent(ctx, r.UserID, model.CategoryReminders, key, now); err != nil {
			s.logger.Warn("reminder sweep: record ledger", "reminder_id", r.ID, "error", err)
		}
	}

	metrics.RecordSweepItems("reminders", "sent", counts.Sent)
	metrics.RecordSweepItems("reminders", "failed", counts.Failed)
	return counts
}

func (s *Scheduler) sweepHabits(ctx context.Context, now time.Time) SendCounts {
	var counts SendCounts

	local := now.In(s.gate.Location())
	if local.Minute() >= 5 {
		return counts
	}

	habits, err := s.habits.ListByFrequency(ctx, model.FrequencyDaily)
	if err != nil {
		s.logger.Error("habit sweep: list habits", "error", err)
		return counts
	}

	var users []string
	byUser := make(map[string][]string)
	for _, h := range habits {
		if _, ok := byUser[h.UserID]; !ok {
			users = append(users, h.UserID)
		}
		byUser[h.UserID] = append(byUser[h.UserID], h.Name)
	}

	key := "habits-daily-" + local.Format("2006-01-02")
	for _, userID := range users {
		settings, err := s.gate.Settings(ctx, userID)
		if err != nil {
			s.logger.Warn("habit sweep: load settings", "user_id", userID, "error", err)
			continue
		}
		hour, ok := digestHour(settings.Category(model.CategoryHabits))
		if !ok || hour != local.Hour() {
			continue
		}

		sent, err := s.ledger.WasSent(ctx, userID, model.CategoryHabits, key)
		if err != nil {
			s.logger.Warn("habit sweep: check ledger", "user_id", userID, "error", err)
			continue
		}
		if sent {
			continue
		}

		err = s.dispatcher.Send(ctx, userID, Notification{
			Category: model.CategoryHabits,
			Title:    "Daily Habits",
			Body:     habitDigest(byUser[userID]),
			At:       now,
		})
		if err != nil {
			counts.Failed++
			s.logger.Debug("habit sweep: not sent", "user_id", userID, "outcome", Outcome(err))
			continue
		}
		counts.Sent++
		if err := s.ledger.RecordSent(ctx, userID, model.CategoryHabits, key, now); err != nil {
			s.logger.Warn("habit sweep: record ledger", "user_id", userID, "error", err)
		}
	}

	metrics.RecordSweepItems("habits", "sent", counts.Sent)
	metrics.RecordSweepItems("habits", "failed", counts.Failed)
	return counts
}

// digestHour returns the hour of a habits category schedule when the daily
// digest is switched on.
func digestHour(c model.CategorySettings) (int, bool) {
	if !c.Enabled || c.Scheduled == nil || !*c.Scheduled || c.ScheduledTime == nil {
		return 0, false
	}
	h, _, ok := strings.Cut(*c.ScheduledTime, ":")
	if !ok {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, false
	}
	return hour, true
}

func habitDigest(names []string) string {
	shown := names
	if len(shown) > habitDigestMax {
		shown = shown[:habitDigestMax]
	}
	body := "Time to complete: " + strings.Join(shown, ", ")
	if extra := len(names) - len(shown); extra > 0 {
		body += fmt.Sprintf(" and %d more", extra)
	}
	return body
}

// Start triggers Run on a cron schedule in the gate's timezone. Overlapping
// runs are skipped.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(s.gate.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	_, err := c.AddFunc(schedule, func() {
		sum := s.Run(ctx, time.Now())
		s.logger.Info("sweep complete",
			"scheduled_processed", sum.Results.ScheduledNotifications.Processed,
			"scheduled_failed", sum.Results.ScheduledNotifications.Failed,
			"reminders_sent", sum.Results.ReminderNotifications.Sent,
			"reminders_failed", sum.Results.ReminderNotifications.Failed,
			"habits_sent", sum.Results.HabitNotifications.Sent,
			"habits_failed", sum.Results.HabitNotifications.Failed,
		)
	})
	if err != nil {
		return fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}

	c.Start()
	s.cron = c
	s.logger.Info("sweep trigger started", "schedule", schedule, "tz", s.gate.Location().String())
	return nil
}

// Stop halts the cron trigger and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
