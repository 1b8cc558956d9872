package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/daybook/internal/auth"
	"github.com/dukerupert/daybook/internal/config"
	"github.com/dukerupert/daybook/internal/handler"
	"github.com/dukerupert/daybook/internal/metrics"
	"github.com/dukerupert/daybook/internal/middleware"
	"github.com/dukerupert/daybook/internal/notify"
	"github.com/dukerupert/daybook/internal/store"
	"github.com/dukerupert/daybook/internal/validation"
	ws "github.com/dukerupert/daybook/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	notificationH *handler.NotificationHandler
	reminderH     *handler.ReminderHandler
	habitH        *handler.HabitHandler
	cronH         *handler.CronHandler
	verifier      *auth.Verifier
	profileStore  *store.ProfileStore
	rateLimiter   *middleware.RateLimiter
	scheduler     *notify.Scheduler
	cronSecret    string
	logger        *slog.Logger
}

// New wires the stores, notification pipeline and handlers. sink is the
// push delivery backend.
func New(db *sql.DB, cfg *config.Config, sink notify.Sink, logger *slog.Logger) (*Server, error) {
	validator, err := validation.New()
	if err != nil {
		return nil, fmt.Errorf("load validation schemas: %w", err)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	profileStore := store.NewProfileStore(db)
	deviceStore := store.NewDeviceStore(db)
	scheduledStore := store.NewScheduledStore(db)
	historyStore := store.NewHistoryStore(db)
	ledgerStore := store.NewLedgerStore(db)
	reminderStore := store.NewReminderStore(db)
	habitStore := store.NewHabitStore(db)

	gate := notify.NewGate(profileStore, cfg.Location)
	dispatcher := notify.NewDispatcher(gate, deviceStore, historyStore, sink, hub, logger.With("component", "dispatcher"))
	scheduler := notify.NewScheduler(dispatcher, gate, scheduledStore, reminderStore, habitStore, ledgerStore, logger.With("component", "scheduler"))

	return &Server{
		db:            db,
		hub:           hub,
		notificationH: handler.NewNotificationHandler(profileStore, deviceStore, scheduledStore, historyStore, dispatcher, validator, logger.With("component", "notification")),
		reminderH:     handler.NewReminderHandler(reminderStore, validator, logger.With("component", "reminder")),
		habitH:        handler.NewHabitHandler(habitStore, validator, logger.With("component", "habit")),
		cronH:         handler.NewCronHandler(scheduler, logger.With("component", "cron")),
		verifier:      auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience),
		profileStore:  profileStore,
		rateLimiter:   middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		scheduler:     scheduler,
		cronSecret:    cfg.CronSecret,
		logger:        logger,
	}, nil
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Scheduler returns the notification scheduler so it can be run on a timer.
func (s *Server) Scheduler() *notify.Scheduler {
	return s.scheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", metrics.Handler())
	outerMux.Handle("GET /cron/notifications", middleware.RequireCronSecret(s.cronSecret)(http.HandlerFunc(s.cronH.Notifications)))

	// Protected routes: bearer token, then per-user rate limit
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.verifier, s.profileStore, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(s.rateLimiter.Handler(protectedMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Notification settings and devices
	mux.HandleFunc("GET /notifications/settings", s.notificationH.GetSettings)
	mux.HandleFunc("PUT /notifications/settings", s.notificationH.UpdateSettings)
	mux.HandleFunc("GET /notifications/devices", s.notificationH.ListDevices)
	mux.HandleFunc("POST /notifications/devices", s.notificationH.RegisterDevice)
	mux.HandleFunc("DELETE /notifications/devices", s.notificationH.UnregisterDevice)

	// Scheduled notifications and history
	mux.HandleFunc("GET /notifications/scheduled", s.notificationH.ListScheduled)
	mux.HandleFunc("POST /notifications/scheduled", s.notificationH.CreateScheduled)
	mux.HandleFunc("DELETE /notifications/scheduled/{id}", s.notificationH.CancelScheduled)
	mux.HandleFunc("GET /notifications/history", s.notificationH.History)
	mux.HandleFunc("POST /notifications/test", s.notificationH.Test)

	// Reminder lists and reminders
	mux.HandleFunc("GET /reminder-lists", s.reminderH.ListLists)
	mux.HandleFunc("POST /reminder-lists", s.reminderH.CreateList)
	mux.HandleFunc("PATCH /reminder-lists/{id}", s.reminderH.UpdateList)
	mux.HandleFunc("DELETE /reminder-lists/{id}", s.reminderH.DeleteList)
	mux.HandleFunc("GET /reminders", s.reminderH.List)
	mux.HandleFunc("POST /reminders", s.reminderH.Create)
	mux.HandleFunc("PATCH /reminders/{id}", s.reminderH.Update)
	mux.HandleFunc("DELETE /reminders/{id}", s.reminderH.Delete)

	// Habits
	mux.HandleFunc("GET /habits", s.habitH.List)
	mux.HandleFunc("POST /habits", s.habitH.Create)
	mux.HandleFunc("PATCH /habits/{id}", s.habitH.Update)
	mux.HandleFunc("DELETE /habits/{id}", s.habitH.Delete)

	// WebSocket
	mux.HandleFunc("GET /notifications/stream", ws.HandleStream(s.hub, s.logger.With("component", "stream")))
}
