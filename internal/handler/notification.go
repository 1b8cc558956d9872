package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/daybook/internal/auth"
	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/notify"
	"github.com/dukerupert/daybook/internal/store"
	"github.com/dukerupert/daybook/internal/validation"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type SettingsStore interface {
	GetSettings(ctx context.Context, userID string) (*model.NotificationSettings, error)
	UpdateSettings(ctx context.Context, userID string, patch model.SettingsPatch) (*model.NotificationSettings, error)
}

type DeviceStore interface {
	Register(ctx context.Context, userID, pushToken, platform string, deviceName *string) (*model.DeviceToken, error)
	Unregister(ctx context.Context, userID, pushToken string) (bool, error)
	ListActive(ctx context.Context, userID string) ([]model.DeviceToken, error)
}

type ScheduledStore interface {
	Create(ctx context.Context, userID, category string, referenceID *string, title string, body *string, scheduledFor time.Time) (*model.ScheduledNotification, error)
	ListByUser(ctx context.Context, userID, status string) ([]model.ScheduledNotification, error)
	Cancel(ctx context.Context, userID, id string) (bool, error)
}

type HistoryStore interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.NotificationHistory, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// Sender delivers one notification through the gate and push sink.
type Sender interface {
	Send(ctx context.Context, userID string, n notify.Notification) error
}

type NotificationHandler struct {
	settings  SettingsStore
	devices   DeviceStore
	scheduled ScheduledStore
	history   HistoryStore
	sender    Sender
	validator Validator
	logger    *slog.Logger
}

func NewNotificationHandler(settings SettingsStore, devices DeviceStore, scheduled ScheduledStore, history HistoryStore, sender Sender, validator Validator, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		settings:  settings,
		devices:   devices,
		scheduled: scheduled,
		history:   history,
		sender:    sender,
		validator: validator,
		logger:    logger,
	}
}

// GetSettings handles GET /notifications/settings
func (h *NotificationHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetSettings(r.Context(), auth.UserID(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		internalError(w, h.logger, "get notification settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /notifications/settings
func (h *NotificationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch model.SettingsPatch
	if !decodeValid(w, r, h.validator, h.logger, validation.SettingsUpdate, &patch) {
		return
	}

	settings, err := h.settings.UpdateSettings(r.Context(), auth.UserID(r.Context()), patch)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		internalError(w, h.logger, "update notification settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// ListDevices handles GET /notifications/devices
func (h *NotificationHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.ListActive(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		internalError(w, h.logger, "list devices", err)
		return
	}
	if devices == nil {
		devices = []model.DeviceToken{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

type registerDeviceRequest struct {
	PushToken  string  `json:"push_token"`
	Platform   string  `json:"platform"`
	DeviceName *string `json:"device_name"`
}

// RegisterDevice handles POST /notifications/devices
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if !decodeValid(w, r, h.validator, h.logger, validation.DeviceRegister, &req) {
		return
	}

	device, err := h.devices.Register(r.Context(), auth.UserID(r.Context()), req.PushToken, req.Platform, req.DeviceName)
	if err != nil {
		internalError(w, h.logger, "register device", err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

// UnregisterDevice handles DELETE /notifications/devices. Unknown tokens
// are not an error.
func (h *NotificationHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PushToken string `json:"push_token"`
	}
	if !decodeValid(w, r, h.validator, h.logger, validation.DeviceUnregister, &req) {
		return
	}

	userID := auth.UserID(r.Context())
	found, err := h.devices.Unregister(r.Context(), userID, req.PushToken)
	if err != nil {
		internalError(w, h.logger, "unregister device", err)
		return
	}
	if !found {
		h.logger.Debug("unregister unknown device", "user_id", userID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Device unregistered"})
}

// ListScheduled handles GET /notifications/scheduled
func (h *NotificationHandler) ListScheduled(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", model.StatusPending, model.StatusSent, model.StatusFailed, model.StatusCancelled:
	default:
		writeValidationError(w, []validation.FieldError{{Field: "status", Message: "must be one of pending, sent, failed, cancelled"}})
		return
	}

	items, err := h.scheduled.ListByUser(r.Context(), auth.UserID(r.Context()), status)
	if err != nil {
		internalError(w, h.logger, "list scheduled notifications", err)
		return
	}
	if items == nil {
		items = []model.ScheduledNotification{}
	}
	writeJSON(w, http.StatusOK, items)
}

type scheduleRequest struct {
	Category     string    `json:"category"`
	ReferenceID  *string   `json:"reference_id"`
	Title        string    `json:"title"`
	Body         *string   `json:"body"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// CreateScheduled handles POST /notifications/scheduled
func (h *NotificationHandler) CreateScheduled(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decodeValid(w, r, h.validator, h.logger, validation.ScheduledCreate, &req) {
		return
	}

	sn, err := h.scheduled.Create(r.Context(), auth.UserID(r.Context()), req.Category, req.ReferenceID, req.Title, req.Body, req.ScheduledFor)
	if err != nil {
		internalError(w, h.logger, "create scheduled notification", err)
		return
	}
	writeJSON(w, http.StatusCreated, sn)
}

// CancelScheduled handles DELETE /notifications/scheduled/{id}
func (h *NotificationHandler) CancelScheduled(w http.ResponseWriter, r *http.Request) {
	ok, err := h.scheduled.Cancel(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		internalError(w, h.logger, "cancel scheduled notification", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Scheduled notification not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Scheduled notification cancelled"})
}

// History handles GET /notifications/history
func (h *NotificationHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, offset, details := pagination(r)
	if len(details) > 0 {
		writeValidationError(w, details)
		return
	}

	userID := auth.UserID(r.Context())
	items, err := h.history.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		internalError(w, h.logger, "list notification history", err)
		return
	}
	total, err := h.history.CountByUser(r.Context(), userID)
	if err != nil {
		internalError(w, h.logger, "count notification history", err)
		return
	}
	if items == nil {
		items = []model.NotificationHistory{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"total":         total,
		"limit":         limit,
		"offset":        offset,
	})
}

func pagination(r *http.Request) (limit, offset int, details []validation.FieldError) {
	limit = defaultHistoryLimit
	q := r.URL.Query()
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			details = append(details, validation.FieldError{Field: "limit", Message: "must be a positive integer"})
		} else {
			limit = min(n, maxHistoryLimit)
		}
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			details = append(details, validation.FieldError{Field: "offset", Message: "must be a non-negative integer"})
		} else {
			offset = n
		}
	}
	return limit, offset, details
}

// Test handles POST /notifications/test. Gate and device outcomes are
// reported in the body, not as HTTP errors.
func (h *NotificationHandler) Test(w http.ResponseWriter, r *http.Request) {
	n := notify.Notification{
		Category: model.CategoryReminders,
		Title:    "Test Notification",
		Body:     "This is a test notification",
	}
	if !decodeValid(w, r, h.validator, h.logger, validation.TestNotification, &n) {
		return
	}
	n.Data = withTestFlag(n.Data)

	err := h.sender.Send(r.Context(), auth.UserID(r.Context()), n)
	outcome := notify.Outcome(err)
	switch outcome {
	case "sent":
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "outcome": outcome})
	case "error":
		internalError(w, h.logger, "send test notification", err)
	case "delivery_failed":
		h.logger.Warn("test notification delivery", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"success": false, "outcome": outcome, "error": notify.Message(err)})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "outcome": outcome, "error": notify.Message(err)})
	}
}

func withTestFlag(data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	data["test"] = true
	return data
}
