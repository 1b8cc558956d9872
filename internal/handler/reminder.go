package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/daybook/internal/auth"
	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/store"
	"github.com/dukerupert/daybook/internal/validation"
)

type ReminderStore interface {
	CreateList(ctx context.Context, userID, name string) (*model.ReminderList, error)
	ListLists(ctx context.Context, userID string) ([]model.ReminderList, error)
	RenameList(ctx context.Context, userID, id, name string) (*model.ReminderList, error)
	DeleteList(ctx context.Context, userID, id string) (bool, error)
	Create(ctx context.Context, userID, listID, title string, dueDate *time.Time, relevance int) (*model.Reminder, error)
	List(ctx context.Context, userID, listID string) ([]model.Reminder, error)
	Update(ctx context.Context, userID, id string, patch model.ReminderPatch) (*model.Reminder, error)
	Delete(ctx context.Context, userID, id string) (bool, error)
}

type ReminderHandler struct {
	store     ReminderStore
	validator Validator
	logger    *slog.Logger
}

func NewReminderHandler(s ReminderStore, validator Validator, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{store: s, validator: validator, logger: logger}
}

// ListLists handles GET /reminder-lists
func (h *ReminderHandler) ListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.store.ListLists(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		internalError(w, h.logger, "list reminder lists", err)
		return
	}
	if lists == nil {
		lists = []model.ReminderList{}
	}
	writeJSON(w, http.StatusOK, lists)
}

type listRequest struct {
	Name string `json:"name"`
}

// CreateList handles POST /reminder-lists
func (h *ReminderHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if !decodeValid(w, r, h.validator, h.logger, validation.ListUpsert, &req) {
		return
	}

	list, err := h.store.CreateList(r.Context(), auth.UserID(r.Context()), strings.TrimSpace(req.Name))
	if err != nil {
		internalError(w, h.logger, "create reminder list", err)
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

// UpdateList handles PATCH /reminder-lists/{id}
func (h *ReminderHandler) UpdateList(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if !decodeValid(w, r, h.validator, h.logger, validation.ListUpsert, &req) {
		return
	}

	list, err := h.store.RenameList(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), strings.TrimSpace(req.Name))
	if err != nil {
		internalError(w, h.logger, "rename reminder list", err)
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "Reminder list not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// DeleteList handles DELETE /reminder-lists/{id}. The list's reminders go
// with it.
func (h *ReminderHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.DeleteList(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		internalError(w, h.logger, "delete reminder list", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Reminder list not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /reminders with an optional ?list_id filter.
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.store.List(r.Context(), auth.UserID(r.Context()), r.URL.Query().Get("list_id"))
	if err != nil {
		internalError(w, h.logger, "list reminders", err)
		return
	}
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	writeJSON(w, http.StatusOK, reminders)
}

type createReminderRequest struct {
	ListID    string     `json:"list_id"`
	Title     string     `json:"title"`
	DueDate   *time.Time `json:"due_date"`
	Relevance int        `json:"relevance"`
}

// Create handles POST /reminders
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReminderRequest
	if !decodeValid(w, r, h.validator, h.logger, validation.ReminderCreate, &req) {
		return
	}

	reminder, err := h.store.Create(r.Context(), auth.UserID(r.Context()), req.ListID, strings.TrimSpace(req.Title), req.DueDate, req.Relevance)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Reminder list not found")
		return
	}
	if err != nil {
		internalError(w, h.logger, "create reminder", err)
		return
	}
	writeJSON(w, http.StatusCreated, reminder)
}

// Update handles PATCH /reminders/{id}. A null due_date clears it.
func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.ReminderPatch
	if !decodeValid(w, r, h.validator, h.logger, validation.ReminderUpdate, &patch) {
		return
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		patch.Title = &t
	}

	reminder, err := h.store.Update(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		internalError(w, h.logger, "update reminder", err)
		return
	}
	if reminder == nil {
		writeError(w, http.StatusNotFound, "Reminder not found")
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

// Delete handles DELETE /reminders/{id}
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.Delete(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		internalError(w, h.logger, "delete reminder", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Reminder not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
