package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/daybook/internal/auth"
	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/validation"
)

type HabitStore interface {
	Create(ctx context.Context, userID, name, frequency string) (*model.Habit, error)
	List(ctx context.Context, userID string) ([]model.Habit, error)
	Update(ctx context.Context, userID, id string, patch model.HabitPatch) (*model.Habit, error)
	Delete(ctx context.Context, userID, id string) (bool, error)
}

type HabitHandler struct {
	store     HabitStore
	validator Validator
	logger    *slog.Logger
}

func NewHabitHandler(s HabitStore, validator Validator, logger *slog.Logger) *HabitHandler {
	return &HabitHandler{store: s, validator: validator, logger: logger}
}

func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	habits, err := h.store.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		internalError(w, h.logger, "list habits", err)
		return
	}
	if habits == nil {
		habits = []model.Habit{}
	}
	writeJSON(w, http.StatusOK, habits)
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		Frequency string `json:"frequency"`
	}
	if !decodeValid(w, r, h.validator, h.logger, validation.HabitCreate, &req) {
		return
	}

	habit, err := h.store.Create(r.Context(), auth.UserID(r.Context()), strings.TrimSpace(req.Name), req.Frequency)
	if err != nil {
		internalError(w, h.logger, "create habit", err)
		return
	}
	writeJSON(w, http.StatusCreated, habit)
}

func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.HabitPatch
	if !decodeValid(w, r, h.validator, h.logger, validation.HabitUpdate, &patch) {
		return
	}
	if patch.Name != nil {
		n := strings.TrimSpace(*patch.Name)
		patch.Name = &n
	}

	habit, err := h.store.Update(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		internalError(w, h.logger, "update habit", err)
		return
	}
	if habit == nil {
		writeError(w, http.StatusNotFound, "Habit not found")
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.Delete(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		internalError(w, h.logger, "delete habit", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Habit not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
