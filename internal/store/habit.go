package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/daybook/internal/model"
)

type HabitStore struct {
	db *sql.DB
}

func NewHabitStore(db *sql.DB) *HabitStore {
	return &HabitStore{db: db}
}

const habitCols = `id, user_id, name, frequency, created_at`

func scanHabit(scanner interface{ Scan(...any) error }) (*model.Habit, error) {
	var h model.Habit
	if err := scanner.Scan(&h.ID, &h.UserID, &h.Name, &h.Frequency, &h.CreatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *HabitStore) Create(ctx context.Context, userID, name, frequency string) (*model.Habit, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO habits (id, user_id, name, frequency, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, name, frequency, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}
	return s.GetByID(ctx, userID, id)
}

func (s *HabitStore) GetByID(ctx context.Context, userID, id string) (*model.Habit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+habitCols+` FROM habits WHERE id = ? AND user_id = ?`, id, userID)
	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

func (s *HabitStore) List(ctx context.Context, userID string) ([]model.Habit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+habitCols+` FROM habits WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()
	return collectHabits(rows)
}

func (s *HabitStore) Update(ctx context.Context, userID, id string, patch model.HabitPatch) (*model.Habit, error) {
	var sets []string
	var args []any
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Frequency != nil {
		sets = append(sets, "frequency = ?")
		args = append(args, *patch.Frequency)
	}
	if len(sets) == 0 {
		return s.GetByID(ctx, userID, id)
	}

	args = append(args, id, userID)
	result, err := s.db.ExecContext(ctx,
		`UPDATE habits SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, userID, id)
}

func (s *HabitStore) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM habits WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete habit: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ListByFrequency returns every user's habits with the given frequency,
// grouped by user and oldest first within a user.
func (s *HabitStore) ListByFrequency(ctx context.Context, frequency string) ([]model.Habit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+habitCols+` FROM habits WHERE frequency = ? ORDER BY user_id, created_at ASC`, frequency,
	)
	if err != nil {
		return nil, fmt.Errorf("list habits by frequency: %w", err)
	}
	defer rows.Close()
	return collectHabits(rows)
}

func collectHabits(rows *sql.Rows) ([]model.Habit, error) {
	out := []model.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}
