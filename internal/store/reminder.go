package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/daybook/internal/model"
)

type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

// Lists

func (s *ReminderStore) CreateList(ctx context.Context, userID, name string) (*model.ReminderList, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminder_lists (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		id, userID, name, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reminder list: %w", err)
	}
	return s.GetList(ctx, userID, id)
}

func (s *ReminderStore) GetList(ctx context.Context, userID, id string) (*model.ReminderList, error) {
	var l model.ReminderList
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM reminder_lists WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&l.ID, &l.UserID, &l.Name, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder list: %w", err)
	}
	return &l, nil
}

func (s *ReminderStore) ListLists(ctx context.Context, userID string) ([]model.ReminderList, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at FROM reminder_lists WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminder lists: %w", err)
	}
	defer rows.Close()

	lists := []model.ReminderList{}
	for rows.Next() {
		var l model.ReminderList
		if err := rows.Scan(&l.ID, &l.UserID, &l.Name, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder list: %w", err)
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

func (s *ReminderStore) RenameList(ctx context.Context, userID, id, name string) (*model.ReminderList, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reminder_lists SET name = ? WHERE id = ? AND user_id = ?`, name, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("rename reminder list: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetList(ctx, userID, id)
}

func (s *ReminderStore) DeleteList(ctx context.Context, userID, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminder_lists WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete reminder list: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// Reminders

const reminderCols = `id, list_id, user_id, title, due_date, relevance, completed, created_at`

func scanReminder(scanner interface{ Scan(...any) error }) (*model.Reminder, error) {
	var r model.Reminder
	var due sql.NullTime
	var completed int
	if err := scanner.Scan(&r.ID, &r.ListID, &r.UserID, &r.Title, &due, &r.Relevance, &completed, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.DueDate = timePtr(due)
	r.Completed = completed != 0
	return &r, nil
}

// Create adds a reminder to one of the user's lists. It returns ErrNotFound
// when the list does not belong to the user.
func (s *ReminderStore) Create(ctx context.Context, userID, listID, title string, dueDate *time.Time, relevance int) (*model.Reminder, error) {
	list, err := s.GetList(ctx, userID, listID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, ErrNotFound
	}

	id := newID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, list_id, user_id, title, due_date, relevance, completed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		id, listID, userID, title, nullTime(dueDate), relevance, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	return s.GetByID(ctx, userID, id)
}

func (s *ReminderStore) GetByID(ctx context.Context, userID, id string) (*model.Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE id = ? AND user_id = ?`, id, userID,
	)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

// List returns the user's reminders ordered by due date with undated
// reminders last. An empty listID returns reminders from every list.
func (s *ReminderStore) List(ctx context.Context, userID, listID string) ([]model.Reminder, error) {
	query := `SELECT ` + reminderCols + ` FROM reminders WHERE user_id = ?`
	args := []any{userID}
	if listID != "" {
		query += ` AND list_id = ?`
		args = append(args, listID)
	}
	query += ` ORDER BY due_date IS NULL, due_date ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (s *ReminderStore) Update(ctx context.Context, userID, id string, patch model.ReminderPatch) (*model.Reminder, error) {
	var sets []string
	var args []any
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.DueDate.Set {
		sets = append(sets, "due_date = ?")
		args = append(args, nullTime(patch.DueDate.Value))
	}
	if patch.Relevance != nil {
		sets = append(sets, "relevance = ?")
		args = append(args, *patch.Relevance)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*patch.Completed))
	}
	if len(sets) == 0 {
		return s.GetByID(ctx, userID, id)
	}

	args = append(args, id, userID)
	result, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, userID, id)
}

func (s *ReminderStore) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete reminder: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ListDueBetween returns incomplete reminders of every user whose due date
// falls in [from, to].
func (s *ReminderStore) ListDueBetween(ctx context.Context, from, to time.Time) ([]model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM reminders
		 WHERE completed = 0 AND due_date >= ? AND due_date <= ?
		 ORDER BY user_id, due_date ASC`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

func collectReminders(rows *sql.Rows) ([]model.Reminder, error) {
	out := []model.Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
