package model

import "time"

// Habit frequencies
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ReminderList struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Reminder struct {
	ID        string     `json:"id"`
	ListID    string     `json:"list_id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	DueDate   *time.Time `json:"due_date"`
	Relevance int        `json:"relevance"`
	Completed bool       `json:"completed"`
	CreatedAt time.Time  `json:"created_at"`
}

type Habit struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Frequency string    `json:"frequency"`
	CreatedAt time.Time `json:"created_at"`
}

// ReminderPatch is a partial reminder update. DueDate distinguishes an
// absent field from an explicit null, which clears the due date.
type ReminderPatch struct {
	Title     *string      `json:"title,omitempty"`
	DueDate   OptionalTime `json:"due_date"`
	Relevance *int         `json:"relevance,omitempty"`
	Completed *bool        `json:"completed,omitempty"`
}

type HabitPatch struct {
	Name      *string `json:"name,omitempty"`
	Frequency *string `json:"frequency,omitempty"`
}

// OptionalTime tracks whether a JSON time field was present and whether it was null.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	o.Value = &t
	return nil
}
