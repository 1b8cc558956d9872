package model

import (
	"encoding/json"
	"time"
)

// Notification categories
const (
	CategoryReminders = "reminders"
	CategoryHabits    = "habits"
	CategoryExpenses  = "expenses"
	CategoryNotes     = "notes"
)

// Categories lists every known notification category in display order.
var Categories = []string{CategoryReminders, CategoryHabits, CategoryExpenses, CategoryNotes}

// Device platforms
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// Scheduled notification statuses. Everything except pending is terminal.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

type CategorySettings struct {
	Enabled       bool    `json:"enabled"`
	RealTime      *bool   `json:"realTime,omitempty"`
	Scheduled     *bool   `json:"scheduled,omitempty"`
	ScheduledTime *string `json:"scheduledTime,omitempty"`
}

type NotificationSettings struct {
	NotificationsEnabled   bool                        `json:"notifications_enabled"`
	NotificationCategories map[string]CategorySettings `json:"notification_categories"`
	QuietHoursStart        *string                     `json:"quiet_hours_start"`
	QuietHoursEnd          *string                     `json:"quiet_hours_end"`
}

// Category returns the settings for a category. Unknown categories are
// reported as disabled.
func (s *NotificationSettings) Category(name string) CategorySettings {
	if s == nil {
		return CategorySettings{}
	}
	return s.NotificationCategories[name]
}

// StoredSettings is the profile row as persisted: every field may be absent.
type StoredSettings struct {
	NotificationsEnabled   *bool
	NotificationCategories map[string]CategorySettings
	QuietHoursStart        *string
	QuietHoursEnd          *string
}

// SettingsPatch is a partial settings update. Only fields that are set are
// applied; QuietHours fields distinguish "absent" from an explicit null.
type SettingsPatch struct {
	NotificationsEnabled   *bool                       `json:"notifications_enabled,omitempty"`
	NotificationCategories map[string]CategorySettings `json:"notification_categories,omitempty"`
	QuietHoursStart        OptionalString              `json:"quiet_hours_start"`
	QuietHoursEnd          OptionalString              `json:"quiet_hours_end"`
}

// OptionalString tracks whether a JSON field was present and whether it was null.
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

type DeviceToken struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	PushToken  string    `json:"push_token"`
	Platform   string    `json:"platform"`
	DeviceName *string   `json:"device_name"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ScheduledNotification struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Category     string     `json:"category"`
	ReferenceID  *string    `json:"reference_id"`
	Title        string     `json:"title"`
	Body         *string    `json:"body"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Status       string     `json:"status"`
	SentAt       *time.Time `json:"sent_at"`
	ErrorMessage *string    `json:"error_message"`
	CreatedAt    time.Time  `json:"created_at"`
}

type NotificationHistory struct {
	ID       string         `json:"id"`
	UserID   string         `json:"user_id"`
	Category string         `json:"category"`
	Title    string         `json:"title"`
	Body     *string        `json:"body"`
	Data     map[string]any `json:"data"`
	SentAt   time.Time      `json:"sent_at"`
}
