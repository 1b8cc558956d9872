package model

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }

// defaultCategories is the fixed category table applied to every settings
// read. Never hand out this map directly; DefaultCategories copies it.
var defaultCategories = map[string]CategorySettings{
	CategoryReminders: {
		Enabled:       true,
		RealTime:      boolPtr(true),
		Scheduled:     boolPtr(true),
		ScheduledTime: strPtr("09:00"),
	},
	CategoryHabits: {
		Enabled:       true,
		Scheduled:     boolPtr(true),
		ScheduledTime: strPtr("07:00"),
	},
	CategoryExpenses: {Enabled: false},
	CategoryNotes:    {Enabled: false},
}

// DefaultCategories returns a fresh copy of the default category settings.
func DefaultCategories() map[string]CategorySettings {
	out := make(map[string]CategorySettings, len(defaultCategories))
	for k, v := range defaultCategories {
		out[k] = v.clone()
	}
	return out
}

func (c CategorySettings) clone() CategorySettings {
	out := CategorySettings{Enabled: c.Enabled}
	if c.RealTime != nil {
		out.RealTime = boolPtr(*c.RealTime)
	}
	if c.Scheduled != nil {
		out.Scheduled = boolPtr(*c.Scheduled)
	}
	if c.ScheduledTime != nil {
		out.ScheduledTime = strPtr(*c.ScheduledTime)
	}
	return out
}

// MergeDefaults fills every absent field of a stored profile from the
// defaults. Stored categories replace the default entry for that category
// as a whole.
func MergeDefaults(stored StoredSettings) NotificationSettings {
	settings := NotificationSettings{
		NotificationsEnabled:   true,
		NotificationCategories: DefaultCategories(),
		QuietHoursStart:        stored.QuietHoursStart,
		QuietHoursEnd:          stored.QuietHoursEnd,
	}
	if stored.NotificationsEnabled != nil {
		settings.NotificationsEnabled = *stored.NotificationsEnabled
	}
	for name, cat := range stored.NotificationCategories {
		settings.NotificationCategories[name] = cat.clone()
	}
	return settings
}
