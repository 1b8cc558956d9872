package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Request body contracts
const (
	SettingsUpdate   = "settings_update"
	DeviceRegister   = "device_register"
	DeviceUnregister = "device_unregister"
	ScheduledCreate  = "scheduled_create"
	TestNotification = "test_notification"
	ListUpsert       = "list_upsert"
	ReminderCreate   = "reminder_create"
	ReminderUpdate   = "reminder_update"
	HabitCreate      = "habit_create"
	HabitUpdate      = "habit_update"
)

// FieldError describes one rejected field of a request body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator checks request bodies against the embedded JSON schemas.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// New compiles every embedded schema.
func New() (*Validator, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}

	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(entries))}
	for _, e := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		v.schemas[strings.TrimSuffix(e.Name(), ".json")] = schema
	}
	return v, nil
}

// Validate checks body against the named contract. It returns the field
// errors when the body is rejected and an error only for unknown contracts.
func (v *Validator) Validate(name string, body []byte) ([]FieldError, error) {
	schema, ok := v.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	if !json.Valid(body) {
		return []FieldError{{Field: "(root)", Message: "Invalid JSON body"}}, nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, FieldError{Field: fieldName(desc), Message: desc.Description()})
	}
	return errs, nil
}

// fieldName reports the offending property, including for missing required
// properties, which gojsonschema attributes to the parent.
func fieldName(desc gojsonschema.ResultError) string {
	if desc.Type() == "required" {
		if p, ok := desc.Details()["property"].(string); ok {
			if desc.Field() == "(root)" {
				return p
			}
			return desc.Field() + "." + p
		}
	}
	return desc.Field()
}
