package notify

import (
	"errors"
	"fmt"
)

// Suppression reasons
const (
	ReasonCategoryDisabled = "category_disabled"
	ReasonQuietHours       = "quiet_hours"
)

// ErrNoDevices means the user has no active device to deliver to.
var ErrNoDevices = errors.New("no device tokens found")

// SuppressedError means the gate stopped the send before any delivery.
type SuppressedError struct {
	Reason string
}

func (e *SuppressedError) Error() string {
	return "notification suppressed: " + e.Reason
}

// DeliveryError wraps a failed push sink call.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("push delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Outcome labels a send result for metrics and API responses.
func Outcome(err error) string {
	var suppressed *SuppressedError
	var delivery *DeliveryError
	switch {
	case err == nil:
		return "sent"
	case errors.As(err, &suppressed):
		return "suppressed_" + suppressed.Reason
	case errors.Is(err, ErrNoDevices):
		return "no_devices"
	case errors.As(err, &delivery):
		return "delivery_failed"
	}
	return "error"
}

// Message is the human-readable reason stored on failed scheduled
// notifications and returned to API callers.
func Message(err error) string {
	var suppressed *SuppressedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &suppressed):
		switch suppressed.Reason {
		case ReasonCategoryDisabled:
			return "Notifications disabled for this category"
		case ReasonQuietHours:
			return "In quiet hours - notification will be scheduled"
		}
	case errors.Is(err, ErrNoDevices):
		return "No device tokens found"
	}
	return err.Error()
}
