package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/daybook/internal/metrics"
	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/push"
	"github.com/dukerupert/daybook/internal/store"
	"github.com/dukerupert/daybook/internal/websocket"
)

// Sink delivers a batch of push messages in one call.
type Sink interface {
	Send(ctx context.Context, msgs []push.Message) ([]push.Ticket, error)
}

// Publisher receives every notification that went out, for live clients.
type Publisher interface {
	Publish(userID string, msg websocket.Message)
}

// Notification is one logical send to a user.
type Notification struct {
	Category    string         `json:"category"`
	Title       string         `json:"title"`
	Body        string         `json:"body,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	ReferenceID string         `json:"reference_id,omitempty"`

	// At is the instant the send is evaluated for quiet hours and recorded
	// in history. Zero means the dispatcher's clock.
	At time.Time `json:"-"`
}

// Dispatcher gates, fans out and records notifications.
type Dispatcher struct {
	gate      *Gate
	devices   *store.DeviceStore
	history   *store.HistoryStore
	sink      Sink
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewDispatcher(gate *Gate, devices *store.DeviceStore, history *store.HistoryStore, sink Sink, publisher Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		gate:      gate,
		devices:   devices,
		history:   history,
		sink:      sink,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Send delivers n to every active device of the user. It returns nil when
// the batch was accepted, *SuppressedError when gated, ErrNoDevices, or
// *DeliveryError when the sink call failed. A history row is written exactly
// when the sink was called.
func (d *Dispatcher) Send(ctx context.Context, userID string, n Notification) error {
	err := d.send(ctx, userID, n)
	metrics.RecordDispatch(n.Category, Outcome(err))
	return err
}

func (d *Dispatcher) send(ctx context.Context, userID string, n Notification) error {
	now := n.At
	if now.IsZero() {
		now = d.now()
	}

	settings, err := d.gate.Settings(ctx, userID)
	if err != nil {
		return err
	}
	if !CategoryEnabled(settings, n.Category) {
		return &SuppressedError{Reason: ReasonCategoryDisabled}
	}
	if InQuietHours(settings, now, d.gate.Location()) {
		return &SuppressedError{Reason: ReasonQuietHours}
	}

	devices, err := d.devices.ListActive(ctx, userID)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		return ErrNoDevices
	}

	data := make(map[string]any, len(n.Data)+2)
	for k, v := range n.Data {
		data[k] = v
	}
	data["category"] = n.Category
	if n.ReferenceID != "" {
		data["reference_id"] = n.ReferenceID
	}

	msgs := make([]push.Message, 0, len(devices))
	for _, dev := range devices {
		msgs = append(msgs, push.Message{
			To:         dev.PushToken,
			Title:      n.Title,
			Body:       n.Body,
			Data:       data,
			Sound:      "default",
			CategoryID: n.Category,
		})
	}

	tickets, sinkErr := d.sink.Send(ctx, msgs)

	var body *string
	if n.Body != "" {
		body = &n.Body
	}
	if err := d.history.Record(ctx, userID, n.Category, n.Title, body, n.Data, now); err != nil {
		d.logger.Error("record notification history", "user_id", userID, "category", n.Category, "error", err)
	}

	if sinkErr != nil {
		return &DeliveryError{Err: sinkErr}
	}

	d.handleTickets(ctx, userID, devices, tickets)

	if d.publisher != nil {
		d.publisher.Publish(userID, websocket.Message{
			Type:     "notification",
			Category: n.Category,
			Title:    n.Title,
			Body:     n.Body,
			Data:     data,
		})
	}
	return nil
}

// handleTickets logs rejected messages and deactivates tokens Expo reports
// as no longer registered. Tickets line up with devices by index.
func (d *Dispatcher) handleTickets(ctx context.Context, userID string, devices []model.DeviceToken, tickets []push.Ticket) {
	for i, t := range tickets {
		if t.OK() || i >= len(devices) {
			continue
		}
		d.logger.Warn("push ticket error",
			"user_id", userID,
			"device_id", devices[i].ID,
			"message", t.Message,
		)
		if reason, _ := t.Details["error"].(string); reason == "DeviceNotRegistered" {
			if _, err := d.devices.Unregister(ctx, userID, devices[i].PushToken); err != nil {
				d.logger.Error("deactivate unregistered device", "device_id", devices[i].ID, "error", err)
			}
		}
	}
}
