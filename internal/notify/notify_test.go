package notify

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/daybook/internal/database"
	"github.com/dukerupert/daybook/internal/push"
	"github.com/dukerupert/daybook/internal/store"
	"github.com/dukerupert/daybook/internal/websocket"
)

// fakeSink records every batch it receives.
type fakeSink struct {
	mu      sync.Mutex
	calls   [][]push.Message
	err     error
	tickets func(msgs []push.Message) []push.Ticket
}

func (f *fakeSink) Send(ctx context.Context, msgs []push.Message) ([]push.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msgs)
	if f.err != nil {
		return nil, f.err
	}
	if f.tickets != nil {
		return f.tickets(msgs), nil
	}
	out := make([]push.Ticket, len(msgs))
	for i := range out {
		out[i] = push.Ticket{Status: "ok"}
	}
	return out, nil
}

func (f *fakeSink) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePublisher struct {
	msgs map[string][]websocket.Message
}

func (p *fakePublisher) Publish(userID string, msg websocket.Message) {
	if p.msgs == nil {
		p.msgs = make(map[string][]websocket.Message)
	}
	p.msgs[userID] = append(p.msgs[userID], msg)
}

type testEnv struct {
	db         *sql.DB
	profiles   *store.ProfileStore
	devices    *store.DeviceStore
	history    *store.HistoryStore
	scheduled  *store.ScheduledStore
	reminders  *store.ReminderStore
	habits     *store.HabitStore
	ledger     *store.LedgerStore
	sink       *fakeSink
	publisher  *fakePublisher
	gate       *Gate
	dispatcher *Dispatcher
	scheduler  *Scheduler
}

// newTestEnv wires the notification stack against an in-memory database,
// with wall clock in UTC and the dispatcher's clock pinned to now.
func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		db:        db,
		profiles:  store.NewProfileStore(db),
		devices:   store.NewDeviceStore(db),
		history:   store.NewHistoryStore(db),
		scheduled: store.NewScheduledStore(db),
		reminders: store.NewReminderStore(db),
		habits:    store.NewHabitStore(db),
		ledger:    store.NewLedgerStore(db),
		sink:      &fakeSink{},
		publisher: &fakePublisher{},
	}
	env.gate = NewGate(env.profiles, time.UTC)
	env.dispatcher = NewDispatcher(env.gate, env.devices, env.history, env.sink, env.publisher, logger)
	env.dispatcher.now = func() time.Time { return now }
	env.scheduler = NewScheduler(env.dispatcher, env.gate, env.scheduled, env.reminders, env.habits, env.ledger, logger)
	return env
}

func (e *testEnv) addUser(t *testing.T, id string, tokens ...string) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.profiles.Ensure(ctx, id, id+"@example.com"))
	for _, tok := range tokens {
		_, err := e.devices.Register(ctx, id, tok, "ios", nil)
		require.NoError(t, err)
	}
	return id
}

func (e *testEnv) historyCount(t *testing.T, userID string) int {
	t.Helper()
	n, err := e.history.CountByUser(context.Background(), userID)
	require.NoError(t, err)
	return n
}
