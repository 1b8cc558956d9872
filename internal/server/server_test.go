package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/daybook/internal/auth"
	"github.com/dukerupert/daybook/internal/config"
	"github.com/dukerupert/daybook/internal/database"
	"github.com/dukerupert/daybook/internal/push"
	websocket "github.com/dukerupert/daybook/internal/websocket"
)

const (
	testSecret     = "server-test-secret"
	testCronSecret = "cron-secret"
)

type recordingSink struct {
	mu    sync.Mutex
	batch [][]push.Message
}

func (s *recordingSink) Send(ctx context.Context, msgs []push.Message) ([]push.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch = append(s.batch, msgs)
	tickets := make([]push.Ticket, len(msgs))
	for i := range tickets {
		tickets[i] = push.Ticket{Status: "ok", ID: "ticket"}
	}
	return tickets, nil
}

func setupServer(t *testing.T) (*Server, *httptest.Server, *recordingSink) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		JWTSecret:   testSecret,
		JWTAudience: "authenticated",
		CronSecret:  testCronSecret,
		Location:    time.UTC,
		RateLimit:   100,
		RateBurst:   100,
	}
	sink := &recordingSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := New(db, cfg, sink, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts, sink
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.NewVerifier(testSecret, "authenticated").Sign(
		auth.AuthContext{UserID: userID, Email: userID + "@example.com"},
		jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(t *testing.T, ts *httptest.Server, method, path, authz, body string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	require.NoError(t, err)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	_, ts, _ := setupServer(t)

	resp := do(t, ts, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestHealthReportsDatabaseDown(t *testing.T) {
	srv, ts, _ := setupServer(t)
	srv.db.Close()

	resp := do(t, ts, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	_, ts, _ := setupServer(t)

	for _, path := range []string{"/notifications/settings", "/reminders", "/habits", "/notifications/history"} {
		resp := do(t, ts, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestCronRequiresSecret(t *testing.T) {
	_, ts, _ := setupServer(t)

	resp := do(t, ts, http.MethodGet, "/cron/notifications", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, ts, http.MethodGet, "/cron/notifications", "Bearer "+testCronSecret, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.True(t, summary.Success)
}

func TestScheduledNotificationDeliveredByCron(t *testing.T) {
	_, ts, sink := setupServer(t)
	authz := bearer(t, "user-1")

	resp := do(t, ts, http.MethodPost, "/notifications/devices", authz, `{"push_token":"ExponentPushToken[a]","platform":"android"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	resp = do(t, ts, http.MethodPost, "/notifications/scheduled", authz,
		`{"category":"reminders","title":"Take vitamins","scheduled_for":"`+past+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, ts, http.MethodGet, "/cron/notifications", "Bearer "+testCronSecret, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sink.mu.Lock()
	require.Len(t, sink.batch, 1)
	assert.Equal(t, "ExponentPushToken[a]", sink.batch[0][0].To)
	assert.Equal(t, "Take vitamins", sink.batch[0][0].Title)
	sink.mu.Unlock()

	resp = do(t, ts, http.MethodGet, "/notifications/scheduled?status=sent", authz, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sent []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sent))
	assert.Len(t, sent, 1)

	resp = do(t, ts, http.MethodGet, "/notifications/history", authz, "")
	var history struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Equal(t, 1, history.Total)
}

func TestStreamReceivesSentNotification(t *testing.T) {
	srv, ts, _ := setupServer(t)
	authz := bearer(t, "user-ws")

	resp := do(t, ts, http.MethodPost, "/notifications/devices", authz, `{"push_token":"ExponentPushToken[ws]","platform":"ios"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/notifications/stream"
	conn, _, err := ws.Dial(ctx, url, &ws.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{authz}},
	})
	require.NoError(t, err)
	defer conn.CloseNow()

	var msg websocket.Message
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, websocket.TypeReady, msg.Type)
	assert.Equal(t, 1, srv.hub.ClientCount())

	resp = do(t, ts, http.MethodPost, "/notifications/test", authz, `{"title":"Ping"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	msg = websocket.Message{}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "notification", msg.Type)
	assert.Equal(t, "Ping", msg.Title)
}

func TestRateLimitPerUser(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{JWTSecret: testSecret, JWTAudience: "authenticated", Location: time.UTC, RateLimit: 0.001, RateBurst: 2}
	srv, err := New(db, cfg, &recordingSink{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	authz := bearer(t, "busy")
	for range 2 {
		resp := do(t, ts, http.MethodGet, "/habits", authz, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := do(t, ts, http.MethodGet, "/habits", authz, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp = do(t, ts, http.MethodGet, "/habits", bearer(t, "quiet"), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
