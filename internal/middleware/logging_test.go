package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/daybook/internal/metrics"
)

func TestRequestLoggerLevelsAndRequestID(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		reqID     string
		wantLevel string
	}{
		{"ok", http.StatusOK, "", "level=INFO"},
		{"client error", http.StatusNotFound, "abc-123", "level=WARN"},
		{"server error", http.StatusInternalServerError, "", "level=ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, "/reminders", nil)
			if tt.reqID != "" {
				req.Header.Set(requestIDHeader, tt.reqID)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(requestIDHeader)
			if got == "" {
				t.Fatal("missing X-Request-ID")
			}
			if tt.reqID != "" && got != tt.reqID {
				t.Errorf("X-Request-ID = %q, want %q", got, tt.reqID)
			}
			line := buf.String()
			if !strings.Contains(line, tt.wantLevel) {
				t.Errorf("log %q does not contain %q", line, tt.wantLevel)
			}
			if !strings.Contains(line, "request_id="+got) {
				t.Errorf("log %q does not carry the request id", line)
			}
		})
	}
}

func TestStatusRecorderUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec}
	if sr.Unwrap() != rec {
		t.Error("Unwrap did not return the wrapped writer")
	}
}

func TestRequestLoggerCountsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	mux := http.NewServeMux()
	mux.HandleFunc("PURGE /cache", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux.Handle("GET /metrics", metrics.Handler())
	h := RequestLogger(logger)(mux)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("PURGE", "/cache", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	want := `daybook_http_requests_total{method="PURGE",status="418"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics output missing %q", want)
	}
	if strings.Contains(buf.String(), "path=/metrics") {
		t.Errorf("metrics scrape was logged: %q", buf.String())
	}
}
