package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return rec
}

func TestLogger_StampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentWorker)

	logger.Info("split", FieldGroupID, "g1")

	rec := decodeLine(t, &buf)
	if rec[FieldComponent] != ComponentWorker {
		t.Errorf("component = %v, want %v", rec[FieldComponent], ComponentWorker)
	}
	if rec[FieldGroupID] != "g1" {
		t.Errorf("group_id = %v, want g1", rec[FieldGroupID])
	}
	if logger.Component() != ComponentWorker {
		t.Errorf("Component() = %q", logger.Component())
	}
}

func TestLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentRecurring)

	logger.LogError(context.Background(), "tick failed", errors.New("boom"), OpTick,
		LogFields{FieldLedgerKey: "2024-03", FieldCurrency: "USD"})

	rec := decodeLine(t, &buf)
	want := map[string]any{
		FieldError:     "boom",
		FieldOperation: OpTick,
		FieldLedgerKey: "2024-03",
		FieldCurrency:  "USD",
		"level":        "ERROR",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s = %v, want %v", k, rec[k], v)
		}
	}
}

func TestFromContext_Default(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil || logger.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %+v", logger)
	}
}

func TestAccessLog(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"ok", http.StatusOK, "INFO"},
		{"client error", http.StatusNotFound, "WARN"},
		{"server error", http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newBufferLogger(&buf, ComponentHTTP)
			h := Middleware(logger)(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ledgers/2024-01?display=EUR", nil))

			rec := decodeLine(t, &buf)
			if rec["level"] != tt.level {
				t.Errorf("level = %v, want %v", rec["level"], tt.level)
			}
			if rec[FieldStatusCode] != float64(tt.status) {
				t.Errorf("status = %v, want %v", rec[FieldStatusCode], tt.status)
			}
			if rec[FieldPath] != "/ledgers/2024-01" || rec[FieldQuery] != "display=EUR" {
				t.Errorf("path/query = %v?%v", rec[FieldPath], rec[FieldQuery])
			}
		})
	}
}
