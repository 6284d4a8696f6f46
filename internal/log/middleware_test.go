package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func captureLogger(component string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:     slog.LevelDebug,
		Component: component,
		Handler:   slog.NewJSONHandler(&buf, nil),
	})
	return logger, &buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) == 0 || len(lines[len(lines)-1]) == 0 {
		t.Fatal("no log records captured")
	}
	var record map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return record
}

func TestMiddlewareInjectsLogger(t *testing.T) {
	logger, buf := captureLogger(ComponentHTTP)

	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("handled")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	record := lastRecord(t, buf)
	if record["msg"] != "handled" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record[FieldComponent] != ComponentHTTP {
		t.Errorf("component = %v, want %s", record[FieldComponent], ComponentHTTP)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	logger, buf := captureLogger(ComponentHTTP)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("handled")
	})
	handler := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string {
		return "req_fixed"
	})(inner))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	record := lastRecord(t, buf)
	if record[FieldRequestID] != "req_fixed" {
		t.Errorf("request_id = %v, want req_fixed", record[FieldRequestID])
	}
}

func TestFromContextWithoutLogger(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	logger := FromContext(req.Context())
	if logger == nil || logger.Logger == nil {
		t.Fatal("FromContext must always return a usable logger")
	}
}
