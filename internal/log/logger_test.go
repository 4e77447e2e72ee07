package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pocket/internal/core"

	"github.com/google/uuid"
)

func newBufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Component: ComponentHTTP, Output: &buf}), &buf
}

func TestLogger_StampsComponent(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)

	logger.Info("hello", "k", "v")
	logger.WithComponent(ComponentWorker).Warn("switched")

	out := buf.String()
	if !strings.Contains(out, "component=http") || !strings.Contains(out, "k=v") {
		t.Errorf("missing fields in %q", out)
	}
	if !strings.Contains(out, "component=worker") {
		t.Errorf("WithComponent did not switch component: %q", out)
	}
	if strings.Count(out, "component=") != 2 {
		t.Errorf("component should appear once per entry: %q", out)
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelWarn)

	logger.Info("dropped")
	logger.Debug("dropped too")
	logger.Error("kept")

	if strings.Contains(buf.String(), "dropped") {
		t.Errorf("entries below Warn were written: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("error entry missing: %q", buf.String())
	}
}

func TestMiddleware_ContextLogger(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)

	handler := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Errorf("request id missing from context logger: %q", buf.String())
	}
}

func TestFromContext_Fallback(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Errorf("FromContext() without logger = %+v", l)
	}
}

func TestStructuredLogger(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)
	sl := NewStructuredLogger(logger)

	rec := core.Record{ID: uuid.New(), Title: "Coffee", Amount: 4500, Version: 1, CategoryID: uuid.New()}
	sl.LogRecordSaved(context.Background(), "alice", rec, true)
	sl.LogCategoriesDeleted(context.Background(), "alice", []uuid.UUID{uuid.New()})
	sl.LogError(context.Background(), "boom", errors.New("disk full"), ComponentStorage, OpUpdate, nil)

	out := buf.String()
	for _, want := range []string{
		"operation=create", "record_title=Coffee", "amount=4500", "component=record",
		"component=category", "count=1",
		`error="disk full"`, "component=storage",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
