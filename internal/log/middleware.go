package log

import (
	"context"
	"log/slog"
	"net/http"

	"pocket/internal/core"

	"github.com/google/uuid"
)

type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// Middleware stores logger in every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLogger(r.Context(), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context, falling back to
// the slog default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestIDMiddleware adds the request ID to the context logger.
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := extractRequestID(r)
			logger := FromContext(r.Context()).With(FieldRequestID, requestID)
			next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
		})
	}
}

// StructuredLogger logs ledger events with a consistent field set.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

func (sl *StructuredLogger) LogRecordSaved(ctx context.Context, userID string, rec core.Record, created bool) {
	op := OpUpdate
	if created {
		op = OpCreate
	}
	fields := NewFields().
		WithUser(userID).
		WithRecord(rec.ID, rec.Title, rec.Amount, rec.Version, rec.CategoryID).
		WithOperation(op)

	sl.logger.WithComponent(ComponentRecord).InfoContext(ctx, "Record saved", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogCategoriesDeleted(ctx context.Context, userID string, ids []uuid.UUID) {
	fields := NewFields().
		WithUser(userID).
		WithCategories(ids).
		WithOperation(OpDelete)

	sl.logger.WithComponent(ComponentCategory).InfoContext(ctx, "Categories deleted", fields.ToSlice()...)
}

// LogError logs err with its component and operation; fields may be nil.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	all := fields.
		WithError(err).
		WithOperation(operation)

	sl.logger.WithComponent(component).ErrorContext(ctx, msg, all.ToSlice()...)
}
