package logging

import (
	"context"
	"log/slog"

	"podvoice/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRequestID is the standardized key for HTTP request correlation identifiers.
	FieldRequestID = "request_id"
	// FieldFeedID is the standardized key for directory feed identifiers.
	FieldFeedID = "feed_id"
	// FieldSessionID is the standardized key for player session identifiers.
	FieldSessionID = "session_id"
	// FieldEventType names the kind of event a log line records (e.g. voice_command).
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, rid))
	}
	if id, ok := services.FeedIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldFeedID, id))
	}
	if sid, ok := services.SessionIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSessionID, sid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
