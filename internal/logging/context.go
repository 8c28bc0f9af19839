package logging

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxFieldLen caps context values that originate from hook payloads.
const maxFieldLen = 256

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 8)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if ws := stringValue(ctx, workspaceCtxKey{}); ws != "" {
		fields = append(fields, zap.String("workspace", ws))
	}
	if project := stringValue(ctx, projectCtxKey{}); project != "" {
		fields = append(fields, zap.String("project", project))
	}
	if source := stringValue(ctx, sourceCtxKey{}); source != "" {
		fields = append(fields, zap.String("hook.source", source))
	}
	if turn := stringValue(ctx, turnCtxKey{}); turn != "" {
		fields = append(fields, zap.String("hook.turn_id", turn))
	}
	if requestID := stringValue(ctx, requestCtxKey{}); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// Context key types
type workspaceCtxKey struct{}
type projectCtxKey struct{}
type sourceCtxKey struct{}
type turnCtxKey struct{}
type requestCtxKey struct{}

func stringValue(ctx context.Context, key interface{}) string {
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// cleanValue strips control characters and caps length so untrusted
// payload values cannot forge log lines.
func cleanValue(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if len(s) > maxFieldLen {
		s = s[:maxFieldLen]
		for !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
	}
	return s
}

func withValue(ctx context.Context, key interface{}, val string) context.Context {
	val = cleanValue(val)
	if val == "" {
		return ctx
	}
	return context.WithValue(ctx, key, val)
}

// WithWorkspace adds the workspace path to context.
func WithWorkspace(ctx context.Context, workspace string) context.Context {
	return withValue(ctx, workspaceCtxKey{}, workspace)
}

// WorkspaceFromContext extracts the workspace path from context.
func WorkspaceFromContext(ctx context.Context) string {
	return stringValue(ctx, workspaceCtxKey{})
}

// WithProject adds the project name to context.
func WithProject(ctx context.Context, project string) context.Context {
	return withValue(ctx, projectCtxKey{}, project)
}

// ProjectFromContext extracts the project name from context.
func ProjectFromContext(ctx context.Context) string {
	return stringValue(ctx, projectCtxKey{})
}

// WithHookSource adds the hook source (codex, claude, ...) to context.
func WithHookSource(ctx context.Context, source string) context.Context {
	return withValue(ctx, sourceCtxKey{}, source)
}

// WithTurnID adds the assistant turn id to context.
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return withValue(ctx, turnCtxKey{}, turnID)
}

// WithRequestID adds an HTTP request id to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request id from context.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestCtxKey{})
}

type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
