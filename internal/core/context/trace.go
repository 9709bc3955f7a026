package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext contains tracing information for one request or CLI run.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
	// RunID identifies one pack/unpack/validate invocation and is stamped on its report.
	RunID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetTraceID returns trace ID from context or generates new one.
func GetTraceID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.TraceID
	}
	return uuid.New().String()
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// GetRunID returns run ID from context or empty string.
func GetRunID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RunID
	}
	return ""
}

// NewTraceContext creates a new TraceContext with generated IDs.
// The run ID is left to the caller, which usually takes it from id.New.
func NewTraceContext() *TraceContext {
	return &TraceContext{
		TraceID:   uuid.New().String(),
		SpanID:    uuid.New().String()[:16],
		RequestID: uuid.New().String(),
	}
}
