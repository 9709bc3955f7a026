package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetRunID(ctx))
	assert.NotEmpty(t, GetTraceID(ctx))

	tc := NewTraceContext()
	tc.RunID = "run-1"
	ctx = WithTrace(ctx, tc)

	assert.Equal(t, tc.TraceID, GetTraceID(ctx))
	assert.Equal(t, tc.RequestID, GetRequestID(ctx))
	assert.Equal(t, "run-1", GetRunID(ctx))
	assert.Len(t, tc.SpanID, 16)
}

func TestCaller(t *testing.T) {
	ctx := context.Background()
	assert.False(t, HasScope(ctx, "validate"))

	ctx = WithCaller(ctx, &Caller{Subject: "svc-import", Scopes: []string{"pack", "validate"}})
	assert.Equal(t, "svc-import", GetSubject(ctx))
	assert.True(t, HasScope(ctx, "validate"))
	assert.False(t, HasScope(ctx, "admin"))
}
