// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"
)

// Caller describes the authenticated client of the HTTP API.
type Caller struct {
	Subject string
	Scopes  []string
}

type callerContextKey struct{}

// WithCaller adds Caller to context.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// GetCaller returns Caller from context.
func GetCaller(ctx context.Context) *Caller {
	if v, ok := ctx.Value(callerContextKey{}).(*Caller); ok {
		return v
	}
	return nil
}

// GetSubject returns caller subject from context or empty string.
func GetSubject(ctx context.Context) string {
	if c := GetCaller(ctx); c != nil {
		return c.Subject
	}
	return ""
}

// HasScope checks if caller was granted a scope.
func HasScope(ctx context.Context, scope string) bool {
	c := GetCaller(ctx)
	if c == nil {
		return false
	}
	return slices.Contains(c.Scopes, scope)
}
