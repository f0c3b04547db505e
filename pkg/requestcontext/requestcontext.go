// Package requestcontext carries per-request values (request ID, client
// metadata, clock) through context so services stay free of transport types.
package requestcontext

import (
	"context"
	"time"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	clientIPKey
	userAgentKey
	clockKey
	actorKey
)

// WithRequestID returns a context carrying the correlation ID for this request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the correlation ID, or "" when none is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithClientMetadata returns a context carrying the caller's IP and User-Agent.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, ip)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

// ClientIP returns the caller's IP address, or "" when none is set.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// UserAgent returns the caller's User-Agent, or "" when none is set.
func UserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentKey).(string)
	return ua
}

// WithActor returns a context carrying the authenticated caller identity.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// Actor returns the authenticated caller identity, or "" when none is set.
func Actor(ctx context.Context) string {
	a, _ := ctx.Value(actorKey).(string)
	return a
}

// WithClock injects a clock function, used by tests to control time.
func WithClock(ctx context.Context, now func() time.Time) context.Context {
	return context.WithValue(ctx, clockKey, now)
}

// Now returns the injected clock's current time, falling back to time.Now.
func Now(ctx context.Context) time.Time {
	if now, ok := ctx.Value(clockKey).(func() time.Time); ok {
		return now()
	}
	return time.Now()
}
