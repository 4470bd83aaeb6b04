// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Values are set by middleware (or by tests and workers directly) and read by
// services. Keeping this package free of net/http lets services import only
// what they need.
//
// Usage in services:
//
//	now := requestcontext.Now(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in tests and batch workers:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "bidhub/pkg/domain"
)

type (
	actorIDKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// ActorID retrieves the authenticated actor (admin or user) from the context.
// Returns the zero value if not set.
func ActorID(ctx context.Context) id.UserID {
	if actorID, ok := ctx.Value(actorIDKey{}).(id.UserID); ok {
		return actorID
	}
	return id.UserID{}
}

// WithActorID injects the authenticated actor into the context.
func WithActorID(ctx context.Context, actorID id.UserID) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() when unset (non-HTTP contexts: workers before a batch starts,
// CLI, tests that don't care).
//
// All time-dependent domain logic must read "now" through this accessor or
// take it as a parameter; hidden time.Now() calls make expiry untestable.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Used by the requesttime
// middleware, by the sweeper to pin one "now" per batch, and by tests.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
