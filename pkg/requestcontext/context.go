// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; handlers and services read
// them without importing net/http.
//
//	actor, ok := requestcontext.ActorID(ctx)
//	requestID := requestcontext.RequestID(ctx)
package requestcontext

import (
	"context"
	"time"
)

type (
	actorIDKey     struct{}
	requestIDKey   struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestTimeKey struct{}
)

// ActorID returns the authenticated administrative user, if any.
func ActorID(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(actorIDKey{}).(int)
	return v, ok
}

// ActorIDPtr is ActorID in the optional form audit entries carry.
func ActorIDPtr(ctx context.Context) *int {
	if v, ok := ActorID(ctx); ok {
		return &v
	}
	return nil
}

func WithActorID(ctx context.Context, actorID int) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey{}).(string)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey{}).(string)
	return v
}

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// Now returns the request-scoped time, or time.Now when none was set.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
