package ctxutil

import "context"

type traceDataKey struct{}
type sessionDataKey struct{}

// TraceData carries correlation ids for a single request.
type TraceData struct {
	TraceID   string
	RequestID string
}

// SessionData is the authenticated identity resolved from the session token.
// IsPremium mirrors the token claim and may be stale; entitlement decisions go
// through the subscription resolver instead.
type SessionData struct {
	UserID    string
	Email     string
	IsPremium bool
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

func WithSessionData(ctx context.Context, sd *SessionData) context.Context {
	return context.WithValue(ctx, sessionDataKey{}, sd)
}

func GetSessionData(ctx context.Context) *SessionData {
	if sd, ok := ctx.Value(sessionDataKey{}).(*SessionData); ok {
		return sd
	}
	return nil
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
