// Package identity carries the authenticated caller and request id through a request context.
package identity

import "context"

type principalKey struct{}
type requestIDKey struct{}

// Principal is the authenticated caller resolved from a live session
type Principal struct {
	UserID    int64
	Username  string
	Role      string
	SessionID string
}

func (p Principal) IsAdmin() bool { return p.Role == "admin" }

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by the auth middleware
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
