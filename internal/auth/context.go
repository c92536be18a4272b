package auth

import (
	"context"

	"github.com/hashboard/hashboard/internal/entitlement"
)

type contextKey struct{}

// Context carries the authenticated identity plus the entitlement resolved at
// request start. It is never reused across requests.
type Context struct {
	AccountID   int64
	Username    string
	SessionID   int64
	Entitlement entitlement.Resolution
}

func WithAuth(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(Context)
	return ac, ok
}

func Username(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.Username
}

func Premium(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Entitlement.Status.Premium()
}
