package httpapi

import (
	"context"

	"github.com/and161185/docportal/internal/model"
)

type ctxKey string

const (
	principalKey ctxKey = "portal.principal"
	tokenKey     ctxKey = "portal.sessionToken"
)

// WithSession stores the verified principal and its raw session token in context.
func WithSession(ctx context.Context, p model.Principal, token string) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return context.WithValue(ctx, tokenKey, token)
}

// PrincipalFromCtx fetches the verified principal from context.
func PrincipalFromCtx(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	return p, ok
}

// SessionTokenFromCtx fetches the raw session token from context.
func SessionTokenFromCtx(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok && t != ""
}
