package auth

import (
	"context"
	"strings"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithClaimsContext sets verified access claims in the given context
func WithClaimsContext(r context.Context, claims *AccessClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the access claims from the context
func GetClaims(ctx context.Context) (*AccessClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*AccessClaims)
	return raw, ok && raw != nil
}

// Authenticate verifies an access token, optionally prefixed with "Bearer ",
// and returns a context carrying its claims.
func Authenticate(ctx context.Context, tokens TokenService, header string) (context.Context, error) {
	raw := strings.TrimSpace(header)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return ctx, WithSource(ErrMalformedToken, nil, map[string]any{"reason": "missing token"})
	}

	claims, err := tokens.VerifyAccessToken(raw)
	if err != nil {
		return ctx, err
	}
	return WithClaimsContext(ctx, claims), nil
}

// Can reports whether the context carries claims whose role is at least
// minRole.
func Can(ctx context.Context, minRole UserRole) bool {
	claims, ok := GetClaims(ctx)
	if !ok {
		return false
	}
	return claims.IsAtLeast(minRole)
}
