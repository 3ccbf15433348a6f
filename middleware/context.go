package middleware

import (
	"context"

	"github.com/MrEthical07/sessiongate/identity"
)

type userContextKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *identity.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext returns the user published for the request, if any.
func UserFromContext(ctx context.Context) (*identity.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*identity.User)
	return u, ok && u != nil
}
