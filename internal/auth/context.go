package auth

import (
	"context"
	"errors"
)

// Identity is the authenticated caller of an ops API request.
type Identity struct {
	OperatorID  string
	WorkspaceID string
	Role        string
}

type ctxKey struct{}

var ErrNoIdentity = errors.New("auth: identity not in context")

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, error) {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok && id.OperatorID != "" {
		return id, nil
	}
	return Identity{}, ErrNoIdentity
}
