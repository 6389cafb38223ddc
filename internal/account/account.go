// Package account resolves the user the punches belong to.
package account

import (
	"context"
	"errors"

	"github.com/Tiliavir/punch-clock/internal/model"
)

// ErrNotAuthenticated is returned when no user is signed in.
var ErrNotAuthenticated = errors.New("not authenticated")

// Provider returns the user of the current request or command.
type Provider interface {
	CurrentUser(ctx context.Context) (model.User, error)
}

// Static always returns the configured user. An empty ID means nobody is
// signed in.
type Static struct {
	User model.User
}

func (s Static) CurrentUser(ctx context.Context) (model.User, error) {
	if s.User.ID == "" {
		return model.User{}, ErrNotAuthenticated
	}
	return s.User, nil
}

type tokenKey struct{}

// WithToken returns a context carrying a bearer token taken from an
// incoming request.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token stored by WithToken.
func TokenFrom(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok && tok != ""
}
