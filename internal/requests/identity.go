package requests

import (
	"context"
	"strings"

	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/shared"
)

// UserStore looks users up by access token.
type UserStore interface {
	ListByAccessToken(ctx context.Context, token string) ([]*models.User, error)
}

// Caller is an authenticated user and the token they presented.
type Caller struct {
	UserID string
	Token  string
}

// Resolver maps an Authorization header to a known user. It only reads.
type Resolver struct {
	users UserStore
}

// NewResolver creates a [Resolver] backed by users.
func NewResolver(users UserStore) *Resolver {
	return &Resolver{users: users}
}

// Resolve parses "Bearer <token>" and finds the single user holding the token.
func (r *Resolver) Resolve(ctx context.Context, header string) (*Caller, error) {
	if strings.TrimSpace(header) == "" {
		return nil, shared.Wrap(shared.KindUnauthorized, shared.ErrNotAuthenticated, "missing authorization header")
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, shared.Wrap(shared.KindUnauthorized, shared.ErrNotAuthenticated, "authorization header value does not match expected format")
	}

	users, err := r.users.ListByAccessToken(ctx, token)
	if err != nil {
		return nil, shared.Wrap(shared.KindInternal, err, "failed to look up access token")
	}

	switch len(users) {
	case 0:
		return nil, shared.Wrap(shared.KindUnauthorized, shared.ErrNotAuthenticated, "no such access token could be found")
	case 1:
		return &Caller{UserID: users[0].UserID, Token: token}, nil
	default:
		return nil, shared.Wrap(shared.KindInternal, shared.ErrIntegrity, "access token maps to %d users", len(users))
	}
}
