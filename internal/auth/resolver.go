package auth

import (
	"context"
	"errors"

	"github.com/spec-kit/contacts-api/internal/domain"
	"github.com/spec-kit/contacts-api/internal/repository"
	apperrors "github.com/spec-kit/contacts-api/pkg/util/errorutil"
)

// UserLookup finds identities by the value carried in the token subject.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// IdentityResolver maps a token subject to a stored user.
type IdentityResolver struct {
	users UserLookup
}

// NewIdentityResolver creates a resolver over users.
func NewIdentityResolver(users UserLookup) *IdentityResolver {
	return &IdentityResolver{users: users}
}

// Resolve returns the user for subject, or (nil, nil) when none exists.
// Storage failures are returned as transient errors.
func (r *IdentityResolver) Resolve(ctx context.Context, subject string) (*domain.User, error) {
	if subject == "" {
		return nil, nil
	}
	user, err := r.users.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewTransient(err)
	}
	return user, nil
}
