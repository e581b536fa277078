package auth

import (
	"context"
	"crypto/subtle"

	"github.com/spec-kit/contacts-api/internal/domain"
	apperrors "github.com/spec-kit/contacts-api/pkg/util/errorutil"
)

// RefreshTokenStore persists the single active refresh token of a user.
type RefreshTokenStore interface {
	UpdateRefreshToken(ctx context.Context, id string, token *string) error
	RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error)
}

// RotationGuard keeps at most one valid refresh token per user.
//
// Rotate overwrites the stored value on login. Exchange replaces it on refresh
// only if the presented token is still the stored one, so a token can be
// spent once even under concurrent requests. Any other token clears the
// stored value, so a replayed token logs the user out everywhere.
type RotationGuard struct {
	store RefreshTokenStore
}

// NewRotationGuard creates a guard persisting through store.
func NewRotationGuard(store RefreshTokenStore) *RotationGuard {
	return &RotationGuard{store: store}
}

// Rotate makes token the only valid refresh token for user regardless of the
// stored value.
func (g *RotationGuard) Rotate(ctx context.Context, user *domain.User, token string) error {
	if err := g.store.UpdateRefreshToken(ctx, user.ID, &token); err != nil {
		return apperrors.NewTransient(err)
	}
	user.RefreshToken = &token
	return nil
}

// Validate checks presented against the stored token. On mismatch the stored
// token is cleared and ErrInvalidRefreshToken returned.
func (g *RotationGuard) Validate(ctx context.Context, user *domain.User, presented string) error {
	if user.HasRefreshToken() &&
		subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(presented)) == 1 {
		return nil
	}
	if err := g.Revoke(ctx, user); err != nil {
		return err
	}
	return apperrors.ErrInvalidRefreshToken
}

// Exchange swaps presented for next. When presented is no longer stored,
// because it was already spent or revoked, the stored token is cleared and
// ErrInvalidRefreshToken returned.
func (g *RotationGuard) Exchange(ctx context.Context, user *domain.User, presented, next string) error {
	swapped, err := g.store.RotateRefreshToken(ctx, user.ID, presented, next)
	if err != nil {
		return apperrors.NewTransient(err)
	}
	if !swapped {
		if err := g.Revoke(ctx, user); err != nil {
			return err
		}
		return apperrors.ErrInvalidRefreshToken
	}
	user.RefreshToken = &next
	return nil
}

// Revoke clears the stored refresh token.
func (g *RotationGuard) Revoke(ctx context.Context, user *domain.User) error {
	if err := g.store.UpdateRefreshToken(ctx, user.ID, nil); err != nil {
		return apperrors.NewTransient(err)
	}
	user.RefreshToken = nil
	return nil
}
