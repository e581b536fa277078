package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/contacts-api/internal/domain"
)

// MemoryUserRepository keeps users in process memory. It backs local runs
// without POSTGRES_DSN and the service tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.User
	email map[string]string
}

// NewMemoryUserRepository returns an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:  make(map[string]*domain.User),
		email: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.email[user.Email]; exists {
		return ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.byID[user.ID] = cloneUser(user)
	r.email[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[r.email[email]]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) UpdateRefreshToken(_ context.Context, id string, token *string) error {
	return r.mutate(id, func(u *domain.User) {
		if token == nil {
			u.RefreshToken = nil
			return
		}
		v := *token
		u.RefreshToken = &v
	})
}

func (r *MemoryUserRepository) RotateRefreshToken(_ context.Context, id, expected, next string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok || user.RefreshToken == nil || *user.RefreshToken != expected {
		return false, nil
	}
	user.RefreshToken = &next
	return true, nil
}

func (r *MemoryUserRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return r.mutate(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (r *MemoryUserRepository) ConfirmEmail(_ context.Context, id string) error {
	return r.mutate(id, func(u *domain.User) { u.Confirmed = true })
}

func (r *MemoryUserRepository) mutate(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(user)
	return nil
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	if u.RefreshToken != nil {
		v := *u.RefreshToken
		c.RefreshToken = &v
	}
	if u.Avatar != nil {
		v := *u.Avatar
		c.Avatar = &v
	}
	return &c
}
