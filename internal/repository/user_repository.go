package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/contacts-api/internal/domain"
)

var (
	// ErrNotFound is returned when no user row matches.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
)

// Querier is the subset of pgxpool.Pool used by repositories.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository defines persistence access for account identities.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateRefreshToken(ctx context.Context, id string, token *string) error
	// RotateRefreshToken stores next only while the stored token equals
	// expected and reports whether it did.
	RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	ConfirmEmail(ctx context.Context, id string) error
}

type userRepository struct {
	db Querier
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db Querier) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, email, password_hash, avatar, confirmed, refresh_token, created_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, username, email, password_hash, avatar, confirmed)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`

	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Avatar,
		user.Confirmed,
	).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) UpdateRefreshToken(ctx context.Context, id string, token *string) error {
	return r.exec(ctx, "update refresh token", `UPDATE users SET refresh_token=$1 WHERE id=$2`, token, id)
}

func (r *userRepository) RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	cmd, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token=$1 WHERE id=$2 AND refresh_token=$3`,
		next, id, expected,
	)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.exec(ctx, "update password hash", `UPDATE users SET password_hash=$1 WHERE id=$2`, hash, id)
}

func (r *userRepository) ConfirmEmail(ctx context.Context, id string) error {
	return r.exec(ctx, "confirm email", `UPDATE users SET confirmed=TRUE WHERE id=$1`, id)
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Avatar,
		&user.Confirmed,
		&user.RefreshToken,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) exec(ctx context.Context, op, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
