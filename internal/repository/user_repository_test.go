package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/contacts-api/internal/domain"
)

var userColumnNames = []string{"id", "username", "email", "password_hash", "avatar", "confirmed", "refresh_token", "created_at"}

func strPtr(s string) *string { return &s }

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock
}

func TestUserRepository_GetByEmail(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      *domain.User
		wantErr   error
		errMsg    string
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userColumnNames).
					AddRow("u-1", "alice", "alice@example.com", "$argon2id$hash", (*string)(nil), true, strPtr("rt"), created)
				mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\$1`).
					WithArgs("alice@example.com").
					WillReturnRows(rows)
			},
			want: &domain.User{
				ID:           "u-1",
				Username:     "alice",
				Email:        "alice@example.com",
				PasswordHash: "$argon2id$hash",
				Confirmed:    true,
				RefreshToken: strPtr("rt"),
				CreatedAt:    created,
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\$1`).
					WithArgs("alice@example.com").
					WillReturnRows(pgxmock.NewRows(userColumnNames))
			},
			wantErr: ErrNotFound,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\$1`).
					WithArgs("alice@example.com").
					WillReturnError(errors.New("connection refused"))
			},
			errMsg: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			got, err := NewUserRepository(mock).GetByEmail(context.Background(), "alice@example.com")

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrNotFound)
				assert.Contains(t, err.Error(), tt.errMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestUserRepository_Create(t *testing.T) {
	t.Run("assigns id and created_at", func(t *testing.T) {
		mock := newMock(t)
		created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(pgxmock.AnyArg(), "carol", "carol@example.com", "hash", pgxmock.AnyArg(), false).
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

		user := &domain.User{Username: "carol", Email: "carol@example.com", PasswordHash: "hash"}
		require.NoError(t, NewUserRepository(mock).Create(context.Background(), user))

		assert.NotEmpty(t, user.ID)
		assert.Equal(t, created, user.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, Message: "duplicate key"})

		err := NewUserRepository(mock).Create(context.Background(), &domain.User{Email: "carol@example.com"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})
}

func TestUserRepository_UpdateRefreshToken(t *testing.T) {
	tests := []struct {
		name      string
		token     *string
		setupMock func(mock pgxmock.PgxPoolIface, token *string)
		wantErr   error
	}{
		{
			name:  "store token",
			token: strPtr("new-token"),
			setupMock: func(mock pgxmock.PgxPoolIface, token *string) {
				mock.ExpectExec(`UPDATE users SET refresh_token=\$1 WHERE id=\$2`).
					WithArgs(token, "u-1").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name:  "clear token",
			token: nil,
			setupMock: func(mock pgxmock.PgxPoolIface, token *string) {
				mock.ExpectExec(`UPDATE users SET refresh_token=\$1 WHERE id=\$2`).
					WithArgs(token, "u-1").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name:  "missing row",
			token: strPtr("t"),
			setupMock: func(mock pgxmock.PgxPoolIface, token *string) {
				mock.ExpectExec(`UPDATE users SET refresh_token`).
					WithArgs(token, "u-1").
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock, tt.token)

			err := NewUserRepository(mock).UpdateRefreshToken(context.Background(), "u-1", tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_ConfirmEmail(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE users SET confirmed=TRUE WHERE id=\$1`).
		WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE users SET confirmed=TRUE`).
		WithArgs("u-1").
		WillReturnError(errors.New("broken pipe"))

	repo := NewUserRepository(mock)
	require.NoError(t, repo.ConfirmEmail(context.Background(), "u-1"))

	err := repo.ConfirmEmail(context.Background(), "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirm email")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdatePasswordHash(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE users SET password_hash=\$1 WHERE id=\$2`).
		WithArgs("h2", "u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, NewUserRepository(mock).UpdatePasswordHash(context.Background(), "u-1", "h2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RotateRefreshToken(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      bool
		wantErr   bool
	}{
		{
			name: "stored token matches",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users SET refresh_token=\$1 WHERE id=\$2 AND refresh_token=\$3`).
					WithArgs("next", "u-1", "current").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			want: true,
		},
		{
			name: "stored token already rotated",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users SET refresh_token=\$1 WHERE id=\$2 AND refresh_token=\$3`).
					WithArgs("next", "u-1", "current").
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			want: false,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users SET refresh_token`).
					WithArgs("next", "u-1", "current").
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			swapped, err := NewUserRepository(mock).RotateRefreshToken(context.Background(), "u-1", "current", "next")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "rotate refresh token")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, swapped)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
