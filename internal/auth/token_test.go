package auth

import (
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/contacts-api/internal/config"
	"github.com/spec-kit/contacts-api/internal/domain"
	apperrors "github.com/spec-kit/contacts-api/pkg/util/errorutil"
)

var allClasses = []domain.TokenClass{
	domain.TokenClassAccess,
	domain.TokenClassRefresh,
	domain.TokenClassEmailConfirm,
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:             "super-secret",
		JWTAlgorithm:          "HS256",
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLHours:  168,
		EmailTokenTTLHours:    24,
	}
}

func newTestTokenManager(t *testing.T) (*TokenManager, *fakeClock) {
	t.Helper()
	tm, err := NewTokenManager(testAuthConfig())
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tm.now = clock.Now
	return tm, clock
}

func TestNewTokenManager(t *testing.T) {
	t.Run("rejects empty secret", func(t *testing.T) {
		cfg := testAuthConfig()
		cfg.JWTSecret = ""
		_, err := NewTokenManager(cfg)
		assert.Error(t, err)
	})

	t.Run("rejects non-hmac algorithm", func(t *testing.T) {
		cfg := testAuthConfig()
		cfg.JWTAlgorithm = "RS256"
		_, err := NewTokenManager(cfg)
		assert.Error(t, err)
	})

	t.Run("class default ttls", func(t *testing.T) {
		tm, _ := newTestTokenManager(t)
		assert.Equal(t, 15*time.Minute, tm.TTL(domain.TokenClassAccess))
		assert.Equal(t, 168*time.Hour, tm.TTL(domain.TokenClassRefresh))
		assert.Equal(t, 24*time.Hour, tm.TTL(domain.TokenClassEmailConfirm))
	})
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm, clock := newTestTokenManager(t)

	for _, class := range allClasses {
		t.Run(string(class), func(t *testing.T) {
			token, issued, err := tm.IssueWithTTL("alice@example.com", class, time.Hour)
			require.NoError(t, err)

			clock.Advance(59 * time.Minute)
			defer clock.Advance(-59 * time.Minute)

			decoded, err := tm.Decode(token, class)
			require.NoError(t, err)
			assert.Equal(t, issued.Subject, decoded.Subject)
			assert.Equal(t, issued.Class, decoded.Class)
			assert.True(t, issued.IssuedAt.Equal(decoded.IssuedAt))
			assert.True(t, issued.ExpiresAt.Equal(decoded.ExpiresAt))
			assert.True(t, decoded.ExpiresAt.Equal(decoded.IssuedAt.Add(time.Hour)))
		})
	}
}

func TestTokenManager_Expiry(t *testing.T) {
	for _, class := range allClasses {
		t.Run(string(class), func(t *testing.T) {
			tm, clock := newTestTokenManager(t)
			token, _, err := tm.IssueWithTTL("bob@example.com", class, 10*time.Minute)
			require.NoError(t, err)

			clock.Advance(10*time.Minute - time.Second)
			_, err = tm.Decode(token, class)
			require.NoError(t, err, "still valid one second before expiry")

			clock.Advance(time.Second)
			_, err = tm.Decode(token, class)
			assert.ErrorIs(t, err, apperrors.ErrInvalidToken, "expired exactly at issued-at + ttl")

			clock.Advance(time.Hour)
			_, err = tm.Decode(token, class)
			assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})
	}
}

func TestTokenManager_ClassMismatch(t *testing.T) {
	tm, _ := newTestTokenManager(t)

	for _, issuedAs := range allClasses {
		token, _, err := tm.Issue("carol@example.com", issuedAs)
		require.NoError(t, err)
		for _, expected := range allClasses {
			_, err := tm.Decode(token, expected)
			if issuedAs == expected {
				assert.NoError(t, err)
				continue
			}
			assert.ErrorIs(t, err, apperrors.ErrInvalidToken, "issued %s decoded as %s", issuedAs, expected)
		}
	}
}

func TestTokenManager_Tampering(t *testing.T) {
	tm, clock := newTestTokenManager(t)
	token, _, err := tm.Issue("dave@example.com", domain.TokenClassAccess)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		cfg := testAuthConfig()
		cfg.JWTSecret = "other-secret"
		other, err := NewTokenManager(cfg)
		require.NoError(t, err)
		other.now = clock.Now

		_, err = other.Decode(token, domain.TokenClassAccess)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("modified payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		forged, _, err := tm.Issue("mallory@example.com", domain.TokenClassAccess)
		require.NoError(t, err)
		forgedParts := strings.Split(forged, ".")

		spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]
		_, err = tm.Decode(spliced, domain.TokenClassAccess)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &tokenClaims{
			Scope: domain.TokenClassAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "dave@example.com",
				IssuedAt:  jwt.NewNumericDate(clock.Now()),
				ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
			},
		})
		s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = tm.Decode(s, domain.TokenClassAccess)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("other hmac algorithm", func(t *testing.T) {
		cfg := testAuthConfig()
		cfg.JWTAlgorithm = "HS512"
		other, err := NewTokenManager(cfg)
		require.NoError(t, err)
		other.now = clock.Now
		s, _, err := other.Issue("dave@example.com", domain.TokenClassAccess)
		require.NoError(t, err)

		_, err = tm.Decode(s, domain.TokenClassAccess)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("malformed strings", func(t *testing.T) {
		for _, s := range []string{"", "not.a.jwt", "abc"} {
			_, err := tm.Decode(s, domain.TokenClassAccess)
			assert.ErrorIs(t, err, apperrors.ErrInvalidToken, "token %q", s)
		}
	})
}

func TestTokenManager_IssueValidation(t *testing.T) {
	tm, _ := newTestTokenManager(t)

	_, _, err := tm.Issue("", domain.TokenClassAccess)
	assert.Error(t, err)

	_, _, err = tm.Issue("eve@example.com", domain.TokenClass("bogus"))
	assert.Error(t, err)
}

func TestTokenManager_TokensAreUnique(t *testing.T) {
	tm, _ := newTestTokenManager(t)

	first, _, err := tm.Issue("frank@example.com", domain.TokenClassRefresh)
	require.NoError(t, err)
	second, _, err := tm.Issue("frank@example.com", domain.TokenClassRefresh)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "same subject and second must still rotate")
}
