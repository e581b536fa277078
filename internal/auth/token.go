package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/contacts-api/internal/config"
	"github.com/spec-kit/contacts-api/internal/domain"
	apperrors "github.com/spec-kit/contacts-api/pkg/util/errorutil"
)

// Claims is the decoded, verified content of a token.
type Claims struct {
	Subject   string
	Class     domain.TokenClass
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims describes the JWT payload.
type tokenClaims struct {
	Scope domain.TokenClass `json:"scope"`
	jwt.RegisteredClaims
}

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	method jwt.SigningMethod
	ttl    map[domain.TokenClass]time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager from auth configuration.
func NewTokenManager(cfg config.AuthConfig) (*TokenManager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	alg := cfg.JWTAlgorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}

	return &TokenManager{
		secret: []byte(cfg.JWTSecret),
		method: method,
		ttl: map[domain.TokenClass]time.Duration{
			domain.TokenClassAccess:       orDefault(cfg.AccessTokenTTL(), 15*time.Minute),
			domain.TokenClassRefresh:      orDefault(cfg.RefreshTokenTTL(), 7*24*time.Hour),
			domain.TokenClassEmailConfirm: orDefault(cfg.EmailTokenTTL(), 7*24*time.Hour),
		},
		now: time.Now,
	}, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// TTL returns the default lifetime for a token class.
func (tm *TokenManager) TTL(class domain.TokenClass) time.Duration {
	return tm.ttl[class]
}

// Issue signs a token for subject using the class default lifetime.
func (tm *TokenManager) Issue(subject string, class domain.TokenClass) (string, Claims, error) {
	return tm.IssueWithTTL(subject, class, tm.TTL(class))
}

// IssueWithTTL signs a token for subject that expires after ttl.
func (tm *TokenManager) IssueWithTTL(subject string, class domain.TokenClass, ttl time.Duration) (string, Claims, error) {
	if !class.Valid() {
		return "", Claims{}, fmt.Errorf("unknown token class %q", class)
	}
	if subject == "" {
		return "", Claims{}, errors.New("token subject is required")
	}

	// NumericDate has second precision; truncate so Claims match what Decode returns.
	issuedAt := tm.now().Truncate(time.Second)
	claims := Claims{
		Subject:   subject,
		Class:     class,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	}

	token := jwt.NewWithClaims(tm.method, &tokenClaims{
		Scope: class,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return tokenString, claims, nil
}

// Decode validates signature, expiry and class and returns the claims.
// Every failure is reported as ErrInvalidToken.
func (tm *TokenManager) Decode(tokenStr string, expected domain.TokenClass) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{}, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{tm.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return Claims{}, apperrors.ErrInvalidToken.WithCause(err)
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.ErrInvalidToken.WithCause(errors.New("invalid token claims"))
	}
	if claims.Scope != expected {
		return Claims{}, apperrors.ErrInvalidToken.WithCause(fmt.Errorf("invalid scope for token: %q", claims.Scope))
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return Claims{}, apperrors.ErrInvalidToken.WithCause(errors.New("missing subject or issued-at"))
	}

	return Claims{
		Subject:   claims.Subject,
		Class:     claims.Scope,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
