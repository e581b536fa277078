package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/contacts-api/internal/auth"
	"github.com/spec-kit/contacts-api/internal/config"
	"github.com/spec-kit/contacts-api/internal/domain"
	"github.com/spec-kit/contacts-api/internal/events"
	"github.com/spec-kit/contacts-api/internal/observability"
	"github.com/spec-kit/contacts-api/internal/repository"
	apperrors "github.com/spec-kit/contacts-api/pkg/util/errorutil"
)

// Flow names used in metrics.
const (
	FlowSignup       = "signup"
	FlowLogin        = "login"
	FlowRefresh      = "refresh"
	FlowConfirmEmail = "confirm_email"
	FlowRequestEmail = "request_email"
	FlowAuthenticate = "authenticate"
	FlowLogout       = "logout"
)

const tokenTypeBearer = "bearer"

// SignupInput carries a validated registration request.
type SignupInput struct {
	Username string
	Email    string
	Password string
	// BaseURL is the public root the confirmation link points at.
	BaseURL string
}

// AuthService coordinates signup, login, refresh and email confirmation.
type AuthService struct {
	users     repository.UserRepository
	hasher    auth.PasswordHasher
	tokens    *auth.TokenManager
	resolver  *auth.IdentityResolver
	rotation  *auth.RotationGuard
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	dummyHash string
}

// AuthDependencies encapsulates collaborators of the auth service.
// Hasher and Tokens are built from config when nil.
type AuthDependencies struct {
	UserRepo  repository.UserRepository
	Hasher    auth.PasswordHasher
	Tokens    *auth.TokenManager
	Publisher events.Publisher
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) (*AuthService, error) {
	if deps.UserRepo == nil {
		return nil, errors.New("auth service requires a user repository")
	}

	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewPasswordHasher(cfg)
	}
	tokens := deps.Tokens
	if tokens == nil {
		var err error
		if tokens, err = auth.NewTokenManager(cfg); err != nil {
			return nil, err
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Verified against when the email is unknown so login timing does not
	// reveal whether an account exists.
	dummyHash, err := hasher.Hash("contacts-api-timing-equalizer")
	if err != nil {
		return nil, err
	}

	return &AuthService{
		users:     deps.UserRepo,
		hasher:    hasher,
		tokens:    tokens,
		resolver:  auth.NewIdentityResolver(deps.UserRepo),
		rotation:  auth.NewRotationGuard(deps.UserRepo),
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    logger,
		dummyHash: dummyHash,
	}, nil
}

// TokenManager exposes the token codec.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Signup creates an unconfirmed account and hands off a confirmation email.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (user *domain.User, err error) {
	defer func() { s.observe(FlowSignup, err) }()

	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	existing, err := s.resolver.Resolve(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmptyPassword) || errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperrors.NewValidationError(err.Error(), nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	user = &domain.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, apperrors.NewTransient(err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID))
	s.enqueueConfirmation(ctx, user, in.BaseURL)
	return user, nil
}

// Login verifies credentials of a confirmed account and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (pair domain.TokenPair, err error) {
	defer func() { s.observe(FlowLogin, err) }()

	user, err := s.resolver.Resolve(ctx, normalizeEmail(email))
	if err != nil {
		return domain.TokenPair{}, err
	}
	if user == nil {
		s.hasher.Verify(password, s.dummyHash)
		return domain.TokenPair{}, apperrors.ErrUserNotFound
	}
	if !user.Confirmed {
		return domain.TokenPair{}, apperrors.ErrEmailNotConfirmed
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return domain.TokenPair{}, apperrors.ErrInvalidPassword
	}

	s.upgradeHash(ctx, user, password)

	pair, err = s.signPair(user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.rotation.Rotate(ctx, user, pair.RefreshToken); err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

// Refresh exchanges the current refresh token for a new pair. Presenting any
// other refresh token revokes the stored one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (pair domain.TokenPair, err error) {
	defer func() { s.observe(FlowRefresh, err) }()

	claims, err := s.tokens.Decode(refreshToken, domain.TokenClassRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	user, err := s.resolver.Resolve(ctx, claims.Subject)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if user == nil {
		return domain.TokenPair{}, apperrors.ErrInvalidToken
	}
	if err := s.rotation.Validate(ctx, user, refreshToken); err != nil {
		s.warnRevoked(user, err)
		return domain.TokenPair{}, err
	}

	pair, err = s.signPair(user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	// The snapshot check above can pass for two requests presenting the same
	// token; only one of them wins the swap.
	if err := s.rotation.Exchange(ctx, user, refreshToken, pair.RefreshToken); err != nil {
		s.warnRevoked(user, err)
		return domain.TokenPair{}, err
	}
	return pair, nil
}

func (s *AuthService) warnRevoked(user *domain.User, err error) {
	if errors.Is(err, apperrors.ErrInvalidRefreshToken) {
		s.logger.Warn("refresh token mismatch; stored token revoked", zap.String("user_id", user.ID))
	}
}

// ConfirmEmail marks the token subject's email as confirmed. Confirming twice
// is not an error.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (status domain.ConfirmationStatus, err error) {
	defer func() { s.observe(FlowConfirmEmail, err) }()

	claims, err := s.tokens.Decode(token, domain.TokenClassEmailConfirm)
	if err != nil {
		return "", err
	}
	user, err := s.resolver.Resolve(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", apperrors.ErrVerification
	}
	if user.Confirmed {
		return domain.ConfirmationAlreadyConfirmed, nil
	}
	if err := s.users.ConfirmEmail(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperrors.ErrVerification
		}
		return "", apperrors.NewTransient(err)
	}

	s.logger.Info("email confirmed", zap.String("user_id", user.ID))
	return domain.ConfirmationConfirmed, nil
}

// RequestConfirmation sends a fresh confirmation email unless the account is
// already confirmed.
func (s *AuthService) RequestConfirmation(ctx context.Context, email, baseURL string) (status domain.ConfirmationStatus, err error) {
	defer func() { s.observe(FlowRequestEmail, err) }()

	user, err := s.resolver.Resolve(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", apperrors.ErrUserNotFound
	}
	if user.Confirmed {
		return domain.ConfirmationAlreadyConfirmed, nil
	}

	s.enqueueConfirmation(ctx, user, baseURL)
	return domain.ConfirmationSent, nil
}

// Authenticate resolves an access token to its user. Refresh and email
// tokens are rejected.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (user *domain.User, err error) {
	defer func() {
		if err != nil {
			s.observe(FlowAuthenticate, err)
		}
	}()

	claims, err := s.tokens.Decode(accessToken, domain.TokenClassAccess)
	if err != nil {
		return nil, err
	}
	user, err = s.resolver.Resolve(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrInvalidToken
	}
	return user, nil
}

// Logout revokes the user's refresh token. Outstanding access tokens stay
// valid until they expire.
func (s *AuthService) Logout(ctx context.Context, user *domain.User) (err error) {
	defer func() { s.observe(FlowLogout, err) }()
	return s.rotation.Revoke(ctx, user)
}

func (s *AuthService) signPair(user *domain.User) (domain.TokenPair, error) {
	access, accessClaims, err := s.tokens.Issue(user.Email, domain.TokenClassAccess)
	if err != nil {
		return domain.TokenPair{}, apperrors.NewInternalError(err)
	}
	refresh, _, err := s.tokens.Issue(user.Email, domain.TokenClassRefresh)
	if err != nil {
		return domain.TokenPair{}, apperrors.NewInternalError(err)
	}
	return domain.TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		TokenType:       tokenTypeBearer,
		AccessExpiresAt: accessClaims.ExpiresAt,
	}, nil
}

// upgradeHash re-hashes with current parameters. Failures only cost a retry
// on the next login.
func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	if !s.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.Warn("password rehash not saved", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hash
}

// enqueueConfirmation hands the confirmation email to the worker. Delivery is
// not awaited and failures are only logged.
func (s *AuthService) enqueueConfirmation(ctx context.Context, user *domain.User, baseURL string) {
	if s.publisher == nil {
		s.logger.Warn("no email publisher configured; confirmation not sent", zap.String("user_id", user.ID))
		return
	}
	token, _, err := s.tokens.Issue(user.Email, domain.TokenClassEmailConfirm)
	if err != nil {
		s.logger.Error("issue confirmation token", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	event := events.NewConfirmationRequested(domain.ConfirmationMessage{
		Email:    user.Email,
		Username: user.Username,
		Token:    token,
		BaseURL:  baseURL,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("confirmation email not queued", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *AuthService) observe(flow string, err error) {
	outcome := observability.OutcomeSuccess
	switch {
	case err == nil:
	case apperrors.IsTransient(err):
		outcome = observability.OutcomeTransient
	default:
		outcome = observability.OutcomeRejected
	}
	s.metrics.RecordAuthAttempt(flow, outcome)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
