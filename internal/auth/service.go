// Package auth owns account registration, credential verification and
// session lifecycle. Sessions are stateless HS256 tokens; sign-out works
// by revoking the token id until its natural expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const (
	minPasswordLength = 6

	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email already in use")
	// ErrDifferentCredential means the email is registered, but under
	// another sign-in provider.
	ErrDifferentCredential = errors.New("account exists with different credential")
	ErrWeakPassword        = errors.New("password must be at least 6 characters")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrEmptyDisplayName    = errors.New("display name is required")
)

// Mailer queues transactional email for out-of-process delivery.
type Mailer interface {
	PublishMail(ctx context.Context, msg *amqp.MailMessage) error
}

// Session is an authenticated login: the bearer token plus the account it
// belongs to.
type Session struct {
	Token     string
	User      core.User
	ExpiresAt time.Time
}

// Service orchestrates accounts and sessions over the SQLite store.
type Service struct {
	store      *storage.SQLiteRepository
	mailer     Mailer
	sessions   *SessionHub
	verifiers  map[string]Verifier
	secret     []byte
	sessionTTL time.Duration
}

func NewService(store *storage.SQLiteRepository, mailer Mailer, sessions *SessionHub, secret string, sessionTTL time.Duration) *Service {
	return &Service{
		store:      store,
		mailer:     mailer,
		sessions:   sessions,
		verifiers:  make(map[string]Verifier),
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
	}
}

// RegisterVerifier enables a social sign-in provider.
func (s *Service) RegisterVerifier(provider string, v Verifier) {
	s.verifiers[provider] = v
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	CPF         string
}

// Register creates a password account, queues the verification email and
// signs the new user in. All validation happens before any write.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email := normalizeEmail(in.Email)
	if !validEmail(email) {
		return Session{}, ErrInvalidEmail
	}
	if len(in.Password) < minPasswordLength {
		return Session{}, ErrWeakPassword
	}
	if strings.TrimSpace(in.DisplayName) == "" {
		return Session{}, ErrEmptyDisplayName
	}
	if err := core.ValidateCPF(in.CPF); err != nil {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user := core.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: strings.TrimSpace(in.DisplayName),
		CPF:         in.CPF,
		Provider:    "password",
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateUser(ctx, user, string(hash)); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return Session{}, ErrEmailInUse
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	// Registration succeeds even if the verification mail cannot be
	// queued; the user can request it again later.
	if err := s.queueAuthMail(ctx, user, amqp.MailVerifyEmail, verifyTokenTTL); err != nil {
		slog.ErrorContext(ctx, "Failed to queue verification mail",
			"user_id", user.ID, "error", err)
	}

	return s.issueSession(ctx, user)
}

// Login verifies an email/password pair. Unknown email and wrong password
// fail identically; a social account fails distinctly.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, hash, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("look up user: %w", err)
	}
	if user.Provider != "password" {
		return Session{}, ErrDifferentCredential
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.issueSession(ctx, user)
}

// LoginSocial exchanges a provider access token for a session, creating
// the account on first sign-in. The provider's email claim is trusted, so
// social accounts start out verified.
func (s *Service) LoginSocial(ctx context.Context, provider, accessToken string) (Session, error) {
	verifier, ok := s.verifiers[provider]
	if !ok {
		return Session{}, fmt.Errorf("unknown sign-in provider: %s", provider)
	}
	identity, err := verifier.Verify(ctx, accessToken)
	if err != nil {
		return Session{}, fmt.Errorf("verify %s token: %w", provider, err)
	}

	email := normalizeEmail(identity.Email)
	user, _, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Provider != provider {
			return Session{}, ErrDifferentCredential
		}
		return s.issueSession(ctx, user)
	case errors.Is(err, storage.ErrNotFound):
		user = core.User{
			ID:            uuid.NewString(),
			Email:         email,
			DisplayName:   identity.DisplayName,
			Provider:      provider,
			EmailVerified: true,
			CreatedAt:     time.Now(),
		}
		if err := s.store.CreateUser(ctx, user, ""); err != nil {
			return Session{}, fmt.Errorf("create social user: %w", err)
		}
		return s.issueSession(ctx, user)
	default:
		return Session{}, fmt.Errorf("look up user: %w", err)
	}
}

// Authenticate resolves a bearer token to its account, rejecting revoked
// sessions.
func (s *Service) Authenticate(ctx context.Context, token string) (core.User, error) {
	userID, jti, _, err := parseSession(s.secret, token)
	if err != nil {
		return core.User{}, err
	}
	revoked, err := s.store.IsSessionRevoked(ctx, jti)
	if err != nil {
		return core.User{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return core.User{}, ErrInvalidToken
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.User{}, ErrInvalidToken
		}
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Logout revokes the session and announces the sign-out, so every live
// feed belonging to the user is torn down.
func (s *Service) Logout(ctx context.Context, token string) error {
	userID, jti, expiresAt, err := parseSession(s.secret, token)
	if err != nil {
		return err
	}
	if err := s.store.RevokeSession(ctx, jti, expiresAt); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.sessions.Publish(SessionEvent{Type: SessionLogout, UserID: userID})
	slog.InfoContext(ctx, "Session revoked", "user_id", userID)
	return nil
}

// RequestPasswordReset queues a reset email. An unknown email is reported
// as success, so the endpoint does not reveal which addresses exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, _, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("look up user: %w", err)
	}
	return s.queueAuthMail(ctx, user, amqp.MailResetPassword, resetTokenTTL)
}

// RequestEmailVerification re-queues the verification email for a signed
// in user. Already verified accounts are a no-op.
func (s *Service) RequestEmailVerification(ctx context.Context, userID string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}
	return s.queueAuthMail(ctx, user, amqp.MailVerifyEmail, verifyTokenTTL)
}

// ConfirmEmailVerification consumes a single-use verification token and
// marks the account verified.
func (s *Service) ConfirmEmailVerification(ctx context.Context, token string) error {
	userID, err := s.store.ConsumeAuthToken(ctx, token, amqp.MailVerifyEmail)
	if err != nil {
		if errors.Is(err, storage.ErrTokenInvalid) {
			return ErrInvalidToken
		}
		return fmt.Errorf("consume verification token: %w", err)
	}
	if err := s.store.MarkEmailVerified(ctx, userID); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	slog.InfoContext(ctx, "Email verified", "user_id", userID)
	return nil
}

// UpdateDisplayName changes the profile name and returns the fresh user.
func (s *Service) UpdateDisplayName(ctx context.Context, userID, name string) (core.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.User{}, ErrEmptyDisplayName
	}
	if err := s.store.UpdateDisplayName(ctx, userID, name); err != nil {
		return core.User{}, fmt.Errorf("update display name: %w", err)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return core.User{}, fmt.Errorf("reload user: %w", err)
	}
	return user, nil
}

func (s *Service) issueSession(ctx context.Context, user core.User) (Session, error) {
	token, expiresAt, err := signSession(s.secret, user.ID, uuid.NewString(), s.sessionTTL)
	if err != nil {
		return Session{}, err
	}
	s.sessions.Publish(SessionEvent{Type: SessionLogin, UserID: user.ID})
	slog.InfoContext(ctx, "Session issued",
		"user_id", user.ID,
		"provider", user.Provider)
	return Session{Token: token, User: user, ExpiresAt: expiresAt}, nil
}

func (s *Service) queueAuthMail(ctx context.Context, user core.User, kind string, ttl time.Duration) error {
	tokenID := uuid.NewString()
	if err := s.store.CreateAuthToken(ctx, tokenID, user.ID, kind, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("create %s token: %w", kind, err)
	}
	if s.mailer == nil {
		slog.WarnContext(ctx, "Mailer not available, skipping mail", "kind", kind)
		return nil
	}
	msg := amqp.NewMailMessage(kind, user.Email, user.DisplayName, tokenID)
	if err := s.mailer.PublishMail(ctx, msg); err != nil {
		return fmt.Errorf("queue %s mail: %w", kind, err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.Contains(email, " ")
}
