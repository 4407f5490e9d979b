// ABOUTME: Account service handling signup, login, and session refresh
// ABOUTME: Issues token pairs and records account actions to the audit log

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/keygate/internal/auth"
	"github.com/2389/keygate/internal/password"
	"github.com/2389/keygate/internal/store"
	"github.com/2389/keygate/internal/token"
)

// minPasswordLength rejects trivially weak passwords at signup.
const minPasswordLength = 8

// TokenPair is the result of a successful login or refresh: a short-lived
// access token plus the refresh token that renews it.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // access token lifetime in seconds
}

// Service implements the account lifecycle: registration, credential login,
// and refresh-token rotation.
type Service struct {
	users  store.UserStore
	audit  store.AuditStore
	codec  *token.Codec
	logger *slog.Logger
}

// NewService creates an account Service.
func NewService(users store.UserStore, audit store.AuditStore, codec *token.Codec, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  users,
		audit:  audit,
		codec:  codec,
		logger: logger.With("component", "account"),
	}
}

// Register creates a new user account with a bcrypt-hashed password.
// Returns store.ErrDuplicateEmail if the email is already registered.
func (s *Service) Register(ctx context.Context, email, name, plaintext string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(plaintext) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", auth.ErrValidation, minPasswordLength)
	}

	hash, err := password.Hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &store.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         store.RoleUser,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", u.ID)
	s.auditLog(ctx, u.ID, store.AuditSignup, "user", u.ID)
	return u, nil
}

// Login verifies email/password credentials and issues a fresh token pair.
// An unknown email burns a dummy bcrypt comparison so response timing does
// not reveal which addresses have accounts. Both failure modes return the
// same error.
func (s *Service) Login(ctx context.Context, email, plaintext string) (*TokenPair, *store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			password.VerifyDummy(plaintext)
			return nil, nil, fmt.Errorf("%w: bad email or password", auth.ErrInvalidCredential)
		}
		return nil, nil, fmt.Errorf("%w: %v", auth.ErrBackendUnavailable, err)
	}

	if !password.Verify(plaintext, u.PasswordHash) {
		s.logger.Warn("failed login attempt", "user_id", u.ID)
		return nil, nil, fmt.Errorf("%w: bad email or password", auth.ErrInvalidCredential)
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return nil, nil, err
	}

	s.auditLog(ctx, u.ID, store.AuditLogin, "user", u.ID)
	return pair, u, nil
}

// Refresh exchanges a valid refresh token for a new token pair. Expired
// refresh tokens require a full re-login.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return nil, fmt.Errorf("%w: refresh token expired", auth.ErrExpired)
		default:
			return nil, fmt.Errorf("%w: invalid refresh token", auth.ErrInvalidCredential)
		}
	}

	// The subject must still resolve to a live account; a deleted user's
	// refresh token stops working immediately.
	u, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", auth.ErrInvalidCredential)
		}
		return nil, fmt.Errorf("%w: %v", auth.ErrBackendUnavailable, err)
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return nil, err
	}

	s.auditLog(ctx, u.ID, store.AuditRefresh, "user", u.ID)
	return pair, nil
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, userID string) (*store.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *Service) issuePair(u *store.User) (*TokenPair, error) {
	access, err := s.codec.IssueAccess(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}
	refresh, err := s.codec.IssueRefresh(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.codec.AccessTTL().Seconds()),
	}, nil
}

// auditLog appends an audit entry. Audit failures are logged but never fail
// the operation they describe.
func (s *Service) auditLog(ctx context.Context, actorID string, action store.AuditAction, targetType, targetID string) {
	err := s.audit.AppendAuditLog(ctx, &store.AuditEntry{
		ActorUserID: actorID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
	})
	if err != nil {
		s.logger.Warn("audit append failed", "action", action, "error", err)
	}
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", auth.ErrValidation)
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("%w: invalid email address", auth.ErrValidation)
	}
	return nil
}
