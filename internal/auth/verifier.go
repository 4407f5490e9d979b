// ABOUTME: Unified credential verification for JWT and API key bearer strings
// ABOUTME: Dispatches by key prefix, then JWT-first with malformed-only fallback

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/keygate/internal/apikey"
	"github.com/2389/keygate/internal/store"
	"github.com/2389/keygate/internal/token"
)

// TokenVerifier is the subset of the token codec the verifier needs.
type TokenVerifier interface {
	Verify(tokenString, wantKind string) (*token.Claims, error)
}

// KeyVerifier is the subset of the API key engine the verifier needs.
type KeyVerifier interface {
	Verify(ctx context.Context, presented string) (*store.APIKey, error)
	Prefix() string
}

// Verifier is the single decision point for bearer credentials. Given an
// opaque bearer string it determines the scheme, verifies it, and returns a
// uniform Principal or a taxonomy error.
type Verifier struct {
	tokens TokenVerifier
	keys   KeyVerifier
	logger *slog.Logger
}

// NewVerifier creates a Verifier over the two credential schemes.
func NewVerifier(tokens TokenVerifier, keys KeyVerifier, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		tokens: tokens,
		keys:   keys,
		logger: logger.With("component", "auth"),
	}
}

// Authenticate verifies a bearer string against both credential schemes.
//
// Dispatch: a bearer carrying the configured API key prefix goes straight to
// the key engine, skipping a pointless JWT signature check. Everything else
// is tried as a JWT first; only a malformed token falls through to the key
// path. Expired or badly signed JWTs surface their specific reason rather
// than being masked by a key lookup that cannot succeed.
func (v *Verifier) Authenticate(ctx context.Context, bearer string) (*Principal, error) {
	if bearer == "" {
		return nil, ErrUnauthenticated
	}

	if strings.HasPrefix(bearer, v.keys.Prefix()) {
		return v.authenticateKey(ctx, bearer)
	}

	claims, err := v.tokens.Verify(bearer, token.KindAccess)
	if err == nil {
		return &Principal{
			Kind:   PrincipalUser,
			UserID: claims.Subject,
			Email:  claims.Email,
			Role:   claims.Role,
		}, nil
	}

	switch {
	case errors.Is(err, token.ErrMalformed):
		// Not JWT-shaped at all; likely an API key without the standard prefix.
		return v.authenticateKey(ctx, bearer)
	case errors.Is(err, token.ErrExpired):
		return nil, ErrExpired
	case errors.Is(err, token.ErrWrongKind):
		v.logger.Warn("refresh token presented as access credential")
		return nil, fmt.Errorf("%w: wrong token kind", ErrInvalidCredential)
	default:
		return nil, fmt.Errorf("%w: bad token signature", ErrInvalidCredential)
	}
}

func (v *Verifier) authenticateKey(ctx context.Context, presented string) (*Principal, error) {
	key, err := v.keys.Verify(ctx, presented)
	if err != nil {
		return nil, v.mapKeyError(err)
	}

	return &Principal{
		Kind:        PrincipalService,
		ServiceName: key.ServiceName,
		KeyID:       key.ID,
		UserID:      key.UserID,
		Permissions: key.Permissions,
	}, nil
}

// mapKeyError translates engine rejections into the taxonomy. Store faults
// become ErrBackendUnavailable, never a credential error.
func (v *Verifier) mapKeyError(err error) error {
	switch {
	case errors.Is(err, apikey.ErrKeyNotFound):
		return fmt.Errorf("%w: unknown api key", ErrInvalidCredential)
	case errors.Is(err, apikey.ErrKeyRevoked):
		return ErrRevoked
	case errors.Is(err, apikey.ErrKeyExpired):
		return ErrExpired
	default:
		v.logger.Error("api key lookup failed", "error", err)
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}
