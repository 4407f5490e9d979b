// ABOUTME: JWT issuing and verification for user sessions
// ABOUTME: HS256-signed access and refresh tokens with kind enforcement

package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the "type" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Default token lifetimes, overridable via config.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Token errors
var (
	ErrMalformed        = errors.New("malformed token")
	ErrSignatureInvalid = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrWrongKind        = errors.New("wrong token kind")
)

// Claims are the verified contents of a keygate JWT. Access tokens carry the
// user's email and role for downstream display; refresh tokens carry only
// the subject.
type Claims struct {
	jwt.RegisteredClaims
	Kind  string `json:"type"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Codec issues and verifies signed tokens using the process signing secret.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec creates a Codec. Zero TTLs fall back to the package defaults.
func NewCodec(secret []byte, accessTTL, refreshTTL time.Duration) *Codec {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Codec{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// AccessTTL reports the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// IssueAccess mints a short-lived access token for the given user.
func (c *Codec) IssueAccess(userID, email, role string) (string, error) {
	return c.issue(&Claims{
		RegisteredClaims: c.registered(userID, c.accessTTL),
		Kind:             KindAccess,
		Email:            email,
		Role:             role,
	})
}

// IssueRefresh mints a long-lived refresh token. Refresh tokens are only
// accepted by the refresh flow; they never grant API access directly.
func (c *Codec) IssueRefresh(userID string) (string, error) {
	return c.issue(&Claims{
		RegisteredClaims: c.registered(userID, c.refreshTTL),
		Kind:             KindRefresh,
	})
}

// Verify validates the token string and checks it is of the wanted kind.
// A refresh token presented where an access token is required (or vice
// versa) fails with ErrWrongKind even when otherwise valid.
func (c *Codec) Verify(tokenString, wantKind string) (*Claims, error) {
	claims := &Claims{}

	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignatureInvalid
		default:
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
	}
	if !tok.Valid {
		return nil, ErrSignatureInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMalformed)
	}
	if claims.Kind != wantKind {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongKind, claims.Kind, wantKind)
	}

	return claims, nil
}

func (c *Codec) issue(claims *Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.secret)
}

func (c *Codec) registered(userID string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}
