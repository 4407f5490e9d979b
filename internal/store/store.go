// ABOUTME: Store interfaces and data types for keygate persistence
// ABOUTME: Defines User, APIKey structs and the per-concern store interfaces

package store

import (
	"context"
	"errors"
	"time"
)

// Store errors
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrKeyNotFound    = errors.New("api key not found")
)

// UserRole constants for the role tag on users.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a human account that can sign in and own API keys.
// Users are created on signup and never physically deleted.
type User struct {
	ID           string
	Email        string // unique
	Name         string
	PasswordHash string // bcrypt digest, never exposed
	Role         string // "user" or "admin"
	CreatedAt    time.Time
}

// KeyStatus is the lifecycle state of an API key.
type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "active"
	KeyStatusRevoked KeyStatus = "revoked"
)

// APIKey represents a stored service credential. The raw key material is
// never stored; Fingerprint is a keyed one-way derivation used for lookup
// and EncryptedKey is an authenticated encryption of the raw key kept only
// so owners can be shown a masked version after creation.
type APIKey struct {
	ID           string
	UserID       string // owning user
	ServiceName  string
	Description  string
	Permissions  []string
	EncryptedKey string
	Fingerprint  string // unique
	Status       KeyStatus
	CreatedAt    time.Time
	ExpiresAt    *time.Time // nil = never expires
	LastUsedAt   *time.Time
}

// Expired reports whether the key has an expiration in the past.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// UserStore defines persistence operations for users.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	UpdateUserRole(ctx context.Context, id, role string) error
}

// KeyStore defines persistence operations for API keys. All lookups are
// backed by unique or secondary indexes; there are no linear scans.
type KeyStore interface {
	CreateKey(ctx context.Context, k *APIKey) error
	GetKeyByFingerprint(ctx context.Context, fingerprint string) (*APIKey, error)
	GetKeyByID(ctx context.Context, id string) (*APIKey, error)
	ListKeysForUser(ctx context.Context, userID string) ([]*APIKey, error)
	UpdateKeyStatus(ctx context.Context, id string, status KeyStatus) error
	UpdateKeyExpiration(ctx context.Context, id string, expiresAt time.Time) error
	DeleteKey(ctx context.Context, id string) error
	TouchKeyLastUsed(ctx context.Context, id string, at time.Time) error
}
