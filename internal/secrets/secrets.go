// ABOUTME: Process-wide secret material for token signing and key encryption
// ABOUTME: Constructed once at startup and injected, never a hidden singleton

package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// MinSecretLength is the minimum acceptable length in bytes for either secret.
const MinSecretLength = 32

// ErrSecretTooShort is returned when a configured secret is below MinSecretLength.
var ErrSecretTooShort = errors.New("secret too short")

// Secrets holds the symmetric key material used across the gateway:
// Signing for HS256 JWTs and API key fingerprints, Encryption for
// AES-256-GCM encryption of API keys at rest.
type Secrets struct {
	Signing    []byte
	Encryption [32]byte
}

// New validates the configured secret strings and derives the fixed-size
// encryption key. The encryption string is hashed with SHA-256 so that any
// sufficiently long passphrase yields a valid AES-256 key.
func New(signing, encryption string) (*Secrets, error) {
	if len(signing) < MinSecretLength {
		return nil, fmt.Errorf("%w: signing secret must be at least %d bytes, got %d",
			ErrSecretTooShort, MinSecretLength, len(signing))
	}
	if len(encryption) < MinSecretLength {
		return nil, fmt.Errorf("%w: encryption secret must be at least %d bytes, got %d",
			ErrSecretTooShort, MinSecretLength, len(encryption))
	}

	s := &Secrets{Signing: []byte(signing)}
	s.Encryption = sha256.Sum256([]byte(encryption))
	return s, nil
}

// Generate returns a fresh random secret string suitable for either slot.
// Used by the admin CLI to bootstrap configuration.
func Generate() (string, error) {
	buf := make([]byte, MinSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
