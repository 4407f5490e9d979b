// ABOUTME: API key generation, fingerprinting, encryption, and verification
// ABOUTME: Keys are verified via an indexed fingerprint lookup, never decrypt-and-compare

package apikey

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/keygate/internal/secrets"
	"github.com/2389/keygate/internal/store"
)

// DefaultPrefix marks keygate API keys so the verifier can route bearer
// strings without attempting a JWT parse first.
const DefaultPrefix = "kg_live_"

// Number of random bytes per key suffix (256 bits of entropy).
const suffixBytes = 32

// touchTimeout bounds the background last-used update.
const touchTimeout = 5 * time.Second

// Verification errors, in rejection priority order.
var (
	ErrKeyNotFound = errors.New("api key not found")
	ErrKeyRevoked  = errors.New("api key revoked")
	ErrKeyExpired  = errors.New("api key expired")
)

// Engine generates and verifies opaque API keys. The raw key exists in
// plaintext only at generation and presentation time; storage holds a keyed
// fingerprint for lookup plus an authenticated-encryption blob for masked
// display.
type Engine struct {
	prefix  string
	secrets *secrets.Secrets
	keys    store.KeyStore
	logger  *slog.Logger
}

// NewEngine creates an Engine. An empty prefix falls back to DefaultPrefix.
func NewEngine(prefix string, sec *secrets.Secrets, keys store.KeyStore, logger *slog.Logger) *Engine {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		prefix:  prefix,
		secrets: sec,
		keys:    keys,
		logger:  logger.With("component", "apikey"),
	}
}

// Prefix returns the configured key prefix.
func (e *Engine) Prefix() string {
	return e.prefix
}

// Generate creates a fresh raw key together with its lookup fingerprint and
// the encrypted form for storage. The raw key is returned to the caller
// exactly once and is never persisted in recoverable plaintext.
func (e *Engine) Generate() (raw, fingerprint, encrypted string, err error) {
	suffix := make([]byte, suffixBytes)
	if _, err := rand.Read(suffix); err != nil {
		return "", "", "", fmt.Errorf("generating key material: %w", err)
	}

	raw = e.prefix + base64.RawURLEncoding.EncodeToString(suffix)
	fingerprint = e.Fingerprint(raw)

	encrypted, err = e.encrypt(raw)
	if err != nil {
		return "", "", "", err
	}

	return raw, fingerprint, encrypted, nil
}

// Fingerprint derives the deterministic lookup value for a raw key. The
// derivation is keyed (HMAC-SHA256 under the signing secret) so fingerprints
// cannot be computed from a leaked database alone.
func (e *Engine) Fingerprint(raw string) string {
	mac := hmac.New(sha256.New, e.secrets.Signing)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented key against the store. Rejections are reported
// in priority order: unknown fingerprint, revoked, expired. On success the
// last-used timestamp is updated in the background; that update never delays
// or fails the verification outcome.
func (e *Engine) Verify(ctx context.Context, presented string) (*store.APIKey, error) {
	fingerprint := e.Fingerprint(presented)

	key, err := e.keys.GetKeyByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("looking up api key: %w", err)
	}

	if key.Status == store.KeyStatusRevoked {
		return nil, ErrKeyRevoked
	}
	if key.Expired(time.Now()) {
		return nil, ErrKeyExpired
	}

	go e.touchLastUsed(key.ID)

	return key, nil
}

// Mask returns a display form of a stored key: the prefix and last four
// characters, everything else redacted. The full value is never shown after
// creation.
func (e *Engine) Mask(encrypted string) string {
	raw, err := e.decrypt(encrypted)
	if err != nil || len(raw) <= len(e.prefix)+4 {
		return e.prefix + "****"
	}
	return e.prefix + "****" + raw[len(raw)-4:]
}

// touchLastUsed runs detached from the request context so a slow store
// cannot block the verification path.
func (e *Engine) touchLastUsed(keyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
	defer cancel()

	if err := e.keys.TouchKeyLastUsed(ctx, keyID, time.Now().UTC()); err != nil {
		e.logger.Debug("failed to update key last_used", "key_id", keyID, "error", err)
	}
}

// encrypt seals the raw key with AES-256-GCM under the encryption secret.
// The nonce is prepended to the ciphertext before base64 encoding.
func (e *Engine) encrypt(raw string) (string, error) {
	block, err := aes.NewCipher(e.secrets.Encryption[:])
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating gcm: %w", err)
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := aesgcm.Seal(nonce, nonce, []byte(raw), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// decrypt reverses encrypt. Used only for masked display, never on the
// verification path.
func (e *Engine) decrypt(encrypted string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("decoding encrypted key: %w", err)
	}

	block, err := aes.NewCipher(e.secrets.Encryption[:])
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating gcm: %w", err)
	}

	if len(sealed) < aesgcm.NonceSize() {
		return "", fmt.Errorf("encrypted key too short")
	}

	nonce, ciphertext := sealed[:aesgcm.NonceSize()], sealed[aesgcm.NonceSize():]
	raw, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting key: %w", err)
	}

	return string(raw), nil
}
