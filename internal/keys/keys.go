// ABOUTME: API key lifecycle management: create, list, revoke, renew, delete
// ABOUTME: Enforces ownership, validates requests, and audits every mutation

package keys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/keygate/internal/apikey"
	"github.com/2389/keygate/internal/auth"
	"github.com/2389/keygate/internal/store"
)

// DefaultExpiryDays is the key lifetime applied when a create request does
// not specify one.
const DefaultExpiryDays = 90

// CreateRequest describes a new API key.
type CreateRequest struct {
	ServiceName   string   `json:"service_name"`
	Description   string   `json:"description"`
	Permissions   []string `json:"permissions"`
	ExpiresInDays int      `json:"expires_in_days"` // 0 means use the configured default
}

// CreatedKey pairs the stored record with the raw key material. The raw key
// is shown exactly once; it is never recoverable afterward.
type CreatedKey struct {
	Key    *store.APIKey
	RawKey string
}

// MaskedKey is an API key as presented in listings: metadata plus a masked
// rendering of the key material.
type MaskedKey struct {
	Key       *store.APIKey
	MaskedKey string
}

// Manager implements the API key lifecycle over the key store and the
// cryptographic engine.
type Manager struct {
	keys       store.KeyStore
	audit      store.AuditStore
	engine     *apikey.Engine
	expiryDays int
	logger     *slog.Logger
}

// NewManager creates a Manager. A non-positive defaultExpiryDays falls back
// to DefaultExpiryDays.
func NewManager(keys store.KeyStore, audit store.AuditStore, engine *apikey.Engine, defaultExpiryDays int, logger *slog.Logger) *Manager {
	if defaultExpiryDays <= 0 {
		defaultExpiryDays = DefaultExpiryDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		keys:       keys,
		audit:      audit,
		engine:     engine,
		expiryDays: defaultExpiryDays,
		logger:     logger.With("component", "keys"),
	}
}

// Create generates a new API key owned by ownerID. The returned CreatedKey
// carries the raw key; this is the only time it is available.
func (m *Manager) Create(ctx context.Context, ownerID string, req CreateRequest) (*CreatedKey, error) {
	serviceName := strings.TrimSpace(req.ServiceName)
	if serviceName == "" {
		return nil, fmt.Errorf("%w: service_name is required", auth.ErrValidation)
	}
	if len(req.Permissions) == 0 {
		return nil, fmt.Errorf("%w: at least one permission is required", auth.ErrValidation)
	}
	for _, p := range req.Permissions {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: permissions must be non-empty strings", auth.ErrValidation)
		}
	}
	if req.ExpiresInDays < 0 {
		return nil, fmt.Errorf("%w: expires_in_days must be positive", auth.ErrValidation)
	}

	days := req.ExpiresInDays
	if days == 0 {
		days = m.expiryDays
	}

	raw, fingerprint, encrypted, err := m.engine.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating key material: %w", err)
	}

	expiresAt := time.Now().UTC().AddDate(0, 0, days)
	k := &store.APIKey{
		UserID:       ownerID,
		ServiceName:  serviceName,
		Description:  strings.TrimSpace(req.Description),
		Permissions:  req.Permissions,
		EncryptedKey: encrypted,
		Fingerprint:  fingerprint,
		ExpiresAt:    &expiresAt,
	}
	if err := m.keys.CreateKey(ctx, k); err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrBackendUnavailable, err)
	}

	m.logger.Info("api key created", "key_id", k.ID, "service", serviceName, "owner", ownerID)
	m.auditLog(ctx, ownerID, store.AuditCreateKey, k.ID, map[string]any{"service_name": serviceName})
	return &CreatedKey{Key: k, RawKey: raw}, nil
}

// List returns the owner's keys, newest first, with masked key material.
func (m *Manager) List(ctx context.Context, ownerID string) ([]MaskedKey, error) {
	records, err := m.keys.ListKeysForUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrBackendUnavailable, err)
	}

	masked := make([]MaskedKey, 0, len(records))
	for _, k := range records {
		masked = append(masked, MaskedKey{Key: k, MaskedKey: m.engine.Mask(k.EncryptedKey)})
	}
	return masked, nil
}

// Revoke disables a key. Revoking an already-revoked key succeeds without
// change, so retried revocations are safe.
func (m *Manager) Revoke(ctx context.Context, ownerID, keyID string) error {
	k, err := m.ownedKey(ctx, ownerID, keyID)
	if err != nil {
		return err
	}

	if k.Status == store.KeyStatusRevoked {
		return nil
	}

	if err := m.keys.UpdateKeyStatus(ctx, keyID, store.KeyStatusRevoked); err != nil {
		return fmt.Errorf("%w: %v", auth.ErrBackendUnavailable, err)
	}

	m.logger.Info("api key revoked", "key_id", keyID, "owner", ownerID)
	m.auditLog(ctx, ownerID, store.AuditRevokeKey, keyID, nil)
	return nil
}

// Renew extends an active key's expiration to now plus the given number of
// days (the configured default when days is zero). A revoked key cannot be
// renewed; it must be replaced.
func (m *Manager) Renew(ctx context.Context, ownerID, keyID string, days int) (*store.APIKey, error) {
	if days < 0 {
		return nil, fmt.Errorf("%w: days must be positive", auth.ErrValidation)
	}
	if days == 0 {
		days = m.expiryDays
	}

	k, err := m.ownedKey(ctx, ownerID, keyID)
	if err != nil {
		return nil, err
	}

	if k.Status == store.KeyStatusRevoked {
		return nil, fmt.Errorf("%w: cannot renew a revoked key", auth.ErrInvalidState)
	}

	expiresAt := time.Now().UTC().AddDate(0, 0, days)
	if err := m.keys.UpdateKeyExpiration(ctx, keyID, expiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrBackendUnavailable, err)
	}
	k.ExpiresAt = &expiresAt

	m.logger.Info("api key renewed", "key_id", keyID, "owner", ownerID, "days", days)
	m.auditLog(ctx, ownerID, store.AuditRenewKey, keyID, map[string]any{"days": days})
	return k, nil
}

// Delete removes a key permanently, whatever its status. Its fingerprint
// stops matching immediately.
func (m *Manager) Delete(ctx context.Context, ownerID, keyID string) error {
	if _, err := m.ownedKey(ctx, ownerID, keyID); err != nil {
		return err
	}

	if err := m.keys.DeleteKey(ctx, keyID); err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", auth.ErrBackendUnavailable, err)
	}

	m.logger.Info("api key deleted", "key_id", keyID, "owner", ownerID)
	m.auditLog(ctx, ownerID, store.AuditDeleteKey, keyID, nil)
	return nil
}

// ownedKey loads a key and verifies the caller owns it. A key that exists
// but belongs to someone else is ErrForbidden, not ErrKeyNotFound; the
// resource's existence is not hidden from authenticated users, matching the
// audit model.
func (m *Manager) ownedKey(ctx context.Context, ownerID, keyID string) (*store.APIKey, error) {
	k, err := m.keys.GetKeyByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", auth.ErrBackendUnavailable, err)
	}
	if k.UserID != ownerID {
		return nil, fmt.Errorf("%w: key belongs to another user", auth.ErrForbidden)
	}
	return k, nil
}

func (m *Manager) auditLog(ctx context.Context, actorID string, action store.AuditAction, keyID string, detail map[string]any) {
	_ = m.audit.AppendAuditLog(ctx, &store.AuditEntry{
		ActorUserID: actorID,
		Action:      action,
		TargetType:  "api_key",
		TargetID:    keyID,
		Detail:      detail,
	})
}
