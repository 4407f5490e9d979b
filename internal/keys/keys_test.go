// ABOUTME: Tests for the API key lifecycle manager
// ABOUTME: Covers creation defaults, ownership enforcement, and state rules

package keys

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/keygate/internal/apikey"
	"github.com/2389/keygate/internal/auth"
	"github.com/2389/keygate/internal/secrets"
	"github.com/2389/keygate/internal/store"
)

type managerFixture struct {
	manager *Manager
	engine  *apikey.Engine
	store   *store.SQLiteStore
	owner   *store.User
	other   *store.User
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	sec, err := secrets.New(strings.Repeat("s", 32), strings.Repeat("e", 32))
	require.NoError(t, err)

	engine := apikey.NewEngine("", sec, s, nil)

	owner := &store.User{Email: "owner@example.com", Name: "Owner", PasswordHash: "h"}
	require.NoError(t, s.CreateUser(context.Background(), owner))
	other := &store.User{Email: "other@example.com", Name: "Other", PasswordHash: "h"}
	require.NoError(t, s.CreateUser(context.Background(), other))

	return &managerFixture{
		manager: NewManager(s, s, engine, 0, nil),
		engine:  engine,
		store:   s,
		owner:   owner,
		other:   other,
	}
}

func validRequest() CreateRequest {
	return CreateRequest{
		ServiceName: "reporting",
		Description: "nightly report job",
		Permissions: []string{"read:data"},
	}
}

func TestCreate(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.Create(context.Background(), f.owner.ID, validRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(created.RawKey, apikey.DefaultPrefix))
	assert.NotEmpty(t, created.Key.ID)
	assert.Equal(t, store.KeyStatusActive, created.Key.Status)
	require.NotNil(t, created.Key.ExpiresAt)

	// Default lifetime is 90 days.
	wantExpiry := time.Now().UTC().AddDate(0, 0, DefaultExpiryDays)
	assert.WithinDuration(t, wantExpiry, *created.Key.ExpiresAt, time.Minute)

	// The stored record never contains the raw key.
	assert.NotContains(t, created.Key.EncryptedKey, created.RawKey)
	assert.NotEqual(t, created.RawKey, created.Key.Fingerprint)
}

func TestCreate_ExplicitExpiry(t *testing.T) {
	f := newManagerFixture(t)

	req := validRequest()
	req.ExpiresInDays = 7
	created, err := f.manager.Create(context.Background(), f.owner.ID, req)
	require.NoError(t, err)

	wantExpiry := time.Now().UTC().AddDate(0, 0, 7)
	assert.WithinDuration(t, wantExpiry, *created.Key.ExpiresAt, time.Minute)
}

func TestCreate_Validation(t *testing.T) {
	f := newManagerFixture(t)

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"empty service name", func(r *CreateRequest) { r.ServiceName = "  " }},
		{"no permissions", func(r *CreateRequest) { r.Permissions = nil }},
		{"blank permission", func(r *CreateRequest) { r.Permissions = []string{"read:data", " "} }},
		{"negative expiry", func(r *CreateRequest) { r.ExpiresInDays = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := f.manager.Create(context.Background(), f.owner.ID, req)
			require.ErrorIs(t, err, auth.ErrValidation)
		})
	}
}

func TestList_Masked(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.Create(context.Background(), f.owner.ID, validRequest())
	require.NoError(t, err)

	listed, err := f.manager.List(context.Background(), f.owner.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	assert.Equal(t, created.Key.ID, listed[0].Key.ID)
	assert.True(t, strings.HasPrefix(listed[0].MaskedKey, apikey.DefaultPrefix))
	assert.Contains(t, listed[0].MaskedKey, "****")
	assert.NotEqual(t, created.RawKey, listed[0].MaskedKey)

	// Another user's listing is empty, not forbidden.
	empty, err := f.manager.List(context.Background(), f.other.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRevoke_Idempotent(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.Create(context.Background(), f.owner.ID, validRequest())
	require.NoError(t, err)

	require.NoError(t, f.manager.Revoke(context.Background(), f.owner.ID, created.Key.ID))
	require.NoError(t, f.manager.Revoke(context.Background(), f.owner.ID, created.Key.ID),
		"revoking an already-revoked key succeeds")

	k, err := f.store.GetKeyByID(context.Background(), created.Key.ID)
	require.NoError(t, err)
	assert.Equal(t, store.KeyStatusRevoked, k.Status)
}

func TestRevoke_CrossUser(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.Create(context.Background(), f.owner.ID, validRequest())
	require.NoError(t, err)

	err = f.manager.Revoke(context.Background(), f.other.ID, created.Key.ID)
	require.ErrorIs(t, err, auth.ErrForbidden)

	k, err := f.store.GetKeyByID(context.Background(), created.Key.ID)
	require.NoError(t, err)
	assert.Equal(t, store.KeyStatusActive, k.Status, "cross-user revoke must not change the key")
}

func TestRevoke_NotFound(t *testing.T) {
	f := newManagerFixture(t)

	err := f.manager.Revoke(context.Background(), f.owner.ID, "no-such-key")
	require.ErrorIs(t, err, store.ErrKeyNotFound)
}

func TestRenew(t *testing.T) {
	f := newManagerFixture(t)

	req := validRequest()
	req.ExpiresInDays = 1
	created, err := f.manager.Create(context.Background(), f.owner.ID, req)
	require.NoError(t, err)

	renewed, err := f.manager.Renew(context.Background(), f.owner.ID, created.Key.ID, 30)
	require.NoError(t, err)

	wantExpiry := time.Now().UTC().AddDate(0, 0, 30)
	assert.WithinDuration(t, wantExpiry, *renewed.ExpiresAt, time.Minute)
}

func TestRenew_RevokedKey(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.Create(context.Background(), f.owner.ID, validRequest())
	require.NoError(t, err)
	require.NoError(t, f.manager.Revoke(context.Background(), f.owner.ID, created.Key.ID))

	_, err = f.manager.Renew(context.Background(), f.owner.ID, created.Key.ID, 30)
	require.ErrorIs(t, err, auth.ErrInvalidState)
}

func TestRenew_CrossUser(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.Create(context.Background(), f.owner.ID, validRequest())
	require.NoError(t, err)

	_, err = f.manager.Renew(context.Background(), f.other.ID, created.Key.ID, 30)
	require.ErrorIs(t, err, auth.ErrForbidden)
}

func TestDelete(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.Create(context.Background(), f.owner.ID, validRequest())
	require.NoError(t, err)

	require.NoError(t, f.manager.Delete(context.Background(), f.owner.ID, created.Key.ID))

	_, err = f.store.GetKeyByID(context.Background(), created.Key.ID)
	require.ErrorIs(t, err, store.ErrKeyNotFound)
}

func TestDelete_RevokedKey(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.Create(context.Background(), f.owner.ID, validRequest())
	require.NoError(t, err)
	require.NoError(t, f.manager.Revoke(context.Background(), f.owner.ID, created.Key.ID))

	require.NoError(t, f.manager.Delete(context.Background(), f.owner.ID, created.Key.ID),
		"revoked keys can still be deleted")
}

func TestDelete_CrossUser(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.Create(context.Background(), f.owner.ID, validRequest())
	require.NoError(t, err)

	err = f.manager.Delete(context.Background(), f.other.ID, created.Key.ID)
	require.ErrorIs(t, err, auth.ErrForbidden)
}

func TestMutations_Audited(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.Create(context.Background(), f.owner.ID, validRequest())
	require.NoError(t, err)
	_, err = f.manager.Renew(context.Background(), f.owner.ID, created.Key.ID, 30)
	require.NoError(t, err)
	require.NoError(t, f.manager.Revoke(context.Background(), f.owner.ID, created.Key.ID))
	require.NoError(t, f.manager.Delete(context.Background(), f.owner.ID, created.Key.ID))

	entries, err := f.store.ListAuditLog(context.Background(), store.AuditFilter{ActorUserID: &f.owner.ID})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	seen := make(map[store.AuditAction]bool)
	for _, e := range entries {
		seen[e.Action] = true
		assert.Equal(t, created.Key.ID, e.TargetID)
		assert.Equal(t, "api_key", e.TargetType)
	}
	assert.True(t, seen[store.AuditCreateKey])
	assert.True(t, seen[store.AuditRenewKey])
	assert.True(t, seen[store.AuditRevokeKey])
	assert.True(t, seen[store.AuditDeleteKey])
}
