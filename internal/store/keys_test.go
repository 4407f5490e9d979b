// ABOUTME: Tests for API key store operations
// ABOUTME: Covers CRUD, fingerprint uniqueness, status updates, and nullable timestamps

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestUser inserts a user to own keys in tests.
func createTestUser(t *testing.T, s *SQLiteStore, email string) *User {
	t.Helper()
	u := &User{Email: email, Name: "Key Owner", PasswordHash: "h"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestKeyStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, store, "owner@example.com")

	expires := time.Now().UTC().Add(90 * 24 * time.Hour).Truncate(time.Second)
	k := &APIKey{
		UserID:       owner.ID,
		ServiceName:  "billing",
		Description:  "billing pipeline",
		Permissions:  []string{"read:data", "write:data"},
		EncryptedKey: "ZW5jcnlwdGVk",
		Fingerprint:  "fp-1234",
		ExpiresAt:    &expires,
	}

	require.NoError(t, store.CreateKey(ctx, k))
	assert.NotEmpty(t, k.ID)
	assert.Equal(t, KeyStatusActive, k.Status)

	byFP, err := store.GetKeyByFingerprint(ctx, "fp-1234")
	require.NoError(t, err)
	assert.Equal(t, k.ID, byFP.ID)
	assert.Equal(t, []string{"read:data", "write:data"}, byFP.Permissions)
	require.NotNil(t, byFP.ExpiresAt)
	assert.Equal(t, expires, *byFP.ExpiresAt)
	assert.Nil(t, byFP.LastUsedAt)

	byID, err := store.GetKeyByID(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, "billing", byID.ServiceName)
}

func TestKeyStore_DuplicateFingerprint(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, store, "owner@example.com")

	k1 := &APIKey{UserID: owner.ID, ServiceName: "a", Permissions: []string{"read:data"}, EncryptedKey: "e", Fingerprint: "same-fp"}
	require.NoError(t, store.CreateKey(ctx, k1))

	k2 := &APIKey{UserID: owner.ID, ServiceName: "b", Permissions: []string{"read:data"}, EncryptedKey: "e", Fingerprint: "same-fp"}
	err := store.CreateKey(ctx, k2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate fingerprint")
}

func TestKeyStore_ListForUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, store, "owner@example.com")
	other := createTestUser(t, store, "other@example.com")

	for i, fp := range []string{"fp-a", "fp-b"} {
		k := &APIKey{
			UserID:       owner.ID,
			ServiceName:  "svc",
			Permissions:  []string{"read:data"},
			EncryptedKey: "e",
			Fingerprint:  fp,
			CreatedAt:    time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.CreateKey(ctx, k))
	}
	require.NoError(t, store.CreateKey(ctx, &APIKey{
		UserID: other.ID, ServiceName: "svc", Permissions: []string{"read:data"},
		EncryptedKey: "e", Fingerprint: "fp-c",
	}))

	keys, err := store.ListKeysForUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "fp-b", keys[0].Fingerprint, "newest first")

	keys, err = store.ListKeysForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestKeyStore_UpdateStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, store, "owner@example.com")

	k := &APIKey{UserID: owner.ID, ServiceName: "svc", Permissions: []string{"read:data"}, EncryptedKey: "e", Fingerprint: "fp"}
	require.NoError(t, store.CreateKey(ctx, k))

	require.NoError(t, store.UpdateKeyStatus(ctx, k.ID, KeyStatusRevoked))

	got, err := store.GetKeyByID(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, KeyStatusRevoked, got.Status)

	// Re-applying the same status is a clean atomic update.
	require.NoError(t, store.UpdateKeyStatus(ctx, k.ID, KeyStatusRevoked))

	err = store.UpdateKeyStatus(ctx, "no-such-key", KeyStatusRevoked)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeyStore_UpdateExpiration(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, store, "owner@example.com")

	k := &APIKey{UserID: owner.ID, ServiceName: "svc", Permissions: []string{"read:data"}, EncryptedKey: "e", Fingerprint: "fp"}
	require.NoError(t, store.CreateKey(ctx, k))

	newExpiry := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	require.NoError(t, store.UpdateKeyExpiration(ctx, k.ID, newExpiry))

	got, err := store.GetKeyByID(ctx, k.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, newExpiry, *got.ExpiresAt)
	assert.Equal(t, "fp", got.Fingerprint, "key material never changes on renewal")

	err = store.UpdateKeyExpiration(ctx, "no-such-key", newExpiry)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeyStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, store, "owner@example.com")

	k := &APIKey{UserID: owner.ID, ServiceName: "svc", Permissions: []string{"read:data"}, EncryptedKey: "e", Fingerprint: "fp"}
	require.NoError(t, store.CreateKey(ctx, k))

	require.NoError(t, store.DeleteKey(ctx, k.ID))

	_, err := store.GetKeyByID(ctx, k.ID)
	require.ErrorIs(t, err, ErrKeyNotFound)

	err = store.DeleteKey(ctx, k.ID)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeyStore_TouchLastUsed(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, store, "owner@example.com")

	k := &APIKey{UserID: owner.ID, ServiceName: "svc", Permissions: []string{"read:data"}, EncryptedKey: "e", Fingerprint: "fp"}
	require.NoError(t, store.CreateKey(ctx, k))

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.TouchKeyLastUsed(ctx, k.ID, at))

	got, err := store.GetKeyByID(ctx, k.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)
	assert.Equal(t, at, *got.LastUsedAt)

	// Touching a missing key is best-effort, not an error.
	require.NoError(t, store.TouchKeyLastUsed(ctx, "no-such-key", at))
}

func TestAPIKey_Expired(t *testing.T) {
	now := time.Now()

	perpetual := &APIKey{}
	assert.False(t, perpetual.Expired(now))

	past := now.Add(-time.Hour)
	expired := &APIKey{ExpiresAt: &past}
	assert.True(t, expired.Expired(now))

	future := now.Add(time.Hour)
	live := &APIKey{ExpiresAt: &future}
	assert.False(t, live.Expired(now))
}
