// ABOUTME: End-to-end scenario tests spanning signup, key lifecycle, and revocation
// ABOUTME: Each scenario walks the API the way a real integration would

package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/keygate/internal/keys"
)

// A service key is created, used to authenticate, revoked, and finally
// deleted. Once revoked the key stops working immediately, cannot be
// renewed, and can still be removed.
func TestScenario_KeyLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	access := f.signupAndLogin(t, "ops@example.com")

	rec := f.do(t, http.MethodPost, "/keys", access, keys.CreateRequest{
		ServiceName: "ci-pipeline",
		Description: "deploy automation",
		Permissions: []string{"read:data", "write:data"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[keyResponse](t, rec)
	rawKey := created.Key
	require.NotEmpty(t, rawKey)

	// The key authenticates as a service principal.
	rec = f.do(t, http.MethodGet, "/auth/me", rawKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[meResponse](t, rec)
	assert.Equal(t, "service", me.Kind)
	assert.Equal(t, "ci-pipeline", me.ServiceName)

	// Revoke it; it stops authenticating on the next request.
	rec = f.do(t, http.MethodPost, "/keys/"+created.ID+"/revoke", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/auth/me", rawKey, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "credential revoked")

	// A second revoke is a no-op success; renewal is refused.
	rec = f.do(t, http.MethodPost, "/keys/"+created.ID+"/revoke", access, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/keys/"+created.ID+"/renew", access, renewRequest{Days: 30})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Deletion removes the record entirely.
	rec = f.do(t, http.MethodDelete, "/keys/"+created.ID, access, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/auth/me", rawKey, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials",
		"a deleted key is indistinguishable from one that never existed")
}

// A user's session tokens and a fresh login both work; after the refresh
// flow the new access token is accepted.
func TestScenario_SessionRefresh(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/signup", "", signupRequest{
		Email: "dev@example.com", Name: "Dev", Password: "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login", "", loginRequest{
		Email: "dev@example.com", Password: "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	pair := decodeBody[struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}](t, rec)

	rec = f.do(t, http.MethodGet, "/auth/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The refresh token itself never works as an access credential.
	rec = f.do(t, http.MethodGet, "/auth/me", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	renewed := decodeBody[struct {
		AccessToken string `json:"access_token"`
	}](t, rec)

	rec = f.do(t, http.MethodGet, "/auth/me", renewed.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// Two users cannot see or manage each other's keys.
func TestScenario_TenantIsolation(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.signupAndLogin(t, "alice@example.com")
	bob := f.signupAndLogin(t, "bob@example.com")

	rec := f.do(t, http.MethodPost, "/keys", alice, keys.CreateRequest{
		ServiceName: "alice-svc",
		Permissions: []string{"read:data"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	aliceKey := decodeBody[keyResponse](t, rec)

	// Bob's listing is empty.
	rec = f.do(t, http.MethodGet, "/keys", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeBody[map[string][]keyResponse](t, rec)
	assert.Empty(t, listing["keys"])

	// Bob cannot touch Alice's key in any way.
	for _, attempt := range []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/keys/" + aliceKey.ID + "/revoke", nil},
		{http.MethodPost, "/keys/" + aliceKey.ID + "/renew", renewRequest{Days: 30}},
		{http.MethodDelete, "/keys/" + aliceKey.ID, nil},
	} {
		rec = f.do(t, attempt.method, attempt.path, bob, attempt.body)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", attempt.method, attempt.path)
	}

	// Alice's key is untouched.
	rec = f.do(t, http.MethodGet, "/keys", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing = decodeBody[map[string][]keyResponse](t, rec)
	require.Len(t, listing["keys"], 1)
	assert.Equal(t, "active", listing["keys"][0].Status)
}
