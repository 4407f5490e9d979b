// ABOUTME: Tests for the HTTP auth middleware and route guards
// ABOUTME: Exercises header extraction, status mapping, and permission gating

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/keygate/internal/store"
)

// okHandler records the principal the middleware attached.
func okHandler(captured **Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, handler http.Handler, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_ValidToken(t *testing.T) {
	f := newVerifierFixture(t)

	tok, err := f.codec.IssueAccess(f.owner.ID, f.owner.Email, "user")
	require.NoError(t, err)

	var seen *Principal
	handler := Middleware(f.verifier, nil)(okHandler(&seen))

	rec := doRequest(t, handler, "Bearer "+tok)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, f.owner.ID, seen.UserID)
}

func TestMiddleware_MissingHeader(t *testing.T) {
	f := newVerifierFixture(t)

	var seen *Principal
	handler := Middleware(f.verifier, nil)(okHandler(&seen))

	rec := doRequest(t, handler, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestMiddleware_WrongScheme(t *testing.T) {
	f := newVerifierFixture(t)

	handler := Middleware(f.verifier, nil)(okHandler(new(*Principal)))
	rec := doRequest(t, handler, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_ExpiredCredential_Message(t *testing.T) {
	f := newVerifierFixture(t)

	past := time.Now().UTC().Add(-time.Minute)
	raw, _ := f.issueKey(t, []string{"read:data"}, &past)

	handler := Middleware(f.verifier, nil)(okHandler(new(*Principal)))
	rec := doRequest(t, handler, "Bearer "+raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "credential expired")
	assert.NotContains(t, rec.Body.String(), raw, "response must never echo credential material")
}

func TestMiddleware_RevokedCredential_Message(t *testing.T) {
	f := newVerifierFixture(t)
	raw, created := f.issueKey(t, []string{"read:data"}, nil)
	require.NoError(t, f.store.UpdateKeyStatus(context.Background(), created.ID, store.KeyStatusRevoked))

	handler := Middleware(f.verifier, nil)(okHandler(new(*Principal)))
	rec := doRequest(t, handler, "Bearer "+raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "credential revoked")
}

func TestRequirePermission(t *testing.T) {
	f := newVerifierFixture(t)
	raw, _ := f.issueKey(t, []string{"read:data"}, nil)

	chain := func(perm string) http.Handler {
		return Middleware(f.verifier, nil)(RequirePermission(perm)(okHandler(new(*Principal))))
	}

	rec := doRequest(t, chain("read:data"), "Bearer "+raw)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, chain("write:data"), "Bearer "+raw)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermission_UserSessionAlwaysPasses(t *testing.T) {
	f := newVerifierFixture(t)

	tok, err := f.codec.IssueAccess(f.owner.ID, f.owner.Email, "user")
	require.NoError(t, err)

	handler := Middleware(f.verifier, nil)(RequirePermission("write:data")(okHandler(new(*Principal))))
	rec := doRequest(t, handler, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireUser(t *testing.T) {
	f := newVerifierFixture(t)
	raw, _ := f.issueKey(t, []string{"read:data"}, nil)

	handler := Middleware(f.verifier, nil)(RequireUser()(okHandler(new(*Principal))))
	rec := doRequest(t, handler, "Bearer "+raw)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "user session required")

	tok, err := f.codec.IssueAccess(f.owner.ID, f.owner.Email, "user")
	require.NoError(t, err)
	rec = doRequest(t, handler, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr string
	}{
		{"valid", "Bearer abc123", "abc123", ""},
		{"missing", "", "", "missing authorization header"},
		{"wrong scheme", "Basic abc123", "", "invalid authorization header format"},
		{"empty token", "Bearer ", "", "empty token"},
		{"lowercase scheme", "bearer abc123", "", "invalid authorization header format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errMsg := extractBearerToken(tt.header)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, errMsg)
		})
	}
}
