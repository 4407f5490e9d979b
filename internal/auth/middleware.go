// ABOUTME: HTTP middleware gating protected endpoints on bearer credentials
// ABOUTME: Extracts the Authorization header and adds the principal to context

package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// statusForError maps a taxonomy error to an HTTP status code.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// messageForError returns the generic user-facing message for a rejection.
// Messages never echo credential material.
func messageForError(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "credential expired"
	case errors.Is(err, ErrRevoked):
		return "credential revoked"
	case errors.Is(err, ErrBackendUnavailable):
		return "service unavailable"
	default:
		return "invalid credentials"
	}
}

// Middleware authenticates every request through the verifier and stores the
// resulting principal in the request context. Requests without a valid
// credential are rejected before reaching the handler.
func Middleware(v *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeAuthError(w, http.StatusUnauthorized, errMsg)
				return
			}

			principal, err := v.Authenticate(r.Context(), bearer)
			if err != nil {
				logger.Warn("auth failure",
					"reason", messageForError(err),
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, statusForError(err), messageForError(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequirePermission gates a route on a named permission. Service principals
// must carry the permission in their key's scope list; user sessions pass.
// Must be used after Middleware.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := FromContext(r.Context())
			if principal == nil {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if !principal.HasPermission(perm) {
				writeAuthError(w, http.StatusForbidden, "permission required: "+perm)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser gates a route on a user session; API keys cannot manage
// accounts or other keys. Must be used after Middleware.
func RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := FromContext(r.Context())
			if principal == nil {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if principal.Kind != PrincipalUser {
				writeAuthError(w, http.StatusForbidden, "user session required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
