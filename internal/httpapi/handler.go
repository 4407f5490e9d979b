// ABOUTME: HTTP API routing and handlers for auth and key management
// ABOUTME: Maps service errors to status codes with generic user-facing messages

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/keygate/internal/account"
	"github.com/2389/keygate/internal/auth"
	"github.com/2389/keygate/internal/keys"
	"github.com/2389/keygate/internal/store"
)

const maxJSONBodySize = 1 << 20

// Handler exposes the account and key services over HTTP.
type Handler struct {
	accounts *account.Service
	keys     *keys.Manager
	verifier *auth.Verifier
	logger   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(accounts *account.Service, keyManager *keys.Manager, verifier *auth.Verifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		accounts: accounts,
		keys:     keyManager,
		verifier: verifier,
		logger:   logger.With("component", "httpapi"),
	}
}

// Router builds the route tree. Signup, login, refresh, and the health check
// are public; everything else sits behind the auth middleware, and key
// management additionally requires a user session.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)

	r.Post("/auth/signup", h.signup)
	r.Post("/auth/login", h.login)
	r.Post("/auth/refresh", h.refresh)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(h.verifier, h.logger))
		pr.Get("/auth/me", h.me)

		pr.Group(func(ur chi.Router) {
			ur.Use(auth.RequireUser())
			ur.Post("/keys", h.createKey)
			ur.Get("/keys", h.listKeys)
			ur.Post("/keys/{id}/revoke", h.revokeKey)
			ur.Post("/keys/{id}/renew", h.renewKey)
			ur.Delete("/keys/{id}", h.deleteKey)
		})
	})

	return r
}

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type renewRequest struct {
	Days int `json:"days"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type meResponse struct {
	Kind        string   `json:"kind"`
	UserID      string   `json:"user_id,omitempty"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	ServiceName string   `json:"service_name,omitempty"`
	KeyID       string   `json:"key_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type keyResponse struct {
	ID          string   `json:"id"`
	ServiceName string   `json:"service_name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions"`
	Status      string   `json:"status"`
	Key         string   `json:"key,omitempty"`        // raw key, present only on create
	MaskedKey   string   `json:"masked_key,omitempty"` // present on listings
	CreatedAt   string   `json:"created_at"`
	ExpiresAt   *string  `json:"expires_at"`
	LastUsedAt  *string  `json:"last_used_at"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	u, err := h.accounts.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	pair, _, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	pair, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// me describes the authenticated caller: account details for user sessions,
// key scope for service credentials.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p := auth.MustFromContext(r.Context())

	resp := meResponse{Kind: string(p.Kind)}
	switch p.Kind {
	case auth.PrincipalUser:
		u, err := h.accounts.Get(r.Context(), p.UserID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		resp.UserID = u.ID
		resp.Email = u.Email
		resp.Role = u.Role
	case auth.PrincipalService:
		resp.UserID = p.UserID
		resp.ServiceName = p.ServiceName
		resp.KeyID = p.KeyID
		resp.Permissions = p.Permissions
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createKey(w http.ResponseWriter, r *http.Request) {
	p := auth.MustFromContext(r.Context())

	var req keys.CreateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	created, err := h.keys.Create(r.Context(), p.UserID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := toKeyResponse(created.Key)
	resp.Key = created.RawKey
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) listKeys(w http.ResponseWriter, r *http.Request) {
	p := auth.MustFromContext(r.Context())

	listed, err := h.keys.List(r.Context(), p.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]keyResponse, 0, len(listed))
	for _, mk := range listed {
		kr := toKeyResponse(mk.Key)
		kr.MaskedKey = mk.MaskedKey
		resp = append(resp, kr)
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": resp})
}

func (h *Handler) revokeKey(w http.ResponseWriter, r *http.Request) {
	p := auth.MustFromContext(r.Context())

	if err := h.keys.Revoke(r.Context(), p.UserID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) renewKey(w http.ResponseWriter, r *http.Request) {
	p := auth.MustFromContext(r.Context())

	var req renewRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	renewed, err := h.keys.Renew(r.Context(), p.UserID, chi.URLParam(r, "id"), req.Days)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toKeyResponse(renewed))
}

func (h *Handler) deleteKey(w http.ResponseWriter, r *http.Request) {
	p := auth.MustFromContext(r.Context())

	if err := h.keys.Delete(r.Context(), p.UserID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody parses a JSON request body, rejecting unknown fields and
// trailing garbage. Returns false after writing the error response.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

// writeServiceError maps a service error to its HTTP status. Credential
// failures share generic messages; validation errors are safe to echo.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, auth.ErrInvalidState):
		writeError(w, http.StatusConflict, "cannot renew a revoked key")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrKeyNotFound), errors.Is(err, store.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrExpired):
		writeError(w, http.StatusUnauthorized, "credential expired")
	case errors.Is(err, auth.ErrRevoked):
		writeError(w, http.StatusUnauthorized, "credential revoked")
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrBackendUnavailable):
		h.logger.Error("backend unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		h.logger.Error("unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toUserResponse(u *store.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toKeyResponse(k *store.APIKey) keyResponse {
	return keyResponse{
		ID:          k.ID,
		ServiceName: k.ServiceName,
		Description: k.Description,
		Permissions: k.Permissions,
		Status:      string(k.Status),
		CreatedAt:   k.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:   formatNullable(k.ExpiresAt),
		LastUsedAt:  formatNullable(k.LastUsedAt),
	}
}

func formatNullable(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}
