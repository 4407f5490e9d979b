// ABOUTME: Error taxonomy for authentication and lifecycle decisions
// ABOUTME: Every failure is terminal; the transport layer maps these to status codes

package auth

import "errors"

// Taxonomy errors. The core never retries: each of these is a final decision
// returned to the caller. Transport layers map them to status codes with
// generic messages; no error carries secret material.
var (
	// ErrUnauthenticated means no credential was presented or it was
	// unparseable in either scheme.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredential means a credential was presented but failed
	// verification: bad signature, wrong token kind, unknown fingerprint.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrExpired means the credential verified but is past its lifetime.
	ErrExpired = errors.New("credential expired")

	// ErrRevoked means the API key exists but has been revoked.
	ErrRevoked = errors.New("credential revoked")

	// ErrForbidden means the authenticated principal does not own the
	// target resource or lacks a required permission.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState means an illegal lifecycle transition was requested,
	// such as renewing a revoked key.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation means the request input was malformed (empty
	// permissions, non-positive expiry).
	ErrValidation = errors.New("validation error")

	// ErrBackendUnavailable means the persistence store failed; it is
	// deliberately distinct from any credential fault.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
