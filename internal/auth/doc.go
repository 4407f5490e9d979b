// Package auth provides credential verification and authorization for keygate.
//
// # Authentication Methods
//
// The package unifies two credential schemes behind one decision function:
//
//   - JWT Sessions: Human users authenticate with HS256-signed access tokens
//     minted at login. Refresh tokens are only accepted by the refresh flow.
//
//   - API Keys: Services authenticate with opaque prefixed keys. Keys are
//     looked up by a keyed fingerprint; the stored ciphertext is never
//     decrypted on the verification path.
//
// # Dispatch
//
// Verifier.Authenticate routes a bearer string by shape: the configured API
// key prefix short-circuits to the key engine; everything else is parsed as
// a JWT, and only a malformed token falls back to the key path. An expired
// or badly signed JWT surfaces its specific reason instead of being masked
// by a doomed key lookup.
//
// # Principal System
//
// Successful verification yields a Principal: either a user (ID, email,
// role) or a service (name, key ID, permission scopes). Principals travel
// via context.Context using WithPrincipal/FromContext, and both the HTTP
// middleware and the gRPC interceptors populate them the same way.
//
// # Known Gap
//
// There is no token blacklist: a logged-out or leaked access token stays
// valid until natural expiry. The short access TTL bounds the exposure
// window. Revocation exists for API keys only.
package auth
