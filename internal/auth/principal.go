// ABOUTME: Principal type representing an authenticated user or service
// ABOUTME: Produced transiently per request by the credential verifier

package auth

// PrincipalKind discriminates the two credential schemes.
type PrincipalKind string

const (
	PrincipalUser    PrincipalKind = "user"
	PrincipalService PrincipalKind = "service"
)

// Principal is the result of successful verification: the authenticated
// identity plus its granted scopes. User principals come from JWT sessions;
// service principals from API keys. Exactly one scheme produces a principal
// per request.
type Principal struct {
	Kind PrincipalKind

	// User principal fields
	UserID string
	Email  string
	Role   string

	// Service principal fields
	ServiceName string
	KeyID       string
	Permissions []string
}

// HasPermission reports whether the principal may perform an action gated by
// the named permission. User sessions carry the full authority of their
// account; API keys are scoped to their permission list.
func (p *Principal) HasPermission(perm string) bool {
	if p.Kind == PrincipalUser {
		return true
	}
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// IsAdmin returns true for user principals with the admin role.
func (p *Principal) IsAdmin() bool {
	return p.Kind == PrincipalUser && p.Role == "admin"
}
