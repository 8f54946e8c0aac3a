package app

import "storeadmin/internal/domain"

// Decision is the authorization decision for the current session.
type Decision string

const (
	DecisionUnauthenticated Decision = "unauthenticated"
	DecisionAuthorized      Decision = "authorized"
	DecisionUnauthorized    Decision = "unauthorized"
)

// IsPermittedRole is the single console role policy, shared by the profile
// resolver and the access gate.
func IsPermittedRole(role domain.Role) bool {
	return role.Permitted()
}

// Decide derives the decision from session presence and the resolved profile.
// A session without a profile is not authorized.
func Decide(hasSession bool, profile *domain.Profile) Decision {
	switch {
	case !hasSession:
		return DecisionUnauthenticated
	case profile != nil && IsPermittedRole(profile.Role):
		return DecisionAuthorized
	default:
		return DecisionUnauthorized
	}
}
