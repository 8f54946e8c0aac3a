package app

// GateOutcome is what the access gate does with a request for protected
// content.
type GateOutcome int

const (
	// GateWait shows a neutral waiting indicator while the session resolves.
	GateWait GateOutcome = iota
	// GateRedirect sends the user to the sign-in entry point.
	GateRedirect
	// GateUnresolvable reports that authorization could not be determined.
	GateUnresolvable
	// GateMount renders the protected content.
	GateMount
)

func (o GateOutcome) String() string {
	switch o {
	case GateWait:
		return "wait"
	case GateRedirect:
		return "redirect"
	case GateUnresolvable:
		return "unresolvable"
	case GateMount:
		return "mount"
	}
	return "unknown"
}

// Gate decides how to treat a request given the auth snapshot. It re-checks
// the role policy even though the resolver never publishes a denied profile.
func Gate(s Snapshot) GateOutcome {
	switch {
	case s.Loading():
		return GateWait
	case s.Session == nil:
		return GateRedirect
	case s.Profile != nil && !IsPermittedRole(s.Profile.Role):
		return GateRedirect
	case s.Status == StatusUnresolvable:
		return GateUnresolvable
	case s.Status == StatusAuthorized && s.Profile != nil:
		return GateMount
	default:
		return GateRedirect
	}
}
