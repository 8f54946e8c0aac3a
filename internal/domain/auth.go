// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// Role is the authorization role carried by a profile.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
	RoleCustomer   Role = "customer"
)

// Permitted reports whether the role may use the console. Only admin and
// accountant profiles are allowed in.
func (r Role) Permitted() bool {
	return r == RoleAdmin || r == RoleAccountant
}

// Session is an authenticated session issued by the auth backend.
type Session struct {
	Subject      string    `json:"subject"`
	Email        string    `json:"email,omitempty"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Expired reports whether the access token is past its expiry. A zero expiry
// never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Profile is the authorization record keyed by session subject.
type Profile struct {
	ID            string     `json:"id"`
	Role          Role       `json:"role"`
	FullName      string     `json:"full_name,omitempty"`
	Email         string     `json:"email,omitempty"`
	LoyaltyPoints int        `json:"loyalty_points,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// AuthEvent names a transition reported by the auth backend.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthListener receives auth events. The session is nil for sign-out.
type AuthListener func(event AuthEvent, session *Session)

// AuthBackend is the port to the hosted authentication service.
type AuthBackend interface {
	// CurrentSession returns the persisted session, or nil when there is none.
	CurrentSession(ctx context.Context) (*Session, error)
	// Subscribe registers fn for auth events and returns its unsubscribe func.
	Subscribe(fn AuthListener) (unsubscribe func())
	SignInWithCredentials(ctx context.Context, identifier, secret string) (*Session, error)
	SignOut(ctx context.Context) error
}

// SessionAdopter is implemented by backends that can take over a session
// established elsewhere, such as an OIDC login.
type SessionAdopter interface {
	AdoptSession(ctx context.Context, session *Session) error
}

// ProfileRepository is the port for profile lookups.
type ProfileRepository interface {
	// FetchProfile returns ErrNotFound when no profile exists for subject.
	FetchProfile(ctx context.Context, subject string) (*Profile, error)
}

// SessionPersister keeps the current session across process restarts.
type SessionPersister interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Clear(ctx context.Context) error
}
