package app

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"sync"
	"time"
)

// DefaultConsoleSessionTTL is how long a console token stays valid.
const DefaultConsoleSessionTTL = 24 * time.Hour

var (
	// ErrSessionNotFound indicates that the console token is unknown or no
	// longer belongs to the live operator session.
	ErrSessionNotFound = errors.New("console session not found")
	// ErrSessionExpired indicates that the console token has expired.
	ErrSessionExpired = errors.New("console session expired")
)

type consoleBinding struct {
	tokenHash [sha256.Size]byte
	subject   string
	userAgent string
	expiresAt time.Time
}

// ConsoleSessions ties the operator session held by AuthState to the one
// client that opened it. Only the hash of the token is kept. Issuing a new
// token replaces the previous one.
type ConsoleSessions struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	bound *consoleBinding
}

// NewConsoleSessions creates an empty binding. Zero ttl means
// DefaultConsoleSessionTTL and a nil clock means time.Now.
func NewConsoleSessions(ttl time.Duration, now func() time.Time) *ConsoleSessions {
	if ttl <= 0 {
		ttl = DefaultConsoleSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ConsoleSessions{ttl: ttl, now: now}
}

// TTL returns the token lifetime.
func (c *ConsoleSessions) TTL() time.Duration { return c.ttl }

// Issue creates a token for subject as seen from userAgent. subject may be
// empty when the session ended before it could be bound; such a token only
// lets its holder collect notices.
func (c *ConsoleSessions) Issue(subject, userAgent string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bound = &consoleBinding{
		tokenHash: sha256.Sum256([]byte(token)),
		subject:   subject,
		userAgent: userAgent,
		expiresAt: c.now().Add(c.ttl),
	}
	return token, nil
}

// Holds reports whether token is the current console token, whether or not
// its session is still live.
func (c *ConsoleSessions) Holds(token, userAgent string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.lookupLocked(token, userAgent)
	return err
}

// Validate checks that token belongs to the live session of subject.
func (c *ConsoleSessions) Validate(token, userAgent, subject string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := c.lookupLocked(token, userAgent)
	if err != nil {
		return err
	}
	if subject == "" || b.subject != subject {
		return ErrSessionNotFound
	}
	return nil
}

// Revoke drops the binding when token holds it.
func (c *ConsoleSessions) Revoke(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound != nil && c.matchesLocked(token) {
		c.bound = nil
	}
}

func (c *ConsoleSessions) lookupLocked(token, userAgent string) (*consoleBinding, error) {
	if token == "" || c.bound == nil || !c.matchesLocked(token) {
		return nil, ErrSessionNotFound
	}
	b := c.bound
	if c.now().After(b.expiresAt) || b.userAgent != userAgent {
		c.bound = nil
		return nil, ErrSessionExpired
	}
	return b, nil
}

func (c *ConsoleSessions) matchesLocked(token string) bool {
	h := sha256.Sum256([]byte(token))
	return subtle.ConstantTimeCompare(h[:], c.bound.tokenHash[:]) == 1
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
