package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"storeadmin/internal/domain"
)

// SessionTTL is the lifetime of sessions issued by the memory backend.
const SessionTTL = 12 * time.Hour

// AddUser registers sign-in credentials for profile. The password is stored
// as a bcrypt hash.
func (db *DB) AddUser(email, password string, profile domain.Profile) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.Email == "" {
		profile.Email = email
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.credentials[strings.ToLower(email)] = credential{subject: profile.ID, hash: hash}
	db.profiles[profile.ID] = profile
	return nil
}

// AuthBackend is a domain.AuthBackend over the users of a DB. Sessions are
// opaque random tokens, optionally persisted across restarts.
type AuthBackend struct {
	db        *DB
	persister domain.SessionPersister
	logger    *slog.Logger

	mu        sync.Mutex
	current   *domain.Session
	listeners map[int]domain.AuthListener
	nextID    int
}

var (
	_ domain.AuthBackend    = (*AuthBackend)(nil)
	_ domain.SessionAdopter = (*AuthBackend)(nil)
)

// NewAuthBackend creates an auth backend. persister may be nil.
func NewAuthBackend(db *DB, persister domain.SessionPersister, logger *slog.Logger) *AuthBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthBackend{
		db:        db,
		persister: persister,
		logger:    logger.With("component", "memory-auth"),
		listeners: make(map[int]domain.AuthListener),
	}
}

// CurrentSession returns the live session, recovering it from the persister
// when none is held in memory.
func (b *AuthBackend) CurrentSession(ctx context.Context) (*domain.Session, error) {
	b.mu.Lock()
	cur := b.current
	b.mu.Unlock()
	now := time.Now()
	if cur != nil && !cur.Expired(now) {
		c := *cur
		return &c, nil
	}
	if b.persister == nil {
		return nil, nil
	}

	sess, err := b.persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(now) {
		if err := b.persister.Clear(ctx); err != nil {
			b.logger.Warn("clear expired session", "error", err)
		}
		return nil, nil
	}
	b.mu.Lock()
	b.current = sess
	b.mu.Unlock()
	c := *sess
	return &c, nil
}

// Subscribe registers fn for auth events.
func (b *AuthBackend) Subscribe(fn domain.AuthListener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// SignInWithCredentials checks the password and issues a new session.
func (b *AuthBackend) SignInWithCredentials(ctx context.Context, identifier, secret string) (*domain.Session, error) {
	b.db.mu.Lock()
	cred, ok := b.db.credentials[strings.ToLower(strings.TrimSpace(identifier))]
	b.db.mu.Unlock()
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(cred.hash, []byte(secret)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	sess := &domain.Session{
		Subject:      cred.subject,
		Email:        strings.ToLower(strings.TrimSpace(identifier)),
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		IssuedAt:     now,
		ExpiresAt:    now.Add(SessionTTL),
	}
	if err := b.install(ctx, sess); err != nil {
		return nil, err
	}
	out := *sess
	return &out, nil
}

// AdoptSession installs a session issued elsewhere.
func (b *AuthBackend) AdoptSession(ctx context.Context, sess *domain.Session) error {
	if sess == nil || sess.Subject == "" {
		return fmt.Errorf("adopt session: %w", domain.ErrInvalidCredentials)
	}
	c := *sess
	return b.install(ctx, &c)
}

func (b *AuthBackend) install(ctx context.Context, sess *domain.Session) error {
	if b.persister != nil {
		if err := b.persister.Save(ctx, sess); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
	}
	b.mu.Lock()
	b.current = sess
	b.mu.Unlock()
	b.emit(domain.EventSignedIn, sess)
	return nil
}

// SignOut drops the current session.
func (b *AuthBackend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	had := b.current != nil
	b.current = nil
	b.mu.Unlock()

	var err error
	if b.persister != nil {
		if cerr := b.persister.Clear(ctx); cerr != nil {
			err = fmt.Errorf("clear session: %w", cerr)
		}
	}
	if had {
		b.emit(domain.EventSignedOut, nil)
	}
	return err
}

func (b *AuthBackend) emit(event domain.AuthEvent, sess *domain.Session) {
	b.mu.Lock()
	fns := make([]domain.AuthListener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		var c *domain.Session
		if sess != nil {
			cp := *sess
			c = &cp
		}
		fn(event, c)
	}
}
