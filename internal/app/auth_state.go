// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storeadmin/internal/domain"
	"storeadmin/internal/metrics"
)

// AuthStatus is a state of the session lifecycle.
type AuthStatus string

const (
	StatusInitializing     AuthStatus = "initializing"
	StatusUnauthenticated  AuthStatus = "unauthenticated"
	StatusResolvingProfile AuthStatus = "resolving_profile"
	StatusAuthorized       AuthStatus = "authorized"
	// StatusUnresolvable means a session exists but its profile could not be
	// fetched. Access is denied until a retry succeeds or the user signs out.
	StatusUnresolvable AuthStatus = "unresolvable"
)

// Loading reports whether the status is transitional.
func (s AuthStatus) Loading() bool {
	return s == StatusInitializing || s == StatusResolvingProfile
}

var (
	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = errors.New("auth state already initialized")
	// ErrNotInitialized is returned by operations called before Init or after Dispose.
	ErrNotInitialized = errors.New("auth state not initialized")
	// ErrNothingToRetry is returned by Retry outside the unresolvable state.
	ErrNothingToRetry = errors.New("no unresolved session to retry")
	// ErrAdoptUnsupported is returned by AdoptSession when the backend cannot adopt sessions.
	ErrAdoptUnsupported = errors.New("auth backend cannot adopt external sessions")
)

// AuthErrorKind classifies a failed sign-in.
type AuthErrorKind string

const (
	AuthInvalidCredentials AuthErrorKind = "invalid_credentials"
	AuthUnavailable        AuthErrorKind = "unavailable"
)

// AuthError is a recoverable sign-in failure. Session state is unchanged.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Kind == AuthInvalidCredentials {
		return "invalid email or password"
	}
	return "authentication service unavailable"
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProfileFetchError records why a session's profile could not be resolved.
type ProfileFetchError struct {
	Subject string
	Err     error
}

func (e *ProfileFetchError) Error() string {
	return fmt.Sprintf("resolve profile for %s: %v", e.Subject, e.Err)
}

func (e *ProfileFetchError) Unwrap() error { return e.Err }

// NoticeKind identifies a user-visible notice.
type NoticeKind string

// NoticeAccessDenied is emitted once each time a signed-in identity is
// rejected because of its role.
const NoticeAccessDenied NoticeKind = "access_denied"

// AccessDeniedMessage is the text of an access-denied notice.
const AccessDeniedMessage = "Access Denied: Unauthorized Role"

// Notice is a user-visible message raised by the auth state.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Subject string     `json:"-"`
}

// Snapshot is an immutable view of the auth state.
type Snapshot struct {
	Status  AuthStatus
	Session *domain.Session
	Profile *domain.Profile
	Err     error
}

// Loading reports whether resolution is still in progress.
func (s Snapshot) Loading() bool { return s.Status.Loading() }

// Decision derives the authorization decision from the snapshot.
func (s Snapshot) Decision() Decision { return Decide(s.Session != nil, s.Profile) }

// AuthStateConfig tunes an AuthState.
type AuthStateConfig struct {
	// ResolveTimeout bounds a single profile fetch. Zero means 10s.
	ResolveTimeout time.Duration
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// AuthState is the process-wide session store and profile resolver. The
// session is written only by the auth event path and the profile only by the
// resolver; everything else reads snapshots.
type AuthState struct {
	backend        domain.AuthBackend
	profiles       domain.ProfileRepository
	logger         *slog.Logger
	metrics        *metrics.Metrics
	resolveTimeout time.Duration

	// opMu serializes calls that change the backend session.
	opMu sync.Mutex

	mu          sync.Mutex
	status      AuthStatus
	session     *domain.Session
	profile     *domain.Profile
	err         error
	gen         uint64
	cancelRun   context.CancelFunc
	changed     chan struct{}
	listeners   map[int]func(Notice)
	nextID      int
	initialized bool
	disposed    bool
	unsubscribe func()
	baseCtx     context.Context
	baseCancel  context.CancelFunc
	wg          sync.WaitGroup
}

// NewAuthState creates an AuthState in the initializing state. Call Init
// before use and Dispose on shutdown.
func NewAuthState(backend domain.AuthBackend, profiles domain.ProfileRepository, cfg AuthStateConfig) *AuthState {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ResolveTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AuthState{
		backend:        backend,
		profiles:       profiles,
		logger:         logger.With("component", "auth"),
		metrics:        cfg.Metrics,
		resolveTimeout: timeout,
		status:         StatusInitializing,
		changed:        make(chan struct{}),
		listeners:      make(map[int]func(Notice)),
	}
}

// Init subscribes to backend auth events and recovers the persisted session.
// It may be called only once.
func (s *AuthState) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.initialized = true
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	unsubscribe := s.backend.Subscribe(func(event domain.AuthEvent, sess *domain.Session) {
		s.apply(event, sess)
	})

	sess, err := s.backend.CurrentSession(ctx)
	if err != nil {
		s.logger.Warn("session recovery failed", "error", err)
		sess = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribe = unsubscribe
	if s.status != StatusInitializing {
		// An auth event already moved the state on.
		return nil
	}
	if sess == nil {
		s.setStatusLocked(StatusUnauthenticated)
		return nil
	}
	s.session = cloneSession(sess)
	s.startResolutionLocked(sess.Subject)
	return nil
}

// Dispose removes the backend subscription, cancels in-flight resolution and
// waits for it to finish.
func (s *AuthState) Dispose() {
	s.mu.Lock()
	if !s.initialized || s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.gen++
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.baseCancel()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.wg.Wait()
}

// SignIn submits credentials to the backend. On failure it returns an
// *AuthError and leaves the state unchanged. On success profile resolution
// starts; use Await for the outcome.
func (s *AuthState) SignIn(ctx context.Context, identifier, secret string) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	sess, err := s.backend.SignInWithCredentials(ctx, identifier, secret)
	if err != nil {
		kind := AuthUnavailable
		if errors.Is(err, domain.ErrInvalidCredentials) {
			kind = AuthInvalidCredentials
		}
		s.metrics.SignInFailure(string(kind))
		s.logger.Info("sign-in rejected", "kind", kind, "error", err)
		return &AuthError{Kind: kind, Err: err}
	}
	s.apply(domain.EventSignedIn, sess)
	return nil
}

// AdoptSession installs a session established outside the credential flow.
func (s *AuthState) AdoptSession(ctx context.Context, sess *domain.Session) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	adopter, ok := s.backend.(domain.SessionAdopter)
	if !ok {
		return ErrAdoptUnsupported
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := adopter.AdoptSession(ctx, sess); err != nil {
		s.logger.Warn("adopt session failed", "error", err)
		return &AuthError{Kind: AuthUnavailable, Err: err}
	}
	s.apply(domain.EventSignedIn, sess)
	return nil
}

// SignOut clears the local session and profile, cancels any in-flight
// resolution and invalidates the backend credential. It is a no-op when no
// session exists.
func (s *AuthState) SignOut(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if !s.initialized || (s.session == nil && s.status == StatusUnauthenticated) {
		s.mu.Unlock()
		return nil
	}
	s.clearLocked()
	s.mu.Unlock()

	if err := s.backend.SignOut(ctx); err != nil {
		s.logger.Warn("backend sign-out failed", "error", err)
	}
	s.logger.Info("signed out")
	return nil
}

// Retry re-runs profile resolution for the current session after a fetch
// failure.
func (s *AuthState) Retry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.status != StatusUnresolvable || s.session == nil {
		return ErrNothingToRetry
	}
	s.startResolutionLocked(s.session.Subject)
	return nil
}

// Snapshot returns the current state.
func (s *AuthState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Changes returns a channel that is closed on the next transition.
func (s *AuthState) Changes() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Await blocks until the state is no longer loading or ctx is done.
func (s *AuthState) Await(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		snap := s.snapshotLocked()
		ch := s.changed
		s.mu.Unlock()
		if !snap.Loading() {
			return snap, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// OnNotice registers fn for user-visible notices and returns a func that
// removes it. fn must not block.
func (s *AuthState) OnNotice(fn func(Notice)) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *AuthState) checkLive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized || s.disposed {
		return ErrNotInitialized
	}
	return nil
}

// apply handles an auth event from the backend or from a local sign-in.
func (s *AuthState) apply(event domain.AuthEvent, sess *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}

	if sess == nil {
		if s.session == nil && s.status == StatusUnauthenticated {
			return
		}
		s.logger.Info("session ended", "event", event)
		s.clearLocked()
		return
	}

	if cur := s.session; cur != nil && cur.Subject == sess.Subject {
		// The same credential delivered twice, or a refresh for the current
		// identity, does not need a new resolution.
		if cur.AccessToken == sess.AccessToken || event == domain.EventTokenRefreshed {
			s.session = cloneSession(sess)
			return
		}
	}

	s.logger.Info("session established", "event", event, "subject", sess.Subject)
	s.session = cloneSession(sess)
	s.startResolutionLocked(sess.Subject)
}

func (s *AuthState) startResolutionLocked(subject string) {
	s.gen++
	gen := s.gen
	if s.cancelRun != nil {
		s.cancelRun()
	}
	ctx, cancel := context.WithTimeout(s.baseCtx, s.resolveTimeout)
	s.cancelRun = cancel
	s.profile = nil
	s.err = nil
	s.setStatusLocked(StatusResolvingProfile)

	s.wg.Add(1)
	go s.resolve(ctx, cancel, gen, subject)
}

func (s *AuthState) resolve(ctx context.Context, cancel context.CancelFunc, gen uint64, subject string) {
	defer s.wg.Done()
	defer cancel()

	start := time.Now()
	profile, err := s.profiles.FetchProfile(ctx, subject)
	elapsed := time.Since(start).Seconds()
	if err == nil && profile == nil {
		err = domain.ErrNotFound
	}

	if err == nil && !IsPermittedRole(profile.Role) {
		s.deny(gen, subject, profile.Role, elapsed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.metrics.Resolution("superseded", elapsed)
		s.logger.Debug("discarding superseded profile resolution", "subject", subject)
		return
	}
	s.cancelRun = nil

	if err != nil {
		s.err = &ProfileFetchError{Subject: subject, Err: err}
		s.profile = nil
		s.setStatusLocked(StatusUnresolvable)
		s.metrics.Resolution("unresolvable", elapsed)
		s.logger.Warn("profile unresolvable", "subject", subject, "error", err)
		return
	}

	p := *profile
	s.profile = &p
	s.setStatusLocked(StatusAuthorized)
	s.metrics.Resolution("authorized", elapsed)
	s.logger.Info("access granted", "subject", subject, "role", p.Role)
}

// deny tears down the session of an identity whose role may not use the
// console and raises a single access-denied notice. Listeners hear the
// notice before the state leaves ResolvingProfile, so anyone awaiting the
// outcome can already see it.
func (s *AuthState) deny(gen uint64, subject string, role domain.Role, elapsed float64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.metrics.Resolution("superseded", elapsed)
		return
	}
	listeners := make([]func(Notice), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	n := Notice{Kind: NoticeAccessDenied, Message: AccessDeniedMessage, Subject: subject}
	for _, fn := range listeners {
		fn(n)
	}

	// A backend event or Dispose may have moved gen while listeners ran.
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.cancelRun = nil
	s.clearLocked()
	s.mu.Unlock()

	s.metrics.Resolution("denied", elapsed)
	s.logger.Warn("access denied", "subject", subject, "role", role)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.baseCtx), s.resolveTimeout)
	defer cancel()
	if err := s.backend.SignOut(ctx); err != nil {
		s.logger.Error("sign-out after denial failed", "subject", subject, "error", err)
	}
}

// clearLocked drops session and profile and invalidates any in-flight run.
func (s *AuthState) clearLocked() {
	s.gen++
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.session = nil
	s.profile = nil
	s.err = nil
	s.setStatusLocked(StatusUnauthenticated)
}

func (s *AuthState) setStatusLocked(st AuthStatus) {
	s.status = st
	close(s.changed)
	s.changed = make(chan struct{})
	s.metrics.Transition(string(st))
}

func (s *AuthState) snapshotLocked() Snapshot {
	snap := Snapshot{Status: s.status, Err: s.err}
	if s.session != nil {
		snap.Session = cloneSession(s.session)
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	return snap
}

func cloneSession(sess *domain.Session) *domain.Session {
	c := *sess
	return &c
}
