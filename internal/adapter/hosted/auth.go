package hosted

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"storeadmin/internal/domain"
)

// refreshLeeway refreshes access tokens shortly before they expire.
const refreshLeeway = 30 * time.Second

// accessClaims are the claims read from an access token. The backend signs
// the token; the console only reads it and never trusts it for
// authorization decisions.
type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Auth implements domain.AuthBackend against the hosted auth endpoints.
type Auth struct {
	client    *Client
	oauth     *oauth2.Config
	persister domain.SessionPersister
	logger    *slog.Logger
	now       func() time.Time

	refreshMu sync.Mutex

	mu        sync.Mutex
	current   *domain.Session
	listeners map[int]domain.AuthListener
	nextID    int
}

var (
	_ domain.AuthBackend    = (*Auth)(nil)
	_ domain.SessionAdopter = (*Auth)(nil)
)

// NewAuth creates the auth adapter. persister may be nil.
func NewAuth(c *Client, persister domain.SessionPersister) *Auth {
	return &Auth{
		client: c,
		oauth: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  c.endpoint("/auth/v1/token"),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		persister: persister,
		logger:    c.logger.With("part", "auth"),
		now:       time.Now,
		listeners: make(map[int]domain.AuthListener),
	}
}

func (a *Auth) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.client.http)
}

// CurrentSession returns the live session, recovering and if needed
// refreshing the persisted one.
func (a *Auth) CurrentSession(ctx context.Context) (*domain.Session, error) {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()
	if cur != nil {
		c := *cur
		return &c, nil
	}
	if a.persister == nil {
		return nil, nil
	}

	sess, err := a.persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	if a.stale(sess) {
		if sess.RefreshToken == "" {
			a.forget(ctx)
			return nil, nil
		}
		refreshed, err := a.exchangeRefresh(ctx, sess)
		if err != nil {
			a.logger.Info("persisted session could not be refreshed", "error", err)
			a.forget(ctx)
			return nil, nil
		}
		sess = refreshed
		a.save(ctx, sess)
	}
	a.mu.Lock()
	a.current = sess
	a.mu.Unlock()
	c := *sess
	return &c, nil
}

// Subscribe registers fn for auth events.
func (a *Auth) Subscribe(fn domain.AuthListener) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

// SignInWithCredentials performs the password grant.
func (a *Auth) SignInWithCredentials(ctx context.Context, identifier, secret string) (*domain.Session, error) {
	tok, err := a.oauth.PasswordCredentialsToken(a.oauthContext(ctx), strings.TrimSpace(identifier), secret)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	sess, err := sessionFromToken(tok, a.now())
	if err != nil {
		return nil, err
	}
	a.install(ctx, sess, domain.EventSignedIn)
	c := *sess
	return &c, nil
}

// AdoptSession installs a session established by another identity flow.
func (a *Auth) AdoptSession(ctx context.Context, sess *domain.Session) error {
	if sess == nil || sess.Subject == "" || sess.AccessToken == "" {
		return fmt.Errorf("adopt session: %w", domain.ErrInvalidCredentials)
	}
	c := *sess
	a.install(ctx, &c, domain.EventSignedIn)
	return nil
}

// SignOut revokes the session at the backend and forgets it locally. The
// local session is dropped even when the backend call fails.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	cur := a.current
	a.current = nil
	a.mu.Unlock()

	var err error
	if cur != nil {
		err = a.revoke(ctx, cur.AccessToken)
	}
	if a.persister != nil {
		if cerr := a.persister.Clear(ctx); cerr != nil {
			a.logger.Warn("clear persisted session", "error", cerr)
		}
	}
	if cur != nil {
		a.emit(domain.EventSignedOut, nil)
	}
	return err
}

// AccessToken returns a valid access token for data calls, refreshing it
// when it is about to expire. It returns "" when there is no session.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()
	if cur == nil {
		return "", nil
	}
	if !a.stale(cur) {
		return cur.AccessToken, nil
	}

	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	a.mu.Lock()
	cur = a.current
	a.mu.Unlock()
	if cur == nil {
		return "", nil
	}
	if !a.stale(cur) {
		return cur.AccessToken, nil
	}
	if cur.RefreshToken == "" {
		a.drop(ctx)
		return "", fmt.Errorf("session expired: %w", domain.ErrForbidden)
	}

	sess, err := a.exchangeRefresh(ctx, cur)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			a.drop(ctx)
			return "", fmt.Errorf("refresh rejected: %w", domain.ErrForbidden)
		}
		return "", err
	}
	a.install(ctx, sess, domain.EventTokenRefreshed)
	return sess.AccessToken, nil
}

func (a *Auth) stale(s *domain.Session) bool {
	return !s.ExpiresAt.IsZero() && a.now().Add(refreshLeeway).After(s.ExpiresAt)
}

func (a *Auth) exchangeRefresh(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	src := a.oauth.TokenSource(a.oauthContext(ctx), &oauth2.Token{
		RefreshToken: s.RefreshToken,
		Expiry:       time.Unix(1, 0),
	})
	tok, err := src.Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return sessionFromToken(tok, a.now())
}

func (a *Auth) revoke(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.endpoint("/auth/v1/logout"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := a.client.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: logout: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	// 401 means the token is already invalid, which is the goal.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusUnauthorized {
		return &StatusError{Status: resp.StatusCode, Body: "logout", kind: statusKind(resp.StatusCode)}
	}
	return nil
}

func (a *Auth) install(ctx context.Context, sess *domain.Session, event domain.AuthEvent) {
	a.mu.Lock()
	a.current = sess
	a.mu.Unlock()
	a.save(ctx, sess)
	a.emit(event, sess)
}

func (a *Auth) save(ctx context.Context, sess *domain.Session) {
	if a.persister == nil {
		return
	}
	if err := a.persister.Save(ctx, sess); err != nil {
		a.logger.Warn("persist session", "error", err)
	}
}

// drop forgets the session after the backend invalidated it.
func (a *Auth) drop(ctx context.Context) {
	a.mu.Lock()
	had := a.current != nil
	a.current = nil
	a.mu.Unlock()
	a.forget(ctx)
	if had {
		a.emit(domain.EventSignedOut, nil)
	}
}

func (a *Auth) forget(ctx context.Context) {
	if a.persister == nil {
		return
	}
	if err := a.persister.Clear(ctx); err != nil {
		a.logger.Warn("clear persisted session", "error", err)
	}
}

func (a *Auth) emit(event domain.AuthEvent, sess *domain.Session) {
	a.mu.Lock()
	fns := make([]domain.AuthListener, 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		var c *domain.Session
		if sess != nil {
			cp := *sess
			c = &cp
		}
		fn(event, c)
	}
}

func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		code := re.Response.StatusCode
		if code == http.StatusBadRequest || code == http.StatusUnauthorized || code == http.StatusForbidden {
			return fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, re.ErrorCode)
		}
	}
	return fmt.Errorf("%w: token: %v", domain.ErrUnavailable, err)
}

func sessionFromToken(tok *oauth2.Token, now time.Time) (*domain.Session, error) {
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, &claims); err != nil {
		return nil, fmt.Errorf("%w: malformed access token: %v", domain.ErrUnavailable, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: access token has no subject", domain.ErrUnavailable)
	}
	sess := &domain.Session{
		Subject:      claims.Subject,
		Email:        claims.Email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		IssuedAt:     now.UTC(),
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	return sess, nil
}
