// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"storeadmin/internal/app"
	"storeadmin/internal/domain"
)

// maxPendingNotices bounds the notices kept for the next session read.
const maxPendingNotices = 8

// noticeBox holds auth notices until the console reads them.
type noticeBox struct {
	mu      sync.Mutex
	pending []app.Notice
	remove  func()
}

func newNoticeBox(auth *app.AuthState) *noticeBox {
	b := &noticeBox{}
	if auth != nil {
		b.remove = auth.OnNotice(b.push)
	}
	return b
}

func (b *noticeBox) push(n app.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, n)
	if len(b.pending) > maxPendingNotices {
		b.pending = b.pending[len(b.pending)-maxPendingNotices:]
	}
}

func (b *noticeBox) drain() []app.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	if out == nil {
		out = []app.Notice{}
	}
	return out
}

func (b *noticeBox) close() {
	if b.remove != nil {
		b.remove()
	}
}

type sessionUser struct {
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
}

// sessionView is what the console learns about the auth state. Tokens never
// leave the server.
type sessionView struct {
	Status      app.AuthStatus  `json:"status"`
	Decision    app.Decision    `json:"decision"`
	Gate        string          `json:"gate"`
	User        *sessionUser    `json:"user,omitempty"`
	Profile     *domain.Profile `json:"profile,omitempty"`
	Navigation  []app.NavItem   `json:"navigation"`
	Affordances app.Affordances `json:"affordances"`
	Notices     []app.Notice    `json:"notices"`
	Error       string          `json:"error,omitempty"`
}

// view renders snap for a client. Pending notices go only to the client
// holding the console token.
func (s *Server) view(snap app.Snapshot, holder bool) sessionView {
	gate := app.Gate(snap)
	v := sessionView{
		Status:     snap.Status,
		Decision:   snap.Decision(),
		Gate:       gate.String(),
		Navigation: []app.NavItem{},
		Notices:    []app.Notice{},
	}
	if holder {
		v.Notices = s.notices.drain()
	}
	if snap.Session != nil {
		v.User = &sessionUser{Subject: snap.Session.Subject, Email: snap.Session.Email}
	}
	switch gate {
	case app.GateMount:
		v.Profile = snap.Profile
		v.Navigation = app.Navigation(snap.Profile.Role)
		v.Affordances = app.AffordancesFor(snap.Profile.Role)
	case app.GateUnresolvable:
		v.Error = unresolvableMessage
	}
	return v
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, _ := s.clientSnapshot(r)
	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := c.check(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("health check failed", "check", c.name, "error", err)
			checks[c.name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.name] = "ok"
	}
	writeJSON(w, status, map[string]any{
		"ok":     status == http.StatusOK,
		"auth":   snap.Status,
		"checks": checks,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sso_enabled": s.oidc != nil})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	snap, _ := s.clientSnapshot(r)
	holder := s.console.Holds(sessionToken(r), r.UserAgent()) == nil
	writeJSON(w, http.StatusOK, s.view(snap, holder))
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	custom := filepath.Join(s.webDir, "login.html")
	if _, err := os.Stat(custom); err == nil {
		http.ServeFile(w, r, custom)
		return
	}
	writeHTML(w, http.StatusOK, loginPage)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, errors.New("email and password are required"))
		return
	}

	token, err := s.establish(w, r, func(ctx context.Context) error {
		return s.auth.SignIn(ctx, req.Email, req.Password)
	})
	var authErr *app.AuthError
	switch {
	case errors.As(err, &authErr):
		status := http.StatusServiceUnavailable
		if authErr.Kind == app.AuthInvalidCredentials {
			status = http.StatusUnauthorized
		}
		writeError(w, status, authErr)
		return
	case err != nil:
		s.writeServiceError(w, r, fmt.Errorf("%w: %v", domain.ErrUnavailable, err))
		return
	}
	s.respondResolved(w, r, token)
}

// establish runs signIn and binds the resulting session to the requesting
// client with a fresh console token.
func (s *Server) establish(w http.ResponseWriter, r *http.Request, signIn func(context.Context) error) (string, error) {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	if err := signIn(r.Context()); err != nil {
		return "", err
	}
	// The session may already be gone if the resolver denied it; the token
	// then only collects the denial notice.
	subject := ""
	if snap := s.auth.Snapshot(); snap.Session != nil {
		subject = snap.Session.Subject
	}
	token, err := s.console.Issue(subject, r.UserAgent())
	if err != nil {
		return "", fmt.Errorf("issue console session: %w", err)
	}
	s.setSessionCookie(w, r, token)
	return token, nil
}

// respondResolved waits for profile resolution and reports the outcome to
// the client holding token.
func (s *Server) respondResolved(w http.ResponseWriter, r *http.Request, token string) {
	snap, err := s.auth.Await(r.Context())
	snap, _ = s.scope(snap, token, r.UserAgent())
	holder := s.console.Holds(token, r.UserAgent()) == nil
	if err != nil {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, s.view(snap, holder))
		return
	}
	v := s.view(snap, holder)
	switch app.Gate(snap) {
	case app.GateMount:
		writeJSON(w, http.StatusOK, v)
	case app.GateUnresolvable:
		writeJSON(w, http.StatusServiceUnavailable, v)
	default:
		v.Error = "session ended"
		for _, n := range v.Notices {
			if n.Kind == app.NoticeAccessDenied {
				v.Error = n.Message
			}
		}
		writeJSON(w, http.StatusForbidden, v)
	}
}

// handleLogout ends the operator session when the request holds its console
// token. Other clients only lose their stale cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	clearSessionCookie(w)

	s.bindMu.Lock()
	holder := s.console.Holds(token, r.UserAgent()) == nil
	if holder {
		s.console.Revoke(token)
	}
	s.bindMu.Unlock()

	if holder {
		if err := s.auth.SignOut(r.Context()); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}
	if wantsHTML(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if _, bound := s.clientSnapshot(r); !bound {
		redirectToLogin(w, r)
		return
	}
	if err := s.auth.Retry(r.Context()); err != nil {
		if errors.Is(err, app.ErrNothingToRetry) {
			writeError(w, http.StatusConflict, err)
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.respondResolved(w, r, sessionToken(r))
}

// OIDC holds the single sign-on client.
type OIDC struct {
	OAuth2   oauth2.Config
	Verifier *oidc.IDTokenVerifier
}

// NewOIDC discovers issuer and builds the sign-on client.
func NewOIDC(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	return &OIDC{
		OAuth2: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		Verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

const stateCookie = "oauth_state"

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if s.oidc == nil {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies || r.TLS != nil,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.oidc.OAuth2.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if s.oidc == nil {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}

	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || r.URL.Query().Get("state") != state.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, MaxAge: -1, Path: "/"})

	token, err := s.oidc.OAuth2.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.logger.Warn("sso code exchange failed", "error", err)
		http.Error(w, "failed to exchange token", http.StatusBadGateway)
		return
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token", http.StatusBadGateway)
		return
	}
	idToken, err := s.oidc.Verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		s.logger.Warn("sso id token rejected", "error", err)
		http.Error(w, "failed to verify token", http.StatusUnauthorized)
		return
	}
	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		http.Error(w, "failed to parse claims", http.StatusBadGateway)
		return
	}

	// The backend accepts the identity provider's token as a third-party
	// credential, so the ID token doubles as the access token.
	sess := &domain.Session{
		Subject:     idToken.Subject,
		Email:       claims.Email,
		AccessToken: rawIDToken,
		ExpiresAt:   idToken.Expiry,
		IssuedAt:    idToken.IssuedAt,
	}
	_, err = s.establish(w, r, func(ctx context.Context) error {
		return s.auth.AdoptSession(ctx, sess)
	})
	if err != nil {
		if errors.Is(err, app.ErrAdoptUnsupported) {
			http.Error(w, "sso not supported by this backend", http.StatusNotImplemented)
			return
		}
		s.logger.Warn("sso session rejected", "error", err)
		http.Error(w, "login failed", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
