package adapthttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"storeadmin/internal/app"
	"storeadmin/internal/domain"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	profileKey   contextKey = "profile"
)

// requestIDMiddleware tags each request with an id, reusing one supplied by
// a proxy.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// loggingMiddleware logs method, path, status and duration of each request.
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			level := slog.LevelInfo
			if sw.status >= 500 {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
				"request_id", requestIDFrom(r.Context()),
			)
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

const sessionCookie = "session"

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies || r.TLS != nil,
		SameSite: http.SameSiteLaxMode, // Lax so the SSO callback redirect carries it
		MaxAge:   int(s.console.TTL().Seconds()),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// clientSnapshot is the auth state as the requesting client may see it.
// Only the client holding the console token sees the operator session.
// Everyone else sees no session, or the neutral waiting state while a
// resolution is in progress.
func (s *Server) clientSnapshot(r *http.Request) (app.Snapshot, bool) {
	return s.scope(s.auth.Snapshot(), sessionToken(r), r.UserAgent())
}

func (s *Server) scope(snap app.Snapshot, token, userAgent string) (app.Snapshot, bool) {
	subject := ""
	if snap.Session != nil {
		subject = snap.Session.Subject
	}
	if s.console.Validate(token, userAgent, subject) == nil {
		return snap, true
	}
	if snap.Loading() {
		return app.Snapshot{Status: snap.Status}, false
	}
	return app.Snapshot{Status: app.StatusUnauthenticated}, false
}

// gate admits a request only when it comes from the client that opened the
// operator session and that session's profile may use the console. While
// the session is still resolving it answers with a neutral waiting response,
// never the protected content and never the sign-in redirect.
func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, _ := s.clientSnapshot(r)
		switch app.Gate(snap) {
		case app.GateMount:
			ctx := context.WithValue(r.Context(), profileKey, snap.Profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		case app.GateWait:
			w.Header().Set("Retry-After", "1")
			if isAPI(r) {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": snap.Status})
				return
			}
			writeHTML(w, http.StatusServiceUnavailable, waitingPage)
		case app.GateUnresolvable:
			if isAPI(r) {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status":  snap.Status,
					"error":   unresolvableMessage,
					"actions": []string{"retry", "logout"},
				})
				return
			}
			writeHTML(w, http.StatusServiceUnavailable, unresolvablePage)
		default:
			redirectToLogin(w, r)
		}
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if isAPI(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"redirect": "/login"})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func profileFrom(ctx context.Context) *domain.Profile {
	p, _ := ctx.Value(profileKey).(*domain.Profile)
	return p
}

// requireRole rejects requests whose gated profile does not have role.
func requireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := profileFrom(r.Context()); p == nil || p.Role != role {
				writeError(w, http.StatusForbidden, errors.New("this action requires the "+string(role)+" role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
