package adapthttp

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storeadmin/internal/app"
	"storeadmin/internal/domain"
	"storeadmin/internal/metrics"
)

// Services groups the application services the console pages call.
type Services struct {
	Products  *app.ProductService
	Inventory *app.InventoryService
	Orders    *app.OrderService
	Customers *app.CustomerService
	Reports   *app.ReportService
	Settings  *app.SettingsService
	Dashboard *app.DashboardService
}

// Server is the driving HTTP adapter that routes requests to application
// services behind the access gate.
type Server struct {
	router        chi.Router
	auth          *app.AuthState
	svc           Services
	webDir        string
	logger        *slog.Logger
	metrics       *metrics.Metrics
	oidc          *OIDC
	secureCookies bool
	now           func() time.Time
	notices       *noticeBox
	checks        []healthCheck

	// console binds the operator session to the client that signed in.
	// bindMu keeps sign-in and binding atomic across handlers.
	console *app.ConsoleSessions
	bindMu  sync.Mutex
}

type healthCheck struct {
	name  string
	check func(context.Context) error
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithOIDC enables single sign-on.
func WithOIDC(o *OIDC) Option {
	return func(s *Server) { s.oidc = o }
}

// WithMetrics exposes m at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithSecureCookies marks cookies Secure regardless of the request scheme.
func WithSecureCookies(on bool) Option {
	return func(s *Server) { s.secureCookies = on }
}

// WithClock overrides the clock used for dashboard and report periods.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithHealthCheck adds a dependency check reported by /api/health.
func WithHealthCheck(name string, check func(context.Context) error) Option {
	return func(s *Server) { s.checks = append(s.checks, healthCheck{name: name, check: check}) }
}

// WithConsoleSessions replaces the default console session binding.
func WithConsoleSessions(c *app.ConsoleSessions) Option {
	return func(s *Server) { s.console = c }
}

// New creates a Server. auth must already be initialized; the server reads
// it but does not own it.
func New(auth *app.AuthState, svc Services, webDir string, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router: chi.NewRouter(),
		auth:   auth,
		svc:    svc,
		webDir: webDir,
		logger: logger.With("component", "http"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.console == nil {
		s.console = app.NewConsoleSessions(app.DefaultConsoleSessionTTL, nil)
	}
	s.notices = newNoticeBox(auth)
	s.routes()
	return s
}

// Close stops collecting auth notices.
func (s *Server) Close() {
	s.notices.close()
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(withNoCache)

	r.Get("/metrics", s.metrics.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleConfig)
		r.Get("/session", s.handleSession)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.Post("/retry", s.handleRetry)
			r.Get("/sso/login", s.handleSSOLogin)
			r.Get("/sso/callback", s.handleSSOCallback)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.gate)

			r.Get("/dashboard", s.handleDashboard)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", s.handleListProducts)
				r.With(requireRole(domain.RoleAdmin)).Post("/", s.handleCreateProduct)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetProduct)
					r.With(requireRole(domain.RoleAdmin)).Put("/", s.handleUpdateProduct)
					r.With(requireRole(domain.RoleAdmin)).Delete("/", s.handleDeleteProduct)
				})
			})

			r.Get("/inventory", s.handleInventory)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", s.handleListOrders)
				r.Get("/{id}", s.handleGetOrder)
			})

			r.Get("/customers", s.handleListCustomers)

			r.Route("/reports", func(r chi.Router) {
				r.Get("/summary", s.handleReportSummary)
				r.Get("/export.csv", s.handleReportExport)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Use(requireRole(domain.RoleAdmin))
				r.Get("/", s.handleGetSettings)
				r.Put("/", s.handleSaveSettings)
			})
		})
	})

	r.Get("/login", s.handleLoginPage)
	r.Handle("/assets/*", http.FileServer(http.Dir(s.webDir)))
	r.Group(func(r chi.Router) {
		r.Use(s.gate)
		r.Handle("/*", spaFromDisk(s.webDir))
	})
}
