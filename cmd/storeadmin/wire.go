package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"storeadmin/internal/adapter/hosted"
	adapthttp "storeadmin/internal/adapter/http"
	"storeadmin/internal/adapter/memory"
	"storeadmin/internal/adapter/postgres"
	"storeadmin/internal/adapter/redis"
	"storeadmin/internal/adapter/sqlite"
	"storeadmin/internal/app"
	"storeadmin/internal/config"
	"storeadmin/internal/domain"
	"storeadmin/internal/logging"
	"storeadmin/internal/metrics"
)

// dataStore is implemented by every data adapter.
type dataStore interface {
	domain.ProductRepository
	domain.OrderRepository
	domain.CustomerRepository
	domain.SettingsRepository
	domain.ProfileRepository
}

// runtime is the wired application shared by the commands.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	auth    *app.AuthState
	data    dataStore
	// pg is set when data access goes straight to Postgres.
	pg      *postgres.DB
	closers []func() error
}

type buildOptions struct {
	persist bool
	stderr  io.Writer
}

type buildOption func(*buildOptions)

// withoutPersistence keeps the session in memory only, so the persisted
// operator session of a running console is neither recovered nor cleared.
func withoutPersistence(o *buildOptions) { o.persist = false }

// withStderr sets where one-time operator messages are printed.
func withStderr(w io.Writer) buildOption {
	return func(o *buildOptions) { o.stderr = w }
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	return cfg, logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat), nil
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...buildOption) (*runtime, error) {
	o := buildOptions{persist: true, stderr: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	rt := &runtime{cfg: cfg, logger: logger, metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			rt.close()
		}
	}()

	var persister domain.SessionPersister
	if o.persist {
		p, err := rt.openPersister(ctx)
		if err != nil {
			return nil, err
		}
		persister = p
	}

	var backend domain.AuthBackend
	switch cfg.Backend {
	case config.BackendMemory:
		db := memory.New()
		password := cfg.DemoPassword
		if password == "" {
			password = uuid.NewString()
			logger.Warn("DEMO_PASSWORD not set; generated a password for the seeded users")
			fmt.Fprintf(o.stderr, "seeded users sign in with password %s\n", password)
		}
		if err := memory.Seed(db, password, time.Now()); err != nil {
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		logger.Info("memory backend ready", "users", []string{memory.DemoAdminEmail, memory.DemoAccountantEmail, memory.DemoShopperEmail})
		backend = memory.NewAuthBackend(db, persister, logger)
		rt.data = db
	case config.BackendHosted:
		client, err := hosted.New(hosted.Options{
			BaseURL:  cfg.BackendURL,
			APIKey:   cfg.BackendAPIKey,
			RetryMax: cfg.HTTPRetryMax,
			Logger:   logger,
			Metrics:  rt.metrics,
		})
		if err != nil {
			return nil, err
		}
		auth := hosted.NewAuth(client, persister)
		backend = auth
		rt.data = hosted.NewData(client, auth)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		rt.closers = append(rt.closers, pg.Close)
		rt.data = pg
		rt.pg = pg
		logger.Info("data access through postgres")
	}

	rt.auth = app.NewAuthState(backend, rt.data, app.AuthStateConfig{
		ResolveTimeout: cfg.ResolveTimeout,
		Logger:         logger,
		Metrics:        rt.metrics,
	})
	ok = true
	return rt, nil
}

func (rt *runtime) openPersister(ctx context.Context) (domain.SessionPersister, error) {
	switch rt.cfg.SessionStore {
	case config.SessionStoreRedis:
		client, err := redis.Dial(ctx, rt.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		rt.closers = append(rt.closers, client.Close)
		return redis.NewSessionStore(client, redis.DefaultKey), nil
	default:
		store, err := sqlite.Open(ctx, rt.cfg.SessionDBPath, rt.logger)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		rt.closers = append(rt.closers, store.Close)
		return store, nil
	}
}

func (rt *runtime) services() adapthttp.Services {
	return adapthttp.Services{
		Products:  app.NewProductService(rt.data),
		Inventory: app.NewInventoryService(rt.data),
		Orders:    app.NewOrderService(rt.data),
		Customers: app.NewCustomerService(rt.data),
		Reports:   app.NewReportService(rt.data, rt.data),
		Settings:  app.NewSettingsService(rt.data),
		Dashboard: app.NewDashboardService(rt.data, rt.data),
	}
}

// close releases adapters in reverse order of opening.
func (rt *runtime) close() {
	if rt.auth != nil {
		rt.auth.Dispose()
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		rt.logger.Warn("shutdown", "error", err)
	}
}
