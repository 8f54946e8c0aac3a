// Package config loads runtime settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendHosted = "hosted"
	BackendMemory = "memory"

	SessionStoreSQLite = "sqlite"
	SessionStoreRedis  = "redis"
)

// Config holds every runtime setting.
type Config struct {
	Addr      string `yaml:"addr"`
	WebDir    string `yaml:"web_dir"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Backend selects the auth and data backend: hosted or memory.
	Backend       string `yaml:"backend"`
	BackendURL    string `yaml:"backend_url"`
	BackendAPIKey string `yaml:"backend_api_key"`
	// DatabaseURL switches data reads and writes to a direct Postgres
	// connection. Auth still goes through the backend.
	DatabaseURL string `yaml:"database_url"`
	// DemoPassword is the password of the seeded memory backend users.
	DemoPassword string `yaml:"demo_password"`

	SessionStore  string `yaml:"session_store"`
	SessionDBPath string `yaml:"session_db_path"`
	RedisURL      string `yaml:"redis_url"`

	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
	HTTPRetryMax   int           `yaml:"http_retry_max"`

	OIDCIssuer       string `yaml:"oidc_issuer"`
	OIDCClientID     string `yaml:"oidc_client_id"`
	OIDCClientSecret string `yaml:"oidc_client_secret"`
	OIDCRedirectURL  string `yaml:"oidc_redirect_url"`

	SecureCookies bool `yaml:"secure_cookies"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() *Config {
	return &Config{
		Addr:           ":8080",
		WebDir:         "web",
		LogLevel:       "info",
		LogFormat:      "text",
		Backend:        BackendHosted,
		SessionStore:   SessionStoreSQLite,
		SessionDBPath:  "storeadmin-session.db",
		ResolveTimeout: 10 * time.Second,
		HTTPRetryMax:   3,
	}
}

// Load builds the configuration. Values from the YAML file at path (if
// non-empty) are overridden by environment variables, which may themselves
// come from a .env file in the working directory.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := Defaults()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Addr, "ADDR")
	setString(&c.WebDir, "WEB_DIR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.Backend, "BACKEND")
	setString(&c.BackendURL, "BACKEND_URL")
	setString(&c.BackendAPIKey, "BACKEND_API_KEY")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.DemoPassword, "DEMO_PASSWORD")
	setString(&c.SessionStore, "SESSION_STORE")
	setString(&c.SessionDBPath, "SESSION_DB_PATH")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.OIDCIssuer, "OIDC_ISSUER")
	setString(&c.OIDCClientID, "OIDC_CLIENT_ID")
	setString(&c.OIDCClientSecret, "OIDC_CLIENT_SECRET")
	setString(&c.OIDCRedirectURL, "OIDC_REDIRECT_URL")

	if v := os.Getenv("RESOLVE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RESOLVE_TIMEOUT: %w", err)
		}
		c.ResolveTimeout = d
	}
	if v := os.Getenv("HTTP_RETRY_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_RETRY_MAX: %w", err)
		}
		c.HTTPRetryMax = n
	}
	if v := os.Getenv("SECURE_COOKIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SECURE_COOKIES: %w", err)
		}
		c.SecureCookies = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate reports every invalid or missing setting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendHosted:
		if c.BackendURL == "" {
			errs = append(errs, errors.New("BACKEND_URL is required for the hosted backend"))
		} else if u, err := url.Parse(c.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("BACKEND_URL %q is not an absolute URL", c.BackendURL))
		}
		if c.BackendAPIKey == "" {
			errs = append(errs, errors.New("BACKEND_API_KEY is required for the hosted backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("BACKEND must be %q or %q, got %q", BackendHosted, BackendMemory, c.Backend))
	}

	switch c.SessionStore {
	case SessionStoreSQLite:
		if c.SessionDBPath == "" {
			errs = append(errs, errors.New("SESSION_DB_PATH is required for the sqlite session store"))
		}
	case SessionStoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis session store"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreSQLite, SessionStoreRedis, c.SessionStore))
	}

	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	if c.ResolveTimeout <= 0 {
		errs = append(errs, errors.New("RESOLVE_TIMEOUT must be positive"))
	}
	if c.HTTPRetryMax < 0 {
		errs = append(errs, errors.New("HTTP_RETRY_MAX must not be negative"))
	}
	if c.OIDCIssuer != "" || c.OIDCClientID != "" {
		if c.OIDCIssuer == "" || c.OIDCClientID == "" || c.OIDCRedirectURL == "" {
			errs = append(errs, errors.New("OIDC_ISSUER, OIDC_CLIENT_ID and OIDC_REDIRECT_URL must be set together"))
		}
	}
	return errors.Join(errs...)
}

// SSOEnabled reports whether OIDC sign-in is configured.
func (c *Config) SSOEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != ""
}
