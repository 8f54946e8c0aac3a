// Package hosted talks to the hosted backend: OAuth2 password and refresh
// grants under /auth/v1 and a PostgREST-style data API under /rest/v1.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"storeadmin/internal/domain"
	"storeadmin/internal/metrics"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the project endpoint, e.g. https://xyz.example.co.
	BaseURL string
	// APIKey is the public key sent with every request.
	APIKey   string
	RetryMax int
	Timeout  time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Metrics

	retryWaitMin time.Duration
}

// Client is the shared HTTP plumbing for the auth and data adapters.
type Client struct {
	base    *url.URL
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New validates opts and builds a Client. There is no default endpoint.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" || opts.APIKey == "" {
		return nil, errors.New("hosted backend: base URL and API key are required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("hosted backend: invalid base URL %q", opts.BaseURL)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "hosted")

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.Logger = logger
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.retryWaitMin > 0 {
		rc.RetryWaitMin = opts.retryWaitMin
		rc.RetryWaitMax = opts.retryWaitMin * 4
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rc.HTTPClient.Timeout = timeout

	std := rc.StandardClient()
	std.Transport = &apiKeyTransport{key: opts.APIKey, next: std.Transport}

	return &Client{base: base, apiKey: opts.APIKey, http: std, logger: logger, metrics: opts.Metrics}, nil
}

// apiKeyTransport adds the project key to every request, including the ones
// made by the oauth2 package.
type apiKeyTransport struct {
	key  string
	next http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("apikey", t.key)
	return t.next.RoundTrip(r)
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Status int
	Body   string
	kind   error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hosted backend: status %d: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return e.kind }

func statusKind(code int) error {
	switch {
	case code == http.StatusNotFound || code == http.StatusNotAcceptable:
		return domain.ErrNotFound
	case code == http.StatusConflict:
		return domain.ErrConflict
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrForbidden
	case code >= 500:
		return domain.ErrUnavailable
	}
	return nil
}

type request struct {
	method string
	table  string
	query  url.Values
	body   any
	token  string
	prefer string
}

// rest performs a data API call and decodes the JSON response into out.
func (c *Client) rest(ctx context.Context, r request, out any) error {
	u := c.endpoint("/rest/v1/" + r.table)
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.table, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return err
	}
	token := r.token
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.BackendRequest(r.table, "error")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", domain.ErrUnavailable, r.method, r.table, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	c.metrics.BackendRequest(r.table, fmt.Sprintf("%dxx", resp.StatusCode/100))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Debug("backend request failed", "method", r.method, "table", r.table, "status", resp.StatusCode)
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg)), kind: statusKind(resp.StatusCode)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", r.table, err)
	}
	return nil
}
