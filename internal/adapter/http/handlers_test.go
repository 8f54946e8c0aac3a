package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	adapthttp "storeadmin/internal/adapter/http"
	"storeadmin/internal/adapter/memory"
	"storeadmin/internal/app"
	"storeadmin/internal/domain"
)

// ---------------------------------------------------------------------------
// Mocks (function-fields pattern)
// ---------------------------------------------------------------------------

type mockProfiles struct {
	fetchFn func(ctx context.Context, subject string) (*domain.Profile, error)
}

func (m *mockProfiles) FetchProfile(ctx context.Context, subject string) (*domain.Profile, error) {
	return m.fetchFn(ctx, subject)
}

type mockProductRepo struct {
	domain.ProductRepository
	listFn func(ctx context.Context, order domain.ProductOrder) ([]domain.Product, error)
}

func (m *mockProductRepo) ListProducts(ctx context.Context, order domain.ProductOrder) ([]domain.Product, error) {
	return m.listFn(ctx, order)
}

// ---------------------------------------------------------------------------
// Test-server helper
// ---------------------------------------------------------------------------

var testNow = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

// env is a running console. Its client plays the operator's browser and
// keeps cookies between requests.
type env struct {
	ts     *httptest.Server
	db     *memory.DB
	auth   *app.AuthState
	client *http.Client
}

type envOptions struct {
	profiles domain.ProfileRepository
	products domain.ProductRepository
	server   []adapthttp.Option
}

func newTestServer(t *testing.T, o envOptions) *env {
	t.Helper()

	db := memory.New()
	if err := memory.Seed(db, "secret", testNow); err != nil {
		t.Fatal(err)
	}
	profiles := o.profiles
	if profiles == nil {
		profiles = db
	}
	products := o.products
	if products == nil {
		products = db
	}

	auth := app.NewAuthState(memory.NewAuthBackend(db, nil, nil), profiles, app.AuthStateConfig{ResolveTimeout: 2 * time.Second})
	if err := auth.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	webDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html>console</html>"), 0o600); err != nil {
		t.Fatal(err)
	}

	svc := adapthttp.Services{
		Products:  app.NewProductService(products),
		Inventory: app.NewInventoryService(products),
		Orders:    app.NewOrderService(db),
		Customers: app.NewCustomerService(db),
		Reports:   app.NewReportService(db, db),
		Settings:  app.NewSettingsService(db),
		Dashboard: app.NewDashboardService(db, db),
	}
	opts := append([]adapthttp.Option{adapthttp.WithClock(func() time.Time { return testNow })}, o.server...)
	srv := adapthttp.New(auth, svc, webDir, nil, opts...)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		auth.Dispose()
	})
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &env{ts: ts, db: db, auth: auth, client: newClient(jar)}
}

func newClient(jar http.CookieJar) *http.Client {
	return &http.Client{Jar: jar, CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
}

// do sends a request from the operator's browser.
func (e *env) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	return e.send(t, e.client, method, path, body)
}

// anonymous sends a request from a client without cookies.
func (e *env) anonymous(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	return e.send(t, newClient(nil), method, path, body)
}

func (e *env) send(t *testing.T, client *http.Client, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *env) login(t *testing.T, email string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": "secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", email, resp.StatusCode)
	}
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return m
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, b)
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	e := newTestServer(t, envOptions{})

	resp := e.do(t, http.MethodGet, "/api/health", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
	if body["auth"] != "unauthenticated" {
		t.Fatalf("expected auth=unauthenticated, got %v", body["auth"])
	}
}

func TestSessionSignedOut(t *testing.T) {
	e := newTestServer(t, envOptions{})

	body := decodeBody(t, e.do(t, http.MethodGet, "/api/session", nil))
	if body["status"] != "unauthenticated" || body["gate"] != "redirect" {
		t.Fatalf("unexpected session: %v", body)
	}
	if nav := body["navigation"].([]any); len(nav) != 0 {
		t.Fatalf("expected no navigation, got %v", nav)
	}
	if _, ok := body["user"]; ok {
		t.Fatal("signed-out session must not report a user")
	}
}

func TestGateRedirectsWhenSignedOut(t *testing.T) {
	e := newTestServer(t, envOptions{})

	resp := e.do(t, http.MethodGet, "/api/products", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	if body := decodeBody(t, resp); body["redirect"] != "/login" {
		t.Fatalf("expected redirect to /login, got %v", body)
	}

	resp = e.do(t, http.MethodGet, "/", nil)
	expectStatus(t, resp, http.StatusSeeOther)
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("expected Location /login, got %q", loc)
	}

	resp = e.do(t, http.MethodGet, "/login", nil)
	expectStatus(t, resp, http.StatusOK)
	page, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(page), "Sign in") {
		t.Fatal("login page not served")
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		password   string
		wantStatus int
		wantNav    int
		wantError  string
	}{
		{name: "admin", email: memory.DemoAdminEmail, password: "secret", wantStatus: http.StatusOK, wantNav: 7},
		{name: "accountant", email: memory.DemoAccountantEmail, password: "secret", wantStatus: http.StatusOK, wantNav: 6},
		{name: "customer denied", email: memory.DemoShopperEmail, password: "secret", wantStatus: http.StatusForbidden, wantError: app.AccessDeniedMessage},
		{name: "wrong password", email: memory.DemoAdminEmail, password: "nope", wantStatus: http.StatusUnauthorized, wantError: "invalid email or password"},
		{name: "unknown user", email: "ghost@store.test", password: "secret", wantStatus: http.StatusUnauthorized},
		{name: "missing password", email: memory.DemoAdminEmail, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(t, envOptions{})

			resp := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": tt.email, "password": tt.password})
			expectStatus(t, resp, tt.wantStatus)
			body := decodeBody(t, resp)
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Fatalf("expected error %q, got %v", tt.wantError, body["error"])
			}
			if tt.wantStatus == http.StatusOK {
				if nav := body["navigation"].([]any); len(nav) != tt.wantNav {
					t.Fatalf("expected %d navigation items, got %d", tt.wantNav, len(nav))
				}
				if strings.Contains(fmt.Sprint(body), "access_token") {
					t.Fatal("session view leaked a token")
				}
			}
		})
	}
}

func TestLoginDeniedNoticeShownOnce(t *testing.T) {
	e := newTestServer(t, envOptions{})

	resp := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": memory.DemoShopperEmail, "password": "secret"})
	expectStatus(t, resp, http.StatusForbidden)
	if notices := decodeBody(t, resp)["notices"].([]any); len(notices) != 1 {
		t.Fatalf("expected one notice with the denial, got %v", notices)
	}

	body := decodeBody(t, e.do(t, http.MethodGet, "/api/session", nil))
	if body["status"] != "unauthenticated" {
		t.Fatalf("expected unauthenticated, got %v", body["status"])
	}
	if notices := body["notices"].([]any); len(notices) != 0 {
		t.Fatalf("notice repeated: %v", notices)
	}
}

func TestAdminNavigationAndAffordances(t *testing.T) {
	e := newTestServer(t, envOptions{})
	e.login(t, memory.DemoAdminEmail)

	body := decodeBody(t, e.do(t, http.MethodGet, "/api/session", nil))
	if body["status"] != "authorized" || body["decision"] != "authorized" || body["gate"] != "mount" {
		t.Fatalf("unexpected session: %v", body)
	}
	nav := body["navigation"].([]any)
	last := nav[len(nav)-1].(map[string]any)
	if last["name"] != "Settings" {
		t.Fatalf("expected Settings last, got %v", last)
	}
	aff := body["affordances"].(map[string]any)
	if aff["create_product"] != true || aff["manage_settings"] != true {
		t.Fatalf("admin affordances missing: %v", aff)
	}
	profile := body["profile"].(map[string]any)
	if profile["role"] != "admin" {
		t.Fatalf("expected admin profile, got %v", profile)
	}
}

func TestGateWaitsWhileResolving(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	e := newTestServer(t, envOptions{profiles: &mockProfiles{fetchFn: func(ctx context.Context, subject string) (*domain.Profile, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &domain.Profile{ID: subject, Role: domain.RoleAdmin}, nil
	}}})

	if err := e.auth.SignIn(context.Background(), memory.DemoAdminEmail, "secret"); err != nil {
		t.Fatal(err)
	}

	resp := e.do(t, http.MethodGet, "/api/products", nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	if resp.Header.Get("Retry-After") != "1" {
		t.Fatal("expected Retry-After while resolving")
	}
	if body := decodeBody(t, resp); body["status"] != "resolving_profile" {
		t.Fatalf("expected resolving_profile, got %v", body)
	}

	resp = e.do(t, http.MethodGet, "/", nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	page, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(page), "Loading") || strings.Contains(string(page), "console") {
		t.Fatalf("expected neutral waiting page, got %s", page)
	}

	unblock()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if snap, err := e.auth.Await(ctx); err != nil || snap.Status != app.StatusAuthorized {
		t.Fatalf("expected authorized, got %v (%v)", snap.Status, err)
	}

	// No client holds the console cookie for a session signed in directly.
	expectStatus(t, e.do(t, http.MethodGet, "/api/products", nil), http.StatusUnauthorized)

	e.login(t, memory.DemoAdminEmail)
	expectStatus(t, e.do(t, http.MethodGet, "/api/products", nil), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodGet, "/", nil), http.StatusOK)
}

func TestGateUnresolvableAndRetry(t *testing.T) {
	var mu sync.Mutex
	failing := true
	e := newTestServer(t, envOptions{profiles: &mockProfiles{fetchFn: func(_ context.Context, subject string) (*domain.Profile, error) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return nil, fmt.Errorf("%w: connection refused", domain.ErrUnavailable)
		}
		return &domain.Profile{ID: subject, Role: domain.RoleAccountant}, nil
	}}})

	resp := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": memory.DemoAccountantEmail, "password": "secret"})
	expectStatus(t, resp, http.StatusServiceUnavailable)

	resp = e.do(t, http.MethodGet, "/api/orders", nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	body := decodeBody(t, resp)
	if body["status"] != "unresolvable" || body["actions"] == nil {
		t.Fatalf("expected unresolvable with actions, got %v", body)
	}
	if strings.Contains(fmt.Sprint(body), "connection refused") {
		t.Fatal("backend error leaked to client")
	}

	mu.Lock()
	failing = false
	mu.Unlock()

	resp = e.do(t, http.MethodPost, "/api/auth/retry", nil)
	expectStatus(t, resp, http.StatusOK)
	if body := decodeBody(t, resp); body["status"] != "authorized" {
		t.Fatalf("expected authorized after retry, got %v", body["status"])
	}
	expectStatus(t, e.do(t, http.MethodPost, "/api/auth/retry", nil), http.StatusConflict)
	expectStatus(t, e.do(t, http.MethodGet, "/api/orders", nil), http.StatusOK)
}

func TestProductsAsAdmin(t *testing.T) {
	e := newTestServer(t, envOptions{})
	e.login(t, memory.DemoAdminEmail)

	resp := e.do(t, http.MethodGet, "/api/products?q=fr-", nil)
	expectStatus(t, resp, http.StatusOK)
	if items := decodeBody(t, resp)["items"].([]any); len(items) != 2 {
		t.Fatalf("expected 2 produce items, got %d", len(items))
	}

	newProduct := map[string]any{"name": "Oat Milk", "sku": "DA-200", "category": "Dairy", "price": "2.49", "cost_price": "1.10", "stock_quantity": 12}
	resp = e.do(t, http.MethodPost, "/api/products", newProduct)
	expectStatus(t, resp, http.StatusCreated)
	created := decodeBody(t, resp)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("expected id, got %v", created)
	}

	expectStatus(t, e.do(t, http.MethodPost, "/api/products", newProduct), http.StatusConflict)

	invalid := map[string]any{"name": "", "sku": "X", "category": "Dairy"}
	resp = e.do(t, http.MethodPost, "/api/products", invalid)
	expectStatus(t, resp, http.StatusBadRequest)
	if msg := decodeBody(t, resp)["error"].(string); !strings.Contains(msg, "name is required") {
		t.Fatalf("unexpected validation message %q", msg)
	}

	newProduct["stock_quantity"] = 3
	resp = e.do(t, http.MethodPut, "/api/products/"+id, newProduct)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody(t, resp)["stock_quantity"]; got != float64(3) {
		t.Fatalf("expected stock 3, got %v", got)
	}

	expectStatus(t, e.do(t, http.MethodGet, "/api/products/"+id, nil), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodDelete, "/api/products/"+id, nil), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodGet, "/api/products/"+id, nil), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodDelete, "/api/products/"+id, nil), http.StatusNotFound)
}

func TestAccountantIsReadOnly(t *testing.T) {
	e := newTestServer(t, envOptions{})
	e.login(t, memory.DemoAccountantEmail)

	product := map[string]any{"name": "Oat Milk", "sku": "DA-200", "category": "Dairy"}
	expectStatus(t, e.do(t, http.MethodPost, "/api/products", product), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodPut, "/api/products/prod-milk", product), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodDelete, "/api/products/prod-milk", nil), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodGet, "/api/settings", nil), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodGet, "/api/products", nil), http.StatusOK)

	resp := e.do(t, http.MethodGet, "/api/reports/export.csv", nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv, got %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "financial_report.csv") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	csv, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(csv), "date,revenue,cost,profit\n") {
		t.Fatalf("unexpected csv header: %q", csv)
	}
}

func TestConsolePages(t *testing.T) {
	e := newTestServer(t, envOptions{})
	e.login(t, memory.DemoAdminEmail)

	body := decodeBody(t, e.do(t, http.MethodGet, "/api/dashboard", nil))
	if _, ok := body["total_revenue"]; !ok {
		t.Fatalf("dashboard missing total_revenue: %v", body)
	}
	if week := body["weekly_revenue"].([]any); len(week) != 7 {
		t.Fatalf("expected 7 weekday slots, got %d", len(week))
	}

	body = decodeBody(t, e.do(t, http.MethodGet, "/api/reports/summary", nil))
	if body["period"] != "2026-03" {
		t.Fatalf("expected period 2026-03, got %v", body["period"])
	}

	body = decodeBody(t, e.do(t, http.MethodGet, "/api/inventory", nil))
	if body["out_of_stock"] != float64(1) {
		t.Fatalf("expected one out-of-stock product, got %v", body["out_of_stock"])
	}

	body = decodeBody(t, e.do(t, http.MethodGet, "/api/orders", nil))
	orders := body["items"].([]any)
	if len(orders) == 0 {
		t.Fatal("expected seeded orders")
	}
	first := orders[0].(map[string]any)
	resp := e.do(t, http.MethodGet, "/api/orders/"+first["id"].(string), nil)
	expectStatus(t, resp, http.StatusOK)
	if items := decodeBody(t, resp)["items"].([]any); len(items) == 0 {
		t.Fatal("expected order items")
	}
	expectStatus(t, e.do(t, http.MethodGet, "/api/orders/missing", nil), http.StatusNotFound)

	body = decodeBody(t, e.do(t, http.MethodGet, "/api/customers?q=ada", nil))
	if items := body["items"].([]any); len(items) != 1 {
		t.Fatalf("expected one customer match, got %d", len(items))
	}

	resp = e.do(t, http.MethodPut, "/api/settings", map[string]any{"store_name": "Main Street Market", "support_email": "help@store.test"})
	expectStatus(t, resp, http.StatusOK)
	body = decodeBody(t, e.do(t, http.MethodGet, "/api/settings", nil))
	if body["store_name"] != "Main Street Market" {
		t.Fatalf("settings not saved: %v", body)
	}
	expectStatus(t, e.do(t, http.MethodPut, "/api/settings", map[string]any{"store_name": " "}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPut, "/api/settings", map[string]any{"store_name": "X", "bogus": 1}), http.StatusBadRequest)
}

func TestLogout(t *testing.T) {
	e := newTestServer(t, envOptions{})
	e.login(t, memory.DemoAdminEmail)

	expectStatus(t, e.do(t, http.MethodPost, "/api/auth/logout", nil), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodGet, "/api/products", nil), http.StatusUnauthorized)
	expectStatus(t, e.do(t, http.MethodPost, "/api/auth/logout", nil), http.StatusOK)

	if st := e.auth.Snapshot().Status; st != app.StatusUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", st)
	}
}

func TestBackendErrorsAreNotLeaked(t *testing.T) {
	e := newTestServer(t, envOptions{products: &mockProductRepo{listFn: func(context.Context, domain.ProductOrder) ([]domain.Product, error) {
		return nil, fmt.Errorf("%w: dial tcp 10.0.0.5:5432: refused", domain.ErrUnavailable)
	}}})
	e.login(t, memory.DemoAdminEmail)

	resp := e.do(t, http.MethodGet, "/api/products", nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	if body := decodeBody(t, resp); body["error"] != http.StatusText(http.StatusServiceUnavailable) {
		t.Fatalf("unexpected error body %v", body)
	}

	e2 := newTestServer(t, envOptions{products: &mockProductRepo{listFn: func(context.Context, domain.ProductOrder) ([]domain.Product, error) {
		return nil, errors.New("boom")
	}}})
	e2.login(t, memory.DemoAdminEmail)
	expectStatus(t, e2.do(t, http.MethodGet, "/api/inventory", nil), http.StatusInternalServerError)
}

func TestSSO(t *testing.T) {
	e := newTestServer(t, envOptions{})
	if body := decodeBody(t, e.do(t, http.MethodGet, "/api/config", nil)); body["sso_enabled"] != false {
		t.Fatalf("expected sso disabled, got %v", body)
	}
	expectStatus(t, e.do(t, http.MethodGet, "/api/auth/sso/login", nil), http.StatusNotFound)

	withSSO := newTestServer(t, envOptions{server: []adapthttp.Option{adapthttp.WithOIDC(&adapthttp.OIDC{})}})
	if body := decodeBody(t, withSSO.do(t, http.MethodGet, "/api/config", nil)); body["sso_enabled"] != true {
		t.Fatalf("expected sso enabled, got %v", body)
	}
	expectStatus(t, withSSO.do(t, http.MethodGet, "/api/auth/sso/callback?state=forged&code=x", nil), http.StatusBadRequest)
}

func TestOtherClientsCannotUseOperatorSession(t *testing.T) {
	e := newTestServer(t, envOptions{})
	e.login(t, memory.DemoAdminEmail)

	resp := e.anonymous(t, http.MethodDelete, "/api/products/prod-apples", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	if body := decodeBody(t, resp); body["redirect"] != "/login" {
		t.Fatalf("expected redirect to /login, got %v", body)
	}
	expectStatus(t, e.anonymous(t, http.MethodGet, "/api/settings", nil), http.StatusUnauthorized)
	expectStatus(t, e.anonymous(t, http.MethodPut, "/api/settings", map[string]any{"store_name": "Hijacked"}), http.StatusUnauthorized)

	resp = e.anonymous(t, http.MethodGet, "/", nil)
	expectStatus(t, resp, http.StatusSeeOther)
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("expected Location /login, got %q", loc)
	}

	body := decodeBody(t, e.anonymous(t, http.MethodGet, "/api/session", nil))
	if body["status"] != "unauthenticated" || body["gate"] != "redirect" {
		t.Fatalf("anonymous client saw the operator session: %v", body)
	}
	if _, ok := body["user"]; ok {
		t.Fatal("anonymous client saw the operator identity")
	}

	expectStatus(t, e.anonymous(t, http.MethodPost, "/api/auth/retry", nil), http.StatusUnauthorized)
	expectStatus(t, e.anonymous(t, http.MethodPost, "/api/auth/logout", nil), http.StatusOK)
	if st := e.auth.Snapshot().Status; st != app.StatusAuthorized {
		t.Fatalf("anonymous logout ended the operator session: %s", st)
	}

	forged, err := http.NewRequest(http.MethodGet, e.ts.URL+"/api/products", nil)
	if err != nil {
		t.Fatal(err)
	}
	forged.AddCookie(&http.Cookie{Name: "session", Value: "guessed"})
	resp, err = newClient(nil).Do(forged)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	expectStatus(t, resp, http.StatusUnauthorized)

	expectStatus(t, e.do(t, http.MethodGet, "/api/products/prod-apples", nil), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodGet, "/api/settings", nil), http.StatusOK)
}

func TestLaterLoginTakesOverConsole(t *testing.T) {
	e := newTestServer(t, envOptions{})
	e.login(t, memory.DemoAdminEmail)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	second := newClient(jar)
	resp := e.send(t, second, http.MethodPost, "/api/auth/login", map[string]string{"email": memory.DemoAccountantEmail, "password": "secret"})
	expectStatus(t, resp, http.StatusOK)

	expectStatus(t, e.send(t, second, http.MethodGet, "/api/reports/summary", nil), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodGet, "/api/settings", nil), http.StatusUnauthorized)
	expectStatus(t, e.do(t, http.MethodGet, "/api/products", nil), http.StatusUnauthorized)
}

func TestNoticesGoOnlyToSessionHolder(t *testing.T) {
	e := newTestServer(t, envOptions{})

	resp := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": memory.DemoShopperEmail, "password": "secret"})
	expectStatus(t, resp, http.StatusForbidden)
	_ = decodeBody(t, resp)

	// A denial that happens outside a login request stays queued.
	if err := e.auth.SignIn(context.Background(), memory.DemoShopperEmail, "secret"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := e.auth.Await(ctx); err != nil {
		t.Fatal(err)
	}

	body := decodeBody(t, e.anonymous(t, http.MethodGet, "/api/session", nil))
	if notices := body["notices"].([]any); len(notices) != 0 {
		t.Fatalf("anonymous client drained notices: %v", notices)
	}

	body = decodeBody(t, e.do(t, http.MethodGet, "/api/session", nil))
	notices := body["notices"].([]any)
	if len(notices) != 1 {
		t.Fatalf("expected the queued denial for the session holder, got %v", notices)
	}
	if msg := notices[0].(map[string]any)["message"]; msg != app.AccessDeniedMessage {
		t.Fatalf("unexpected notice %v", msg)
	}
}

func TestExpiredConsoleSessionRedirects(t *testing.T) {
	var mu sync.Mutex
	now := time.Now()
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	e := newTestServer(t, envOptions{server: []adapthttp.Option{
		adapthttp.WithConsoleSessions(app.NewConsoleSessions(time.Hour, clock)),
	}})
	e.login(t, memory.DemoAdminEmail)
	expectStatus(t, e.do(t, http.MethodGet, "/api/dashboard", nil), http.StatusOK)

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()
	expectStatus(t, e.do(t, http.MethodGet, "/api/dashboard", nil), http.StatusUnauthorized)
}

func TestHealthChecks(t *testing.T) {
	healthy := newTestServer(t, envOptions{server: []adapthttp.Option{
		adapthttp.WithHealthCheck("postgres", func(context.Context) error { return nil }),
	}})
	resp := healthy.do(t, http.MethodGet, "/api/health", nil)
	expectStatus(t, resp, http.StatusOK)
	checks := decodeBody(t, resp)["checks"].(map[string]any)
	if checks["postgres"] != "ok" {
		t.Fatalf("expected postgres ok, got %v", checks)
	}

	down := newTestServer(t, envOptions{server: []adapthttp.Option{
		adapthttp.WithHealthCheck("postgres", func(context.Context) error { return errors.New("dial tcp: refused") }),
	}})
	resp = down.do(t, http.MethodGet, "/api/health", nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	body := decodeBody(t, resp)
	if body["ok"] != false {
		t.Fatalf("expected ok=false, got %v", body)
	}
	if checks := body["checks"].(map[string]any); checks["postgres"] != "unavailable" {
		t.Fatalf("expected postgres unavailable, got %v", checks)
	}
	if strings.Contains(fmt.Sprint(body), "refused") {
		t.Fatal("health check leaked the dependency error")
	}
}
