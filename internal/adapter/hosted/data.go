package hosted

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storeadmin/internal/domain"
)

// TokenSource supplies the bearer token for data calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Data implements the domain repositories over the data API. Row-level
// policies at the backend apply to the signed-in user's token.
type Data struct {
	client *Client
	tokens TokenSource
}

var (
	_ domain.ProductRepository  = (*Data)(nil)
	_ domain.OrderRepository    = (*Data)(nil)
	_ domain.CustomerRepository = (*Data)(nil)
	_ domain.SettingsRepository = (*Data)(nil)
	_ domain.ProfileRepository  = (*Data)(nil)
)

// NewData creates the data adapter. tokens may be nil for anonymous access.
func NewData(c *Client, tokens TokenSource) *Data {
	return &Data{client: c, tokens: tokens}
}

func (d *Data) call(ctx context.Context, r request, out any) error {
	if d.tokens != nil {
		tok, err := d.tokens.AccessToken(ctx)
		if err != nil {
			return err
		}
		r.token = tok
	}
	return d.client.rest(ctx, r, out)
}

func eq(v string) string { return "eq." + v }

// --- profiles ---

type profileRow struct {
	ID            string     `json:"id"`
	Role          string     `json:"role"`
	FullName      *string    `json:"full_name"`
	Email         *string    `json:"email"`
	LoyaltyPoints *int       `json:"loyalty_points"`
	CreatedAt     *time.Time `json:"created_at"`
}

func (r profileRow) toDomain() domain.Profile {
	p := domain.Profile{ID: r.ID, Role: domain.Role(r.Role), CreatedAt: r.CreatedAt}
	if r.FullName != nil {
		p.FullName = *r.FullName
	}
	if r.Email != nil {
		p.Email = *r.Email
	}
	if r.LoyaltyPoints != nil {
		p.LoyaltyPoints = *r.LoyaltyPoints
	}
	return p
}

// FetchProfile returns the profile whose id is subject.
func (d *Data) FetchProfile(ctx context.Context, subject string) (*domain.Profile, error) {
	var rows []profileRow
	err := d.call(ctx, request{
		method: http.MethodGet,
		table:  "profiles",
		query:  url.Values{"select": {"*"}, "id": {eq(subject)}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	p := rows[0].toDomain()
	return &p, nil
}

// ListCustomers returns customer profiles newest first.
func (d *Data) ListCustomers(ctx context.Context) ([]domain.Profile, error) {
	var rows []profileRow
	err := d.call(ctx, request{
		method: http.MethodGet,
		table:  "profiles",
		query: url.Values{
			"select": {"*"},
			"role":   {eq(string(domain.RoleCustomer))},
			"order":  {"created_at.desc"},
		},
	}, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Profile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// --- products ---

type productRow struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Description   *string         `json:"description"`
	Price         decimal.Decimal `json:"price"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	StockQuantity int             `json:"stock_quantity"`
	Category      string          `json:"category"`
	ImageURL      *string         `json:"image_url"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
}

func productRowFrom(p domain.Product) productRow {
	return productRow{
		Name:          p.Name,
		SKU:           p.SKU,
		Description:   &p.Description,
		Price:         p.Price,
		CostPrice:     p.CostPrice,
		StockQuantity: p.StockQuantity,
		Category:      p.Category,
		ImageURL:      &p.ImageURL,
	}
}

func (r productRow) toDomain() domain.Product {
	p := domain.Product{
		ID:            r.ID,
		Name:          r.Name,
		SKU:           r.SKU,
		Price:         r.Price,
		CostPrice:     r.CostPrice,
		StockQuantity: r.StockQuantity,
		Category:      r.Category,
		CreatedAt:     r.CreatedAt,
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.ImageURL != nil {
		p.ImageURL = *r.ImageURL
	}
	return p
}

func firstProduct(rows []productRow) (*domain.Product, error) {
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	p := rows[0].toDomain()
	return &p, nil
}

// ListProducts lists all products in the requested order.
func (d *Data) ListProducts(ctx context.Context, order domain.ProductOrder) ([]domain.Product, error) {
	sort := "name.asc"
	if order == domain.OrderByStockAsc {
		sort = "stock_quantity.asc,name.asc"
	}
	var rows []productRow
	err := d.call(ctx, request{
		method: http.MethodGet,
		table:  "products",
		query:  url.Values{"select": {"*"}, "order": {sort}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetProduct returns one product.
func (d *Data) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var rows []productRow
	err := d.call(ctx, request{
		method: http.MethodGet,
		table:  "products",
		query:  url.Values{"select": {"*"}, "id": {eq(id)}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return firstProduct(rows)
}

// CreateProduct inserts a product; the backend assigns the id.
func (d *Data) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	var rows []productRow
	err := d.call(ctx, request{
		method: http.MethodPost,
		table:  "products",
		body:   productRowFrom(p),
		prefer: "return=representation",
	}, &rows)
	if err != nil {
		return nil, err
	}
	return firstProduct(rows)
}

// UpdateProduct replaces the editable fields of a product.
func (d *Data) UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	var rows []productRow
	err := d.call(ctx, request{
		method: http.MethodPatch,
		table:  "products",
		query:  url.Values{"id": {eq(p.ID)}},
		body:   productRowFrom(p),
		prefer: "return=representation",
	}, &rows)
	if err != nil {
		return nil, err
	}
	return firstProduct(rows)
}

// DeleteProduct removes a product.
func (d *Data) DeleteProduct(ctx context.Context, id string) error {
	var rows []productRow
	err := d.call(ctx, request{
		method: http.MethodDelete,
		table:  "products",
		query:  url.Values{"id": {eq(id)}},
		prefer: "return=representation",
	}, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// --- orders ---

type orderRow struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	UserID        *string         `json:"user_id"`
	Status        string          `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	Profiles      *struct {
		FullName *string `json:"full_name"`
	} `json:"profiles"`
}

func (r orderRow) toDomain() domain.Order {
	o := domain.Order{
		ID:            r.ID,
		CreatedAt:     r.CreatedAt,
		Status:        domain.OrderStatus(r.Status),
		TotalAmount:   r.TotalAmount,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
	}
	if r.UserID != nil {
		o.UserID = *r.UserID
	}
	if r.Profiles != nil && r.Profiles.FullName != nil {
		o.CustomerName = *r.Profiles.FullName
	}
	return o
}

const orderSelect = "*,profiles(full_name)"

// ListOrders returns orders created at or after since, newest first.
func (d *Data) ListOrders(ctx context.Context, since time.Time) ([]domain.Order, error) {
	q := url.Values{"select": {orderSelect}, "order": {"created_at.desc"}}
	if !since.IsZero() {
		q.Set("created_at", "gte."+since.UTC().Format(time.RFC3339))
	}
	var rows []orderRow
	if err := d.call(ctx, request{method: http.MethodGet, table: "orders", query: q}, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetOrder returns one order.
func (d *Data) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var rows []orderRow
	err := d.call(ctx, request{
		method: http.MethodGet,
		table:  "orders",
		query:  url.Values{"select": {orderSelect}, "id": {eq(id)}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	o := rows[0].toDomain()
	return &o, nil
}

type orderItemRow struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID *string         `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Products  *struct {
		Name string `json:"name"`
	} `json:"products"`
}

// ListOrderItems returns the items of the given orders with product names.
func (d *Data) ListOrderItems(ctx context.Context, orderIDs []string) ([]domain.OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var rows []orderItemRow
	err := d.call(ctx, request{
		method: http.MethodGet,
		table:  "order_items",
		query: url.Values{
			"select":   {"*,products(name)"},
			"order_id": {"in.(" + strings.Join(orderIDs, ",") + ")"},
		},
	}, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OrderItem, 0, len(rows))
	for _, r := range rows {
		it := domain.OrderItem{ID: r.ID, OrderID: r.OrderID, Quantity: r.Quantity, UnitPrice: r.UnitPrice}
		if r.ProductID != nil {
			it.ProductID = *r.ProductID
		}
		if r.Products != nil {
			it.ProductName = r.Products.Name
		}
		out = append(out, it)
	}
	return out, nil
}

// --- settings ---

// GetSettings returns the settings row.
func (d *Data) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var rows []domain.Settings
	err := d.call(ctx, request{
		method: http.MethodGet,
		table:  "app_settings",
		query:  url.Values{"select": {"*"}, "limit": {"1"}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return &rows[0], nil
}

// SaveSettings updates the settings row, creating it on first save.
func (d *Data) SaveSettings(ctx context.Context, s domain.Settings) (*domain.Settings, error) {
	cur, err := d.GetSettings(ctx)
	switch {
	case err == nil:
		s.ID = cur.ID
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	body := map[string]any{
		"store_name":              s.StoreName,
		"support_email":           s.SupportEmail,
		"loyalty_program_enabled": s.LoyaltyProgramEnabled,
		"maintenance_mode":        s.MaintenanceMode,
	}
	r := request{method: http.MethodPost, table: "app_settings", body: body, prefer: "return=representation"}
	if s.ID != "" {
		r.method = http.MethodPatch
		r.query = url.Values{"id": {eq(s.ID)}}
	}
	var rows []domain.Settings
	if err := d.call(ctx, r, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return &rows[0], nil
}
