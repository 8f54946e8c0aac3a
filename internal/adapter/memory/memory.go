// Package memory implements in-memory repositories and an auth backend for
// development and testing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storeadmin/internal/domain"
)

// DB implements an in-memory data store.
type DB struct {
	mu          sync.Mutex
	products    map[string]domain.Product
	orders      map[string]domain.Order
	items       []domain.OrderItem
	profiles    map[string]domain.Profile
	credentials map[string]credential
	settings    *domain.Settings
}

type credential struct {
	subject string
	hash    []byte
}

// New creates an empty in-memory database.
func New() *DB {
	return &DB{
		products:    make(map[string]domain.Product),
		orders:      make(map[string]domain.Order),
		profiles:    make(map[string]domain.Profile),
		credentials: make(map[string]credential),
	}
}

// Ensure interfaces are met.
var (
	_ domain.ProductRepository  = (*DB)(nil)
	_ domain.OrderRepository    = (*DB)(nil)
	_ domain.CustomerRepository = (*DB)(nil)
	_ domain.SettingsRepository = (*DB)(nil)
	_ domain.ProfileRepository  = (*DB)(nil)
)

// --- ProductRepository ---

// ListProducts lists all products in the requested order.
func (db *DB) ListProducts(_ context.Context, order domain.ProductOrder) ([]domain.Product, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Product, 0, len(db.products))
	for _, p := range db.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if order == domain.OrderByStockAsc && out[i].StockQuantity != out[j].StockQuantity {
			return out[i].StockQuantity < out[j].StockQuantity
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// GetProduct returns one product.
func (db *DB) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// CreateProduct stores a product under a new id.
func (db *DB) CreateProduct(_ context.Context, p domain.Product) (*domain.Product, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.skuTakenLocked(p.SKU, "") {
		return nil, domain.ErrConflict
	}
	p.ID = uuid.NewString()
	now := time.Now().UTC()
	p.CreatedAt = &now
	db.products[p.ID] = p
	return &p, nil
}

// UpdateProduct replaces an existing product, keeping its creation time.
func (db *DB) UpdateProduct(_ context.Context, p domain.Product) (*domain.Product, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	old, ok := db.products[p.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if db.skuTakenLocked(p.SKU, p.ID) {
		return nil, domain.ErrConflict
	}
	p.CreatedAt = old.CreatedAt
	db.products[p.ID] = p
	return &p, nil
}

func (db *DB) skuTakenLocked(sku, exceptID string) bool {
	for id, p := range db.products {
		if id != exceptID && strings.EqualFold(p.SKU, sku) {
			return true
		}
	}
	return false
}

// DeleteProduct removes a product.
func (db *DB) DeleteProduct(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(db.products, id)
	return nil
}

// --- OrderRepository ---

// AddOrder stores an order with its items. Missing ids are generated.
func (db *DB) AddOrder(o domain.Order, items []domain.OrderItem) domain.Order {
	db.mu.Lock()
	defer db.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	db.orders[o.ID] = o
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = o.ID
		if p, ok := db.products[it.ProductID]; ok && it.ProductName == "" {
			it.ProductName = p.Name
		}
		db.items = append(db.items, it)
	}
	return o
}

// ListOrders returns orders created at or after since, newest first.
func (db *DB) ListOrders(_ context.Context, since time.Time) ([]domain.Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Order, 0, len(db.orders))
	for _, o := range db.orders {
		if !since.IsZero() && o.CreatedAt.Before(since) {
			continue
		}
		if p, ok := db.profiles[o.UserID]; ok && o.CustomerName == "" {
			o.CustomerName = p.FullName
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetOrder returns one order.
func (db *DB) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	o, ok := db.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p, ok := db.profiles[o.UserID]; ok && o.CustomerName == "" {
		o.CustomerName = p.FullName
	}
	return &o, nil
}

// ListOrderItems returns the items of the given orders.
func (db *DB) ListOrderItems(_ context.Context, orderIDs []string) ([]domain.OrderItem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	want := make(map[string]bool, len(orderIDs))
	for _, id := range orderIDs {
		want[id] = true
	}
	var out []domain.OrderItem
	for _, it := range db.items {
		if want[it.OrderID] {
			out = append(out, it)
		}
	}
	return out, nil
}

// --- ProfileRepository / CustomerRepository ---

// PutProfile stores or replaces a profile.
func (db *DB) PutProfile(p domain.Profile) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.profiles[p.ID] = p
}

// FetchProfile returns the profile of subject.
func (db *DB) FetchProfile(ctx context.Context, subject string) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.profiles[subject]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// ListCustomers returns customer profiles newest first.
func (db *DB) ListCustomers(_ context.Context) ([]domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.Profile
	for _, p := range db.profiles {
		if p.Role == domain.RoleCustomer {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	return out, nil
}

// --- SettingsRepository ---

// GetSettings returns the settings row.
func (db *DB) GetSettings(_ context.Context) (*domain.Settings, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.settings == nil {
		return nil, domain.ErrNotFound
	}
	s := *db.settings
	return &s, nil
}

// SaveSettings replaces the settings row.
func (db *DB) SaveSettings(_ context.Context, s domain.Settings) (*domain.Settings, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.settings != nil {
		s.ID = db.settings.ID
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	db.settings = &s
	out := s
	return &out, nil
}
