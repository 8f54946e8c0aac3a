// Package postgres implements the data repositories over a direct
// PostgreSQL connection.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"storeadmin/internal/domain"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

var (
	_ domain.ProductRepository  = (*DB)(nil)
	_ domain.OrderRepository    = (*DB)(nil)
	_ domain.CustomerRepository = (*DB)(nil)
	_ domain.SettingsRepository = (*DB)(nil)
	_ domain.ProfileRepository  = (*DB)(nil)
)

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			role TEXT NOT NULL DEFAULT 'customer',
			full_name TEXT,
			email TEXT,
			loyalty_points INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now());`,
		"CREATE INDEX IF NOT EXISTS idx_profiles_role ON profiles(role);",
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			sku TEXT UNIQUE NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
			cost_price NUMERIC(12,2) NOT NULL CHECK (cost_price >= 0),
			stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
			category TEXT NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now());`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			user_id TEXT REFERENCES profiles(id),
			status TEXT NOT NULL CHECK (status IN ('pending','completed','cancelled','refunded')),
			total_amount NUMERIC(12,2) NOT NULL,
			payment_method TEXT NOT NULL CHECK (payment_method IN ('cash','card','online')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now());`,
		"CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);",
		`CREATE TABLE IF NOT EXISTS order_items (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id TEXT REFERENCES products(id) ON DELETE SET NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price NUMERIC(12,2) NOT NULL);`,
		"CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);",
		`CREATE TABLE IF NOT EXISTS app_settings (
			id TEXT PRIMARY KEY,
			store_name TEXT NOT NULL,
			support_email TEXT NOT NULL DEFAULT '',
			loyalty_program_enabled BOOLEAN NOT NULL DEFAULT false,
			maintenance_mode BOOLEAN NOT NULL DEFAULT false);`,
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// mapErr converts driver errors to domain errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23":
			if pqErr.Code == "23505" {
				return fmt.Errorf("%w: %s", domain.ErrConflict, pqErr.Constraint)
			}
		case "08", "53", "57":
			return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
	}
	return err
}
