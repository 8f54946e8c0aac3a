package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"storeadmin/internal/domain"
)

const productColumns = "id, name, sku, description, price, cost_price, stock_quantity, category, image_url, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*domain.Product, error) {
	var (
		p       domain.Product
		created time.Time
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.CostPrice,
		&p.StockQuantity, &p.Category, &p.ImageURL, &created); err != nil {
		return nil, err
	}
	p.CreatedAt = &created
	return &p, nil
}

// ListProducts lists all products in the requested order.
func (d *DB) ListProducts(ctx context.Context, order domain.ProductOrder) ([]domain.Product, error) {
	q := "SELECT " + productColumns + " FROM products ORDER BY lower(name), id;"
	if order == domain.OrderByStockAsc {
		q = "SELECT " + productColumns + " FROM products ORDER BY stock_quantity ASC, lower(name);"
	}
	rows, err := d.sql.QueryContext(ctx, q)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetProduct returns one product.
func (d *DB) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(d.sql.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id=$1;", id))
	return p, mapErr(err)
}

// CreateProduct inserts a product under a new id.
func (d *DB) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.ID = uuid.NewString()
	out, err := scanProduct(d.sql.QueryRowContext(ctx,
		`INSERT INTO products(id, name, sku, description, price, cost_price, stock_quantity, category, image_url, created_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING `+productColumns+";",
		p.ID, p.Name, p.SKU, p.Description, p.Price, p.CostPrice, p.StockQuantity, p.Category, p.ImageURL, time.Now().UTC(),
	))
	return out, mapErr(err)
}

// UpdateProduct replaces the editable fields of a product.
func (d *DB) UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	out, err := scanProduct(d.sql.QueryRowContext(ctx,
		`UPDATE products SET name=$2, sku=$3, description=$4, price=$5, cost_price=$6, stock_quantity=$7, category=$8, image_url=$9
		 WHERE id=$1 RETURNING `+productColumns+";",
		p.ID, p.Name, p.SKU, p.Description, p.Price, p.CostPrice, p.StockQuantity, p.Category, p.ImageURL,
	))
	return out, mapErr(err)
}

// DeleteProduct removes a product.
func (d *DB) DeleteProduct(ctx context.Context, id string) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM products WHERE id=$1;", id)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
