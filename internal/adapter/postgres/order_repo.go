package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"storeadmin/internal/domain"
)

const orderSelect = `SELECT o.id, o.created_at, COALESCE(o.user_id, ''), o.status, o.total_amount, o.payment_method, COALESCE(p.full_name, '')
	FROM orders o LEFT JOIN profiles p ON p.id = o.user_id`

func scanOrder(row scanner) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(&o.ID, &o.CreatedAt, &o.UserID, &o.Status, &o.TotalAmount, &o.PaymentMethod, &o.CustomerName); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns orders created at or after since, newest first.
func (d *DB) ListOrders(ctx context.Context, since time.Time) ([]domain.Order, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if since.IsZero() {
		rows, err = d.sql.QueryContext(ctx, orderSelect+" ORDER BY o.created_at DESC;")
	} else {
		rows, err = d.sql.QueryContext(ctx, orderSelect+" WHERE o.created_at >= $1 ORDER BY o.created_at DESC;", since.UTC())
	}
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// GetOrder returns one order.
func (d *DB) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(d.sql.QueryRowContext(ctx, orderSelect+" WHERE o.id=$1;", id))
	return o, mapErr(err)
}

// ListOrderItems returns the items of the given orders with product names.
func (d *DB) ListOrderItems(ctx context.Context, orderIDs []string) ([]domain.OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	rows, err := d.sql.QueryContext(ctx,
		`SELECT i.id, i.order_id, COALESCE(i.product_id, ''), i.quantity, i.unit_price, COALESCE(p.name, '')
		 FROM order_items i LEFT JOIN products p ON p.id = i.product_id
		 WHERE i.order_id = ANY($1) ORDER BY i.order_id, i.id;`,
		pq.Array(orderIDs))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.ProductName); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
