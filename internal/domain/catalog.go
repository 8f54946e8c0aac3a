package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	StockQuantity int             `json:"stock_quantity"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"image_url,omitempty"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
}

// ProductOrder selects the listing order for products.
type ProductOrder int

const (
	OrderByName ProductOrder = iota
	OrderByStockAsc
)

// ProductRepository is the port for product persistence.
type ProductRepository interface {
	ListProducts(ctx context.Context, order ProductOrder) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	CreateProduct(ctx context.Context, p Product) (*Product, error)
	UpdateProduct(ctx context.Context, p Product) (*Product, error)
	DeleteProduct(ctx context.Context, id string) error
}
