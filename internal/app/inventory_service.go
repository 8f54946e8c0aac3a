package app

import (
	"context"

	"github.com/shopspring/decimal"

	"storeadmin/internal/domain"
)

// InventoryItem is a product with its stock classification.
type InventoryItem struct {
	domain.Product
	Status     domain.StockStatus `json:"status"`
	StockValue decimal.Decimal    `json:"stock_value"`
}

// InventoryReport is the inventory screen.
type InventoryReport struct {
	Items      []InventoryItem `json:"items"`
	Total      int             `json:"total"`
	LowStock   int             `json:"low_stock"`
	OutOfStock int             `json:"out_of_stock"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// InventoryService derives stock levels from the catalog.
type InventoryService struct {
	repo domain.ProductRepository
}

// NewInventoryService creates an InventoryService.
func NewInventoryService(repo domain.ProductRepository) *InventoryService {
	return &InventoryService{repo: repo}
}

// Report lists products by ascending stock with counts per status.
func (s *InventoryService) Report(ctx context.Context) (*InventoryReport, error) {
	products, err := s.repo.ListProducts(ctx, domain.OrderByStockAsc)
	if err != nil {
		return nil, err
	}
	r := &InventoryReport{Items: make([]InventoryItem, 0, len(products)), Total: len(products), TotalValue: decimal.Zero}
	for _, p := range products {
		item := InventoryItem{Product: p, Status: domain.ClassifyStock(p.StockQuantity), StockValue: domain.StockValue(p)}
		switch item.Status {
		case domain.StockOut:
			r.OutOfStock++
		case domain.StockLow:
			r.LowStock++
		}
		r.TotalValue = r.TotalValue.Add(item.StockValue)
		r.Items = append(r.Items, item)
	}
	return r, nil
}
