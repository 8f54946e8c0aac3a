package domain

import "github.com/shopspring/decimal"

// LowStockThreshold is the quantity below which a product counts as low stock.
const LowStockThreshold = 10

// StockStatus classifies a stock level.
type StockStatus string

const (
	StockOut StockStatus = "out_of_stock"
	StockLow StockStatus = "low_stock"
	StockIn  StockStatus = "in_stock"
)

// ClassifyStock returns the status for a quantity. Negative quantities are
// treated as out of stock.
func ClassifyStock(qty int) StockStatus {
	switch {
	case qty <= 0:
		return StockOut
	case qty < LowStockThreshold:
		return StockLow
	default:
		return StockIn
	}
}

// StockValue is the retail value of the units on hand.
func StockValue(p Product) decimal.Decimal {
	if p.StockQuantity <= 0 {
		return decimal.Zero
	}
	return p.Price.Mul(decimal.NewFromInt(int64(p.StockQuantity)))
}
