package memory

import (
	"time"

	"github.com/shopspring/decimal"

	"storeadmin/internal/domain"
)

// Demo sign-in identities created by Seed.
const (
	DemoAdminEmail      = "admin@store.test"
	DemoAccountantEmail = "accountant@store.test"
	DemoShopperEmail    = "shopper@store.test"
)

var demoProducts = []domain.Product{
	{ID: "prod-apples", Name: "Gala Apples 1kg", SKU: "FR-001", Category: "Produce", Price: decimal.RequireFromString("3.49"), CostPrice: decimal.RequireFromString("1.80"), StockQuantity: 120},
	{ID: "prod-bananas", Name: "Bananas", SKU: "FR-002", Category: "Produce", Price: decimal.RequireFromString("1.29"), CostPrice: decimal.RequireFromString("0.60"), StockQuantity: 8},
	{ID: "prod-bread", Name: "Sourdough Loaf", SKU: "BK-010", Category: "Bakery", Price: decimal.RequireFromString("4.50"), CostPrice: decimal.RequireFromString("1.90"), StockQuantity: 24},
	{ID: "prod-croissant", Name: "Butter Croissant", SKU: "BK-011", Category: "Bakery", Price: decimal.RequireFromString("1.75"), CostPrice: decimal.RequireFromString("0.70"), StockQuantity: 0},
	{ID: "prod-milk", Name: "Whole Milk 1L", SKU: "DA-100", Category: "Dairy", Price: decimal.RequireFromString("1.19"), CostPrice: decimal.RequireFromString("0.75"), StockQuantity: 60},
	{ID: "prod-cheddar", Name: "Aged Cheddar 200g", SKU: "DA-120", Category: "Dairy", Price: decimal.RequireFromString("5.99"), CostPrice: decimal.RequireFromString("3.10"), StockQuantity: 6},
	{ID: "prod-coffee", Name: "Ground Coffee 500g", SKU: "PA-300", Category: "Pantry", Price: decimal.RequireFromString("8.99"), CostPrice: decimal.RequireFromString("4.80"), StockQuantity: 35},
	{ID: "prod-pasta", Name: "Penne 500g", SKU: "PA-310", Category: "Pantry", Price: decimal.RequireFromString("1.49"), CostPrice: decimal.RequireFromString("0.55"), StockQuantity: 90},
}

var demoCustomers = []domain.Profile{
	{ID: "cust-ada", FullName: "Ada Lovelace", Email: "ada@example.com", Role: domain.RoleCustomer, LoyaltyPoints: 340},
	{ID: "cust-alan", FullName: "Alan Turing", Email: "alan@example.com", Role: domain.RoleCustomer, LoyaltyPoints: 120},
	{ID: "cust-grace", FullName: "Grace Hopper", Email: "grace@example.com", Role: domain.RoleCustomer, LoyaltyPoints: 75},
}

// Seed fills db with demo users, catalog, orders and settings. All demo
// users share password. Orders are spread over the 60 days before now.
func Seed(db *DB, password string, now time.Time) error {
	users := []struct {
		email   string
		profile domain.Profile
	}{
		{DemoAdminEmail, domain.Profile{ID: "user-admin", FullName: "Store Admin", Role: domain.RoleAdmin}},
		{DemoAccountantEmail, domain.Profile{ID: "user-accountant", FullName: "Store Accountant", Role: domain.RoleAccountant}},
		{DemoShopperEmail, domain.Profile{ID: "user-shopper", FullName: "Sam Shopper", Role: domain.RoleCustomer}},
	}
	for i, u := range users {
		created := now.AddDate(0, -3, i).UTC()
		u.profile.CreatedAt = &created
		if err := db.AddUser(u.email, password, u.profile); err != nil {
			return err
		}
	}
	for i, c := range demoCustomers {
		created := now.AddDate(0, 0, -30+i*7).UTC()
		c.CreatedAt = &created
		db.PutProfile(c)
	}

	db.mu.Lock()
	for i, p := range demoProducts {
		created := now.AddDate(0, -2, i).UTC()
		p.CreatedAt = &created
		db.products[p.ID] = p
	}
	db.settings = &domain.Settings{
		ID:                    "settings",
		StoreName:             "Corner Supermarket",
		SupportEmail:          "support@store.test",
		LoyaltyProgramEnabled: true,
	}
	db.mu.Unlock()

	statuses := []domain.OrderStatus{
		domain.OrderCompleted, domain.OrderCompleted, domain.OrderCompleted,
		domain.OrderPending, domain.OrderCompleted, domain.OrderRefunded, domain.OrderCancelled,
	}
	methods := []domain.PaymentMethod{domain.PaymentCard, domain.PaymentCash, domain.PaymentOnline}
	for day := 0; day < 60; day++ {
		for n := 0; n < 1+day%3; n++ {
			k := day*3 + n
			p := demoProducts[k%len(demoProducts)]
			qty := 1 + k%4
			total := p.Price.Mul(decimal.NewFromInt(int64(qty)))
			o := domain.Order{
				CreatedAt:     now.AddDate(0, 0, -day).Add(-time.Duration(n+1) * time.Hour).UTC(),
				UserID:        demoCustomers[k%len(demoCustomers)].ID,
				Status:        statuses[k%len(statuses)],
				TotalAmount:   total,
				PaymentMethod: methods[k%len(methods)],
			}
			db.AddOrder(o, []domain.OrderItem{{ProductID: p.ID, Quantity: qty, UnitPrice: p.Price}})
		}
	}
	return nil
}
