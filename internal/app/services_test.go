package app_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"storeadmin/internal/app"
	"storeadmin/internal/domain"
)

type mockProductRepo struct {
	listFn   func(ctx context.Context, order domain.ProductOrder) ([]domain.Product, error)
	getFn    func(ctx context.Context, id string) (*domain.Product, error)
	createFn func(ctx context.Context, p domain.Product) (*domain.Product, error)
	updateFn func(ctx context.Context, p domain.Product) (*domain.Product, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockProductRepo) ListProducts(ctx context.Context, order domain.ProductOrder) ([]domain.Product, error) {
	if m.listFn != nil {
		return m.listFn(ctx, order)
	}
	return nil, nil
}

func (m *mockProductRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockProductRepo) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return &p, nil
}

func (m *mockProductRepo) UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, p)
	}
	return &p, nil
}

func (m *mockProductRepo) DeleteProduct(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockOrderRepo struct {
	orders []domain.Order
	items  []domain.OrderItem
	err    error
}

func (m *mockOrderRepo) ListOrders(_ context.Context, since time.Time) ([]domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Order
	for _, o := range m.orders {
		if since.IsZero() || !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	for _, o := range m.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockOrderRepo) ListOrderItems(_ context.Context, ids []string) ([]domain.OrderItem, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.OrderItem
	for _, it := range m.items {
		if want[it.OrderID] {
			out = append(out, it)
		}
	}
	return out, nil
}

type mockCustomerRepo struct {
	customers []domain.Profile
}

func (m *mockCustomerRepo) ListCustomers(context.Context) ([]domain.Profile, error) {
	return m.customers, nil
}

type mockSettingsRepo struct {
	saved *domain.Settings
}

func (m *mockSettingsRepo) GetSettings(context.Context) (*domain.Settings, error) {
	if m.saved == nil {
		return nil, domain.ErrNotFound
	}
	return m.saved, nil
}

func (m *mockSettingsRepo) SaveSettings(_ context.Context, s domain.Settings) (*domain.Settings, error) {
	m.saved = &s
	return &s, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func catalog() []domain.Product {
	return []domain.Product{
		{ID: "p1", Name: "Apples", SKU: "FR-001", Category: "Produce", Price: dec("2.50"), CostPrice: dec("1.00"), StockQuantity: 40},
		{ID: "p2", Name: "Bread", SKU: "BK-010", Category: "Bakery", Price: dec("3.00"), CostPrice: dec("1.50"), StockQuantity: 5},
		{ID: "p3", Name: "Milk", SKU: "DA-100", Category: "Dairy", Price: dec("1.20"), CostPrice: dec("0.80"), StockQuantity: 0},
	}
}

func TestProductService_List(t *testing.T) {
	var gotOrder domain.ProductOrder = -1
	repo := &mockProductRepo{listFn: func(_ context.Context, order domain.ProductOrder) ([]domain.Product, error) {
		gotOrder = order
		return catalog(), nil
	}}
	svc := app.NewProductService(repo)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"apple", 1},
		{"bk-", 1},
		{"  MILK ", 1},
		{"zzz", 0},
	}
	for _, tc := range tests {
		items, err := svc.List(context.Background(), tc.query)
		if err != nil {
			t.Fatalf("List(%q): %v", tc.query, err)
		}
		if len(items) != tc.want {
			t.Errorf("List(%q) = %d items, want %d", tc.query, len(items), tc.want)
		}
	}
	if gotOrder != domain.OrderByName {
		t.Errorf("order = %v, want by name", gotOrder)
	}
}

func TestProductService_CreateValidation(t *testing.T) {
	valid := domain.Product{Name: "Eggs", SKU: "DA-200", Category: "Dairy", Price: dec("4"), CostPrice: dec("2"), StockQuantity: 12}
	tests := []struct {
		name   string
		mutate func(p *domain.Product)
	}{
		{"missing name", func(p *domain.Product) { p.Name = "  " }},
		{"missing sku", func(p *domain.Product) { p.SKU = "" }},
		{"missing category", func(p *domain.Product) { p.Category = "" }},
		{"negative price", func(p *domain.Product) { p.Price = dec("-1") }},
		{"negative cost", func(p *domain.Product) { p.CostPrice = dec("-0.01") }},
		{"negative stock", func(p *domain.Product) { p.StockQuantity = -1 }},
	}
	svc := app.NewProductService(&mockProductRepo{createFn: func(context.Context, domain.Product) (*domain.Product, error) {
		t.Fatal("repository must not be called for invalid input")
		return nil, nil
	}})
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			_, err := svc.Create(context.Background(), p)
			if !errors.Is(err, app.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestProductService_CreateAndUpdate(t *testing.T) {
	var created, updated domain.Product
	svc := app.NewProductService(&mockProductRepo{
		createFn: func(_ context.Context, p domain.Product) (*domain.Product, error) {
			created = p
			p.ID = "new"
			return &p, nil
		},
		updateFn: func(_ context.Context, p domain.Product) (*domain.Product, error) {
			updated = p
			return &p, nil
		},
	})
	in := domain.Product{ID: "ignored", Name: " Eggs ", SKU: "DA-200", Category: "Dairy", Price: dec("4")}
	out, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if out.ID != "new" || created.ID != "" || created.Name != "Eggs" {
		t.Errorf("created = %+v, out = %+v", created, out)
	}

	if _, err := svc.Update(context.Background(), "p9", in); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ID != "p9" {
		t.Errorf("updated id = %q, want p9", updated.ID)
	}
	if _, err := svc.Update(context.Background(), "", in); !errors.Is(err, app.ErrValidation) {
		t.Errorf("Update without id: err = %v", err)
	}
}

func TestInventoryService_Report(t *testing.T) {
	var gotOrder domain.ProductOrder = -1
	svc := app.NewInventoryService(&mockProductRepo{listFn: func(_ context.Context, order domain.ProductOrder) ([]domain.Product, error) {
		gotOrder = order
		return catalog(), nil
	}})
	r, err := svc.Report(context.Background())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if gotOrder != domain.OrderByStockAsc {
		t.Errorf("order = %v, want stock ascending", gotOrder)
	}
	if r.Total != 3 || r.LowStock != 1 || r.OutOfStock != 1 {
		t.Errorf("counts = total %d low %d out %d", r.Total, r.LowStock, r.OutOfStock)
	}
	if !r.TotalValue.Equal(dec("115")) {
		t.Errorf("total value = %s, want 115", r.TotalValue)
	}
	if r.Items[2].Status != domain.StockOut {
		t.Errorf("milk status = %s", r.Items[2].Status)
	}
}

func TestOrderService(t *testing.T) {
	repo := &mockOrderRepo{
		orders: []domain.Order{{ID: "0123456789abcdef", Status: domain.OrderPending, TotalAmount: dec("9.99")}},
		items:  []domain.OrderItem{{ID: "i1", OrderID: "0123456789abcdef", ProductID: "p1", Quantity: 2}},
	}
	svc := app.NewOrderService(repo)

	list, err := svc.List(context.Background())
	if err != nil || len(list) != 1 || list[0].ShortID != "01234567" {
		t.Fatalf("List = %+v, %v", list, err)
	}
	detail, err := svc.Get(context.Background(), "0123456789abcdef")
	if err != nil || len(detail.Items) != 1 {
		t.Fatalf("Get = %+v, %v", detail, err)
	}
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get missing: err = %v", err)
	}
}

func TestCustomerService_List(t *testing.T) {
	svc := app.NewCustomerService(&mockCustomerRepo{customers: []domain.Profile{
		{ID: "c1", FullName: "Ada Lovelace", Email: "ada@example.com", Role: domain.RoleCustomer},
		{ID: "c2", FullName: "Alan Turing", Email: "alan@example.com", Role: domain.RoleCustomer},
	}})
	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"ada", 1},
		{"EXAMPLE.COM", 2},
		{"grace", 0},
	}
	for _, tc := range tests {
		got, err := svc.List(context.Background(), tc.query)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != tc.want {
			t.Errorf("List(%q) = %d, want %d", tc.query, len(got), tc.want)
		}
	}
}

func TestSettingsService_Save(t *testing.T) {
	repo := &mockSettingsRepo{}
	svc := app.NewSettingsService(repo)

	if _, err := svc.Save(context.Background(), domain.Settings{StoreName: " "}); !errors.Is(err, app.ErrValidation) {
		t.Errorf("empty name: err = %v", err)
	}
	if _, err := svc.Save(context.Background(), domain.Settings{StoreName: "Shop", SupportEmail: "nope"}); !errors.Is(err, app.ErrValidation) {
		t.Errorf("bad email: err = %v", err)
	}
	got, err := svc.Save(context.Background(), domain.Settings{StoreName: " Corner Shop ", SupportEmail: "help@shop.test"})
	if err != nil {
		t.Fatal(err)
	}
	if got.StoreName != "Corner Shop" || repo.saved == nil {
		t.Errorf("saved = %+v", repo.saved)
	}
}

func financeFixture(now time.Time) (*mockOrderRepo, *mockProductRepo) {
	at := func(days int) time.Time { return now.AddDate(0, 0, -days) }
	orders := &mockOrderRepo{
		orders: []domain.Order{
			{ID: "o1", CreatedAt: at(0), Status: domain.OrderCompleted, TotalAmount: dec("10.00")},
			{ID: "o2", CreatedAt: at(1), Status: domain.OrderCompleted, TotalAmount: dec("6.00")},
			{ID: "o3", CreatedAt: at(1), Status: domain.OrderRefunded, TotalAmount: dec("4.00")},
			{ID: "o4", CreatedAt: at(2), Status: domain.OrderPending, TotalAmount: dec("100.00")},
			{ID: "o5", CreatedAt: now.AddDate(0, -2, 0), Status: domain.OrderCompleted, TotalAmount: dec("20.00")},
		},
		items: []domain.OrderItem{
			{OrderID: "o1", ProductID: "p1", Quantity: 4, UnitPrice: dec("2.50")},
			{OrderID: "o2", ProductID: "p2", Quantity: 2, UnitPrice: dec("3.00")},
			{OrderID: "o5", ProductID: "p2", Quantity: 4, UnitPrice: dec("5.00")},
		},
	}
	products := &mockProductRepo{listFn: func(context.Context, domain.ProductOrder) ([]domain.Product, error) {
		return catalog(), nil
	}}
	return orders, products
}

func TestReportService_Summary(t *testing.T) {
	now := time.Date(2026, time.March, 20, 15, 0, 0, 0, time.UTC)
	orders, products := financeFixture(now)
	svc := app.NewReportService(orders, products)

	sum, err := svc.Summary(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Period != "2026-03" {
		t.Errorf("period = %s", sum.Period)
	}
	// o1 cost 4*1.00, o2 cost 2*1.50
	checks := map[string][2]decimal.Decimal{
		"revenue":    {sum.Revenue, dec("16")},
		"expenses":   {sum.Expenses, dec("7")},
		"net profit": {sum.NetProfit, dec("9")},
		"refunds":    {sum.Refunds, dec("4")},
	}
	for name, c := range checks {
		if !c[0].Equal(c[1]) {
			t.Errorf("%s = %s, want %s", name, c[0], c[1])
		}
	}
	if len(sum.RevenueByCategory) != 2 || sum.RevenueByCategory[0].Category != "Produce" {
		t.Errorf("by category = %+v", sum.RevenueByCategory)
	}
	if len(sum.Monthly) != app.ReportMonths {
		t.Fatalf("monthly len = %d", len(sum.Monthly))
	}
	if m := sum.Monthly[app.ReportMonths-3]; m.Month != "Jan" || !m.Profit.Equal(dec("14")) || !m.Cost.Equal(dec("6")) {
		t.Errorf("january = %+v", m)
	}
	if sum.Monthly[app.ReportMonths-1].Month != "Mar" {
		t.Errorf("last month = %s", sum.Monthly[app.ReportMonths-1].Month)
	}
}

func TestReportService_DailyCSV(t *testing.T) {
	now := time.Date(2026, time.March, 20, 15, 0, 0, 0, time.UTC)
	orders, products := financeFixture(now)
	svc := app.NewReportService(orders, products)

	rows, err := svc.Daily(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := app.WriteCSV(&buf, rows); err != nil {
		t.Fatal(err)
	}
	want := "date,revenue,cost,profit\n" +
		"2026-03-19,6.00,3.00,3.00\n" +
		"2026-03-20,10.00,4.00,6.00\n"
	if buf.String() != want {
		t.Errorf("csv =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestDashboardService_Stats(t *testing.T) {
	now := time.Date(2026, time.March, 20, 15, 0, 0, 0, time.UTC)
	orders, _ := financeFixture(now)
	svc := app.NewDashboardService(orders, &mockCustomerRepo{customers: make([]domain.Profile, 3)})

	st, err := svc.Stats(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if st.OrderCount != 5 || st.ActiveCustomers != 3 {
		t.Errorf("counts = %d orders, %d customers", st.OrderCount, st.ActiveCustomers)
	}
	if !st.TotalRevenue.Equal(dec("36")) || !st.AverageOrderValue.Equal(dec("12")) {
		t.Errorf("revenue = %s avg = %s", st.TotalRevenue, st.AverageOrderValue)
	}
	if len(st.WeeklyRevenue) != 7 {
		t.Fatalf("weekly len = %d", len(st.WeeklyRevenue))
	}
	last := st.WeeklyRevenue[6]
	if last.Date != "2026-03-20" || last.Day != "Fri" || !last.Revenue.Equal(dec("10")) {
		t.Errorf("today = %+v", last)
	}
	if !st.WeeklyRevenue[5].Revenue.Equal(dec("6")) {
		t.Errorf("yesterday = %+v", st.WeeklyRevenue[5])
	}
}

func TestDashboardService_Error(t *testing.T) {
	svc := app.NewDashboardService(&mockOrderRepo{err: domain.ErrUnavailable}, &mockCustomerRepo{})
	if _, err := svc.Stats(context.Background(), time.Now()); !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("err = %v", err)
	}
}
