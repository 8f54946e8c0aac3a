package app

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"storeadmin/internal/domain"
)

// ReportMonths is how many months the profit/cost history covers.
const ReportMonths = 6

// CategoryRevenue is revenue attributed to one product category.
type CategoryRevenue struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// MonthlyProfit is profit and cost for one calendar month.
type MonthlyProfit struct {
	Month  string          `json:"month"`
	Profit decimal.Decimal `json:"profit"`
	Cost   decimal.Decimal `json:"cost"`
}

// FinancialSummary is the reports screen for the current month.
type FinancialSummary struct {
	Period            string            `json:"period"`
	Revenue           decimal.Decimal   `json:"revenue"`
	NetProfit         decimal.Decimal   `json:"net_profit"`
	Expenses          decimal.Decimal   `json:"expenses"`
	Refunds           decimal.Decimal   `json:"refunds"`
	RevenueByCategory []CategoryRevenue `json:"revenue_by_category"`
	Monthly           []MonthlyProfit   `json:"monthly"`
}

// DailyFinance is one row of the exported report.
type DailyFinance struct {
	Date    string
	Revenue decimal.Decimal
	Cost    decimal.Decimal
	Profit  decimal.Decimal
}

// ReportService computes financial figures from orders and the catalog.
// Revenue counts completed orders only; cost is units sold at cost price.
type ReportService struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
}

// NewReportService creates a ReportService.
func NewReportService(orders domain.OrderRepository, products domain.ProductRepository) *ReportService {
	return &ReportService{orders: orders, products: products}
}

type ledger struct {
	orders   []domain.Order
	items    map[string][]domain.OrderItem
	products map[string]domain.Product
}

func (s *ReportService) load(ctx context.Context, since time.Time) (*ledger, error) {
	var (
		orders   []domain.Order
		products []domain.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.orders.ListOrders(gctx, since)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = s.products.ListProducts(gctx, domain.OrderByName)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l := &ledger{
		orders:   orders,
		items:    make(map[string][]domain.OrderItem),
		products: make(map[string]domain.Product, len(products)),
	}
	for _, p := range products {
		l.products[p.ID] = p
	}
	var ids []string
	for _, o := range orders {
		if o.Status == domain.OrderCompleted {
			ids = append(ids, o.ID)
		}
	}
	if len(ids) == 0 {
		return l, nil
	}
	items, err := s.orders.ListOrderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		l.items[it.OrderID] = append(l.items[it.OrderID], it)
	}
	return l, nil
}

func (l *ledger) cost(orderID string) decimal.Decimal {
	total := decimal.Zero
	for _, it := range l.items[orderID] {
		p, ok := l.products[it.ProductID]
		if !ok {
			continue
		}
		total = total.Add(p.CostPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Summary returns the figures for the month containing now, plus the
// profit/cost history of the last ReportMonths months.
func (s *ReportService) Summary(ctx context.Context, now time.Time) (*FinancialSummary, error) {
	current := monthStart(now)
	first := current.AddDate(0, -(ReportMonths - 1), 0)
	l, err := s.load(ctx, first)
	if err != nil {
		return nil, err
	}

	sum := &FinancialSummary{
		Period:    current.Format("2006-01"),
		Revenue:   decimal.Zero,
		Expenses:  decimal.Zero,
		Refunds:   decimal.Zero,
		Monthly:   make([]MonthlyProfit, ReportMonths),
		NetProfit: decimal.Zero,
	}
	revenue := make([]decimal.Decimal, ReportMonths)
	costs := make([]decimal.Decimal, ReportMonths)
	for i := range ReportMonths {
		revenue[i], costs[i] = decimal.Zero, decimal.Zero
	}
	byCategory := map[string]decimal.Decimal{}

	for _, o := range l.orders {
		created := o.CreatedAt.In(now.Location())
		idx := monthIndex(first, created)
		if idx < 0 || idx >= ReportMonths {
			continue
		}
		inCurrent := idx == ReportMonths-1
		switch o.Status {
		case domain.OrderRefunded:
			if inCurrent {
				sum.Refunds = sum.Refunds.Add(o.TotalAmount)
			}
		case domain.OrderCompleted:
			c := l.cost(o.ID)
			revenue[idx] = revenue[idx].Add(o.TotalAmount)
			costs[idx] = costs[idx].Add(c)
			if !inCurrent {
				continue
			}
			for _, it := range l.items[o.ID] {
				cat := "Uncategorized"
				if p, ok := l.products[it.ProductID]; ok && p.Category != "" {
					cat = p.Category
				}
				line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
				byCategory[cat] = byCategory[cat].Add(line)
			}
		}
	}

	for i := range ReportMonths {
		sum.Monthly[i] = MonthlyProfit{
			Month:  first.AddDate(0, i, 0).Format("Jan"),
			Profit: revenue[i].Sub(costs[i]),
			Cost:   costs[i],
		}
	}
	sum.Revenue = revenue[ReportMonths-1]
	sum.Expenses = costs[ReportMonths-1]
	sum.NetProfit = sum.Revenue.Sub(sum.Expenses)

	sum.RevenueByCategory = make([]CategoryRevenue, 0, len(byCategory))
	for cat, rev := range byCategory {
		sum.RevenueByCategory = append(sum.RevenueByCategory, CategoryRevenue{Category: cat, Revenue: rev})
	}
	sort.Slice(sum.RevenueByCategory, func(i, j int) bool {
		a, b := sum.RevenueByCategory[i], sum.RevenueByCategory[j]
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.Category < b.Category
	})
	return sum, nil
}

func monthIndex(first, t time.Time) int {
	return (t.Year()-first.Year())*12 + int(t.Month()) - int(first.Month())
}

// Daily returns one row per day of the current month that had completed
// orders, oldest first.
func (s *ReportService) Daily(ctx context.Context, now time.Time) ([]DailyFinance, error) {
	start := monthStart(now)
	l, err := s.load(ctx, start)
	if err != nil {
		return nil, err
	}
	days := map[string]*DailyFinance{}
	for _, o := range l.orders {
		if o.Status != domain.OrderCompleted {
			continue
		}
		created := o.CreatedAt.In(now.Location())
		if created.Before(start) {
			continue
		}
		key := created.Format(time.DateOnly)
		d, ok := days[key]
		if !ok {
			d = &DailyFinance{Date: key, Revenue: decimal.Zero, Cost: decimal.Zero}
			days[key] = d
		}
		d.Revenue = d.Revenue.Add(o.TotalAmount)
		d.Cost = d.Cost.Add(l.cost(o.ID))
	}
	out := make([]DailyFinance, 0, len(days))
	for _, d := range days {
		d.Profit = d.Revenue.Sub(d.Cost)
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// WriteCSV writes rows as date,revenue,cost,profit with a header line.
func WriteCSV(w io.Writer, rows []DailyFinance) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "revenue", "cost", "profit"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.Date, r.Revenue.StringFixed(2), r.Cost.StringFixed(2), r.Profit.StringFixed(2)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
