package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"storeadmin/internal/domain"
)

// WeekdayRevenue is completed-order revenue for one day.
type WeekdayRevenue struct {
	Day     string          `json:"day"`
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

// DashboardStats are the dashboard KPIs.
type DashboardStats struct {
	TotalRevenue      decimal.Decimal  `json:"total_revenue"`
	OrderCount        int              `json:"order_count"`
	ActiveCustomers   int              `json:"active_customers"`
	AverageOrderValue decimal.Decimal  `json:"average_order_value"`
	WeeklyRevenue     []WeekdayRevenue `json:"weekly_revenue"`
}

// DashboardService aggregates KPIs.
type DashboardService struct {
	orders    domain.OrderRepository
	customers domain.CustomerRepository
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(orders domain.OrderRepository, customers domain.CustomerRepository) *DashboardService {
	return &DashboardService{orders: orders, customers: customers}
}

// Stats computes the KPIs as of now. The weekly series covers the seven
// days ending on now's date.
func (s *DashboardService) Stats(ctx context.Context, now time.Time) (*DashboardStats, error) {
	var (
		orders    []domain.Order
		customers []domain.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.orders.ListOrders(gctx, time.Time{})
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = s.customers.ListCustomers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	first := today.AddDate(0, 0, -6)
	week := make([]WeekdayRevenue, 7)
	slot := make(map[string]int, len(week))
	for i := range week {
		d := first.AddDate(0, 0, i)
		week[i] = WeekdayRevenue{Day: d.Format("Mon"), Date: d.Format(time.DateOnly), Revenue: decimal.Zero}
		slot[week[i].Date] = i
	}

	st := &DashboardStats{
		TotalRevenue:      decimal.Zero,
		OrderCount:        len(orders),
		ActiveCustomers:   len(customers),
		AverageOrderValue: decimal.Zero,
	}
	completed := 0
	for _, o := range orders {
		if o.Status != domain.OrderCompleted {
			continue
		}
		completed++
		st.TotalRevenue = st.TotalRevenue.Add(o.TotalAmount)

		if i, ok := slot[o.CreatedAt.In(now.Location()).Format(time.DateOnly)]; ok {
			week[i].Revenue = week[i].Revenue.Add(o.TotalAmount)
		}
	}
	if completed > 0 {
		st.AverageOrderValue = st.TotalRevenue.Div(decimal.NewFromInt(int64(completed))).Round(2)
	}
	st.WeeklyRevenue = week
	return st, nil
}
