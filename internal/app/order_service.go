package app

import (
	"context"
	"time"

	"storeadmin/internal/domain"
)

// OrderView is an order as listed in the console.
type OrderView struct {
	domain.Order
	ShortID string `json:"short_id"`
}

// OrderDetail is an order with its lines.
type OrderDetail struct {
	OrderView
	Items []domain.OrderItem `json:"items"`
}

// OrderService encapsulates order use cases.
type OrderService struct {
	repo domain.OrderRepository
}

// NewOrderService creates an OrderService.
func NewOrderService(repo domain.OrderRepository) *OrderService {
	return &OrderService{repo: repo}
}

// List returns all orders newest first.
func (s *OrderService) List(ctx context.Context) ([]OrderView, error) {
	orders, err := s.repo.ListOrders(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderView{Order: o, ShortID: o.ShortID()})
	}
	return out, nil
}

// Get returns one order with its items.
func (s *OrderService) Get(ctx context.Context, id string) (*OrderDetail, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListOrderItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.OrderItem{}
	}
	return &OrderDetail{OrderView: OrderView{Order: *o, ShortID: o.ShortID()}, Items: items}, nil
}
