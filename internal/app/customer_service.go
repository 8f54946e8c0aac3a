package app

import (
	"context"
	"strings"

	"storeadmin/internal/domain"
)

// CustomerService lists store customers.
type CustomerService struct {
	repo domain.CustomerRepository
}

// NewCustomerService creates a CustomerService.
func NewCustomerService(repo domain.CustomerRepository) *CustomerService {
	return &CustomerService{repo: repo}
}

// List returns customer profiles newest first, filtered by name or email.
func (s *CustomerService) List(ctx context.Context, query string) ([]domain.Profile, error) {
	items, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items, nil
	}
	out := items[:0:0]
	for _, p := range items {
		if strings.Contains(strings.ToLower(p.FullName), q) || strings.Contains(strings.ToLower(p.Email), q) {
			out = append(out, p)
		}
	}
	return out, nil
}
