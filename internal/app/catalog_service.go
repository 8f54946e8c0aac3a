package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storeadmin/internal/domain"
)

// ErrValidation marks input rejected by a service.
var ErrValidation = errors.New("validation failed")

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// ProductService encapsulates catalog use cases.
type ProductService struct {
	repo domain.ProductRepository
}

// NewProductService creates a ProductService backed by the given repository.
func NewProductService(repo domain.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

// List returns products ordered by name. A non-empty query keeps products
// whose name or SKU contains it, ignoring case.
func (s *ProductService) List(ctx context.Context, query string) ([]domain.Product, error) {
	items, err := s.repo.ListProducts(ctx, domain.OrderByName)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items, nil
	}
	out := items[:0:0]
	for _, p := range items {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.SKU), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Get returns a single product.
func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// Create validates and stores a new product.
func (s *ProductService) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p = normalizeProduct(p)
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.ID = ""
	return s.repo.CreateProduct(ctx, p)
}

// Update validates and replaces an existing product.
func (s *ProductService) Update(ctx context.Context, id string, p domain.Product) (*domain.Product, error) {
	if id == "" {
		return nil, invalid("id is required")
	}
	p = normalizeProduct(p)
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.ID = id
	return s.repo.UpdateProduct(ctx, p)
}

// Delete removes a product.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("id is required")
	}
	return s.repo.DeleteProduct(ctx, id)
}

func normalizeProduct(p domain.Product) domain.Product {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.TrimSpace(p.SKU)
	p.Category = strings.TrimSpace(p.Category)
	p.Description = strings.TrimSpace(p.Description)
	p.ImageURL = strings.TrimSpace(p.ImageURL)
	return p
}

func validateProduct(p domain.Product) error {
	switch {
	case p.Name == "":
		return invalid("name is required")
	case p.SKU == "":
		return invalid("sku is required")
	case p.Category == "":
		return invalid("category is required")
	case p.Price.IsNegative():
		return invalid("price must not be negative")
	case p.CostPrice.IsNegative():
		return invalid("cost price must not be negative")
	case p.StockQuantity < 0:
		return invalid("stock quantity must not be negative")
	}
	return nil
}
