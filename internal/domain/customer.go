package domain

import "context"

// CustomerRepository lists profiles with the customer role, newest first.
type CustomerRepository interface {
	ListCustomers(ctx context.Context) ([]Profile, error)
}
