package postgres

import (
	"context"
	"database/sql"

	"storeadmin/internal/domain"
)

const profileColumns = "id, role, COALESCE(full_name, ''), COALESCE(email, ''), loyalty_points, created_at"

func scanProfile(row scanner) (*domain.Profile, error) {
	var (
		p       domain.Profile
		role    string
		created sql.NullTime
	)
	if err := row.Scan(&p.ID, &role, &p.FullName, &p.Email, &p.LoyaltyPoints, &created); err != nil {
		return nil, err
	}
	p.Role = domain.Role(role)
	if created.Valid {
		t := created.Time
		p.CreatedAt = &t
	}
	return &p, nil
}

// FetchProfile returns the profile whose id is subject.
func (d *DB) FetchProfile(ctx context.Context, subject string) (*domain.Profile, error) {
	p, err := scanProfile(d.sql.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id=$1;", subject))
	return p, mapErr(err)
}

// ListCustomers returns customer profiles newest first.
func (d *DB) ListCustomers(ctx context.Context) ([]domain.Profile, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE role=$1 ORDER BY created_at DESC;", string(domain.RoleCustomer))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
