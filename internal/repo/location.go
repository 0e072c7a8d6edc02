package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kettleworks/brewbot/internal/domain"
)

// LocationRepo resolves office locations from caller IP addresses.
type LocationRepo interface {
	// GetByIP returns the location whose address list contains ip.
	// Returns domain.ErrNotFound when the ip is not in the directory.
	GetByIP(ctx context.Context, ip string) (domain.Location, error)
}

// pgLocationRepo is the Postgres implementation of LocationRepo.
type pgLocationRepo struct {
	db db
}

// NewLocationRepo constructs a LocationRepo backed by the provided db connection.
func NewLocationRepo(db db) LocationRepo {
	return &pgLocationRepo{db: db}
}

// GetByIP looks the ip up in the ip_addresses array of each location.
func (r *pgLocationRepo) GetByIP(ctx context.Context, ip string) (domain.Location, error) {
	const q = `
		SELECT name, ip_addresses, created_at
		FROM locations
		WHERE @ip = ANY(ip_addresses)
		LIMIT 1`

	var loc domain.Location
	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"ip": ip})
	if err := row.Scan(&loc.Name, &loc.IPAddresses, &loc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Location{}, fmt.Errorf("repo.LocationRepo.GetByIP: %w", domain.ErrNotFound)
		}
		return domain.Location{}, fmt.Errorf("repo.LocationRepo.GetByIP: %w", err)
	}
	return loc, nil
}
