package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists resolved county sets across restarts.
type Store interface {
	Get(ctx context.Context, key string) (CountySet, bool, error)
	Put(ctx context.Context, key string, area Area, set CountySet) error
}

type storePG struct {
	pool *pgxpool.Pool
}

// NewStore returns a Postgres-backed Store using the county_set_cache table.
func NewStore(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) Get(ctx context.Context, key string) (CountySet, bool, error) {
	var codes []string
	err := s.pool.QueryRow(ctx, `SELECT fips_codes FROM county_set_cache WHERE area_key = $1`, key).Scan(&codes)
	if errors.Is(err, pgx.ErrNoRows) {
		return CountySet{}, false, nil
	}
	if err != nil {
		return CountySet{}, false, fmt.Errorf("load county set: %w", err)
	}
	return NewCountySet(codes...), true, nil
}

func (s *storePG) Put(ctx context.Context, key string, area Area, set CountySet) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO county_set_cache (area_key, lat, lon, radius_miles, fips_codes, resolved_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (area_key) DO UPDATE
		SET fips_codes = EXCLUDED.fips_codes, resolved_at = EXCLUDED.resolved_at`,
		key, area.Center.Lat, area.Center.Lon, area.RadiusMiles, set.Slice(),
	)
	if err != nil {
		return fmt.Errorf("save county set: %w", err)
	}
	return nil
}
