package postgres

import (
	"context"

	"github.com/geocoder89/clubevents/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SportsRepo backs the sport catalog with the sports table.
type SportsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewSportsRepo(pool *pgxpool.Pool, prom *observability.Prom) *SportsRepo {
	return &SportsRepo{pool: pool, prom: prom}
}

func (r *SportsRepo) Exists(ctx context.Context, sportID string) (bool, error) {
	var ok bool
	err := r.prom.ObserveDB("sports.exists", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sports WHERE id = $1)`, sportID).Scan(&ok)
	})
	return ok, err
}

// Ensure inserts any missing ids; existing rows are left alone.
func (r *SportsRepo) Ensure(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.prom.ObserveDB("sports.ensure", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO sports (id, name)
		SELECT x, x FROM unnest($1::text[]) AS x
		ON CONFLICT (id) DO NOTHING
	`, ids)
		return err
	})
}
