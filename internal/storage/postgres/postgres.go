package postgres

import (
	"context"
	"fmt"

	"github.com/fdg312/coach-nutrition/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage is the Postgres implementation of storage.Storage.
type PostgresStorage struct {
	pool      *pgxpool.Pool
	meals     *mealsStorage
	plans     *plansStorage
	snapshots *snapshotsStorage
}

// New opens a pool for databaseURL and verifies the connection.
func New(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStorage{
		pool:      pool,
		meals:     newMealsStorage(pool),
		plans:     newPlansStorage(pool),
		snapshots: newSnapshotsStorage(pool),
	}, nil
}

func (p *PostgresStorage) GetMealsStorage() storage.MealsStorage {
	return p.meals
}

func (p *PostgresStorage) GetPlansStorage() storage.PlansStorage {
	return p.plans
}

func (p *PostgresStorage) GetSnapshotsStorage() storage.SnapshotsStorage {
	return p.snapshots
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}
