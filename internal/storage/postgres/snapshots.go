package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fdg312/coach-nutrition/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type snapshotsStorage struct {
	pool *pgxpool.Pool
}

func newSnapshotsStorage(pool *pgxpool.Pool) *snapshotsStorage {
	return &snapshotsStorage{pool: pool}
}

func (s *snapshotsStorage) GetSnapshot(ctx context.Context, clientID string, date string) (*storage.Snapshot, error) {
	query := `
		SELECT id::text, client_id, plan_id::text, date::text, day_index, meals_checked, totals, updated_at
		FROM nutrition_progress_snapshots
		WHERE client_id = $1 AND date = $2::date
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var (
		snap   storage.Snapshot
		meals  []byte
		totals []byte
	)
	err := s.pool.QueryRow(ctx, query, clientID, date).Scan(
		&snap.ID,
		&snap.ClientID,
		&snap.PlanID,
		&snap.Date,
		&snap.DayIndex,
		&meals,
		&totals,
		&snap.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := json.Unmarshal(meals, &snap.MealsChecked); err != nil {
		return nil, fmt.Errorf("decode meals_checked: %w", err)
	}
	if len(totals) > 0 {
		if err := json.Unmarshal(totals, &snap.Totals); err != nil {
			return nil, fmt.Errorf("decode totals: %w", err)
		}
	}
	return &snap, nil
}

func (s *snapshotsStorage) SaveSnapshot(ctx context.Context, snap storage.Snapshot) (storage.Snapshot, error) {
	meals := snap.MealsChecked
	if meals == nil {
		meals = []storage.SnapshotMeal{}
	}
	mealsJSON, err := json.Marshal(meals)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("encode meals_checked: %w", err)
	}
	totalsJSON, err := json.Marshal(snap.Totals)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("encode totals: %w", err)
	}

	query := `
		INSERT INTO nutrition_progress_snapshots (client_id, plan_id, date, day_index, meals_checked, totals, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, NOW())
		ON CONFLICT (client_id, plan_id, date)
		DO UPDATE SET
			day_index = EXCLUDED.day_index,
			meals_checked = EXCLUDED.meals_checked,
			totals = EXCLUDED.totals,
			updated_at = NOW()
		RETURNING id::text, updated_at
	`

	err = s.pool.QueryRow(ctx, query,
		snap.ClientID,
		snap.PlanID,
		snap.Date,
		snap.DayIndex,
		mealsJSON,
		totalsJSON,
	).Scan(&snap.ID, &snap.UpdatedAt)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("failed to save snapshot: %w", err)
	}

	snap.MealsChecked = meals
	return snap, nil
}
