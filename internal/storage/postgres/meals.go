package postgres

import (
	"context"
	"fmt"

	"github.com/fdg312/coach-nutrition/internal/nutrition"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type mealsStorage struct {
	pool *pgxpool.Pool
}

func newMealsStorage(pool *pgxpool.Pool) *mealsStorage {
	return &mealsStorage{pool: pool}
}

const mealColumns = `id, name, category, kcal, protein_g, carbs_g, fat_g, default_portion`

func (s *mealsStorage) GetMealsByIDs(ctx context.Context, ids []string) ([]nutrition.MealRecord, error) {
	if len(ids) == 0 {
		return []nutrition.MealRecord{}, nil
	}

	query := `SELECT ` + mealColumns + ` FROM meals WHERE id = ANY($1)`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	return scanMeals(rows)
}

func (s *mealsStorage) SearchMeals(ctx context.Context, query string, category string, limit int) ([]nutrition.MealRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	sqlQuery := `
		SELECT ` + mealColumns + `
		FROM meals
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR category = $2)
		ORDER BY name
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, sqlQuery, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search meals: %w", err)
	}
	return scanMeals(rows)
}

func scanMeals(rows pgx.Rows) ([]nutrition.MealRecord, error) {
	defer rows.Close()

	meals := []nutrition.MealRecord{}
	for rows.Next() {
		var (
			m       nutrition.MealRecord
			portion *string
		)
		if err := rows.Scan(
			&m.ID,
			&m.Name,
			&m.Category,
			&m.Kcal,
			&m.ProteinG,
			&m.CarbsG,
			&m.FatG,
			&portion,
		); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		if portion != nil {
			m.DefaultPortion = *portion
		}
		meals = append(meals, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meals: %w", err)
	}
	return meals, nil
}
