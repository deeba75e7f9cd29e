package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fdg312/coach-nutrition/internal/nutrition"
	"github.com/fdg312/coach-nutrition/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type plansStorage struct {
	pool *pgxpool.Pool
}

func newPlansStorage(pool *pgxpool.Pool) *plansStorage {
	return &plansStorage{pool: pool}
}

func (s *plansStorage) GetPlan(ctx context.Context, clientID string) (storage.Plan, bool, error) {
	query := `
		SELECT id::text, client_id, start_date, COALESCE(template_id, ''), week_structure,
		       target_kcal, target_protein_g, target_carbs_g, target_fat_g,
		       created_at, updated_at
		FROM client_nutrition_plans
		WHERE client_id = $1 AND is_active = true
		ORDER BY start_date DESC
		LIMIT 1
	`

	var (
		plan      storage.Plan
		structure []byte
	)
	err := s.pool.QueryRow(ctx, query, clientID).Scan(
		&plan.ID,
		&plan.ClientID,
		&plan.StartDate,
		&plan.TemplateID,
		&structure,
		&plan.Targets.Kcal,
		&plan.Targets.ProteinG,
		&plan.Targets.CarbsG,
		&plan.Targets.FatG,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Plan{}, false, nil
	}
	if err != nil {
		return storage.Plan{}, false, fmt.Errorf("failed to get plan: %w", err)
	}

	plan.WeekStructure, err = decodeDays(structure)
	if err != nil {
		return storage.Plan{}, false, fmt.Errorf("plan %s: %w", plan.ID, err)
	}
	return plan, true, nil
}

func (s *plansStorage) GetOverrides(ctx context.Context, clientID string, planID string) ([]nutrition.PlanDay, bool, error) {
	query := `
		SELECT week_structure
		FROM nutrition_plan_overrides
		WHERE client_id = $1 AND plan_id = $2
	`

	var structure []byte
	err := s.pool.QueryRow(ctx, query, clientID, planID).Scan(&structure)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get overrides: %w", err)
	}

	days, err := decodeDays(structure)
	if err != nil {
		return nil, false, fmt.Errorf("overrides of plan %s: %w", planID, err)
	}
	return days, true, nil
}

func (s *plansStorage) SaveOverrides(ctx context.Context, clientID string, planID string, days []nutrition.PlanDay) error {
	structure, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("encode week structure: %w", err)
	}

	query := `
		INSERT INTO nutrition_plan_overrides (client_id, plan_id, week_structure, updated_at)
		SELECT $1, p.id, $3, NOW()
		FROM client_nutrition_plans p
		WHERE p.id = $2 AND p.client_id = $1
		ON CONFLICT (client_id, plan_id)
		DO UPDATE SET week_structure = EXCLUDED.week_structure, updated_at = NOW()
	`

	result, err := s.pool.Exec(ctx, query, clientID, planID, structure)
	if err != nil {
		return fmt.Errorf("failed to save overrides: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("save overrides for plan %s: %w", planID, storage.ErrNotFound)
	}
	return nil
}

func (s *plansStorage) GetTemplate(ctx context.Context, templateID string) ([]nutrition.PlanDay, bool, error) {
	query := `SELECT week_structure FROM meal_templates WHERE id = $1`

	var structure []byte
	err := s.pool.QueryRow(ctx, query, templateID).Scan(&structure)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get template: %w", err)
	}

	days, err := decodeDays(structure)
	if err != nil {
		return nil, false, fmt.Errorf("template %s: %w", templateID, err)
	}
	return days, true, nil
}

func decodeDays(raw []byte) ([]nutrition.PlanDay, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var days []nutrition.PlanDay
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, fmt.Errorf("decode week structure: %w", err)
	}
	return days, nil
}
