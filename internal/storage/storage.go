package storage

import (
	"context"
	"errors"
	"time"

	"github.com/fdg312/coach-nutrition/internal/nutrition"
)

// ErrNotFound is returned by write paths that require an existing record.
var ErrNotFound = errors.New("not found")

// DateLayout is the canonical snapshot date format.
const DateLayout = "2006-01-02"

// Storage is the root store handed to the HTTP server.
type Storage interface {
	GetMealsStorage() MealsStorage
	GetPlansStorage() PlansStorage
	GetSnapshotsStorage() SnapshotsStorage
	Close() error
}

// MealsStorage is the meal catalog lookup.
type MealsStorage interface {
	// GetMealsByIDs returns the records found for ids. Unknown ids are skipped.
	GetMealsByIDs(ctx context.Context, ids []string) ([]nutrition.MealRecord, error)
	// SearchMeals backs the swap picker; the engine itself never calls it.
	SearchMeals(ctx context.Context, query string, category string, limit int) ([]nutrition.MealRecord, error)
}

// PlansStorage manages client plans, coach overrides and templates.
type PlansStorage interface {
	// GetPlan returns the active plan of a client.
	GetPlan(ctx context.Context, clientID string) (Plan, bool, error)
	// GetOverrides returns the override week structure saved for a plan.
	GetOverrides(ctx context.Context, clientID string, planID string) ([]nutrition.PlanDay, bool, error)
	// SaveOverrides replaces the override week structure of a plan.
	SaveOverrides(ctx context.Context, clientID string, planID string, days []nutrition.PlanDay) error
	// GetTemplate returns the week structure of a plan template.
	GetTemplate(ctx context.Context, templateID string) ([]nutrition.PlanDay, bool, error)
}

// SnapshotsStorage stores one progress snapshot per (client, plan, date).
type SnapshotsStorage interface {
	// GetSnapshot returns the latest snapshot of a client for date, or nil.
	GetSnapshot(ctx context.Context, clientID string, date string) (*Snapshot, error)
	// SaveSnapshot upserts snap keyed by (ClientID, PlanID, Date).
	SaveSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error)
}

// Plan is a client's assigned 28-day meal plan.
type Plan struct {
	ID            string              `json:"id"`
	ClientID      string              `json:"client_id"`
	StartDate     time.Time           `json:"start_date"`
	TemplateID    string              `json:"template_id,omitempty"`
	WeekStructure []nutrition.PlanDay `json:"week_structure"`
	Targets       nutrition.Targets   `json:"targets"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Snapshot is the persisted summary of one day's checked meals.
type Snapshot struct {
	ID           string                `json:"id"`
	ClientID     string                `json:"client_id"`
	PlanID       string                `json:"plan_id"`
	Date         string                `json:"date"`
	DayIndex     int                   `json:"day_index"`
	MealsChecked []SnapshotMeal        `json:"meals_checked"`
	Totals       nutrition.DayProgress `json:"totals"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// SnapshotMeal is one checked slot in a snapshot. SlotIndex is nil in
// snapshots written before slot indices were recorded.
type SnapshotMeal struct {
	MealID    string           `json:"meal_id"`
	SlotIndex *int             `json:"slot_index,omitempty"`
	TimeSlot  string           `json:"time_slot,omitempty"`
	Macros    nutrition.Macros `json:"macros"`
	Checked   bool             `json:"checked"`
	CheckedAt time.Time        `json:"checked_at"`
}
