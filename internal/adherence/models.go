package adherence

import (
	"fmt"

	"github.com/fdg312/coach-nutrition/internal/nutrition"
	"github.com/fdg312/coach-nutrition/internal/storage"
)

// SlotView is the resolved state of one plan slot as shown to the client.
type SlotView struct {
	SlotIndex     int              `json:"slot_index"`
	TimeSlot      string           `json:"time_slot"`
	MealID        string           `json:"meal_id"`
	PlannedMealID string           `json:"planned_meal_id"`
	MealName      string           `json:"meal_name,omitempty"`
	Resolved      bool             `json:"resolved"`
	Macros        nutrition.Macros `json:"macros"`
	Portion       string           `json:"portion"`
	Factor        float64          `json:"factor"`
	Scaled        bool             `json:"scaled"`
	Swapped       bool             `json:"swapped"`
	Checked       bool             `json:"checked"`
}

// DayView is one plan day with per-slot resolutions and its progress.
type DayView struct {
	HasPlan  bool                  `json:"has_plan"`
	PlanID   string                `json:"plan_id,omitempty"`
	DayIndex int                   `json:"day_index"`
	Date     string                `json:"date,omitempty"`
	Slots    []SlotView            `json:"slots"`
	Progress nutrition.DayProgress `json:"progress"`
}

// TodayView is the "today" widget: progress of the current plan day
// against the plan's daily targets.
type TodayView struct {
	HasPlan  bool                  `json:"has_plan"`
	InPlan   bool                  `json:"in_plan"`
	DayIndex *int                  `json:"day_index"`
	Date     string                `json:"date"`
	Progress nutrition.DayProgress `json:"progress"`
	Targets  nutrition.Targets     `json:"targets"`
	Percent  nutrition.Percent     `json:"percent"`
}

// SlotRequest addresses one slot.
type SlotRequest struct {
	DayIndex  *int `json:"day_index"`
	SlotIndex *int `json:"slot_index"`
}

func (r SlotRequest) Validate() error {
	if r.DayIndex == nil {
		return fmt.Errorf("day_index is required")
	}
	if r.SlotIndex == nil {
		return fmt.Errorf("slot_index is required")
	}
	if *r.DayIndex < 0 || *r.DayIndex >= nutrition.PlanDays {
		return fmt.Errorf("day_index must be between 0 and %d", nutrition.PlanDays-1)
	}
	if *r.SlotIndex < 0 {
		return fmt.Errorf("slot_index must be non-negative")
	}
	return nil
}

// Key returns the slot key of a validated request.
func (r SlotRequest) Key() nutrition.SlotKey {
	return nutrition.SlotKey{Day: *r.DayIndex, Slot: *r.SlotIndex}
}

// SwapRequest selects a replacement meal for one slot.
type SwapRequest struct {
	SlotRequest
	MealID string `json:"meal_id"`
}

func (r SwapRequest) Validate() error {
	if err := r.SlotRequest.Validate(); err != nil {
		return err
	}
	if r.MealID == "" {
		return fmt.Errorf("meal_id is required")
	}
	return nil
}

// MealSearchResponse lists swap candidates.
type MealSearchResponse struct {
	Meals []nutrition.MealRecord `json:"meals"`
}

// CommitResponse reports how many pending swaps were written to the plan.
type CommitResponse struct {
	Applied int `json:"applied"`
}

// SaveResponse reports the result of an explicit progress save.
type SaveResponse struct {
	Saved    bool              `json:"saved"`
	Snapshot *storage.Snapshot `json:"snapshot,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
