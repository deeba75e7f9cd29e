package reconcile

import (
	"time"

	"github.com/fdg312/coach-nutrition/internal/nutrition"
	"github.com/fdg312/coach-nutrition/internal/storage"
)

// SnapshotInput is the captured state a snapshot is built from.
type SnapshotInput struct {
	ClientID string
	PlanID   string
	Date     time.Time
	DayIndex int
	Day      nutrition.PlanDay
	Swaps    nutrition.PendingSwaps
	Checked  nutrition.CheckedState
	Meals    map[string]nutrition.MealRecord
	// CheckedAt stamps every entry. Identical inputs build identical snapshots.
	CheckedAt time.Time
}

// BuildSnapshot lists the checked slots of in.Day in slot order with their
// effective macros, and totals the day. Unresolved checked meals are listed
// with zero macros.
func BuildSnapshot(in SnapshotInput) storage.Snapshot {
	snap := storage.Snapshot{
		ClientID:     in.ClientID,
		PlanID:       in.PlanID,
		Date:         in.Date.Format(storage.DateLayout),
		DayIndex:     in.DayIndex,
		MealsChecked: []storage.SnapshotMeal{},
		Totals:       nutrition.AggregateDay(in.DayIndex, in.Day, in.Swaps, in.Checked, in.Meals),
	}

	for i, slot := range in.Day.Slots {
		if !in.Checked.IsChecked(nutrition.SlotKey{Day: in.DayIndex, Slot: i}) {
			continue
		}
		res := nutrition.ResolveSlot(in.DayIndex, i, slot, in.Swaps, in.Meals)
		idx := i
		snap.MealsChecked = append(snap.MealsChecked, storage.SnapshotMeal{
			MealID:    res.MealID,
			SlotIndex: &idx,
			TimeSlot:  slot.TimeSlot,
			Macros:    res.Macros,
			Checked:   true,
			CheckedAt: in.CheckedAt,
		})
	}
	return snap
}
