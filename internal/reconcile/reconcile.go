package reconcile

import (
	"github.com/fdg312/coach-nutrition/internal/nutrition"
	"github.com/fdg312/coach-nutrition/internal/storage"
)

// Precedence decides which side keeps a key both sides have a value for.
type Precedence int

const (
	// LocalWins applies to the current date: the device is authoritative,
	// including an explicit local uncheck.
	LocalWins Precedence = iota
	// ServerWins applies to every other date.
	ServerWins
)

func (p Precedence) String() string {
	if p == ServerWins {
		return "server_wins"
	}
	return "local_wins"
}

// ReconcileCheckedState merges a persisted snapshot into the local checked
// state. The result starts as a copy of local. Snapshot entries always fill
// keys local has no value for; on collision prec decides. pd must be the
// plan day snap.DayIndex refers to. Keys of other days are never touched.
//
// A snapshot entry maps to a slot by its slot index when it carries a valid
// one, otherwise to the first unclaimed slot of the day whose effective meal
// id matches.
func ReconcileCheckedState(local nutrition.CheckedState, snap *storage.Snapshot, pd nutrition.PlanDay, swaps nutrition.PendingSwaps, prec Precedence) nutrition.CheckedState {
	out := local.Clone()
	if snap == nil {
		return out
	}

	day := snap.DayIndex
	claimed := make(map[int]bool, len(pd.Slots))
	for _, entry := range snap.MealsChecked {
		idx, ok := matchSlot(day, entry, pd, swaps, claimed)
		if !ok {
			continue
		}
		claimed[idx] = true

		key := nutrition.SlotKey{Day: day, Slot: idx}
		if _, known := out[key]; known && prec == LocalWins {
			continue
		}
		out[key] = entry.Checked
	}
	return out
}

func matchSlot(day int, entry storage.SnapshotMeal, pd nutrition.PlanDay, swaps nutrition.PendingSwaps, claimed map[int]bool) (int, bool) {
	if entry.SlotIndex != nil {
		idx := *entry.SlotIndex
		if idx >= 0 && idx < len(pd.Slots) && !claimed[idx] {
			return idx, true
		}
	}

	for i, slot := range pd.Slots {
		if claimed[i] {
			continue
		}
		if effectiveMealID(day, i, slot, swaps) == entry.MealID {
			return i, true
		}
	}
	return 0, false
}

func effectiveMealID(day, slotIndex int, slot nutrition.MealSlot, swaps nutrition.PendingSwaps) string {
	if id, ok := swaps.Lookup(nutrition.SlotKey{Day: day, Slot: slotIndex}); ok {
		return id
	}
	return slot.MealID
}
