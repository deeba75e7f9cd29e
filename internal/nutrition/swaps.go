package nutrition

// PendingSwaps holds uncommitted meal substitutions keyed by slot.
// The zero value is usable for lookups only; use make before Select.
type PendingSwaps map[SlotKey]string

// Select records mealID as the replacement for key.
func (p PendingSwaps) Select(key SlotKey, mealID string) {
	p[key] = mealID
}

// Cancel discards the pending swap for key, if any.
func (p PendingSwaps) Cancel(key SlotKey) {
	delete(p, key)
}

// Lookup returns the replacement meal id for key.
func (p PendingSwaps) Lookup(key SlotKey) (string, bool) {
	id, ok := p[key]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Commit rewrites the meal id of every swapped slot in days and clears p.
// Swaps pointing at slots that no longer exist are dropped.
// It returns the number of slots rewritten.
func (p PendingSwaps) Commit(days []PlanDay) int {
	applied := 0
	for key, mealID := range p {
		if mealID != "" && key.Valid(days) {
			days[key.Day].Slots[key.Slot].MealID = mealID
			applied++
		}
		delete(p, key)
	}
	return applied
}

// Clone returns an independent copy of p.
func (p PendingSwaps) Clone() PendingSwaps {
	out := make(PendingSwaps, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// MealIDs returns the replacement meal ids currently pending.
func (p PendingSwaps) MealIDs() []string {
	ids := make([]string, 0, len(p))
	for _, id := range p {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
