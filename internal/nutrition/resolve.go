package nutrition

// Resolution is the effective meal and macros of one slot after applying a
// pending swap and, when requested, calorie scaling.
type Resolution struct {
	MealID  string      `json:"meal_id"`
	Meal    *MealRecord `json:"meal,omitempty"`
	Macros  Macros      `json:"macros"`
	Portion string      `json:"portion"`
	Factor  float64     `json:"factor"`
	Scaled  bool        `json:"scaled"`
	Swapped bool        `json:"swapped"`
}

// ResolveSlot resolves slot (day, slotIndex). A meal id missing from meals
// yields a nil Meal and zero macros.
func ResolveSlot(day, slotIndex int, slot MealSlot, swaps PendingSwaps, meals map[string]MealRecord) Resolution {
	res := Resolution{MealID: slot.MealID, Factor: 1}
	if id, ok := swaps.Lookup(SlotKey{Day: day, Slot: slotIndex}); ok {
		res.MealID = id
		res.Swapped = true
	}

	meal, ok := meals[res.MealID]
	if !ok {
		return res
	}
	res.Meal = &meal

	if slot.TargetKcal != nil && meal.kcalValue() > 0 {
		scaled := Scale(meal, *slot.TargetKcal)
		res.Macros = scaled.Macros
		res.Portion = scaled.PortionText
		res.Factor = scaled.Factor
		res.Scaled = true
		return res
	}

	res.Macros = meal.ReferenceMacros()
	res.Portion = portionOrDefault(meal.DefaultPortion)
	return res
}

// ResolveDay resolves every slot of pd in index order.
func ResolveDay(day int, pd PlanDay, swaps PendingSwaps, meals map[string]MealRecord) []Resolution {
	out := make([]Resolution, len(pd.Slots))
	for i, slot := range pd.Slots {
		out[i] = ResolveSlot(day, i, slot, swaps, meals)
	}
	return out
}
