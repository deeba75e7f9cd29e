package nutrition

import (
	"fmt"
	"math"
)

// PlanDays is the fixed number of calendar days in a client plan.
const PlanDays = 28

// Macros holds integer macro values as shown to the client.
type Macros struct {
	Kcal     int `json:"kcal"`
	ProteinG int `json:"protein_g"`
	CarbsG   int `json:"carbs_g"`
	FatG     int `json:"fat_g"`
}

// Add returns the field-wise sum of m and o.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Kcal:     m.Kcal + o.Kcal,
		ProteinG: m.ProteinG + o.ProteinG,
		CarbsG:   m.CarbsG + o.CarbsG,
		FatG:     m.FatG + o.FatG,
	}
}

// MealRecord is a catalog meal with reference macros for its default portion.
// A nil macro pointer means the catalog entry does not state that value.
type MealRecord struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Kcal           *float64 `json:"kcal,omitempty"`
	ProteinG       *float64 `json:"protein_g,omitempty"`
	CarbsG         *float64 `json:"carbs_g,omitempty"`
	FatG           *float64 `json:"fat_g,omitempty"`
	DefaultPortion string   `json:"default_portion,omitempty"`
}

// ReferenceMacros returns the unscaled macros, missing fields as 0.
func (m MealRecord) ReferenceMacros() Macros {
	return m.macrosTimes(1)
}

func (m MealRecord) macrosTimes(factor float64) Macros {
	return Macros{
		Kcal:     roundTimes(m.Kcal, factor),
		ProteinG: roundTimes(m.ProteinG, factor),
		CarbsG:   roundTimes(m.CarbsG, factor),
		FatG:     roundTimes(m.FatG, factor),
	}
}

func (m MealRecord) kcalValue() float64 {
	if m.Kcal == nil {
		return 0
	}
	return *m.Kcal
}

func roundTimes(v *float64, factor float64) int {
	if v == nil {
		return 0
	}
	return int(math.Round(*v * factor))
}

// MealSlot is one scheduled meal position within a plan day.
// TargetKcal, when set, requests macros scaled to that calorie target.
type MealSlot struct {
	MealID     string `json:"meal_id"`
	TimeSlot   string `json:"time_slot"`
	TargetKcal *int   `json:"target_kcal,omitempty"`
}

// PlanDay is the ordered list of slots for one calendar offset.
type PlanDay struct {
	Slots []MealSlot `json:"slots"`
}

// PadDays returns a deep copy of days with exactly PlanDays entries.
// Missing days are empty; days beyond PlanDays are dropped.
func PadDays(days []PlanDay) []PlanDay {
	out := make([]PlanDay, PlanDays)
	for i := 0; i < PlanDays && i < len(days); i++ {
		if len(days[i].Slots) == 0 {
			continue
		}
		slots := make([]MealSlot, len(days[i].Slots))
		for j, s := range days[i].Slots {
			if s.TargetKcal != nil {
				target := *s.TargetKcal
				s.TargetKcal = &target
			}
			slots[j] = s
		}
		out[i] = PlanDay{Slots: slots}
	}
	return out
}

// HasSlots reports whether any day in days has at least one slot.
func HasSlots(days []PlanDay) bool {
	for _, d := range days {
		if len(d.Slots) > 0 {
			return true
		}
	}
	return false
}

// SlotKey addresses one slot of one plan day.
type SlotKey struct {
	Day  int
	Slot int
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%d:%d", k.Day, k.Slot)
}

// Valid reports whether k points at an existing slot in days.
func (k SlotKey) Valid(days []PlanDay) bool {
	if k.Day < 0 || k.Day >= len(days) {
		return false
	}
	return k.Slot >= 0 && k.Slot < len(days[k.Day].Slots)
}

// CheckedState maps slots to an eaten marker. A present false value is an
// explicit uncheck; an absent key carries no information.
type CheckedState map[SlotKey]bool

// IsChecked reports whether key is marked eaten.
func (c CheckedState) IsChecked(key SlotKey) bool {
	return c[key]
}

// Toggle flips the marker for key and returns the new value.
func (c CheckedState) Toggle(key SlotKey) bool {
	v := !c[key]
	c[key] = v
	return v
}

// Clone returns an independent copy of c. A nil state clones to an empty one.
func (c CheckedState) Clone() CheckedState {
	out := make(CheckedState, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// DayProgress holds planned (Total) and eaten (Checked) macro sums of a day.
type DayProgress struct {
	Total   Macros `json:"total"`
	Checked Macros `json:"checked"`
}

// Targets is a client's daily macro goal.
type Targets struct {
	Kcal     int `json:"kcal"`
	ProteinG int `json:"protein_g"`
	CarbsG   int `json:"carbs_g"`
	FatG     int `json:"fat_g"`
}

// Percent holds per-macro display percentages in [0, 100].
type Percent struct {
	Kcal     int `json:"kcal"`
	ProteinG int `json:"protein_g"`
	CarbsG   int `json:"carbs_g"`
	FatG     int `json:"fat_g"`
}
