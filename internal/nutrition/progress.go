package nutrition

import (
	"math"
	"time"
)

// AggregateDay sums resolved macros of pd into Total, and of its checked
// slots into Checked. Unresolved meals contribute nothing.
func AggregateDay(day int, pd PlanDay, swaps PendingSwaps, checked CheckedState, meals map[string]MealRecord) DayProgress {
	var p DayProgress
	for i, slot := range pd.Slots {
		res := ResolveSlot(day, i, slot, swaps, meals)
		if res.Meal == nil {
			continue
		}
		p.Total = p.Total.Add(res.Macros)
		if checked.IsChecked(SlotKey{Day: day, Slot: i}) {
			p.Checked = p.Checked.Add(res.Macros)
		}
	}
	return p
}

// DayIndexFor returns the plan day offset of today relative to start, counted
// in calendar days. start is read as a calendar date in its own location and
// today in its own. ok is false when the offset falls outside the plan.
func DayIndexFor(start, today time.Time) (int, bool) {
	startDate := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	offset := int(todayDate.Sub(startDate).Hours() / 24)
	if offset < 0 || offset >= PlanDays {
		return 0, false
	}
	return offset, true
}

// ElapsedDays counts the plan days dated strictly before today: 0 before
// the plan starts, PlanDays once it has ended.
func ElapsedDays(start, today time.Time) int {
	if idx, ok := DayIndexFor(start, today); ok {
		return idx
	}
	startDate := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if todayDate.Before(startDate) {
		return 0
	}
	return PlanDays
}

// DateFor returns the calendar date of plan day index relative to start.
func DateFor(start time.Time, index int) time.Time {
	return time.Date(start.Year(), start.Month(), start.Day()+index, 0, 0, 0, 0, time.UTC)
}

// AggregateToday aggregates the plan day that today falls on. When today is
// outside the plan, progress is zero and no slot is resolved.
func AggregateToday(start, today time.Time, days []PlanDay, swaps PendingSwaps, checked CheckedState, meals map[string]MealRecord) (DayProgress, int, bool) {
	index, ok := DayIndexFor(start, today)
	if !ok || index >= len(days) {
		return DayProgress{}, 0, false
	}
	return AggregateDay(index, days[index], swaps, checked, meals), index, true
}

// Percentages converts checked macros into display percentages of goal.
// Only the result is clamped; checked itself is left untouched.
func Percentages(checked Macros, goal Targets) Percent {
	return Percent{
		Kcal:     percentOf(checked.Kcal, goal.Kcal),
		ProteinG: percentOf(checked.ProteinG, goal.ProteinG),
		CarbsG:   percentOf(checked.CarbsG, goal.CarbsG),
		FatG:     percentOf(checked.FatG, goal.FatG),
	}
}

func percentOf(v, goal int) int {
	if goal <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(v) / float64(goal)))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
