package adherence

import "errors"

var (
	// ErrPlanNotFound means the client has no active plan. Read paths turn
	// it into an empty state; mutations report it.
	ErrPlanNotFound = errors.New("plan not found")
	ErrInvalidDay   = errors.New("day index out of range")
	ErrInvalidSlot  = errors.New("slot index out of range")
	ErrMealNotFound = errors.New("meal not found")
)
