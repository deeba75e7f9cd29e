package reconcile

import (
	"fmt"
	"strings"
)

// BatchFailure records one meal lookup batch that could not be resolved.
type BatchFailure struct {
	IDs []string
	Err error
}

// PartialBatchError reports the lookup batches that failed during
// LoadReferencedMeals. Meals from the remaining batches are still returned.
type PartialBatchError struct {
	Batches  int
	Failures []BatchFailure
}

func (e *PartialBatchError) Error() string {
	causes := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		causes = append(causes, fmt.Sprintf("%d ids: %v", len(f.IDs), f.Err))
	}
	return fmt.Sprintf("meal lookup: %d of %d batches failed (%s)",
		len(e.Failures), e.Batches, strings.Join(causes, "; "))
}

// Unwrap exposes every batch cause to errors.Is and errors.As.
func (e *PartialBatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// FailedIDs returns the ids of every failed batch in batch order.
func (e *PartialBatchError) FailedIDs() []string {
	var ids []string
	for _, f := range e.Failures {
		ids = append(ids, f.IDs...)
	}
	return ids
}

// PersistError wraps a failed write of tracking state. Local state is never
// rolled back when it is returned.
type PersistError struct {
	Op       string
	ClientID string
	PlanID   string
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s for client %s plan %s: %v", e.Op, e.ClientID, e.PlanID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
