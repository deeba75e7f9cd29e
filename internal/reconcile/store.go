// Package reconcile loads the meals a plan references, merges locally cached
// checked state with persisted snapshots and serializes snapshot persists.
package reconcile

import (
	"context"

	"github.com/fdg312/coach-nutrition/internal/nutrition"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 4
)

// MealLookup resolves catalog meals by id. Unknown ids are omitted from the
// result rather than reported as errors.
type MealLookup interface {
	GetMealsByIDs(ctx context.Context, ids []string) ([]nutrition.MealRecord, error)
}

// Options tunes batched meal lookups. Zero values take the defaults.
type Options struct {
	BatchSize   int
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Store batches meal lookups against a MealLookup.
type Store struct {
	meals   MealLookup
	opts    Options
	logger  *zap.Logger
	metrics *Metrics
}

// NewStore creates a Store. logger and metrics may be nil.
func NewStore(meals MealLookup, opts Options, logger *zap.Logger, metrics *Metrics) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		meals:   meals,
		opts:    opts.withDefaults(),
		logger:  logger,
		metrics: metrics,
	}
}

// Options returns the effective lookup options.
func (s *Store) Options() Options {
	return s.opts
}

type batchResult struct {
	meals []nutrition.MealRecord
	err   error
}

// LoadReferencedMeals fetches every meal referenced by days plus extra ids.
// Ids are de-duplicated in first-appearance order and split into batches
// that run with bounded concurrency. The returned map is always non-nil;
// when some batches fail the error is a *PartialBatchError and only the ids
// of those batches are missing from the map.
func (s *Store) LoadReferencedMeals(ctx context.Context, days []nutrition.PlanDay, extra ...string) (map[string]nutrition.MealRecord, error) {
	ids := ReferencedMealIDs(days, extra...)
	batches := splitBatches(ids, s.opts.BatchSize)
	results := make([]batchResult, len(batches))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = batchResult{err: err}
				return nil
			}
			meals, err := s.meals.GetMealsByIDs(ctx, batch)
			results[i] = batchResult{meals: meals, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]nutrition.MealRecord, len(ids))
	var failures []BatchFailure
	for i, r := range results {
		s.metrics.recordBatch(r.err, len(batches[i]))
		if r.err != nil {
			failures = append(failures, BatchFailure{IDs: batches[i], Err: r.err})
			continue
		}
		requested := make(map[string]struct{}, len(batches[i]))
		for _, id := range batches[i] {
			requested[id] = struct{}{}
		}
		for _, meal := range r.meals {
			if _, ok := requested[meal.ID]; !ok {
				continue
			}
			if _, dup := out[meal.ID]; !dup {
				out[meal.ID] = meal
			}
		}
	}

	if len(failures) == 0 {
		return out, nil
	}

	perr := &PartialBatchError{Batches: len(batches), Failures: failures}
	s.logger.Warn("meal lookup partially failed",
		zap.Int("batches", len(batches)),
		zap.Int("failed_batches", len(failures)),
		zap.Int("unresolved_ids", len(perr.FailedIDs())),
		zap.Error(perr))
	return out, perr
}

// ReferencedMealIDs returns the distinct non-empty meal ids of days followed
// by extra, in first-appearance order.
func ReferencedMealIDs(days []nutrition.PlanDay, extra ...string) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, d := range days {
		for _, slot := range d.Slots {
			add(slot.MealID)
		}
	}
	for _, id := range extra {
		add(id)
	}
	return ids
}

func splitBatches(ids []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}
