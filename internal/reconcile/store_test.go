package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fdg312/coach-nutrition/internal/nutrition"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// mockLookup records every batch it receives and answers from its catalog.
type mockLookup struct {
	mu      sync.Mutex
	batches [][]string
	active  int
	peak    int

	catalog map[string]nutrition.MealRecord
	delay   func(batch []string) time.Duration
	fail    func(batch []string) error
}

func (m *mockLookup) GetMealsByIDs(ctx context.Context, ids []string) ([]nutrition.MealRecord, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), ids...))
	m.active++
	if m.active > m.peak {
		m.peak = m.active
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if m.delay != nil {
		time.Sleep(m.delay(ids))
	}
	if m.fail != nil {
		if err := m.fail(ids); err != nil {
			return nil, err
		}
	}

	out := make([]nutrition.MealRecord, 0, len(ids))
	for _, id := range ids {
		if meal, ok := m.catalog[id]; ok {
			out = append(out, meal)
		}
	}
	return out, nil
}

func catalogOf(n int) (map[string]nutrition.MealRecord, []nutrition.PlanDay) {
	catalog := make(map[string]nutrition.MealRecord, n)
	days := make([]nutrition.PlanDay, nutrition.PlanDays)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("meal-%03d", i)
		kcal := float64(100 + i)
		catalog[id] = nutrition.MealRecord{ID: id, Name: id, Kcal: &kcal}
		day := i % nutrition.PlanDays
		days[day].Slots = append(days[day].Slots, nutrition.MealSlot{MealID: id})
	}
	return catalog, days
}

func TestLoadReferencedMeals_BatchesBySize(t *testing.T) {
	catalog, days := catalogOf(250)
	lookup := &mockLookup{catalog: catalog}
	store := NewStore(lookup, Options{}, zaptest.NewLogger(t), nil)

	meals, err := store.LoadReferencedMeals(context.Background(), days)
	require.NoError(t, err)
	assert.Len(t, meals, 250)

	require.Len(t, lookup.batches, 3)
	sizes := []int{}
	for _, b := range lookup.batches {
		sizes = append(sizes, len(b))
	}
	assert.ElementsMatch(t, []int{100, 100, 50}, sizes)
}

func TestLoadReferencedMeals_DeduplicatesAndIncludesExtra(t *testing.T) {
	kcal := 200.0
	lookup := &mockLookup{catalog: map[string]nutrition.MealRecord{
		"a": {ID: "a", Kcal: &kcal},
		"b": {ID: "b", Kcal: &kcal},
		"c": {ID: "c", Kcal: &kcal},
	}}
	store := NewStore(lookup, Options{BatchSize: 10}, nil, nil)

	days := []nutrition.PlanDay{
		{Slots: []nutrition.MealSlot{{MealID: "a"}, {MealID: "b"}, {MealID: "a"}}},
		{Slots: []nutrition.MealSlot{{MealID: "b"}, {MealID: ""}}},
	}
	meals, err := store.LoadReferencedMeals(context.Background(), days, "c", "a")
	require.NoError(t, err)
	assert.Len(t, meals, 3)

	require.Len(t, lookup.batches, 1)
	assert.Equal(t, []string{"a", "b", "c"}, lookup.batches[0])
}

func TestLoadReferencedMeals_BoundedConcurrencyOutOfOrder(t *testing.T) {
	catalog, days := catalogOf(60)
	lookup := &mockLookup{
		catalog: catalog,
		// Earlier batches finish last.
		delay: func(batch []string) time.Duration {
			var n int
			fmt.Sscanf(batch[0], "meal-%d", &n)
			return time.Duration(60-n) * time.Millisecond / 4
		},
	}
	store := NewStore(lookup, Options{BatchSize: 10, Concurrency: 2}, nil, nil)

	first, err := store.LoadReferencedMeals(context.Background(), days)
	require.NoError(t, err)
	second, err := store.LoadReferencedMeals(context.Background(), days)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 60)
	assert.LessOrEqual(t, lookup.peak, 2)
}

func TestLoadReferencedMeals_PartialFailure(t *testing.T) {
	catalog, days := catalogOf(250)
	boom := errors.New("connection reset")
	lookup := &mockLookup{
		catalog: catalog,
		fail: func(batch []string) error {
			for _, id := range batch {
				if id == "meal-150" {
					return boom
				}
			}
			return nil
		},
	}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	store := NewStore(lookup, Options{}, zaptest.NewLogger(t), metrics)

	meals, err := store.LoadReferencedMeals(context.Background(), days)
	require.Error(t, err)

	var perr *PartialBatchError
	require.True(t, errors.As(err, &perr))
	require.Len(t, perr.Failures, 1)
	assert.Len(t, perr.Failures[0].IDs, 100)
	assert.Contains(t, perr.FailedIDs(), "meal-150")
	assert.ErrorIs(t, err, boom)

	assert.Len(t, meals, 150)
	for _, id := range perr.FailedIDs() {
		assert.NotContains(t, meals, id)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LookupBatches.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LookupBatches.WithLabelValues("error")))
	assert.Equal(t, 250.0, testutil.ToFloat64(metrics.LookupIDs))
}

func TestLoadReferencedMeals_CancelledContext(t *testing.T) {
	catalog, days := catalogOf(30)
	lookup := &mockLookup{catalog: catalog}
	store := NewStore(lookup, Options{BatchSize: 10}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	meals, err := store.LoadReferencedMeals(ctx, days)
	require.NotNil(t, meals)
	assert.Empty(t, meals)

	var perr *PartialBatchError
	require.True(t, errors.As(err, &perr))
	assert.Len(t, perr.Failures, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, lookup.batches)
}

func TestLoadReferencedMeals_NoIDs(t *testing.T) {
	lookup := &mockLookup{}
	store := NewStore(lookup, Options{}, nil, nil)

	meals, err := store.LoadReferencedMeals(context.Background(), make([]nutrition.PlanDay, nutrition.PlanDays))
	require.NoError(t, err)
	assert.NotNil(t, meals)
	assert.Empty(t, meals)
	assert.Empty(t, lookup.batches)
}

func TestOptionsDefaults(t *testing.T) {
	store := NewStore(&mockLookup{}, Options{BatchSize: -1}, nil, nil)
	assert.Equal(t, Options{BatchSize: DefaultBatchSize, Concurrency: DefaultConcurrency}, store.Options())
}
