package adherence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fdg312/coach-nutrition/internal/localcache"
	"github.com/fdg312/coach-nutrition/internal/nutrition"
	"github.com/fdg312/coach-nutrition/internal/reconcile"
	"github.com/fdg312/coach-nutrition/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const pastSnapshotConcurrency = 4

// Deps are the collaborators shared by every tracker. Catalog is only used
// by meal search.
type Deps struct {
	Plans            storage.PlansStorage
	Snapshots        storage.SnapshotsStorage
	Catalog          storage.MealsStorage
	Store            *reconcile.Store
	Cache            *localcache.Cache
	Logger           *zap.Logger
	Metrics          *reconcile.Metrics
	Now              func() time.Time
	Location         *time.Location
	SnapshotInterval time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	return d
}

// Tracker is one client's tracking session. State is guarded by mu; all
// storage and cache I/O runs on copies taken under the lock.
type Tracker struct {
	deps     Deps
	clientID string
	logger   *zap.Logger

	mu      sync.Mutex
	plan    *storage.Plan
	days    []nutrition.PlanDay
	meals   map[string]nutrition.MealRecord
	checked nutrition.CheckedState
	swaps   nutrition.PendingSwaps

	cacheMu  sync.Mutex
	commitMu sync.Mutex

	persister *reconcile.Persister
	cancelRun context.CancelFunc
}

// Open loads the client's plan, the meals it references, the cached checked
// state and the stored snapshots up to today, and reconciles them. Past
// days take the server's markers; today keeps the local ones. A client without a plan
// gets an empty session that never persists.
func Open(ctx context.Context, deps Deps, clientID string) (*Tracker, error) {
	deps = deps.withDefaults()
	t := &Tracker{
		deps:     deps,
		clientID: clientID,
		logger:   deps.Logger.With(zap.String("client_id", clientID)),
		days:     nutrition.PadDays(nil),
		meals:    map[string]nutrition.MealRecord{},
		checked:  nutrition.CheckedState{},
		swaps:    nutrition.PendingSwaps{},
	}

	plan, found, err := deps.Plans.GetPlan(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	if !found {
		t.logger.Debug("no active plan")
		return t, nil
	}

	days, err := t.resolveStructure(ctx, plan)
	if err != nil {
		return nil, err
	}

	meals, err := deps.Store.LoadReferencedMeals(ctx, days)
	var partial *reconcile.PartialBatchError
	if err != nil && !errors.As(err, &partial) {
		return nil, fmt.Errorf("load meals: %w", err)
	}

	local, err := deps.Cache.Load(ctx, clientID, plan.ID)
	if err != nil {
		t.logger.Warn("local cache unavailable", zap.Error(err))
		local = nutrition.CheckedState{}
	}

	checked := local
	today := deps.Now().In(deps.Location)
	past := t.pastSnapshots(ctx, plan, nutrition.ElapsedDays(plan.StartDate, today))
	for _, snap := range past {
		checked = reconcile.ReconcileCheckedState(checked, snap, days[snap.DayIndex], nil, reconcile.ServerWins)
	}
	if idx, ok := nutrition.DayIndexFor(plan.StartDate, today); ok {
		if snap := t.planSnapshot(ctx, plan, idx); snap != nil {
			checked = reconcile.ReconcileCheckedState(checked, snap, days[idx], nil, reconcile.LocalWins)
		}
	}

	t.plan = &plan
	t.days = days
	t.meals = meals
	t.checked = checked.Clone()

	t.writeCache(ctx)

	t.persister = reconcile.NewPersister(reconcile.PersisterConfig{
		ClientID: clientID,
		PlanID:   plan.ID,
		Saver:    deps.Snapshots,
		Capture:  t.captureToday,
		Interval: deps.SnapshotInterval,
		Logger:   deps.Logger,
		Metrics:  deps.Metrics,
	})
	runCtx, cancel := context.WithCancel(context.Background())
	t.cancelRun = cancel
	go t.persister.Run(runCtx)

	t.logger.Info("tracking session opened",
		zap.String("plan_id", plan.ID),
		zap.Int("meals", len(meals)),
		zap.Int("checked", len(t.checked)),
		zap.Int("past_snapshots", len(past)),
		zap.Bool("partial_meals", partial != nil))
	return t, nil
}

// planSnapshot returns the stored snapshot of plan day idx, or nil when
// there is none, it belongs to another plan, or the lookup fails.
func (t *Tracker) planSnapshot(ctx context.Context, plan storage.Plan, idx int) *storage.Snapshot {
	date := nutrition.DateFor(plan.StartDate, idx).Format(storage.DateLayout)
	snap, err := t.deps.Snapshots.GetSnapshot(ctx, t.clientID, date)
	if err != nil {
		t.logger.Warn("snapshot unavailable", zap.String("date", date), zap.Error(err))
		return nil
	}
	if snap == nil || snap.PlanID != plan.ID || snap.DayIndex != idx {
		return nil
	}
	return snap
}

// pastSnapshots fetches the snapshots of plan days [0, count) and returns
// the ones found in day order.
func (t *Tracker) pastSnapshots(ctx context.Context, plan storage.Plan, count int) []*storage.Snapshot {
	found := make([]*storage.Snapshot, count)
	var g errgroup.Group
	g.SetLimit(pastSnapshotConcurrency)
	for day := 0; day < count; day++ {
		g.Go(func() error {
			found[day] = t.planSnapshot(ctx, plan, day)
			return nil
		})
	}
	g.Wait()

	out := make([]*storage.Snapshot, 0, count)
	for _, snap := range found {
		if snap != nil {
			out = append(out, snap)
		}
	}
	return out
}

// resolveStructure picks the first non-empty week structure among the coach
// overrides, the plan itself and its template.
func (t *Tracker) resolveStructure(ctx context.Context, plan storage.Plan) ([]nutrition.PlanDay, error) {
	overrides, ok, err := t.deps.Plans.GetOverrides(ctx, t.clientID, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("get overrides: %w", err)
	}
	if ok && nutrition.HasSlots(overrides) {
		return nutrition.PadDays(overrides), nil
	}

	if nutrition.HasSlots(plan.WeekStructure) {
		return nutrition.PadDays(plan.WeekStructure), nil
	}

	if plan.TemplateID != "" {
		tmpl, ok, err := t.deps.Plans.GetTemplate(ctx, plan.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("get template: %w", err)
		}
		if ok {
			return nutrition.PadDays(tmpl), nil
		}
	}
	return nutrition.PadDays(nil), nil
}

// HasPlan reports whether the session is backed by an active plan.
func (t *Tracker) HasPlan() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.plan != nil
}

// DayView resolves every slot of day.
func (t *Tracker) DayView(day int) (DayView, error) {
	if day < 0 || day >= nutrition.PlanDays {
		return DayView{}, ErrInvalidDay
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dayViewLocked(day), nil
}

func (t *Tracker) dayViewLocked(day int) DayView {
	view := DayView{
		HasPlan:  t.plan != nil,
		DayIndex: day,
		Slots:    []SlotView{},
	}
	if t.plan != nil {
		view.PlanID = t.plan.ID
		view.Date = nutrition.DateFor(t.plan.StartDate, day).Format(storage.DateLayout)
	}

	pd := t.days[day]
	for i, slot := range pd.Slots {
		res := nutrition.ResolveSlot(day, i, slot, t.swaps, t.meals)
		sv := SlotView{
			SlotIndex:     i,
			TimeSlot:      slot.TimeSlot,
			MealID:        res.MealID,
			PlannedMealID: slot.MealID,
			Resolved:      res.Meal != nil,
			Macros:        res.Macros,
			Portion:       res.Portion,
			Factor:        res.Factor,
			Scaled:        res.Scaled,
			Swapped:       res.Swapped,
			Checked:       t.checked.IsChecked(nutrition.SlotKey{Day: day, Slot: i}),
		}
		if res.Meal != nil {
			sv.MealName = res.Meal.Name
		}
		view.Slots = append(view.Slots, sv)
	}
	view.Progress = nutrition.AggregateDay(day, pd, t.swaps, t.checked, t.meals)
	return view
}

// Today aggregates the plan day the current date falls on.
func (t *Tracker) Today() TodayView {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := t.deps.Now().In(t.deps.Location)
	view := TodayView{
		HasPlan: t.plan != nil,
		Date:    today.Format(storage.DateLayout),
	}
	if t.plan == nil {
		return view
	}

	progress, idx, ok := nutrition.AggregateToday(t.plan.StartDate, today, t.days, t.swaps, t.checked, t.meals)
	view.Targets = t.plan.Targets
	if !ok {
		return view
	}
	view.InPlan = true
	view.DayIndex = &idx
	view.Progress = progress
	view.Percent = nutrition.Percentages(progress.Checked, t.plan.Targets)
	return view
}

// Toggle flips the checked marker of a slot, writes the local cache and
// schedules a snapshot. It returns the updated view of that day only.
func (t *Tracker) Toggle(ctx context.Context, key nutrition.SlotKey) (DayView, error) {
	t.mu.Lock()
	if err := t.checkSlotLocked(key); err != nil {
		t.mu.Unlock()
		return DayView{}, err
	}
	checked := t.checked.Toggle(key)
	view := t.dayViewLocked(key.Day)
	t.mu.Unlock()

	t.logger.Debug("slot toggled", zap.Stringer("slot", key), zap.Bool("checked", checked))
	t.writeCache(ctx)
	t.persister.MarkDirty()
	return view, nil
}

// SelectSwap records mealID as the pending replacement of a slot. A meal not
// yet known to the session is fetched first.
func (t *Tracker) SelectSwap(ctx context.Context, key nutrition.SlotKey, mealID string) (DayView, error) {
	t.mu.Lock()
	if err := t.checkSlotLocked(key); err != nil {
		t.mu.Unlock()
		return DayView{}, err
	}
	_, known := t.meals[mealID]
	t.mu.Unlock()

	if !known {
		fetched, err := t.deps.Store.LoadReferencedMeals(ctx, nil, mealID)
		if err != nil {
			return DayView{}, fmt.Errorf("fetch swap meal: %w", err)
		}
		meal, ok := fetched[mealID]
		if !ok {
			return DayView{}, ErrMealNotFound
		}
		t.mu.Lock()
		t.meals[mealID] = meal
		t.mu.Unlock()
	}

	t.mu.Lock()
	if err := t.checkSlotLocked(key); err != nil {
		t.mu.Unlock()
		return DayView{}, err
	}
	t.swaps.Select(key, mealID)
	view := t.dayViewLocked(key.Day)
	t.mu.Unlock()

	t.persister.MarkDirty()
	return view, nil
}

// CancelSwap discards the pending swap of a slot, if any.
func (t *Tracker) CancelSwap(key nutrition.SlotKey) (DayView, error) {
	t.mu.Lock()
	if err := t.checkSlotLocked(key); err != nil {
		t.mu.Unlock()
		return DayView{}, err
	}
	t.swaps.Cancel(key)
	view := t.dayViewLocked(key.Day)
	t.mu.Unlock()

	t.persister.MarkDirty()
	return view, nil
}

// CommitSwaps writes all pending swaps into the plan overrides. On failure
// the pending swaps stay in place for a retry and a *reconcile.PersistError
// is returned.
func (t *Tracker) CommitSwaps(ctx context.Context) (int, error) {
	t.commitMu.Lock()
	defer t.commitMu.Unlock()

	t.mu.Lock()
	if t.plan == nil {
		t.mu.Unlock()
		return 0, ErrPlanNotFound
	}
	if len(t.swaps) == 0 {
		t.mu.Unlock()
		return 0, nil
	}
	planID := t.plan.ID
	days := nutrition.PadDays(t.days)
	pending := t.swaps.Clone()
	committed := pending.Clone()
	applied := pending.Commit(days)
	t.mu.Unlock()

	start := time.Now()
	err := t.deps.Plans.SaveOverrides(ctx, t.clientID, planID, days)
	t.deps.Metrics.RecordPersist(reconcile.OpOverrides, err, time.Since(start))
	if err != nil {
		t.logger.Warn("swap commit failed", zap.Int("pending", len(committed)), zap.Error(err))
		return 0, &reconcile.PersistError{
			Op:       reconcile.OpOverrides,
			ClientID: t.clientID,
			PlanID:   planID,
			Err:      err,
		}
	}

	t.mu.Lock()
	t.days = days
	for key, mealID := range committed {
		if current, ok := t.swaps[key]; ok && current == mealID {
			delete(t.swaps, key)
		}
	}
	t.mu.Unlock()

	t.logger.Info("swaps committed", zap.Int("applied", applied))
	t.persister.MarkDirty()
	return applied, nil
}

// Save persists today's snapshot now. saved is false when there is no plan
// or today is outside it.
func (t *Tracker) Save(ctx context.Context) (snap storage.Snapshot, saved bool, err error) {
	if t.persister == nil {
		return storage.Snapshot{}, false, nil
	}
	snap, err = t.persister.Flush(ctx)
	if err != nil {
		return storage.Snapshot{}, false, err
	}
	return snap, snap.Date != "", nil
}

// Dirty reports whether changes are waiting for the next snapshot.
func (t *Tracker) Dirty() bool {
	return t.persister != nil && t.persister.Dirty()
}

// Close stops the interval persister. An in-flight persist completes.
func (t *Tracker) Close() {
	if t.persister == nil {
		return
	}
	t.persister.Stop()
	t.cancelRun()
}

func (t *Tracker) checkSlotLocked(key nutrition.SlotKey) error {
	if t.plan == nil {
		return ErrPlanNotFound
	}
	if key.Day < 0 || key.Day >= len(t.days) {
		return ErrInvalidDay
	}
	if !key.Valid(t.days) {
		return ErrInvalidSlot
	}
	return nil
}

func (t *Tracker) captureToday() (reconcile.SnapshotInput, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.plan == nil {
		return reconcile.SnapshotInput{}, false
	}
	now := t.deps.Now()
	idx, ok := nutrition.DayIndexFor(t.plan.StartDate, now.In(t.deps.Location))
	if !ok {
		return reconcile.SnapshotInput{}, false
	}

	meals := make(map[string]nutrition.MealRecord, len(t.meals))
	for id, m := range t.meals {
		meals[id] = m
	}
	day := nutrition.PadDays(t.days)[idx]

	return reconcile.SnapshotInput{
		ClientID:  t.clientID,
		PlanID:    t.plan.ID,
		Date:      nutrition.DateFor(t.plan.StartDate, idx),
		DayIndex:  idx,
		Day:       day,
		Swaps:     t.swaps.Clone(),
		Checked:   t.checked.Clone(),
		Meals:     meals,
		CheckedAt: now.UTC(),
	}, true
}

// writeCache stores the current checked state. cacheMu orders writes so the
// last write always carries the newest state.
func (t *Tracker) writeCache(ctx context.Context) {
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()

	t.mu.Lock()
	if t.plan == nil {
		t.mu.Unlock()
		return
	}
	planID := t.plan.ID
	state := t.checked.Clone()
	t.mu.Unlock()

	if err := t.deps.Cache.Save(ctx, t.clientID, planID, state); err != nil {
		t.logger.Warn("local cache write failed", zap.Error(err))
	}
}
