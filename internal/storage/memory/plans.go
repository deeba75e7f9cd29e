package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fdg312/coach-nutrition/internal/nutrition"
	"github.com/fdg312/coach-nutrition/internal/storage"
	"github.com/google/uuid"
)

type plansStorage struct {
	mu        sync.RWMutex
	plans     map[string]storage.Plan        // key: client id -> active plan
	overrides map[string][]nutrition.PlanDay // key: "clientID:planID"
	templates map[string][]nutrition.PlanDay // key: template id
}

func newPlansStorage() *plansStorage {
	return &plansStorage{
		plans:     make(map[string]storage.Plan),
		overrides: make(map[string][]nutrition.PlanDay),
		templates: make(map[string][]nutrition.PlanDay),
	}
}

// PutPlan stores plan as the active plan of plan.ClientID. An empty ID is
// filled with a new uuid. Used for seeding and tests.
func (m *MemoryStorage) PutPlan(plan storage.Plan) storage.Plan {
	s := m.plans
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	plan.WeekStructure = copyDays(plan.WeekStructure)
	s.plans[plan.ClientID] = plan
	return plan
}

// PutTemplate stores a template week structure. Used for seeding and tests.
func (m *MemoryStorage) PutTemplate(templateID string, days []nutrition.PlanDay) {
	s := m.plans
	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates[templateID] = copyDays(days)
}

func (s *plansStorage) GetPlan(ctx context.Context, clientID string) (storage.Plan, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[clientID]
	if !ok {
		return storage.Plan{}, false, nil
	}
	plan.WeekStructure = copyDays(plan.WeekStructure)
	return plan, true, nil
}

func (s *plansStorage) GetOverrides(ctx context.Context, clientID string, planID string) ([]nutrition.PlanDay, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days, ok := s.overrides[overrideKey(clientID, planID)]
	if !ok {
		return nil, false, nil
	}
	return copyDays(days), true, nil
}

func (s *plansStorage) SaveOverrides(ctx context.Context, clientID string, planID string, days []nutrition.PlanDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[clientID]
	if !ok || plan.ID != planID {
		return fmt.Errorf("save overrides for plan %s: %w", planID, storage.ErrNotFound)
	}

	s.overrides[overrideKey(clientID, planID)] = copyDays(days)
	return nil
}

func (s *plansStorage) GetTemplate(ctx context.Context, templateID string) ([]nutrition.PlanDay, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days, ok := s.templates[templateID]
	if !ok {
		return nil, false, nil
	}
	return copyDays(days), true, nil
}

func overrideKey(clientID, planID string) string {
	return clientID + ":" + planID
}

// copyDays keeps stored structures isolated from callers. Unlike
// nutrition.PadDays it preserves the authored length.
func copyDays(days []nutrition.PlanDay) []nutrition.PlanDay {
	if days == nil {
		return nil
	}
	padded := nutrition.PadDays(days)
	n := len(days)
	if n > len(padded) {
		n = len(padded)
	}
	return padded[:n]
}
