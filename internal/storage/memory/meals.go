package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fdg312/coach-nutrition/internal/nutrition"
)

type mealsStorage struct {
	mu    sync.RWMutex
	meals map[string]nutrition.MealRecord // key: meal id
}

func newMealsStorage() *mealsStorage {
	return &mealsStorage{
		meals: make(map[string]nutrition.MealRecord),
	}
}

// PutMeals adds or replaces catalog meals. Used for seeding and tests.
func (m *MemoryStorage) PutMeals(meals ...nutrition.MealRecord) {
	m.meals.mu.Lock()
	defer m.meals.mu.Unlock()

	for _, meal := range meals {
		m.meals.meals[meal.ID] = meal
	}
}

func (s *mealsStorage) GetMealsByIDs(ctx context.Context, ids []string) ([]nutrition.MealRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]nutrition.MealRecord, 0, len(ids))
	for _, id := range ids {
		if meal, ok := s.meals[id]; ok {
			result = append(result, meal)
		}
	}
	return result, nil
}

func (s *mealsStorage) SearchMeals(ctx context.Context, query string, category string, limit int) ([]nutrition.MealRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	var result []nutrition.MealRecord
	for _, meal := range s.meals {
		if category != "" && meal.Category != category {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(meal.Name), query) {
			continue
		}
		result = append(result, meal)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
