package memory

import (
	"github.com/fdg312/coach-nutrition/internal/storage"
)

// MemoryStorage is the in-memory implementation of storage.Storage.
type MemoryStorage struct {
	meals     *mealsStorage
	plans     *plansStorage
	snapshots *snapshotsStorage
}

// New creates an empty MemoryStorage.
func New() *MemoryStorage {
	return &MemoryStorage{
		meals:     newMealsStorage(),
		plans:     newPlansStorage(),
		snapshots: newSnapshotsStorage(),
	}
}

func (m *MemoryStorage) GetMealsStorage() storage.MealsStorage {
	return m.meals
}

func (m *MemoryStorage) GetPlansStorage() storage.PlansStorage {
	return m.plans
}

func (m *MemoryStorage) GetSnapshotsStorage() storage.SnapshotsStorage {
	return m.snapshots
}

// Close is a no-op for memory storage.
func (m *MemoryStorage) Close() error {
	return nil
}
