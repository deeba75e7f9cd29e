package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fdg312/coach-nutrition/internal/storage"
	"github.com/google/uuid"
)

type snapshotsStorage struct {
	mu        sync.RWMutex
	snapshots map[string]storage.Snapshot // key: "clientID:planID:date"
}

func newSnapshotsStorage() *snapshotsStorage {
	return &snapshotsStorage{
		snapshots: make(map[string]storage.Snapshot),
	}
}

func (s *snapshotsStorage) GetSnapshot(ctx context.Context, clientID string, date string) (*storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *storage.Snapshot
	for _, snap := range s.snapshots {
		if snap.ClientID != clientID || snap.Date != date {
			continue
		}
		if latest == nil || snap.UpdatedAt.After(latest.UpdatedAt) {
			found := cloneSnapshot(snap)
			latest = &found
		}
	}
	return latest, nil
}

func (s *snapshotsStorage) SaveSnapshot(ctx context.Context, snap storage.Snapshot) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := snap.ClientID + ":" + snap.PlanID + ":" + snap.Date
	if existing, ok := s.snapshots[key]; ok {
		snap.ID = existing.ID
	} else if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	snap.UpdatedAt = time.Now().UTC()

	stored := cloneSnapshot(snap)
	s.snapshots[key] = stored
	return cloneSnapshot(stored), nil
}

func cloneSnapshot(snap storage.Snapshot) storage.Snapshot {
	meals := make([]storage.SnapshotMeal, len(snap.MealsChecked))
	for i, m := range snap.MealsChecked {
		if m.SlotIndex != nil {
			idx := *m.SlotIndex
			m.SlotIndex = &idx
		}
		meals[i] = m
	}
	snap.MealsChecked = meals
	return snap
}
