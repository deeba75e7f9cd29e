package adherence

import (
	"context"
	"fmt"
	"sync"

	"github.com/fdg312/coach-nutrition/internal/nutrition"
	"go.uber.org/zap"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

type session struct {
	ready   chan struct{}
	tracker *Tracker
	err     error
}

// Service owns one tracking session per client, opened on first use.
type Service struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewService creates a service over deps.
func NewService(deps Deps) *Service {
	return &Service{
		deps:     deps.withDefaults(),
		sessions: make(map[string]*session),
	}
}

// Tracker returns the session of clientID, opening it if needed. Concurrent
// callers for the same client share one Open. Sessions of clients without a
// plan are not kept, so a plan assigned later is picked up.
func (s *Service) Tracker(ctx context.Context, clientID string) (*Tracker, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[clientID]; ok {
		s.mu.Unlock()
		select {
		case <-sess.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if sess.err != nil {
			return nil, sess.err
		}
		return sess.tracker, nil
	}
	sess := &session{ready: make(chan struct{})}
	s.sessions[clientID] = sess
	s.mu.Unlock()

	tracker, err := Open(ctx, s.deps, clientID)
	sess.tracker, sess.err = tracker, err

	s.mu.Lock()
	if err != nil || !tracker.HasPlan() || s.closed {
		delete(s.sessions, clientID)
	}
	closed := s.closed
	s.mu.Unlock()
	close(sess.ready)

	if err != nil {
		s.deps.Logger.Warn("open tracking session failed", zap.String("client_id", clientID), zap.Error(err))
		return nil, err
	}
	if closed {
		tracker.Close()
	}
	return tracker, nil
}

func (s *Service) DayView(ctx context.Context, clientID string, day int) (DayView, error) {
	if day < 0 || day >= nutrition.PlanDays {
		return DayView{}, ErrInvalidDay
	}
	t, err := s.Tracker(ctx, clientID)
	if err != nil {
		return DayView{}, err
	}
	return t.DayView(day)
}

func (s *Service) Today(ctx context.Context, clientID string) (TodayView, error) {
	t, err := s.Tracker(ctx, clientID)
	if err != nil {
		return TodayView{}, err
	}
	return t.Today(), nil
}

func (s *Service) Toggle(ctx context.Context, clientID string, key nutrition.SlotKey) (DayView, error) {
	t, err := s.Tracker(ctx, clientID)
	if err != nil {
		return DayView{}, err
	}
	return t.Toggle(ctx, key)
}

func (s *Service) SelectSwap(ctx context.Context, clientID string, key nutrition.SlotKey, mealID string) (DayView, error) {
	t, err := s.Tracker(ctx, clientID)
	if err != nil {
		return DayView{}, err
	}
	return t.SelectSwap(ctx, key, mealID)
}

func (s *Service) CancelSwap(ctx context.Context, clientID string, key nutrition.SlotKey) (DayView, error) {
	t, err := s.Tracker(ctx, clientID)
	if err != nil {
		return DayView{}, err
	}
	return t.CancelSwap(key)
}

func (s *Service) CommitSwaps(ctx context.Context, clientID string) (int, error) {
	t, err := s.Tracker(ctx, clientID)
	if err != nil {
		return 0, err
	}
	return t.CommitSwaps(ctx)
}

// Save persists today's snapshot of clientID.
func (s *Service) Save(ctx context.Context, clientID string) (SaveResponse, error) {
	t, err := s.Tracker(ctx, clientID)
	if err != nil {
		return SaveResponse{}, err
	}
	snap, saved, err := t.Save(ctx)
	if err != nil {
		return SaveResponse{}, err
	}
	if !saved {
		return SaveResponse{Saved: false}, nil
	}
	return SaveResponse{Saved: true, Snapshot: &snap}, nil
}

// SearchMeals lists catalog meals for the swap picker.
func (s *Service) SearchMeals(ctx context.Context, query, category string, limit int) ([]nutrition.MealRecord, error) {
	if s.deps.Catalog == nil {
		return []nutrition.MealRecord{}, nil
	}
	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}
	meals, err := s.deps.Catalog.SearchMeals(ctx, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("search meals: %w", err)
	}
	if meals == nil {
		meals = []nutrition.MealRecord{}
	}
	return meals, nil
}

// Close flushes dirty sessions and stops their persisters. Failed flushes
// are logged; the local cache still holds the checked state.
func (s *Service) Close(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		select {
		case <-sess.ready:
		case <-ctx.Done():
			return
		}
		t := sess.tracker
		if t == nil {
			continue
		}
		if t.Dirty() {
			if _, _, err := t.Save(ctx); err != nil {
				s.deps.Logger.Warn("final snapshot failed", zap.String("client_id", t.clientID), zap.Error(err))
			}
		}
		t.Close()
	}
}
