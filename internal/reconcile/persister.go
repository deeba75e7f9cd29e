package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/fdg312/coach-nutrition/internal/storage"
	"go.uber.org/zap"
)

// Persist operation labels.
const (
	OpSnapshot  = "snapshot"
	OpOverrides = "overrides"
)

// SnapshotSaver writes snapshots. storage.SnapshotsStorage satisfies it.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, snap storage.Snapshot) (storage.Snapshot, error)
}

// CaptureFunc returns a copy of the state to persist. ok is false when there
// is nothing to persist.
type CaptureFunc func() (in SnapshotInput, ok bool)

// PersisterConfig configures a Persister.
type PersisterConfig struct {
	ClientID string
	PlanID   string
	Saver    SnapshotSaver
	Capture  CaptureFunc
	Interval time.Duration
	Logger   *zap.Logger
	Metrics  *Metrics
}

// Persister serializes snapshot persists for one client plan. A persist holds
// the persist lock across capture, build and save, so a concurrent caller
// waits and then persists the state current at that moment.
type Persister struct {
	cfg PersisterConfig

	persistMu sync.Mutex

	mu       sync.Mutex
	dirty    bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPersister creates a Persister. Run must be called to enable interval
// flushes.
func NewPersister(cfg PersisterConfig) *Persister {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Persister{
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// MarkDirty records that local state changed since the last persist.
func (p *Persister) MarkDirty() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}

// Dirty reports whether unsaved changes are pending.
func (p *Persister) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

// Flush persists the current state now. A failed save returns a
// *PersistError and leaves the persister dirty so the next flush retries.
func (p *Persister) Flush(ctx context.Context) (storage.Snapshot, error) {
	p.persistMu.Lock()
	defer p.persistMu.Unlock()

	p.mu.Lock()
	wasDirty := p.dirty
	p.dirty = false
	p.mu.Unlock()

	in, ok := p.cfg.Capture()
	if !ok {
		return storage.Snapshot{}, nil
	}

	start := time.Now()
	saved, err := p.cfg.Saver.SaveSnapshot(ctx, BuildSnapshot(in))
	p.cfg.Metrics.RecordPersist(OpSnapshot, err, time.Since(start))
	if err != nil {
		p.mu.Lock()
		p.dirty = true
		p.mu.Unlock()

		p.cfg.Logger.Warn("snapshot persist failed",
			zap.String("client_id", p.cfg.ClientID),
			zap.String("plan_id", p.cfg.PlanID),
			zap.Bool("was_dirty", wasDirty),
			zap.Error(err))
		return storage.Snapshot{}, &PersistError{
			Op:       OpSnapshot,
			ClientID: p.cfg.ClientID,
			PlanID:   p.cfg.PlanID,
			Err:      err,
		}
	}

	p.cfg.Logger.Debug("snapshot persisted",
		zap.String("client_id", p.cfg.ClientID),
		zap.String("date", saved.Date),
		zap.Int("checked", len(saved.MealsChecked)))
	return saved, nil
}

// Run flushes on every interval tick while dirty, until ctx is done or Stop
// is called. An in-flight flush is not cancelled by either.
func (p *Persister) Run(ctx context.Context) {
	if p.cfg.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	flushCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if !p.Dirty() {
				continue
			}
			_, _ = p.Flush(flushCtx)
		}
	}
}

// Stop ends the interval loop. It is safe to call more than once.
func (p *Persister) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
}
