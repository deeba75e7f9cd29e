package localcache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fdg312/coach-nutrition/internal/blob"
	"github.com/fdg312/coach-nutrition/internal/nutrition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newMemBlob() *memBlob {
	return &memBlob{objects: map[string][]byte{}}
}

func (m *memBlob) PutObject(ctx context.Context, key string, data []byte, contentType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return int64(len(data)), nil
}

func (m *memBlob) GetObject(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return data, nil
}

func (m *memBlob) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func TestCache_RoundTrip(t *testing.T) {
	store := newMemBlob()
	cache := New(store)
	ctx := context.Background()

	state := nutrition.CheckedState{
		{Day: 0, Slot: 1}: true,
		{Day: 3, Slot: 0}: false,
	}
	require.NoError(t, cache.Save(ctx, "client-1", "plan-1", state))

	raw := string(store.objects[Key("client-1")])
	assert.JSONEq(t, `{"version":1,"plan_id":"plan-1","entries":[{"day":0,"slot":1,"checked":true},{"day":3,"slot":0,"checked":false}]}`, raw)

	got, err := cache.Load(ctx, "client-1", "plan-1")
	require.NoError(t, err)
	assert.Equal(t, state, got)
}

func TestCache_MissingIsEmpty(t *testing.T) {
	cache := New(newMemBlob())

	got, err := cache.Load(context.Background(), "nobody", "plan-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCache_OtherPlanDiscarded(t *testing.T) {
	cache := New(newMemBlob())
	ctx := context.Background()
	require.NoError(t, cache.Save(ctx, "client-1", "old-plan", nutrition.CheckedState{{Day: 0, Slot: 0}: true}))

	got, err := cache.Load(ctx, "client-1", "new-plan")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCache_CorruptDocumentIsEmpty(t *testing.T) {
	store := newMemBlob()
	store.objects[Key("client-1")] = []byte("not json")

	got, err := New(store).Load(context.Background(), "client-1", "plan-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCache_OutOfRangeEntriesDropped(t *testing.T) {
	store := newMemBlob()
	store.objects[Key("client-1")] = []byte(`{"version":1,"plan_id":"p","entries":[{"day":28,"slot":0,"checked":true},{"day":-1,"slot":0,"checked":true},{"day":2,"slot":1,"checked":true}]}`)

	got, err := New(store).Load(context.Background(), "client-1", "p")
	require.NoError(t, err)
	assert.Equal(t, nutrition.CheckedState{{Day: 2, Slot: 1}: true}, got)
}

func TestCache_StoreErrorPropagates(t *testing.T) {
	store := newMemBlob()
	boom := errors.New("bucket unavailable")
	store.getErr = boom

	_, err := New(store).Load(context.Background(), "client-1", "p")
	assert.ErrorIs(t, err, boom)
}

func TestCache_Clear(t *testing.T) {
	store := newMemBlob()
	cache := New(store)
	ctx := context.Background()
	require.NoError(t, cache.Save(ctx, "client-1", "p", nutrition.CheckedState{{Day: 0, Slot: 0}: true}))

	require.NoError(t, cache.Clear(ctx, "client-1"))
	assert.Empty(t, store.objects)
}

func TestCache_WithLocalStore(t *testing.T) {
	store, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	cache := New(store)
	ctx := context.Background()

	state := nutrition.CheckedState{{Day: 5, Slot: 2}: true}
	require.NoError(t, cache.Save(ctx, "client-9", "plan-9", state))

	got, err := cache.Load(ctx, "client-9", "plan-9")
	require.NoError(t, err)
	assert.Equal(t, state, got)
}
