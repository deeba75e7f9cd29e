package blob

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	n, err := store.PutObject(ctx, "checked-state/client-1.json", []byte(`{"v":1}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	data, err := store.GetObject(ctx, "checked-state/client-1.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))

	_, err = store.PutObject(ctx, "checked-state/client-1.json", []byte(`{"v":2}`), "application/json")
	require.NoError(t, err)
	data, err = store.GetObject(ctx, "checked-state/client-1.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))

	require.NoError(t, store.DeleteObject(ctx, "checked-state/client-1.json"))
	_, err = store.GetObject(ctx, "checked-state/client-1.json")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.DeleteObject(ctx, "checked-state/client-1.json"))
}

func TestLocalStore_KeysStayUnderRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	p, err := store.path("../../etc/passwd")
	require.NoError(t, err)
	assert.Contains(t, p, root)

	_, err = store.path("")
	assert.Error(t, err)
}

func TestNewLocalStore_EmptyRoot(t *testing.T) {
	_, err := NewLocalStore("  ")
	assert.Error(t, err)
}
