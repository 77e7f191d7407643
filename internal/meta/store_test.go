package meta

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorePutGet(t *testing.T) {
	store := newTestStore(t)

	obj := &Object{
		Key:            "photos/cat.jpg",
		Transformation: "AES-CTR",
		BaseIV:         []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		Salt:           make([]byte, 32),
		Size:           12345,
		ContentType:    "image/jpeg",
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Put(obj))

	got, err := store.Get("photos/cat.jpg")
	require.NoError(t, err)
	assert.Equal(t, obj.Transformation, got.Transformation)
	assert.Equal(t, obj.BaseIV, got.BaseIV)
	assert.Equal(t, obj.Size, got.Size)
	assert.Equal(t, obj.ContentType, got.ContentType)
	assert.True(t, obj.CreatedAt.Equal(got.CreatedAt))
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreOverwrite(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put(&Object{Key: "k", Size: 1}))
	require.NoError(t, store.Put(&Object{Key: "k", Size: 2}))

	got, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Size)
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put(&Object{Key: "k"}))
	require.NoError(t, store.Delete("k"))

	_, err := store.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete("k"), ErrNotFound)
}

func TestStoreList(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put(&Object{Key: "b", Size: 2}))
	require.NoError(t, store.Put(&Object{Key: "a", Size: 1}))

	objects, err := store.List()
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "a", objects[0].Key)
	assert.Equal(t, "b", objects[1].Key)
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(&Object{Key: "persistent", Size: 9}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("persistent")
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.Size)
}
