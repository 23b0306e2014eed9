package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"Local":  NewLocalStore(t.TempDir()),
		"Memory": NewMemoryStore(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			payload := []byte("index artifact bytes")
			require.NoError(t, store.Put(ctx, "gen-1/index.bin", payload))

			data, err := ReadAll(ctx, store, "gen-1/index.bin")
			require.NoError(t, err)
			assert.Equal(t, payload, data)
		})
	}
}

func TestStoreOpenMissing(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Open(ctx, "absent.bin")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreStreamingCreate(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			w, err := store.Create(ctx, "gen-2/metadata.bin")
			require.NoError(t, err)

			_, err = w.Write([]byte("first "))
			require.NoError(t, err)
			_, err = w.Write([]byte("second"))
			require.NoError(t, err)
			require.NoError(t, w.Close())

			data, err := ReadAll(ctx, store, "gen-2/metadata.bin")
			require.NoError(t, err)
			assert.Equal(t, []byte("first second"), data)
		})
	}
}

func TestStoreDeleteIdempotent(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "gone.bin", []byte("x")))
			require.NoError(t, store.Delete(ctx, "gone.bin"))
			require.NoError(t, store.Delete(ctx, "gone.bin"))

			_, err := store.Open(ctx, "gone.bin")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "gen-1/index.bin", []byte("a")))
			require.NoError(t, store.Put(ctx, "gen-1/model.json", []byte("b")))
			require.NoError(t, store.Put(ctx, "gen-2/index.bin", []byte("c")))

			names, err := store.List(ctx, "gen-1/")
			require.NoError(t, err)
			assert.Equal(t, []string{"gen-1/index.bin", "gen-1/model.json"}, names)

			all, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestLocalStoreUnfinishedCreateInvisible(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir)

	w, err := store.Create(ctx, "index.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	// Not closed yet: the target name must not exist.
	_, statErr := os.Stat(filepath.Join(dir, "index.bin"))
	assert.True(t, os.IsNotExist(statErr))

	require.NoError(t, w.Close())
	_, statErr = os.Stat(filepath.Join(dir, "index.bin"))
	assert.NoError(t, statErr)
}

func TestBlobReadAt(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "blob", []byte("0123456789")))

			blob, err := store.Open(ctx, "blob")
			require.NoError(t, err)
			defer blob.Close()

			assert.Equal(t, int64(10), blob.Size())

			p := make([]byte, 4)
			n, err := blob.ReadAt(p, 3)
			require.NoError(t, err)
			assert.Equal(t, 4, n)
			assert.Equal(t, "3456", string(p))

			// Reads past the end return what is there plus EOF.
			n, err = blob.ReadAt(p, 8)
			assert.Equal(t, 2, n)
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestCachingStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	cached := NewCachingStore(inner)

	require.NoError(t, cached.Put(ctx, "gen-1/index.bin", []byte("v1")))

	data, err := ReadAll(ctx, cached, "gen-1/index.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	// Deleting from the inner store directly: the cache still serves it.
	require.NoError(t, inner.Delete(ctx, "gen-1/index.bin"))
	data, err = ReadAll(ctx, cached, "gen-1/index.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	// Writing through the wrapper invalidates.
	require.NoError(t, cached.Put(ctx, "gen-1/index.bin", []byte("v2")))
	data, err = ReadAll(ctx, cached, "gen-1/index.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}
