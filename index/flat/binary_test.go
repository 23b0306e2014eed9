package flat

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryRoundTrip(t *testing.T) {
	ctx := context.Background()

	f, err := New(4)
	require.NoError(t, err)

	_, err = f.BatchInsert(ctx, [][]float32{
		{0.1, 0.2, 0.3, 0.4},
		{1, 1, 1, 1},
		{-0.5, 0.25, 0, 2},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "index.bin")
	require.NoError(t, f.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, f.Len(), loaded.Len())
	assert.Equal(t, f.Dimension(), loaded.Dimension())

	// Identical search results for identical queries.
	query := []float32{0, 0.5, 0.5, 1}
	want, err := f.KNNSearch(ctx, query, 3, nil)
	require.NoError(t, err)
	got, err := loaded.KNNSearch(ctx, query, 3, nil)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Ordinal, got[i].Ordinal)
		assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-7)
	}
}

func TestBinaryRoundTripEmpty(t *testing.T) {
	f, err := New(2)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "index.bin")
	require.NoError(t, f.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Zero(t, loaded.Len())
	assert.Equal(t, 2, loaded.Dimension())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.bin"))
	assert.Error(t, err)
}
