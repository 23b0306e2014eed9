package flat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlat(t *testing.T) {
	ctx := context.Background()

	t.Run("Insert", func(t *testing.T) {
		f, err := New(3)
		require.NoError(t, err)

		id, err := f.Insert(ctx, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, uint32(0), id)

		id, err = f.Insert(ctx, []float32{4, 5, 6})
		require.NoError(t, err)
		assert.Equal(t, uint32(1), id)
		assert.Equal(t, 2, f.Len())

		_, err = f.Insert(ctx, []float32{1, 2})
		assert.IsType(t, &ErrDimensionMismatch{}, err)
	})

	t.Run("BatchInsertAllOrNothing", func(t *testing.T) {
		f, err := New(2)
		require.NoError(t, err)

		_, err = f.BatchInsert(ctx, [][]float32{{1, 2}, {3}})
		require.Error(t, err)
		assert.Zero(t, f.Len())

		ids, err := f.BatchInsert(ctx, [][]float32{{1, 2}, {3, 4}})
		require.NoError(t, err)
		assert.Equal(t, []uint32{0, 1}, ids)
	})

	t.Run("InvalidDimension", func(t *testing.T) {
		_, err := New(0)
		assert.IsType(t, &ErrInvalidDimension{}, err)
	})

	t.Run("KNNSearch", func(t *testing.T) {
		f, err := New(3)
		require.NoError(t, err)

		_, err = f.BatchInsert(ctx, [][]float32{
			{1, 2, 3},
			{4, 5, 6},
			{7, 8, 9},
		})
		require.NoError(t, err)

		results, err := f.KNNSearch(ctx, []float32{0, 0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, uint32(0), results[0].Ordinal)
		assert.Equal(t, uint32(1), results[1].Ordinal)
		assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
	})

	t.Run("KClamped", func(t *testing.T) {
		f, err := New(2)
		require.NoError(t, err)

		_, err = f.BatchInsert(ctx, [][]float32{{1, 0}, {0, 1}})
		require.NoError(t, err)

		results, err := f.KNNSearch(ctx, []float32{0, 0}, 100, nil)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("InvalidK", func(t *testing.T) {
		f, err := New(2)
		require.NoError(t, err)

		_, err = f.KNNSearch(ctx, []float32{0, 0}, 0, nil)
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("EmptyIndex", func(t *testing.T) {
		f, err := New(2)
		require.NoError(t, err)

		results, err := f.KNNSearch(ctx, []float32{0, 0}, 5, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("TieBreakByOrdinal", func(t *testing.T) {
		f, err := New(2)
		require.NoError(t, err)

		// Equidistant from the origin.
		_, err = f.BatchInsert(ctx, [][]float32{
			{0, 1},
			{1, 0},
			{-1, 0},
		})
		require.NoError(t, err)

		results, err := f.KNNSearch(ctx, []float32{0, 0}, 3, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, uint32(0), results[0].Ordinal)
		assert.Equal(t, uint32(1), results[1].Ordinal)
		assert.Equal(t, uint32(2), results[2].Ordinal)
	})

	t.Run("Filter", func(t *testing.T) {
		f, err := New(2)
		require.NoError(t, err)

		_, err = f.BatchInsert(ctx, [][]float32{{0, 0}, {1, 1}, {2, 2}})
		require.NoError(t, err)

		results, err := f.KNNSearch(ctx, []float32{0, 0}, 3, func(ordinal uint32) bool {
			return ordinal%2 == 1
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, uint32(1), results[0].Ordinal)
	})

	t.Run("QueryDimensionMismatch", func(t *testing.T) {
		f, err := New(3)
		require.NoError(t, err)

		_, err = f.Insert(ctx, []float32{1, 2, 3})
		require.NoError(t, err)

		_, err = f.KNNSearch(ctx, []float32{1, 2}, 1, nil)
		assert.IsType(t, &ErrDimensionMismatch{}, err)
	})
}
