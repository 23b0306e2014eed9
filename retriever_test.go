package finsearch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/finsearch/blobstore"
	"github.com/paydesk/finsearch/embedding"
	"github.com/paydesk/finsearch/record"
)

func buildTestIndex(t *testing.T, records []record.Record) blobstore.Store {
	t.Helper()

	store := blobstore.NewMemoryStore()
	builder := NewBuilder(embedding.NewHash(256), store)
	_, err := builder.Build(context.Background(), records)
	require.NoError(t, err)
	return store
}

func TestRetrieverSearchScenario(t *testing.T) {
	ctx := context.Background()
	store := buildTestIndex(t, []record.Record{
		record.Bill{ID: 1, UserID: 1, Name: "Internet", Amount: 60.00, DueDate: record.Date(2023, time.October, 20), Status: "paid"},
		record.Transaction{ID: 2, UserID: 1, Description: "Last Month Electric", Amount: 120.50, Date: record.Date(2023, time.September, 15)},
	})

	retriever := NewRetriever(store)
	results, err := retriever.Search("electric payment").Execute(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The electric transaction shares query terms; it must outrank the
	// internet bill, and its display text must be the canonical form.
	assert.Equal(t, "Transaction: Last Month Electric. Amount: $120.50. Date: 2023-09-15.", results[0].Text)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)

	tx, ok := results[0].Record.(record.Transaction)
	require.True(t, ok)
	assert.Equal(t, int64(2), tx.ID)
	assert.Equal(t, 120.50, tx.Amount)
}

func TestRetrieverKClamping(t *testing.T) {
	ctx := context.Background()
	store := buildTestIndex(t, sampleRecords())

	retriever := NewRetriever(store)
	results, err := retriever.Search("anything at all").K(100).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, r.Distance, results[i-1].Distance)
		}
	}
}

func TestRetrieverFilteredSearch(t *testing.T) {
	ctx := context.Background()
	store := buildTestIndex(t, sampleRecords())
	retriever := NewRetriever(store)

	t.Run("ForUser", func(t *testing.T) {
		results, err := retriever.Search("payment").K(10).ForUser(2).Execute(ctx)
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.Equal(t, int64(2), r.Record.RecordUserID())
		}
	})

	t.Run("OfKind", func(t *testing.T) {
		results, err := retriever.Search("payment").K(10).OfKind(record.KindBill).Execute(ctx)
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.Equal(t, record.KindBill, r.Record.Kind())
		}
	})

	t.Run("Intersection", func(t *testing.T) {
		results, err := retriever.Search("payment").K(10).ForUser(1).OfKind(record.KindTransaction).Execute(ctx)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, int64(1), results[0].Record.RecordUserID())
		assert.Equal(t, record.KindTransaction, results[0].Record.Kind())
	})

	t.Run("NoMatch", func(t *testing.T) {
		results, err := retriever.Search("payment").K(10).ForUser(99).Execute(ctx)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestRetrieverMissingArtifacts(t *testing.T) {
	ctx := context.Background()
	retriever := NewRetriever(blobstore.NewMemoryStore())

	_, err := retriever.Search("anything").Execute(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArtifactsNotFound)
	assert.Contains(t, err.Error(), ManifestFileName)
	assert.True(t, IsNotAvailable(err))
	assert.False(t, retriever.Loaded())
}

func TestRetrieverFailedLoadDoesNotLatch(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	retriever := NewRetriever(store)

	_, err := retriever.Search("anything").Execute(ctx)
	assert.ErrorIs(t, err, ErrArtifactsNotFound)

	// Artifacts appear after the failed attempt; the next call loads.
	builder := NewBuilder(embedding.NewHash(256), store)
	_, err = builder.Build(ctx, sampleRecords())
	require.NoError(t, err)

	results, err := retriever.Search("electric payment").Execute(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.True(t, retriever.Loaded())
}

func TestRetrieverCorruptMetadata(t *testing.T) {
	ctx := context.Background()
	store := buildTestIndex(t, sampleRecords())

	// Replace the metadata artifact with one from a shorter build: the
	// length check must fail the load with ErrCorruptIndex.
	other := blobstore.NewMemoryStore()
	builder := NewBuilder(embedding.NewHash(256), other)
	_, err := builder.Build(ctx, sampleRecords()[:2])
	require.NoError(t, err)
	short, err := blobstore.ReadAll(ctx, other, MetadataFileName)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, MetadataFileName, short))

	retriever := NewRetriever(store)
	_, err = retriever.Search("anything").Execute(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptIndex)
	assert.True(t, IsNotAvailable(err))
	assert.False(t, retriever.Loaded())
}

func TestRetrieverCorruptIndexBytes(t *testing.T) {
	ctx := context.Background()
	store := buildTestIndex(t, sampleRecords())

	data, err := blobstore.ReadAll(ctx, store, IndexFileName)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xFF
	require.NoError(t, store.Put(ctx, IndexFileName, data))

	retriever := NewRetriever(store)
	err = retriever.Init(ctx)
	assert.ErrorIs(t, err, ErrCorruptIndex)
}

// countingStore counts Open calls per blob name.
type countingStore struct {
	blobstore.Store

	mu    sync.Mutex
	opens map[string]int
}

func (c *countingStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	c.mu.Lock()
	c.opens[name]++
	c.mu.Unlock()
	return c.Store.Open(ctx, name)
}

func TestRetrieverLoadsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	counting := &countingStore{
		Store: buildTestIndex(t, sampleRecords()),
		opens: make(map[string]int),
	}
	retriever := NewRetriever(counting)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := retriever.Search("electric payment").Execute(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	counting.mu.Lock()
	defer counting.mu.Unlock()
	assert.Equal(t, 1, counting.opens[ManifestFileName])
	assert.Equal(t, 1, counting.opens[IndexFileName])
	assert.Equal(t, 1, counting.opens[MetadataFileName])
}

func TestRetrieverStats(t *testing.T) {
	ctx := context.Background()
	store := buildTestIndex(t, sampleRecords())
	retriever := NewRetriever(store)

	assert.Equal(t, Stats{}, retriever.Stats())

	require.NoError(t, retriever.Init(ctx))
	stats := retriever.Stats()
	assert.True(t, stats.Loaded)
	assert.Equal(t, "hash-v1-256", stats.ModelName)
	assert.Equal(t, 256, stats.Dimension)
	assert.Equal(t, 4, stats.VectorCount)
	assert.Equal(t, 4, stats.MetadataCount)
}

func TestRetrieverInitIdempotent(t *testing.T) {
	ctx := context.Background()
	retriever := NewRetriever(buildTestIndex(t, sampleRecords()))

	require.NoError(t, retriever.Init(ctx))
	require.NoError(t, retriever.Init(ctx))
	assert.True(t, retriever.Loaded())
}

func TestRetrieverInjectedEmbedderFailure(t *testing.T) {
	ctx := context.Background()
	store := buildTestIndex(t, sampleRecords())

	retriever := NewRetriever(store, func(o *Options) {
		o.Embedder = failingEmbedder{}
	})

	// The injected embedder's dimension does not match the index.
	err := retriever.Init(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrArtifactsNotFound)
}

func TestRetrieverEmbeddingErrorAtSearch(t *testing.T) {
	ctx := context.Background()
	store := buildTestIndex(t, sampleRecords())

	retriever := NewRetriever(store, func(o *Options) {
		o.Embedder = flakyEmbedder{dims: 256}
	})
	require.NoError(t, retriever.Init(ctx))

	_, err := retriever.Search("anything").Execute(ctx)
	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
}

// flakyEmbedder loads fine but fails query embedding.
type flakyEmbedder struct {
	dims int
}

func (e flakyEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, context.DeadlineExceeded
}
func (e flakyEmbedder) Dimensions() int { return e.dims }
func (e flakyEmbedder) Name() string    { return "flaky" }
