// Package flat provides an exact, append-only flat index for vector storage
// and nearest-neighbor search by squared Euclidean distance.
package flat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/paydesk/finsearch/distance"
	"github.com/paydesk/finsearch/internal/queue"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrEmptyVector is returned when an empty vector is inserted.
	ErrEmptyVector = errors.New("empty vector")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// SearchResult is one nearest-neighbor hit.
type SearchResult struct {
	Ordinal  uint32  // Row ordinal of the matched vector
	Distance float32 // Squared L2 distance; lower is better
}

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all inserts and searches.
	Dimension int

	// Metric selects the distance function. The index is built for exact
	// squared-L2 retrieval; MetricDot exists for experimentation only.
	Metric distance.Metric
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Metric: distance.MetricL2,
}

// indexState holds the immutable vector rows for lock-free reads.
// Vectors are append-only; a row's ordinal is its position.
type indexState struct {
	vectors [][]float32
}

// Flat is an exact flat index. Writes are serialized and publish a new
// immutable state; searches read the current state without locking.
type Flat struct {
	state        atomic.Pointer[indexState]
	writeMu      sync.Mutex
	distanceFunc distance.Func
	opts         Options
}

// New creates a new flat index with the given dimension.
func New(dimension int, optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions
	opts.Dimension = dimension

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: opts.Dimension}
	}

	fn, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	f := &Flat{
		distanceFunc: fn,
		opts:         opts,
	}
	f.state.Store(&indexState{})

	return f, nil
}

// Dimension returns the configured vector dimensionality.
func (f *Flat) Dimension() int { return f.opts.Dimension }

// Len returns the number of indexed vectors.
func (f *Flat) Len() int {
	return len(f.state.Load().vectors)
}

// Insert appends a single vector, returning its row ordinal.
func (f *Flat) Insert(ctx context.Context, v []float32) (uint32, error) {
	ids, err := f.BatchInsert(ctx, [][]float32{v})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// BatchInsert appends vectors in order, returning their row ordinals.
// The batch is all-or-nothing: on any error no vector is added, so the
// index never diverges from a metadata sequence built alongside it.
func (f *Flat) BatchInsert(ctx context.Context, vectors [][]float32) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	for _, v := range vectors {
		if len(v) == 0 {
			return nil, ErrEmptyVector
		}
		if len(v) != f.opts.Dimension {
			return nil, &ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(v)}
		}
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	old := f.state.Load()
	next := &indexState{
		vectors: make([][]float32, len(old.vectors), len(old.vectors)+len(vectors)),
	}
	copy(next.vectors, old.vectors)

	ids := make([]uint32, len(vectors))
	for i, v := range vectors {
		ids[i] = uint32(len(next.vectors))
		vec := make([]float32, len(v))
		copy(vec, v)
		next.vectors = append(next.vectors, vec)
	}

	f.state.Store(next)
	return ids, nil
}

// VectorByOrdinal returns the vector stored at the given row ordinal.
// The returned slice aliases index memory and must not be modified.
func (f *Flat) VectorByOrdinal(ordinal uint32) ([]float32, bool) {
	st := f.state.Load()
	if int(ordinal) >= len(st.vectors) {
		return nil, false
	}
	return st.vectors[ordinal], true
}

// KNNSearch returns the k rows nearest to query, ascending by distance with
// ties broken by ascending row ordinal. If k exceeds the number of indexed
// rows the result is clamped, never an error. An optional filter restricts
// which ordinals are considered.
func (f *Flat) KNNSearch(ctx context.Context, query []float32, k int, filter func(ordinal uint32) bool) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}

	st := f.state.Load()
	if len(st.vectors) == 0 {
		return nil, nil
	}
	if len(query) != f.opts.Dimension {
		return nil, &ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(query)}
	}

	if k > len(st.vectors) {
		k = len(st.vectors)
	}

	top := queue.NewTopK(k)
	for i, vec := range st.vectors {
		ordinal := uint32(i)
		if filter != nil && !filter(ordinal) {
			continue
		}
		top.Offer(queue.Item{Ordinal: ordinal, Distance: f.distanceFunc(query, vec)})
	}

	items := top.Drain()
	results := make([]SearchResult, len(items))
	for i, it := range items {
		results[i] = SearchResult{Ordinal: it.Ordinal, Distance: it.Distance}
	}
	return results, nil
}
