package finsearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/paydesk/finsearch/blobstore"
	"github.com/paydesk/finsearch/embedding"
	"github.com/paydesk/finsearch/index/flat"
	"github.com/paydesk/finsearch/manifest"
	"github.com/paydesk/finsearch/metadata"
	"github.com/paydesk/finsearch/persistence"
)

// Retriever answers nearest-k searches against a published artifact
// generation. It loads lazily: the first Init or Search pulls the
// artifacts into memory, validates them, and publishes an immutable
// snapshot. After that, searches are lock-free reads against the
// snapshot and never touch the load gate.
//
// A failed load does not latch: a later call retries, so a retriever
// started before the first build succeeds once artifacts appear.
type Retriever struct {
	store  blobstore.Store
	opts   Options
	logger *Logger

	loadMu sync.Mutex
	state  atomic.Pointer[retrieverState]
}

// retrieverState is the immutable loaded snapshot.
type retrieverState struct {
	index      *flat.Flat
	metadata   *metadata.Store
	descriptor *manifest.Descriptor
	embedder   embedding.Embedder
}

// Stats describes the loaded index, mirroring the model descriptor.
type Stats struct {
	Loaded        bool
	ModelName     string
	Dimension     int
	VectorCount   int
	MetadataCount int
}

// NewRetriever creates a Retriever reading from the given store. The
// embedding provider is resolved from the persisted model name unless
// one is injected via Options.Embedder.
func NewRetriever(store blobstore.Store, optFns ...func(o *Options)) *Retriever {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}

	return &Retriever{
		store:  store,
		opts:   opts,
		logger: opts.Logger,
	}
}

// Init eagerly loads the artifacts. Optional: Search loads on demand.
// Idempotent once loaded.
func (r *Retriever) Init(ctx context.Context) error {
	_, err := r.loaded(ctx)
	return err
}

// Loaded reports whether the artifacts have been loaded.
func (r *Retriever) Loaded() bool {
	return r.state.Load() != nil
}

// Stats returns descriptor-level information about the loaded index.
// An unloaded retriever reports zero stats with Loaded false; it does
// not trigger a load.
func (r *Retriever) Stats() Stats {
	st := r.state.Load()
	if st == nil {
		return Stats{}
	}
	return Stats{
		Loaded:        true,
		ModelName:     st.descriptor.ModelName,
		Dimension:     st.descriptor.Dimension,
		VectorCount:   st.descriptor.VectorCount,
		MetadataCount: st.metadata.Len(),
	}
}

// loaded returns the published snapshot, loading it first if needed.
// The mutex only guards the load transition; once the snapshot is
// published, callers read it without locking.
func (r *Retriever) loaded(ctx context.Context) (*retrieverState, error) {
	if st := r.state.Load(); st != nil {
		return st, nil
	}

	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	// Another caller may have finished the load while we waited.
	if st := r.state.Load(); st != nil {
		return st, nil
	}

	st, err := r.load(ctx)
	if err != nil {
		r.logger.LogLoad(ctx, "", 0, err)
		return nil, err
	}

	r.state.Store(st)
	r.logger.LogLoad(ctx, st.descriptor.ModelName, st.metadata.Len(), nil)
	return st, nil
}

// load reads and validates the artifact triple. The descriptor is
// checked first: the builder writes it last, so its presence implies a
// complete generation.
func (r *Retriever) load(ctx context.Context) (*retrieverState, error) {
	descData, err := r.readArtifact(ctx, ManifestFileName)
	if err != nil {
		return nil, err
	}
	desc, err := manifest.Decode(descData)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, ManifestFileName, err)
	}

	indexData, err := r.readArtifact(ctx, IndexFileName)
	if err != nil {
		return nil, err
	}
	var idx *flat.Flat
	err = persistence.Load(indexData, func(rd io.Reader) error {
		loaded, err := flat.ReadFrom(rd)
		if err != nil {
			return err
		}
		idx = loaded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, IndexFileName, err)
	}

	metadataData, err := r.readArtifact(ctx, MetadataFileName)
	if err != nil {
		return nil, err
	}
	var meta *metadata.Store
	err = persistence.Load(metadataData, func(rd io.Reader) error {
		loaded, err := metadata.ReadFrom(rd)
		if err != nil {
			return err
		}
		meta = loaded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, MetadataFileName, err)
	}

	// Join invariant: one metadata record per index row, and the
	// descriptor's dimension is the index's dimension.
	if meta.Len() != idx.Len() {
		return nil, fmt.Errorf("%w: metadata has %d records, index has %d rows", ErrCorruptIndex, meta.Len(), idx.Len())
	}
	if desc.VectorCount != idx.Len() {
		return nil, fmt.Errorf("%w: descriptor says %d vectors, index has %d", ErrCorruptIndex, desc.VectorCount, idx.Len())
	}
	if desc.Dimension != idx.Dimension() {
		return nil, fmt.Errorf("%w: descriptor says dimension %d, index has %d", ErrCorruptIndex, desc.Dimension, idx.Dimension())
	}

	embedder := r.opts.Embedder
	if embedder == nil {
		embedder, err = embedding.Resolve(desc.ModelName)
		if err != nil {
			return nil, err
		}
	}
	if d := embedder.Dimensions(); d != desc.Dimension {
		return nil, fmt.Errorf("embedder %q has dimension %d, index was built with %d", embedder.Name(), d, desc.Dimension)
	}

	return &retrieverState{
		index:      idx,
		metadata:   meta,
		descriptor: desc,
		embedder:   embedder,
	}, nil
}

// readArtifact reads a whole artifact blob, translating a missing blob
// into ErrArtifactsNotFound naming the path.
func (r *Retriever) readArtifact(ctx context.Context, name string) ([]byte, error) {
	data, err := blobstore.ReadAll(ctx, r.store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactsNotFound, name)
		}
		return nil, err
	}
	return data, nil
}
