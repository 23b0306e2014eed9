package finsearch

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/paydesk/finsearch/blobstore"
	"github.com/paydesk/finsearch/embedding"
	"github.com/paydesk/finsearch/index/flat"
	"github.com/paydesk/finsearch/manifest"
	"github.com/paydesk/finsearch/metadata"
	"github.com/paydesk/finsearch/persistence"
	"github.com/paydesk/finsearch/record"
)

// Builder is the offline index-building pipeline: it formats records
// into canonical text, batch-embeds them, and publishes a fresh
// artifact generation. Single-writer; not designed for concurrent
// builds against the same store prefix.
type Builder struct {
	embedder embedding.Embedder
	store    blobstore.Store
	opts     Options
	logger   *Logger
}

// NewBuilder creates a Builder publishing to the given store.
func NewBuilder(embedder embedding.Embedder, store blobstore.Store, optFns ...func(o *Options)) *Builder {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = DefaultOptions.EmbedBatchSize
	}
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = DefaultOptions.EmbedConcurrency
	}

	return &Builder{
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Build formats, embeds, and publishes the given records as one
// artifact generation. Texts, vectors, and metadata all keep the input
// order; the row ordinal is the join key across the three. The model
// descriptor is written last, so a torn build never looks complete.
//
// An empty input returns ErrNoRecords and writes nothing.
func (b *Builder) Build(ctx context.Context, records []record.Record) (*manifest.Descriptor, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text()
	}

	vectors, err := b.embedAll(ctx, texts)
	if err != nil {
		b.logger.LogBuild(ctx, len(records), 0, err)
		return nil, err
	}

	idx, err := flat.New(b.embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	if _, err := idx.BatchInsert(ctx, vectors); err != nil {
		b.logger.LogBuild(ctx, len(records), 0, err)
		return nil, err
	}

	store := metadata.NewStore(func(o *metadata.Options) {
		o.Compression = b.opts.Compression
	})
	for _, r := range records {
		store.Append(r)
	}

	desc := &manifest.Descriptor{
		Version:     manifest.CurrentVersion,
		ModelName:   b.embedder.Name(),
		Dimension:   idx.Dimension(),
		VectorCount: idx.Len(),
	}

	if err := b.publish(ctx, idx, store, desc); err != nil {
		b.logger.LogBuild(ctx, len(records), 0, err)
		return nil, err
	}

	b.logger.LogBuild(ctx, len(records), desc.Dimension, nil)
	return desc, nil
}

// embedAll batch-embeds the texts in provider-sized chunks, bounded
// concurrently, writing each chunk's vectors back by position.
func (b *Builder) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.EmbedConcurrency)

	for start := 0; start < len(texts); start += b.opts.EmbedBatchSize {
		end := start + b.opts.EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end

		g.Go(func() error {
			chunk, err := b.embedder.Embed(gctx, texts[start:end])
			if err != nil {
				return &EmbeddingError{Provider: b.embedder.Name(), Err: err}
			}
			if len(chunk) != end-start {
				return &EmbeddingError{
					Provider: b.embedder.Name(),
					Err:      fmt.Errorf("got %d vectors for %d texts", len(chunk), end-start),
				}
			}
			copy(vectors[start:end], chunk)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// publish writes the artifact triple: index, metadata, then the
// descriptor last as the commit marker.
func (b *Builder) publish(ctx context.Context, idx *flat.Flat, store *metadata.Store, desc *manifest.Descriptor) error {
	indexData, err := persistence.Encode(func(w io.Writer) error {
		_, err := idx.WriteTo(w)
		return err
	})
	if err != nil {
		return err
	}
	if err := b.store.Put(ctx, IndexFileName, indexData); err != nil {
		return err
	}

	metadataData, err := persistence.Encode(func(w io.Writer) error {
		_, err := store.WriteTo(w)
		return err
	})
	if err != nil {
		return err
	}
	if err := b.store.Put(ctx, MetadataFileName, metadataData); err != nil {
		return err
	}

	descData, err := desc.Encode()
	if err != nil {
		return err
	}
	return b.store.Put(ctx, ManifestFileName, descData)
}
