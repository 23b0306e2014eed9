package finsearch

import (
	"github.com/paydesk/finsearch/embedding"
	"github.com/paydesk/finsearch/persistence"
)

// Artifact names within one generation prefix.
const (
	IndexFileName    = "index.bin"
	MetadataFileName = "metadata.bin"
	ManifestFileName = "model.json"
)

// Options configures the Builder and the Retriever.
type Options struct {
	// Logger for structured log output.
	Logger *Logger

	// Compression applied to the metadata artifact payload.
	Compression persistence.Compression

	// EmbedBatchSize is the number of texts per provider batch call.
	EmbedBatchSize int

	// EmbedConcurrency bounds concurrent provider batch calls during a
	// build.
	EmbedConcurrency int

	// Embedder overrides descriptor-based provider resolution in the
	// Retriever. It must match the model the index was built with.
	Embedder embedding.Embedder
}

// DefaultOptions contains the default options.
var DefaultOptions = Options{
	Compression:      persistence.CompressionZstd,
	EmbedBatchSize:   64,
	EmbedConcurrency: 4,
}
