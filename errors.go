package finsearch

import (
	"errors"
	"fmt"

	"github.com/paydesk/finsearch/metadata"
)

var (
	// ErrArtifactsNotFound is returned when the artifact generation is
	// missing. Recoverable: run the index builder.
	ErrArtifactsNotFound = errors.New("index artifacts not found")

	// ErrCorruptIndex is returned when the artifact generation is
	// present but inconsistent or undecodable. Requires a rebuild.
	ErrCorruptIndex = errors.New("corrupt index artifacts")

	// ErrNoRecords is returned by the builder when the source yields
	// nothing to index. No artifacts are written; distinct from any
	// write failure.
	ErrNoRecords = errors.New("no records to index")
)

// ErrOrdinalOutOfRange indicates a positional metadata lookup outside
// the stored sequence. Defensive; indicates a builder bug.
type ErrOrdinalOutOfRange = metadata.ErrOrdinalOutOfRange

// EmbeddingError wraps a failure of the embedding provider. Provider
// failures surface as-is; no retry policy beyond the provider's own.
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding provider %q: %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IsNotAvailable reports whether the error means search cannot serve
// until the index builder runs. Transports map this to a "not
// available, rebuild the index" response and everything else to a
// generic failure.
func IsNotAvailable(err error) bool {
	return errors.Is(err, ErrArtifactsNotFound) || errors.Is(err, ErrCorruptIndex)
}
