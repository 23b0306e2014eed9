// Package embedding provides the text embedding providers that turn
// canonical record texts into vectors, and a registry that resolves a
// persisted model name back to the provider that produced it.
package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Embedder converts text to vectors.
type Embedder interface {
	// Embed converts texts to vectors. The i-th vector embeds the i-th
	// text; implementations must preserve order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimensionality.
	Dimensions() int

	// Name identifies the provider and its configuration. The same name
	// must always denote the same embedding function, because search
	// queries are embedded with the provider named in the index
	// descriptor.
	Name() string
}

// ErrUnknownModel indicates the registry cannot resolve a model name.
type ErrUnknownModel struct {
	Name string
}

func (e *ErrUnknownModel) Error() string {
	return fmt.Sprintf("unknown embedding model: %q", e.Name)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() (Embedder, error))
)

// Register associates a model name with a factory. Providers that need
// runtime configuration (API keys, endpoints) register themselves so a
// loaded descriptor can resolve back to a live provider.
func Register(name string, factory func() (Embedder, error)) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Resolve returns the embedder for a model name. Registered factories
// take precedence; hash model names resolve without registration since
// the hash provider is fully determined by its name.
func Resolve(name string) (Embedder, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if ok {
		return factory()
	}
	if dims, ok := parseHashName(name); ok {
		return NewHash(dims), nil
	}
	return nil, &ErrUnknownModel{Name: name}
}
