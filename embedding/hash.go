package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Compile-time interface check.
var _ Embedder = (*Hash)(nil)

const defaultHashDimensions = 256

// Hash is a deterministic feature-hashing embedder: each token is
// FNV-1a hashed into a fixed number of buckets with a hash-derived
// sign, term frequencies accumulate, and the result is L2-normalized.
// It needs no training and no external service, and the same text
// always embeds to the same vector, so it works for both index builds
// and query-time embedding.
type Hash struct {
	dimensions int
}

// NewHash creates a feature-hashing embedder with the given number of
// buckets. dims <= 0 selects the default of 256.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &Hash{dimensions: dims}
}

func (h *Hash) Name() string {
	return fmt.Sprintf("hash-v1-%d", h.dimensions)
}

func (h *Hash) Dimensions() int { return h.dimensions }

// Embed converts texts to hashed bag-of-words vectors.
func (h *Hash) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = h.embedOne(text)
	}
	return vectors, nil
}

func (h *Hash) embedOne(text string) []float32 {
	vec := make([]float32, h.dimensions)

	for _, token := range tokenize(text) {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(token))
		sum := hasher.Sum64()

		bucket := int(sum % uint64(h.dimensions))
		// The bit above the bucket selector carries the sign, which
		// keeps unrelated tokens from only ever adding up.
		if (sum>>32)&1 == 1 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for j := range vec {
			vec[j] *= inv
		}
	}
	return vec
}

// parseHashName recovers the bucket count from a hash model name.
func parseHashName(name string) (int, bool) {
	const prefix = "hash-v1-"
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	var dims int
	if _, err := fmt.Sscanf(name[len(prefix):], "%d", &dims); err != nil || dims <= 0 {
		return 0, false
	}
	if fmt.Sprintf("%s%d", prefix, dims) != name {
		return 0, false
	}
	return dims, true
}

// tokenize splits text into lowercase alphanumeric words.
func tokenize(text string) []string {
	var words []string
	var word strings.Builder

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
		} else if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}
	if word.Len() > 0 {
		words = append(words, word.String())
	}

	return words
}
