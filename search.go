package finsearch

import (
	"context"
	"errors"

	"github.com/paydesk/finsearch/metadata"
	"github.com/paydesk/finsearch/record"
)

var errMissingQueryVector = errors.New("provider returned no vector for the query")

// DefaultK is the result count used when the caller does not set one.
const DefaultK = 5

// SearchResult is one ranked hit: the matched record, its canonical
// display text, the squared L2 distance to the query, and the 1-based
// rank in the returned ordering.
type SearchResult struct {
	Record   record.Record
	Text     string
	Distance float32
	Rank     int
}

// SearchBuilder accumulates search parameters fluently.
type SearchBuilder struct {
	retriever *Retriever
	query     string
	k         int
	filter    metadata.Filter
}

// Search starts a search for the given natural-language query.
func (r *Retriever) Search(query string) *SearchBuilder {
	return &SearchBuilder{
		retriever: r,
		query:     query,
		k:         DefaultK,
	}
}

// K sets the number of results to return. Values above the index size
// clamp; values below one fail at Execute.
func (s *SearchBuilder) K(k int) *SearchBuilder {
	s.k = k
	return s
}

// ForUser restricts results to records owned by the given user.
func (s *SearchBuilder) ForUser(userID int64) *SearchBuilder {
	s.filter.UserID = &userID
	return s
}

// OfKind restricts results to one record kind.
func (s *SearchBuilder) OfKind(kind record.Kind) *SearchBuilder {
	s.filter.Kind = &kind
	return s
}

// Execute runs the search: loads the artifacts if needed, embeds the
// query, and joins the nearest rows back to their records. An empty
// result set is a valid outcome, not an error.
func (s *SearchBuilder) Execute(ctx context.Context) ([]SearchResult, error) {
	r := s.retriever

	st, err := r.loaded(ctx)
	if err != nil {
		r.logger.LogSearch(ctx, s.k, 0, err)
		return nil, err
	}

	vectors, err := st.embedder.Embed(ctx, []string{s.query})
	if err != nil {
		embErr := &EmbeddingError{Provider: st.embedder.Name(), Err: err}
		r.logger.LogSearch(ctx, s.k, 0, embErr)
		return nil, embErr
	}
	if len(vectors) != 1 {
		embErr := &EmbeddingError{
			Provider: st.embedder.Name(),
			Err:      errMissingQueryVector,
		}
		r.logger.LogSearch(ctx, s.k, 0, embErr)
		return nil, embErr
	}

	hits, err := st.index.KNNSearch(ctx, vectors[0], s.k, st.metadata.Index().FilterFunc(s.filter))
	if err != nil {
		r.logger.LogSearch(ctx, s.k, 0, err)
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		rec, err := st.metadata.Get(hit.Ordinal)
		if err != nil {
			// A corrupted index can return ordinals the metadata does
			// not have; skip them rather than failing the whole search.
			r.logger.WarnContext(ctx, "skipping out-of-range ordinal",
				"ordinal", hit.Ordinal,
				"metadata_count", st.metadata.Len(),
			)
			continue
		}
		results = append(results, SearchResult{
			Record:   rec,
			Text:     record.ReconstructText(rec),
			Distance: hit.Distance,
			Rank:     len(results) + 1,
		})
	}

	r.logger.LogSearch(ctx, s.k, len(results), nil)
	return results, nil
}
