package metadata

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/paydesk/finsearch/record"
)

// Index is an inverted index over the metadata sequence: roaring posting
// lists keyed by owning user and by record kind. It is rebuilt from the
// sequence on load, never persisted.
type Index struct {
	byUser map[int64]*roaring.Bitmap
	byKind map[record.Kind]*roaring.Bitmap
}

// NewIndex creates an empty inverted index.
func NewIndex() *Index {
	return &Index{
		byUser: make(map[int64]*roaring.Bitmap),
		byKind: make(map[record.Kind]*roaring.Bitmap),
	}
}

func (ix *Index) add(ordinal uint32, r record.Record) {
	user := r.RecordUserID()
	ub, ok := ix.byUser[user]
	if !ok {
		ub = roaring.New()
		ix.byUser[user] = ub
	}
	ub.Add(ordinal)

	kb, ok := ix.byKind[r.Kind()]
	if !ok {
		kb = roaring.New()
		ix.byKind[r.Kind()] = kb
	}
	kb.Add(ordinal)
}

// Filter restricts a search to rows matching every set constraint.
// Zero-value means unconstrained.
type Filter struct {
	// UserID restricts to rows owned by this user.
	UserID *int64

	// Kind restricts to rows of this record kind.
	Kind *record.Kind
}

// Compile resolves the filter to a bitmap of matching ordinals.
// An unconstrained filter compiles to nil, meaning "all rows".
func (ix *Index) Compile(f Filter) *roaring.Bitmap {
	var result *roaring.Bitmap

	intersect := func(b *roaring.Bitmap) {
		if b == nil {
			b = roaring.New()
		}
		if result == nil {
			result = b.Clone()
			return
		}
		result.And(b)
	}

	if f.UserID != nil {
		intersect(ix.byUser[*f.UserID])
	}
	if f.Kind != nil {
		intersect(ix.byKind[*f.Kind])
	}
	return result
}

// FilterFunc compiles the filter to an ordinal predicate for the vector
// index, or nil when the filter is unconstrained.
func (ix *Index) FilterFunc(f Filter) func(ordinal uint32) bool {
	if f.UserID == nil && f.Kind == nil {
		return nil
	}
	bitmap := ix.Compile(f)
	return func(ordinal uint32) bool {
		return bitmap.Contains(ordinal)
	}
}
