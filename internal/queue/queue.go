// Package queue provides a bounded top-k accumulator for nearest-neighbor
// candidates with deterministic ordering.
package queue

// Item is a search candidate: a row ordinal and its distance to the query.
type Item struct {
	Ordinal  uint32
	Distance float32
}

// worse reports whether a ranks after b: greater distance, or equal
// distance with a greater ordinal. Total order, so results are stable.
func worse(a, b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.Ordinal > b.Ordinal
}

// TopK keeps the k best (smallest distance, then smallest ordinal)
// candidates seen so far. The backing store is a max-heap keyed on the
// worst retained candidate, so each offer is O(log k).
type TopK struct {
	k     int
	items []Item
}

// NewTopK creates an accumulator retaining at most k items. k must be > 0.
func NewTopK(k int) *TopK {
	return &TopK{k: k, items: make([]Item, 0, k)}
}

// Len returns the number of retained candidates.
func (q *TopK) Len() int { return len(q.items) }

// Offer considers a candidate, retaining it if it beats the current worst.
func (q *TopK) Offer(it Item) {
	if len(q.items) < q.k {
		q.items = append(q.items, it)
		q.siftUp(len(q.items) - 1)
		return
	}
	if !worse(it, q.items[0]) {
		q.items[0] = it
		q.siftDown(0)
	}
}

// Drain removes all candidates and returns them ordered best-first.
func (q *TopK) Drain() []Item {
	out := make([]Item, len(q.items))
	for i := len(q.items) - 1; i >= 0; i-- {
		out[i] = q.pop()
	}
	return out
}

func (q *TopK) pop() Item {
	n := len(q.items)
	root := q.items[0]
	q.items[0] = q.items[n-1]
	q.items = q.items[:n-1]
	if len(q.items) > 0 {
		q.siftDown(0)
	}
	return root
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !worse(q.items[i], q.items[p]) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		worst := l
		if r := l + 1; r < n && worse(q.items[r], q.items[l]) {
			worst = r
		}
		if !worse(q.items[worst], q.items[i]) {
			return
		}
		q.items[i], q.items[worst] = q.items[worst], q.items[i]
		i = worst
	}
}
