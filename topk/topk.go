// Package topk provides a bounded top-k accumulator for score/id pairs.
//
// The accumulator keeps at most k entries ordered by descending score and
// exposes its lowest accepted score in O(1). That score is the live pruning
// bound used by the MIP reductions: once a candidate's best possible inner
// product falls below it, the candidate (or a whole block of candidates) can
// be discarded without exact evaluation.
package topk

import "math"

// Unbounded is the threshold reported while the list is not yet full.
// Any score beats it.
const Unbounded = float32(-math.MaxFloat32)

// Entry is a single accepted (score, id) pair.
type Entry struct {
	Score float32 // Score is the exact inner product of the entry.
	ID    uint32  // ID identifies the data object the score belongs to.
}

// MaxKList is a bounded accumulator holding the k highest-scoring entries
// seen so far, in descending score order.
//
// Optimized: value-based sorted slice. k is small in practice, so shifting
// on insert beats heap bookkeeping and keeps iteration allocation-free.
type MaxKList struct {
	k       int
	entries []Entry
}

// NewMaxKList creates an accumulator with capacity k.
// k must be positive; a non-positive k is clamped to 1.
func NewMaxKList(k int) *MaxKList {
	if k < 1 {
		k = 1
	}
	return &MaxKList{
		k:       k,
		entries: make([]Entry, 0, k),
	}
}

// Insert offers a (score, id) pair to the list and returns the updated
// pruning threshold: the lowest accepted score once the list is full,
// Unbounded before that. The returned threshold is non-decreasing across
// successive inserts.
func (l *MaxKList) Insert(score float32, id uint32) float32 {
	if len(l.entries) == l.k && score <= l.entries[l.k-1].Score {
		return l.entries[l.k-1].Score
	}

	// Find the insertion point (first entry with a lower score).
	pos := len(l.entries)
	for i, e := range l.entries {
		if score > e.Score {
			pos = i
			break
		}
	}

	if len(l.entries) < l.k {
		l.entries = append(l.entries, Entry{})
	}
	copy(l.entries[pos+1:], l.entries[pos:])
	l.entries[pos] = Entry{Score: score, ID: id}

	return l.Threshold()
}

// Threshold returns the current pruning bound without inserting.
func (l *MaxKList) Threshold() float32 {
	if len(l.entries) < l.k {
		return Unbounded
	}
	return l.entries[l.k-1].Score
}

// Size returns the number of accepted entries.
func (l *MaxKList) Size() int { return len(l.entries) }

// Capacity returns k.
func (l *MaxKList) Capacity() int { return l.k }

// IDAt returns the id of the i-th best entry (0-based).
func (l *MaxKList) IDAt(i int) uint32 { return l.entries[i].ID }

// ScoreAt returns the score of the i-th best entry (0-based).
func (l *MaxKList) ScoreAt(i int) float32 { return l.entries[i].Score }

// Entries returns the accepted entries in descending score order.
// The returned slice aliases internal storage and is valid until the next
// Insert or Reset.
func (l *MaxKList) Entries() []Entry { return l.entries }

// Reset clears the list for reuse, keeping its capacity.
func (l *MaxKList) Reset() { l.entries = l.entries[:0] }

// IDs returns the accepted ids in descending score order as a fresh slice.
func IDs(l *MaxKList) []uint32 {
	ids := make([]uint32, len(l.entries))
	for i, e := range l.entries {
		ids[i] = e.ID
	}
	return ids
}
