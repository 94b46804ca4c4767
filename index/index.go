// Package index defines the contracts shared by the MIP reductions: the
// read-only dataset view, the top-k MIP search interface, the delegated
// nearest-neighbor capability and the exact candidate refiner.
package index

import (
	"math"

	"github.com/hupe1980/mipgo/topk"
)

// UnrestrictedRadius is passed to an NNIndex when no search radius applies.
var UnrestrictedRadius = float32(math.Inf(1))

// FilterFunc restricts a search to ids for which it returns true.
// A nil FilterFunc accepts every id. Ids are 0-based dataset ids.
type FilterFunc func(id uint32) bool

// Result is a single MIP search result.
type Result struct {
	// ID is the 1-based id of the data object. Ids are shifted by one in
	// public results so that 0 always means "unset".
	ID uint32

	// Score is the exact inner product between query and data object.
	Score float32
}

// MIPIndex answers approximate top-k maximum inner product queries over the
// dataset it was built from.
type MIPIndex interface {
	// KMIP runs a top-k MIP search for query (with precomputed Euclidean
	// norm normQuery), folding exact inner products of every surviving
	// candidate into list. Entries inserted into list carry 1-based ids.
	KMIP(k int, query []float32, normQuery float32, filter FilterFunc, list *topk.MaxKList) error

	// Stats dumps the index parameters for operator inspection.
	Stats()
}

// NNIndex is the approximate nearest-neighbor capability the reductions
// delegate candidate generation to. Implementations must be safe for
// concurrent KNN calls after construction.
type NNIndex interface {
	// KNN returns ids of points within the (approximate) Euclidean radius
	// around query, at most k-ranked by the engine's internal protocol.
	// Ids are local to the vector slice the engine was built from.
	// An infinite radius means unrestricted.
	KNN(k int, radius float32, query []float32) ([]uint32, error)
}

// NNIndexBuilder constructs an NNIndex over the given vectors with the given
// NN approximation ratio. The reductions call it once per delegated vector
// set during bulkload.
type NNIndexBuilder func(vectors [][]float32, ratio float32) (NNIndex, error)

// ResultsFromList converts an accumulator's content into the public result
// slice, preserving descending score order.
func ResultsFromList(list *topk.MaxKList) []Result {
	entries := list.Entries()
	results := make([]Result, len(entries))
	for i, e := range entries {
		results[i] = Result{ID: e.ID, Score: e.Score}
	}
	return results
}
