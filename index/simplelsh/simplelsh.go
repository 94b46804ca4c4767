// Package simplelsh implements the Simple-LSH reduction from MIP search to
// maximum cosine similarity: every point is divided by the dataset maximum
// norm and lifted with one extra coordinate so all transformed points have
// unit norm, after which sign-random-projection hashing ranks candidates by
// signature agreement.
package simplelsh

import (
	"fmt"
	"math"

	"github.com/hupe1980/mipgo/index"
	"github.com/hupe1980/mipgo/index/srplsh"
	"github.com/hupe1980/mipgo/topk"
)

// Options contains configuration options for the reduction.
type Options struct {
	// K is the number of signature bits passed to the hasher.
	K int

	// Candidates is the hasher's oversampling margin.
	Candidates int

	// Seed seeds the hasher's Gaussian hyperplane draw.
	Seed int64
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	K:          srplsh.DefaultOptions.K,
	Candidates: srplsh.DefaultOptions.Candidates,
	Seed:       srplsh.DefaultOptions.Seed,
}

// SimpleLSH answers approximate top-k MIP queries by delegating candidate
// generation to an srplsh hasher built over the unit-norm lifted dataset.
type SimpleLSH struct {
	ds      *index.Dataset
	hasher  *srplsh.Hasher
	maxNorm float32
	opts    Options
}

// Compile-time check to ensure SimpleLSH satisfies the MIP interface.
var _ index.MIPIndex = (*SimpleLSH)(nil)

// New bulkloads the reduction over the dataset. The dataset maximum norm
// must be positive since every point is divided by it.
func New(ds *index.Dataset, optFns ...func(o *Options)) (*SimpleLSH, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	maxNorm := ds.MaxNorm()
	if maxNorm == 0 {
		return nil, fmt.Errorf("simplelsh: dataset maximum norm: %w", index.ErrZeroNorm)
	}

	dim := ds.Dim()
	n := ds.Len()

	// Unit-norm lift into one contiguous owned buffer with stride dim+1:
	// coordinates scaled by 1/maxNorm, extra coordinate sqrt(1 - s²) where
	// s is the scaled norm. Every transformed point has Euclidean norm 1.
	buf := make([]float32, n*(dim+1))
	rows := make([][]float32, n)
	for i := 0; i < n; i++ {
		row := buf[i*(dim+1) : (i+1)*(dim+1)]
		v := ds.Vector(uint32(i))
		for j, x := range v {
			row[j] = x / maxNorm
		}
		s := float64(ds.Norm(uint32(i)) / maxNorm)
		row[dim] = float32(math.Sqrt(math.Max(0, 1-s*s)))
		rows[i] = row
	}

	hasher, err := srplsh.New(rows, func(o *srplsh.Options) {
		o.K = opts.K
		o.Candidates = opts.Candidates
		o.Seed = opts.Seed
	})
	if err != nil {
		return nil, err
	}

	return &SimpleLSH{
		ds:      ds,
		hasher:  hasher,
		maxNorm: maxNorm,
		opts:    opts,
	}, nil
}

// NewFromHasher attaches a previously built hasher, e.g. one restored from
// a snapshot, skipping the lift and the hyperplane draw. The hasher must
// have been built over the lifted form of the same dataset.
func NewFromHasher(ds *index.Dataset, hasher *srplsh.Hasher, optFns ...func(o *Options)) (*SimpleLSH, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	maxNorm := ds.MaxNorm()
	if maxNorm == 0 {
		return nil, fmt.Errorf("simplelsh: dataset maximum norm: %w", index.ErrZeroNorm)
	}

	if hasher.Dimension() != ds.Dim()+1 {
		return nil, &index.ErrDimensionMismatch{Expected: ds.Dim() + 1, Actual: hasher.Dimension()}
	}

	if hasher.Len() != ds.Len() {
		return nil, fmt.Errorf("simplelsh: hasher covers %d points, dataset has %d", hasher.Len(), ds.Len())
	}

	opts.K = hasher.K()

	return &SimpleLSH{
		ds:      ds,
		hasher:  hasher,
		maxNorm: maxNorm,
		opts:    opts,
	}, nil
}

// KMIP implements index.MIPIndex. The query is normalized to unit norm with
// a zero extra coordinate, candidates come from the Hamming scan, and every
// surviving candidate is refined to its exact inner product.
func (s *SimpleLSH) KMIP(k int, query []float32, normQuery float32, filter index.FilterFunc, list *topk.MaxKList) error {
	if k < 1 {
		return index.ErrInvalidK
	}

	dim := s.ds.Dim()
	if len(query) != dim {
		return &index.ErrDimensionMismatch{Expected: dim, Actual: len(query)}
	}

	lifted := make([]float32, dim+1)
	for j, x := range query {
		lifted[j] = x / normQuery
	}

	cand, err := s.hasher.KMC(k, lifted)
	if err != nil {
		return err
	}

	kip := list.Threshold()
	for _, id := range cand {
		// Hamming rank carries no norm ordering, so prune per candidate
		// instead of breaking: norm*|q| bounds the inner product.
		if s.ds.Norm(id)*normQuery <= kip {
			continue
		}
		kip = index.Refine(s.ds, query, id, filter, list)
	}
	return nil
}

// Hasher exposes the underlying srplsh hasher (snapshots, diagnostics).
func (s *SimpleLSH) Hasher() *srplsh.Hasher { return s.hasher }

// Stats prints the reduction parameters for operator inspection.
func (s *SimpleLSH) Stats() {
	fmt.Println("Parameters of Simple-LSH:")
	fmt.Printf("    n = %d\n", s.ds.Len())
	fmt.Printf("    d = %d\n", s.ds.Dim())
	fmt.Printf("    M = %f\n\n", s.maxNorm)
	s.hasher.Stats()
}
