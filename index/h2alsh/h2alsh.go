// Package h2alsh implements the H2-ALSH reduction from MIP search to
// Euclidean nearest-neighbor search: points are partitioned into blocks of
// near-homogeneous norm, every block is lifted into an equal-norm subspace
// with one extra coordinate, and queries walk the blocks in descending norm
// order under a Cauchy-Schwarz branch-and-bound.
package h2alsh

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hupe1980/mipgo/index"
	"github.com/hupe1980/mipgo/topk"
)

// ErrInvalidRatio is returned when the approximation ratios violate
// c0^4 > c, which would make the norm-blocking threshold undefined.
var ErrInvalidRatio = errors.New("approximation ratios must satisfy nnRatio^4 > mipRatio")

// Options contains configuration options for the reduction.
type Options struct {
	// NNRatio is the approximation ratio c0 handed to each NN delegate.
	NNRatio float32

	// MIPRatio is the MIP approximation ratio c. Must satisfy NNRatio^4 > MIPRatio.
	MIPRatio float32

	// MaxBlockSize caps the member count of a single block; a run of
	// similar norms longer than this is split into consecutive blocks.
	MaxBlockSize int

	// ScanThreshold is the member count above which a block gets an NN
	// delegate instead of a linear scan.
	ScanThreshold int
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	NNRatio:       2.0,
	MIPRatio:      0.9,
	MaxBlockSize:  4096,
	ScanThreshold: 100,
}

// block is one norm-homogeneous run of points. members holds global ids in
// descending norm order; nn is nil for linear-scan blocks.
type block struct {
	members []uint32
	maxNorm float32
	lifted  [][]float32
	nn      index.NNIndex
}

// H2ALSH answers approximate top-k MIP queries through norm blocking with
// per-block equal-norm lifting.
type H2ALSH struct {
	ds      *index.Dataset
	blocks  []*block
	b       float32
	maxNorm float32
	opts    Options
}

// Compile-time check to ensure H2ALSH satisfies the MIP interface.
var _ index.MIPIndex = (*H2ALSH)(nil)

// New bulkloads the reduction over the dataset. nnBuilder constructs the NN
// delegate for every block whose member count exceeds ScanThreshold.
func New(ds *index.Dataset, nnBuilder index.NNIndexBuilder, optFns ...func(o *Options)) (*H2ALSH, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxBlockSize < 1 {
		opts.MaxBlockSize = DefaultOptions.MaxBlockSize
	}
	if opts.ScanThreshold < 1 {
		opts.ScanThreshold = DefaultOptions.ScanThreshold
	}

	c04 := float64(opts.NNRatio) * float64(opts.NNRatio)
	c04 *= c04
	if c04 <= float64(opts.MIPRatio) {
		return nil, fmt.Errorf("h2alsh: c0=%g c=%g: %w", opts.NNRatio, opts.MIPRatio, ErrInvalidRatio)
	}

	maxNorm := ds.MaxNorm()
	if maxNorm == 0 {
		return nil, fmt.Errorf("h2alsh: dataset maximum norm: %w", index.ErrZeroNorm)
	}

	h := &H2ALSH{
		ds:      ds,
		b:       float32(math.Sqrt((c04 - 1) / (c04 - float64(opts.MIPRatio)))),
		maxNorm: maxNorm,
		opts:    opts,
	}

	if err := h.bulkload(nnBuilder); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *H2ALSH) bulkload(nnBuilder index.NNIndexBuilder) error {
	n := h.ds.Len()
	dim := h.ds.Dim()

	order := make([]uint32, n)
	for i := range order {
		order[i] = uint32(i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return h.ds.Norm(order[i]) > h.ds.Norm(order[j])
	})

	// Lifted copies live in one contiguous owned buffer with stride dim+1,
	// laid out in sorted order so each block's rows are adjacent.
	buf := make([]float32, n*(dim+1))

	i := 0
	for i < n {
		blockMax := h.ds.Norm(order[i])
		floor := blockMax * h.b
		maxSqr := float64(blockMax) * float64(blockMax)

		start := i
		for i < n && i-start < h.opts.MaxBlockSize {
			norm := h.ds.Norm(order[i])
			if norm < floor {
				break
			}

			row := buf[i*(dim+1) : (i+1)*(dim+1)]
			copy(row, h.ds.Vector(order[i]))
			row[dim] = float32(math.Sqrt(math.Max(0, maxSqr-float64(norm)*float64(norm))))
			i++
		}

		blk := &block{
			members: order[start:i:i],
			maxNorm: blockMax,
		}
		blk.lifted = make([][]float32, i-start)
		for j := range blk.lifted {
			blk.lifted[j] = buf[(start+j)*(dim+1) : (start+j+1)*(dim+1)]
		}

		if len(blk.members) > h.opts.ScanThreshold {
			nn, err := nnBuilder(blk.lifted, h.opts.NNRatio)
			if err != nil {
				return err
			}
			blk.nn = nn
		}

		h.blocks = append(h.blocks, blk)
	}

	return nil
}

// KMIP implements index.MIPIndex. Blocks are visited in descending-norm
// order; the walk stops as soon as block.maxNorm*normQuery cannot beat the
// running bound. Linear-scan blocks break out early on the same condition
// per member; delegate blocks issue one radius-bounded NN query against the
// lifted space and refine the returned candidates.
func (h *H2ALSH) KMIP(k int, query []float32, normQuery float32, filter index.FilterFunc, list *topk.MaxKList) error {
	if k < 1 {
		return index.ErrInvalidK
	}

	dim := h.ds.Dim()
	if len(query) != dim {
		return &index.ErrDimensionMismatch{Expected: dim, Actual: len(query)}
	}

	lifted := make([]float32, dim+1)
	kip := list.Threshold()

	for _, blk := range h.blocks {
		if blk.maxNorm*normQuery <= kip {
			break
		}

		if blk.nn == nil {
			// Members are in descending norm order, so the first member
			// that cannot beat the bound ends the whole block.
			for _, id := range blk.members {
				if h.ds.Norm(id)*normQuery <= kip {
					break
				}
				kip = index.Refine(h.ds, query, id, filter, list)
			}
			continue
		}

		// Equal-norm lift of the query: scale by lambda = M/normQuery and
		// zero the extra coordinate. The radius follows from the Euclidean
		// identity for two vectors of norm M; computed in float64 so the
		// unbounded sentinel cannot overflow.
		lambda := blk.maxNorm / normQuery
		radius := float32(math.Sqrt(2 * (float64(blk.maxNorm)*float64(blk.maxNorm) - float64(lambda)*float64(kip))))
		for j, x := range query {
			lifted[j] = lambda * x
		}
		lifted[dim] = 0

		cand, err := blk.nn.KNN(k, radius, lifted)
		if err != nil {
			return err
		}

		for _, local := range cand {
			id := blk.members[local]
			if h.ds.Norm(id)*normQuery <= kip {
				continue
			}
			kip = index.Refine(h.ds, query, id, filter, list)
		}
	}

	return nil
}

// Blocks returns the number of blocks in the partition.
func (h *H2ALSH) Blocks() int { return len(h.blocks) }

// Stats prints the reduction parameters for operator inspection.
func (h *H2ALSH) Stats() {
	fmt.Println("Parameters of H2-ALSH:")
	fmt.Printf("    n          = %d\n", h.ds.Len())
	fmt.Printf("    d          = %d\n", h.ds.Dim())
	fmt.Printf("    c0         = %.1f\n", h.opts.NNRatio)
	fmt.Printf("    c          = %.1f\n", h.opts.MIPRatio)
	fmt.Printf("    b          = %f\n", h.b)
	fmt.Printf("    M          = %f\n", h.maxNorm)
	fmt.Printf("    num_blocks = %d\n\n", len(h.blocks))
}
