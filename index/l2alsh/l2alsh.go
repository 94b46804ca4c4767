// Package l2alsh implements the L2-ALSH reduction from MIP search to
// Euclidean nearest-neighbor search: the whole dataset is rescaled into the
// unit ball and every point is augmented with a telescoping sequence of
// norm powers, so that a single NN index over the augmented space answers
// all MIP queries asymmetrically.
package l2alsh

import (
	"errors"
	"fmt"

	"github.com/hupe1980/mipgo/index"
	"github.com/hupe1980/mipgo/topk"
)

var (
	// ErrInvalidU is returned when the scale factor is outside (0,1).
	ErrInvalidU = errors.New("scale factor U must be in (0,1)")

	// ErrInvalidM is returned when the number of augmentation coordinates
	// is not positive.
	ErrInvalidM = errors.New("augmentation dimension m must be positive")
)

// Options contains configuration options for the reduction.
type Options struct {
	// M is the number of augmentation coordinates appended per point.
	M int

	// U is the scale factor: all points are rescaled so the maximum norm
	// becomes U. Must be in (0,1) so the norm powers telescope to zero.
	U float32

	// NNRatio is the approximation ratio handed to the NN engine.
	NNRatio float32
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	M:       3,
	U:       0.83,
	NNRatio: 2.0,
}

// L2ALSH answers approximate top-k MIP queries through one NN index built
// over the scaled and augmented dataset.
type L2ALSH struct {
	ds      *index.Dataset
	nn      index.NNIndex
	scale   float32
	maxNorm float32
	opts    Options
}

// Compile-time check to ensure L2ALSH satisfies the MIP interface.
var _ index.MIPIndex = (*L2ALSH)(nil)

// New bulkloads the reduction over the dataset, delegating index
// construction over the augmented vectors to nnBuilder.
func New(ds *index.Dataset, nnBuilder index.NNIndexBuilder, optFns ...func(o *Options)) (*L2ALSH, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < 1 {
		return nil, ErrInvalidM
	}
	if opts.U <= 0 || opts.U >= 1 {
		return nil, ErrInvalidU
	}

	maxNorm := ds.MaxNorm()
	if maxNorm == 0 {
		return nil, fmt.Errorf("l2alsh: dataset maximum norm: %w", index.ErrZeroNorm)
	}

	dim := ds.Dim()
	n := ds.Len()
	augDim := dim + opts.M
	scale := opts.U / maxNorm

	// Augmented copies live in one contiguous owned buffer with stride
	// augDim. The j-th extra coordinate is (scaled norm)^(2^(j+1)): the
	// telescoping power sequence that bounds the distortion of unequal
	// norms in the shared NN space.
	buf := make([]float32, n*augDim)
	rows := make([][]float32, n)
	for i := 0; i < n; i++ {
		row := buf[i*augDim : (i+1)*augDim]
		for j, x := range ds.Vector(uint32(i)) {
			row[j] = x * scale
		}
		p := ds.Norm(uint32(i)) * scale
		for j := 0; j < opts.M; j++ {
			p *= p
			row[dim+j] = p
		}
		rows[i] = row
	}

	nn, err := nnBuilder(rows, opts.NNRatio)
	if err != nil {
		return nil, err
	}

	return &L2ALSH{
		ds:      ds,
		nn:      nn,
		scale:   scale,
		maxNorm: maxNorm,
		opts:    opts,
	}, nil
}

// KMIP implements index.MIPIndex: the query is normalized for the first d
// coordinates with 0.5 in every augmentation slot, one unrestricted top-k
// NN query generates candidates, and each candidate is refined exactly.
//
// Candidates are not assumed to arrive in any norm order; the norm-based
// prune is applied per candidate instead of terminating the scan.
func (l *L2ALSH) KMIP(k int, query []float32, normQuery float32, filter index.FilterFunc, list *topk.MaxKList) error {
	if k < 1 {
		return index.ErrInvalidK
	}

	dim := l.ds.Dim()
	if len(query) != dim {
		return &index.ErrDimensionMismatch{Expected: dim, Actual: len(query)}
	}

	lifted := make([]float32, dim+l.opts.M)
	for j, x := range query {
		lifted[j] = x / normQuery
	}
	for j := 0; j < l.opts.M; j++ {
		lifted[dim+j] = 0.5
	}

	cand, err := l.nn.KNN(k, index.UnrestrictedRadius, lifted)
	if err != nil {
		return err
	}

	kip := list.Threshold()
	for _, id := range cand {
		if l.ds.Norm(id)*normQuery <= kip {
			continue
		}
		kip = index.Refine(l.ds, query, id, filter, list)
	}
	return nil
}

// Stats prints the reduction parameters for operator inspection.
func (l *L2ALSH) Stats() {
	fmt.Println("Parameters of L2-ALSH:")
	fmt.Printf("    n     = %d\n", l.ds.Len())
	fmt.Printf("    d     = %d\n", l.ds.Dim())
	fmt.Printf("    m     = %d\n", l.opts.M)
	fmt.Printf("    U     = %.2f\n", l.opts.U)
	fmt.Printf("    c0    = %.1f\n", l.opts.NNRatio)
	fmt.Printf("    M     = %f\n", l.maxNorm)
	fmt.Printf("    scale = %f\n\n", l.scale)
}
