// Package srplsh implements sign-random-projection hashing (SRP-LSH): every
// point is summarized by K sign bits under random Gaussian hyperplanes,
// packed into 64-bit words, and candidate generation becomes a table-driven
// Hamming scan over the packed signatures. No exact arithmetic happens here;
// precision is deferred to the caller's refinement step.
package srplsh

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/hupe1980/mipgo/distance"
	"github.com/hupe1980/mipgo/index"
	"github.com/hupe1980/mipgo/topk"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidK is returned when the number of hash functions is not positive.
var ErrInvalidK = errors.New("number of hash functions K must be positive")

// Options contains configuration options for the hasher.
type Options struct {
	// K is the number of random hyperplanes, i.e. signature bits.
	K int

	// Candidates is the oversampling margin: a scan keeps the
	// Candidates + topK - 1 best-matching points as the candidate set.
	Candidates int

	// Seed seeds the Gaussian hyperplane draw. Fixed seeds give
	// deterministic signatures.
	Seed int64
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	K:          128,
	Candidates: 100,
	Seed:       1,
}

// The 16-bit population count table is process-wide shared state: built
// once, read-only afterwards, safe for all hashers without synchronization.
var (
	popTable     [1 << 16]uint16
	popTableOnce sync.Once
)

func popcountTable() *[1 << 16]uint16 {
	popTableOnce.Do(func() {
		for i := 1; i < len(popTable); i++ {
			popTable[i] = popTable[i>>1] + uint16(i&1)
		}
	})
	return &popTable
}

// Hasher holds the random hyperplanes and the packed signature of every
// point it was built over. It is read-only after construction.
type Hasher struct {
	n     int // number of points
	dim   int // dimensionality of the hashed space
	words int // signature words per point, ceil(K/64)

	proj       []float32 // K hyperplanes, row-major with stride dim
	signatures []uint64  // n signatures, row-major with stride words

	table *[1 << 16]uint16
	opts  Options
}

// New builds a hasher over the given vectors: draws K zero-mean unit-variance
// Gaussian hyperplanes and computes every point's packed sign signature.
func New(vectors [][]float32, optFns ...func(o *Options)) (*Hasher, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.K < 1 {
		return nil, ErrInvalidK
	}
	if len(vectors) == 0 {
		return nil, index.ErrEmptyDataset
	}

	dim := len(vectors[0])
	if dim <= 0 {
		return nil, &index.ErrInvalidDimension{Dimension: dim}
	}

	h := &Hasher{
		n:     len(vectors),
		dim:   dim,
		words: (opts.K + 63) / 64,
		table: popcountTable(),
		opts:  opts,
	}

	normal := distuv.Normal{
		Mu:    0,
		Sigma: 1,
		Src:   rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)+1),
	}
	h.proj = make([]float32, opts.K*dim)
	for i := range h.proj {
		h.proj[i] = float32(normal.Rand())
	}

	h.signatures = make([]uint64, h.n*h.words)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, &index.ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
		h.Signature(v, h.signatures[i*h.words:(i+1)*h.words])
	}

	return h, nil
}

// K returns the number of signature bits.
func (h *Hasher) K() int { return h.opts.K }

// Words returns the number of 64-bit words per signature.
func (h *Hasher) Words() int { return h.words }

// Len returns the number of hashed points.
func (h *Hasher) Len() int { return h.n }

// Dimension returns the dimensionality of the hashed space.
func (h *Hasher) Dimension() int { return h.dim }

// SignatureOf returns the packed signature of point id. The returned slice
// aliases internal storage and must not be mutated.
func (h *Hasher) SignatureOf(id uint32) []uint64 {
	return h.signatures[int(id)*h.words : (int(id)+1)*h.words]
}

func (h *Hasher) hyperplane(i int) []float32 {
	return h.proj[i*h.dim : (i+1)*h.dim]
}

// Signature computes the packed K-bit sign signature of v into dst, which
// must have length Words(). Bits are packed most-significant-bit-first
// within each word; when K is not a multiple of 64, only the high K mod 64
// positions of the final word are meaningful.
func (h *Hasher) Signature(v []float32, dst []uint64) {
	bit := 0
	for w := 0; w < h.words; w++ {
		size := 64
		if w == h.words-1 && h.opts.K%64 != 0 {
			size = h.opts.K % 64
		}
		var val uint64
		for j := 0; j < size; j++ {
			if distance.Dot(h.hyperplane(bit), v) >= 0 {
				val |= uint64(1) << (63 - j)
			}
			bit++
		}
		dst[w] = val
	}
}

// matchLookup counts the set bits of x with four 16-bit table lookups.
func (h *Hasher) matchLookup(x uint64) uint32 {
	return uint32(h.table[x&0xffff]) + uint32(h.table[(x>>16)&0xffff]) +
		uint32(h.table[(x>>32)&0xffff]) + uint32(h.table[(x>>48)&0xffff])
}

// KMC performs a k-maximum-cosine candidate scan: it ranks all points by
// signature agreement with the query (totalBits - mismatches, higher is more
// similar) and returns the Candidates + topK - 1 best point ids, best first.
// Runs in O(n*K/64) without any exact arithmetic.
func (h *Hasher) KMC(topK int, query []float32) ([]uint32, error) {
	if topK < 1 {
		return nil, index.ErrInvalidK
	}
	if len(query) != h.dim {
		return nil, &index.ErrDimensionMismatch{Expected: h.dim, Actual: len(query)}
	}

	querySig := make([]uint64, h.words)
	h.Signature(query, querySig)

	list := topk.NewMaxKList(h.opts.Candidates + topK - 1)
	totalBits := uint32(64 * h.words)

	for i := 0; i < h.n; i++ {
		sig := h.signatures[i*h.words : (i+1)*h.words]
		var mismatch uint32
		for w := range querySig {
			mismatch += h.matchLookup(sig[w] ^ querySig[w])
		}
		list.Insert(float32(totalBits-mismatch), uint32(i))
	}

	cand := make([]uint32, list.Size())
	for i := range cand {
		cand[i] = list.IDAt(i)
	}
	return cand, nil
}

// Stats prints the hasher parameters for operator inspection.
func (h *Hasher) Stats() {
	fmt.Println("Parameters of SRP-LSH:")
	fmt.Printf("    n          = %d\n", h.n)
	fmt.Printf("    d          = %d\n", h.dim)
	fmt.Printf("    K          = %d\n", h.opts.K)
	fmt.Printf("    words      = %d\n", h.words)
	fmt.Printf("    candidates = %d\n", h.opts.Candidates)
	fmt.Printf("    simd       = %s\n\n", distance.Capability())
}
