package index

import "github.com/hupe1980/mipgo/distance"

// Dataset is a read-only view over caller-owned vectors plus their
// precomputed Euclidean norms. Indexes hold the view for their lifetime and
// never mutate or free the underlying vectors; every derived (lifted,
// scaled, augmented) vector is owned by the index that created it.
type Dataset struct {
	vectors [][]float32
	norms   []float32
	dim     int
	maxNorm float32
}

// NewDataset wraps vectors into a dataset view, computing per-vector norms
// and the dataset maximum norm. The vectors must be non-empty and share one
// dimension. The caller keeps ownership and must not mutate the vectors
// while any index built over the dataset is in use.
func NewDataset(vectors [][]float32) (*Dataset, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyDataset
	}

	dim := len(vectors[0])
	if dim <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dim}
	}

	norms := make([]float32, len(vectors))
	maxNorm := float32(0)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
		norms[i] = distance.Norm(v)
		if norms[i] > maxNorm {
			maxNorm = norms[i]
		}
	}

	return &Dataset{
		vectors: vectors,
		norms:   norms,
		dim:     dim,
		maxNorm: maxNorm,
	}, nil
}

// Len returns the number of vectors.
func (d *Dataset) Len() int { return len(d.vectors) }

// Dim returns the vector dimensionality.
func (d *Dataset) Dim() int { return d.dim }

// Vector returns the id-th vector. The returned slice must not be mutated.
func (d *Dataset) Vector(id uint32) []float32 { return d.vectors[id] }

// Norm returns the precomputed Euclidean norm of the id-th vector.
func (d *Dataset) Norm(id uint32) float32 { return d.norms[id] }

// MaxNorm returns the largest Euclidean norm in the dataset.
func (d *Dataset) MaxNorm() float32 { return d.maxNorm }

// ValidateQuery checks a query vector against the dataset dimension and
// returns its Euclidean norm. Zero-norm queries are rejected: every
// reduction divides by the query norm at some point, and a zero query has
// no meaningful MIP answer anyway.
func (d *Dataset) ValidateQuery(query []float32) (float32, error) {
	if len(query) != d.dim {
		return 0, &ErrDimensionMismatch{Expected: d.dim, Actual: len(query)}
	}
	norm := distance.Norm(query)
	if norm == 0 {
		return 0, ErrZeroNorm
	}
	return norm, nil
}
