package simplelsh

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/hupe1980/mipgo/distance"
	"github.com/hupe1980/mipgo/index"
	"github.com/hupe1980/mipgo/topk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomDataset(t *testing.T, num, dim int, seed int64) *index.Dataset {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	vectors := make([][]float32, num)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
		for j := range vectors[i] {
			vectors[i][j] = r.Float32()
		}
	}
	ds, err := index.NewDataset(vectors)
	require.NoError(t, err)
	return ds
}

func bruteTopK(ds *index.Dataset, q []float32, k int) []uint32 {
	type pair struct {
		id uint32
		ip float32
	}
	pairs := make([]pair, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		pairs[i] = pair{id: uint32(i) + 1, ip: distance.Dot(ds.Vector(uint32(i)), q)}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].ip > pairs[j].ip })
	ids := make([]uint32, k)
	for i := 0; i < k; i++ {
		ids[i] = pairs[i].id
	}
	return ids
}

func TestNewRejectsZeroMaxNorm(t *testing.T) {
	ds, err := index.NewDataset([][]float32{{0, 0}, {0, 0}})
	require.NoError(t, err)

	_, err = New(ds)
	assert.ErrorIs(t, err, index.ErrZeroNorm)
}

func TestUnitNormLift(t *testing.T) {
	ds := randomDataset(t, 30, 6, 1)
	s, err := New(ds)
	require.NoError(t, err)

	// Every transformed point carries a unit-norm signature space: the
	// hasher must have been built over dim+1 coordinates.
	assert.Equal(t, 7, s.Hasher().Dimension())
	assert.Equal(t, 30, s.Hasher().Len())
}

func TestKMIPValidation(t *testing.T) {
	ds := randomDataset(t, 10, 4, 2)
	s, err := New(ds)
	require.NoError(t, err)

	list := topk.NewMaxKList(1)
	assert.ErrorIs(t, s.KMIP(0, []float32{1, 0, 0, 0}, 1, nil, list), index.ErrInvalidK)
	assert.IsType(t, &index.ErrDimensionMismatch{}, s.KMIP(1, []float32{1, 0}, 1, nil, list))
}

func TestKMIPAccuracy(t *testing.T) {
	// With the oversampling margin covering the whole dataset the
	// candidate scan is exhaustive and refinement makes results exact.
	const trials = 5

	total := 0
	hits := 0
	for trial := int64(0); trial < trials; trial++ {
		ds := randomDataset(t, 50, 8, 10+trial)
		s, err := New(ds, func(o *Options) { o.Seed = trial + 1 })
		require.NoError(t, err)

		r := rand.New(rand.NewSource(100 + trial))
		q := make([]float32, 8)
		for j := range q {
			q[j] = r.Float32()
		}
		normQ := distance.Norm(q)

		list := topk.NewMaxKList(5)
		require.NoError(t, s.KMIP(5, q, normQ, nil, list))
		require.Equal(t, 5, list.Size())

		exact := bruteTopK(ds, q, 5)
		exactSet := make(map[uint32]bool)
		for _, id := range exact {
			exactSet[id] = true
		}

		for i := 0; i < list.Size(); i++ {
			total++
			if exactSet[list.IDAt(i)] {
				hits++
			}
		}
	}

	recall := float64(hits) / float64(total)
	assert.GreaterOrEqual(t, recall, 0.9, "average recall %f", recall)
}

func TestKMIPFilter(t *testing.T) {
	ds := randomDataset(t, 20, 4, 3)
	s, err := New(ds)
	require.NoError(t, err)

	q := []float32{1, 1, 1, 1}
	normQ := distance.Norm(q)

	list := topk.NewMaxKList(3)
	filter := func(id uint32) bool { return id%2 == 0 }
	require.NoError(t, s.KMIP(3, q, normQ, filter, list))

	for i := 0; i < list.Size(); i++ {
		// 1-based public ids of even 0-based dataset ids are odd.
		assert.Equal(t, uint32(1), list.IDAt(i)%2)
	}
}
