package hnsw

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/hupe1980/mipgo/distance"
	"github.com/hupe1980/mipgo/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVectors(num, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	vectors := make([][]float32, num)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
		for j := range vectors[i] {
			vectors[i][j] = r.Float32()
		}
	}
	return vectors
}

func bruteKNN(vectors [][]float32, q []float32, k int) []uint32 {
	type pair struct {
		id   uint32
		dist float32
	}
	pairs := make([]pair, len(vectors))
	for i, v := range vectors {
		pairs[i] = pair{id: uint32(i), dist: distance.SquaredL2(q, v)}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].dist < pairs[j].dist })
	ids := make([]uint32, k)
	for i := 0; i < k; i++ {
		ids[i] = pairs[i].id
	}
	return ids
}

func TestInsertDimensionMismatch(t *testing.T) {
	h := New(3)
	_, err := h.Insert([]float32{1, 2})
	assert.IsType(t, &index.ErrDimensionMismatch{}, err)
}

func TestBulkloadEmpty(t *testing.T) {
	_, err := Bulkload(nil)
	assert.ErrorIs(t, err, index.ErrEmptyDataset)
}

func TestKNNSearchRecall(t *testing.T) {
	vectors := randomVectors(500, 8, 7)
	h, err := Bulkload(vectors)
	require.NoError(t, err)
	require.Equal(t, 500, h.Len())

	q := []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	results, err := h.KNNSearch(q, 10, 200)
	require.NoError(t, err)
	require.Len(t, results, 10)

	// Results must come back closest first.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].Distance, results[i-1].Distance)
	}

	exact := bruteKNN(vectors, q, 10)
	exactSet := make(map[uint32]bool, len(exact))
	for _, id := range exact {
		exactSet[id] = true
	}

	hits := 0
	for _, r := range results {
		if exactSet[r.ID] {
			hits++
		}
	}
	assert.GreaterOrEqual(t, hits, 8, "recall@10 below 0.8")
}

func TestKNNRadius(t *testing.T) {
	vectors := [][]float32{{0, 0}, {1, 0}, {10, 0}}
	h, err := Bulkload(vectors)
	require.NoError(t, err)

	ids, err := h.KNN(3, 2.0, []float32{0, 0})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{0, 1}, ids)

	all, err := h.KNN(3, index.UnrestrictedRadius, []float32{0, 0})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestKNNSearchValidation(t *testing.T) {
	h := New(2)
	_, err := h.KNNSearch([]float32{1, 2, 3}, 1, 10)
	assert.IsType(t, &index.ErrDimensionMismatch{}, err)

	_, err = h.KNNSearch([]float32{1, 2}, 0, 10)
	assert.ErrorIs(t, err, index.ErrInvalidK)
}

func TestDeterministicWithSeed(t *testing.T) {
	vectors := randomVectors(100, 4, 3)

	build := func() []uint32 {
		h, err := Bulkload(vectors, func(o *Options) { o.Seed = 42 })
		require.NoError(t, err)
		ids, err := h.KNN(5, float32(math.Inf(1)), vectors[0])
		require.NoError(t, err)
		return ids
	}

	assert.Equal(t, build(), build())
}

func TestGobRoundTrip(t *testing.T) {
	vectors := randomVectors(50, 4, 11)
	h, err := Bulkload(vectors)
	require.NoError(t, err)

	data, err := h.GobEncode()
	require.NoError(t, err)

	restored := &HNSW{}
	require.NoError(t, restored.GobDecode(data))
	assert.Equal(t, h.Len(), restored.Len())
	assert.Equal(t, h.Dimension(), restored.Dimension())

	q := vectors[7]
	want, err := h.KNNSearch(q, 3, 100)
	require.NoError(t, err)
	got, err := restored.KNNSearch(q, 3, 100)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
