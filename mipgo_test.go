package mipgo

import (
	"context"
	"math/rand"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mipgo/blobstore"
	"github.com/hupe1980/mipgo/distance"
	"github.com/hupe1980/mipgo/index"
	"github.com/hupe1980/mipgo/snapshot"
	"github.com/hupe1980/mipgo/topk"
)

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		vectors[i] = v
	}
	return vectors
}

func bruteSearch(ds *index.Dataset, query []float32, k int) []index.Result {
	list := topk.NewMaxKList(k)
	for i := 0; i < ds.Len(); i++ {
		list.Insert(distance.Dot(ds.Vector(uint32(i)), query), uint32(i)+1)
	}
	return index.ResultsFromList(list)
}

func TestBuildersRequireDataset(t *testing.T) {
	_, err := H2ALSH(nil).Build()
	assert.ErrorIs(t, err, ErrNilDataset)

	_, err = L2ALSH(nil).Build()
	assert.ErrorIs(t, err, ErrNilDataset)

	_, err = SimpleLSH(nil).Build()
	assert.ErrorIs(t, err, ErrNilDataset)
}

func TestBuilderImmutability(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ds, err := index.NewDataset(randomVectors(rng, 10, 4))
	require.NoError(t, err)

	base := SimpleLSH(ds)
	tuned := base.K(64).Seed(7)

	assert.Equal(t, 128, base.k)
	assert.Equal(t, 64, tuned.k)
	assert.Equal(t, int64(7), tuned.seed)
}

func TestSearchExactness(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	ds, err := index.NewDataset(randomVectors(rng, 200, 8))
	require.NoError(t, err)

	// Linear-scan blocks make H2-ALSH equivalent to a pruned exact scan.
	db, err := H2ALSH(ds).ScanThreshold(ds.Len()).Build()
	require.NoError(t, err)

	for trial := 0; trial < 5; trial++ {
		query := randomVectors(rng, 1, 8)[0]

		got, err := db.Search(context.Background(), query, 10)
		require.NoError(t, err)

		assert.Equal(t, bruteSearch(ds, query, 10), got)
	}
}

func TestSearchValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	ds, err := index.NewDataset(randomVectors(rng, 20, 4))
	require.NoError(t, err)

	db, err := SimpleLSH(ds).Build()
	require.NoError(t, err)

	ctx := context.Background()

	_, err = db.Search(ctx, []float32{1, 2, 3, 4}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = db.Search(ctx, []float32{1, 2}, 5)
	var dimErr *ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Actual)

	_, err = db.Search(ctx, []float32{0, 0, 0, 0}, 5)
	assert.ErrorIs(t, err, ErrZeroNorm)
}

func TestSearchWithFilter(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	ds, err := index.NewDataset(randomVectors(rng, 100, 6))
	require.NoError(t, err)

	db, err := H2ALSH(ds).ScanThreshold(ds.Len()).Build()
	require.NoError(t, err)

	allowed := roaring.New()
	for id := uint32(0); id < 100; id += 2 {
		allowed.Add(id)
	}

	query := randomVectors(rng, 1, 6)[0]

	results, err := db.Search(context.Background(), query, 10, WithFilter(allowed))
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Internal even ids surface as odd 1-based result ids.
	for _, r := range results {
		assert.Equal(t, uint32(1), r.ID%2)
	}
}

func TestSearchEngines(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	ds, err := index.NewDataset(randomVectors(rng, 300, 8))
	require.NoError(t, err)

	build := map[string]func() (*MIP, error){
		"h2alsh":    func() (*MIP, error) { return H2ALSH(ds).ScanThreshold(50).Build() },
		"l2alsh":    func() (*MIP, error) { return L2ALSH(ds).Build() },
		"simplelsh": func() (*MIP, error) { return SimpleLSH(ds).Candidates(ds.Len()).Build() },
	}

	const topK = 10

	for kind, buildFn := range build {
		t.Run(kind, func(t *testing.T) {
			db, err := buildFn()
			require.NoError(t, err)
			assert.Equal(t, kind, db.Kind())

			hits := 0
			trials := 10
			for trial := 0; trial < trials; trial++ {
				query := randomVectors(rng, 1, 8)[0]

				got, err := db.Search(context.Background(), query, topK)
				require.NoError(t, err)
				require.NotEmpty(t, got)

				truth := bruteSearch(ds, query, topK)
				for _, r := range got {
					for _, want := range truth {
						if r.ID == want.ID {
							hits++
							break
						}
					}
				}
			}

			recall := float64(hits) / float64(trials*topK)
			assert.GreaterOrEqualf(t, recall, 0.5, "recall %f", recall)
		})
	}
}

func TestSearchDegenerateDataset(t *testing.T) {
	// Duplicate points and a zero-norm point must not break any engine:
	// the top hit is one of the two identical vectors with their shared
	// exact inner product.
	ds, err := index.NewDataset([][]float32{{1, 1}, {1, 1}, {0, 0}})
	require.NoError(t, err)

	build := map[string]func() (*MIP, error){
		"h2alsh":    func() (*MIP, error) { return H2ALSH(ds).Build() },
		"l2alsh":    func() (*MIP, error) { return L2ALSH(ds).Build() },
		"simplelsh": func() (*MIP, error) { return SimpleLSH(ds).Candidates(ds.Len()).Build() },
	}

	for kind, buildFn := range build {
		t.Run(kind, func(t *testing.T) {
			db, err := buildFn()
			require.NoError(t, err)

			got, err := db.Search(context.Background(), []float32{2, 1}, 1)
			require.NoError(t, err)
			require.Len(t, got, 1)

			assert.Contains(t, []uint32{1, 2}, got[0].ID)
			assert.InDelta(t, 3.0, got[0].Score, 1e-5)
		})
	}
}

func TestMetricsCollection(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	ds, err := index.NewDataset(randomVectors(rng, 50, 4))
	require.NoError(t, err)

	metrics := &BasicMetricsCollector{}

	db, err := SimpleLSH(ds).Metrics(metrics).Build()
	require.NoError(t, err)

	assert.Equal(t, int64(1), metrics.BulkloadCount.Load())

	query := randomVectors(rng, 1, 4)[0]
	_, err = db.Search(context.Background(), query, 5)
	require.NoError(t, err)

	_, _ = db.Search(context.Background(), []float32{1}, 5)

	assert.Equal(t, int64(2), metrics.SearchCount.Load())
	assert.Equal(t, int64(1), metrics.SearchErrors.Load())
}

func TestSnapshotRoundtrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ds, err := index.NewDataset(randomVectors(rng, 80, 6))
	require.NoError(t, err)

	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	db, err := SimpleLSH(ds).Seed(42).Build()
	require.NoError(t, err)

	require.NoError(t, db.SaveSnapshot(ctx, store, "snapshots/0001"))

	current, err := snapshot.Current(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/0001", current)

	restored, err := OpenSimpleLSH(ctx, store, "snapshots/0001", nil)
	require.NoError(t, err)

	// The restored hasher reproduces the original candidate ranking, so
	// results match exactly without re-drawing hyperplanes.
	for trial := 0; trial < 5; trial++ {
		query := randomVectors(rng, 1, 6)[0]

		want, err := db.Search(ctx, query, 10)
		require.NoError(t, err)

		got, err := restored.Search(ctx, query, 10)
		require.NoError(t, err)

		assert.Equal(t, want, got)
	}
}

func TestOpenH2ALSHRebuilds(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	ds, err := index.NewDataset(randomVectors(rng, 60, 5))
	require.NoError(t, err)

	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	db, err := H2ALSH(ds).ScanThreshold(ds.Len()).Build()
	require.NoError(t, err)
	require.NoError(t, db.SaveSnapshot(ctx, store, "snap"))

	restored, err := OpenH2ALSH(ctx, store, "snap", func(b H2ALSHBuilder) H2ALSHBuilder {
		return b.ScanThreshold(60)
	})
	require.NoError(t, err)

	query := randomVectors(rng, 1, 5)[0]

	want, err := db.Search(ctx, query, 5)
	require.NoError(t, err)

	got, err := restored.Search(ctx, query, 5)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}
