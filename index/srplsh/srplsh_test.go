package srplsh

import (
	"math/bits"
	"math/rand"
	"testing"

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
			vectors[i][j] = r.Float32()*2 - 1
		}
	}
	return vectors
}

func TestPopcountTable(t *testing.T) {
	table := popcountTable()
	for _, v := range []uint16{0, 1, 0xffff, 0xaaaa, 0x8000, 0x0101} {
		assert.Equal(t, uint16(bits.OnesCount16(v)), table[v], "value %#x", v)
	}
}

func TestNewValidation(t *testing.T) {
	vectors := randomVectors(4, 3, 1)

	_, err := New(vectors, func(o *Options) { o.K = 0 })
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = New(nil)
	assert.ErrorIs(t, err, index.ErrEmptyDataset)

	_, err = New([][]float32{{1, 2}, {1}})
	assert.IsType(t, &index.ErrDimensionMismatch{}, err)
}

func TestSignatureSelfConsistency(t *testing.T) {
	vectors := randomVectors(20, 8, 2)
	h, err := New(vectors)
	require.NoError(t, err)

	// XOR-ing a point's signature with itself must yield zero mismatches.
	for id := uint32(0); id < 20; id++ {
		sig := h.SignatureOf(id)
		fresh := make([]uint64, h.Words())
		h.Signature(vectors[id], fresh)
		for w := range sig {
			assert.Zero(t, sig[w]^fresh[w])
		}
	}
}

func TestSignaturePackingBoundary(t *testing.T) {
	vectors := randomVectors(5, 6, 3)

	tests := []struct {
		k        int
		words    int
		tailBits int // meaningful bits in the final word
	}{
		{k: 64, words: 1, tailBits: 64},
		{k: 65, words: 2, tailBits: 1},
		{k: 70, words: 2, tailBits: 6},
	}

	for _, tt := range tests {
		h, err := New(vectors, func(o *Options) { o.K = tt.k })
		require.NoError(t, err)
		assert.Equal(t, tt.words, h.Words())

		for id := uint32(0); id < uint32(len(vectors)); id++ {
			last := h.SignatureOf(id)[h.Words()-1]
			if tt.tailBits < 64 {
				// MSB-first packing: everything below the high
				// tailBits positions must stay zero.
				mask := uint64(1)<<(64-tt.tailBits) - 1
				assert.Zero(t, last&mask, "K=%d id=%d", tt.k, id)
			}
		}
	}
}

func TestSignatureMSBFirst(t *testing.T) {
	// One-dimensional positive vector: every projection sign equals the
	// sign of the hyperplane coordinate, so the packed bit j of word w is
	// (proj[64w+j] >= 0) at position 63-j.
	h, err := New([][]float32{{1}}, func(o *Options) { o.K = 8 })
	require.NoError(t, err)

	var want uint64
	for j := 0; j < 8; j++ {
		if h.hyperplane(j)[0] >= 0 {
			want |= uint64(1) << (63 - j)
		}
	}
	assert.Equal(t, want, h.SignatureOf(0)[0])
}

func TestKMC(t *testing.T) {
	vectors := randomVectors(50, 8, 4)
	h, err := New(vectors, func(o *Options) { o.Candidates = 10 })
	require.NoError(t, err)

	cand, err := h.KMC(5, vectors[17])
	require.NoError(t, err)

	// Oversampled candidate set: Candidates + topK - 1, capped by n.
	assert.Len(t, cand, 14)

	// The query point itself has a perfect signature match and must rank
	// first.
	assert.Equal(t, uint32(17), cand[0])
}

func TestKMCValidation(t *testing.T) {
	h, err := New(randomVectors(5, 4, 5))
	require.NoError(t, err)

	_, err = h.KMC(0, []float32{1, 2, 3, 4})
	assert.ErrorIs(t, err, index.ErrInvalidK)

	_, err = h.KMC(1, []float32{1, 2})
	assert.IsType(t, &index.ErrDimensionMismatch{}, err)
}

func TestDeterministicSeed(t *testing.T) {
	vectors := randomVectors(10, 4, 6)

	h1, err := New(vectors, func(o *Options) { o.Seed = 99 })
	require.NoError(t, err)
	h2, err := New(vectors, func(o *Options) { o.Seed = 99 })
	require.NoError(t, err)

	for id := uint32(0); id < 10; id++ {
		assert.Equal(t, h1.SignatureOf(id), h2.SignatureOf(id))
	}
}

func TestGobRoundTrip(t *testing.T) {
	vectors := randomVectors(12, 4, 8)
	h, err := New(vectors, func(o *Options) { o.K = 70 })
	require.NoError(t, err)

	data, err := h.GobEncode()
	require.NoError(t, err)

	restored := &Hasher{}
	require.NoError(t, restored.GobDecode(data))
	assert.Equal(t, h.Len(), restored.Len())
	assert.Equal(t, h.K(), restored.K())
	assert.Equal(t, h.Words(), restored.Words())

	want, err := h.KMC(3, vectors[2])
	require.NoError(t, err)
	got, err := restored.KMC(3, vectors[2])
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
