package snapshot

import (
	"context"
	"encoding/json"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mipgo/blobstore"
	"github.com/hupe1980/mipgo/resource"
)

type fixture struct {
	Vectors [][]float32
	Dim     int
}

func TestSaveLoadRoundtrip(t *testing.T) {
	codecs := []Codec{CodecZstd, CodecLZ4, CodecNone}

	for _, codec := range codecs {
		t.Run(string(codec), func(t *testing.T) {
			ctx := context.Background()
			store := blobstore.NewMemoryStore()

			want := fixture{
				Vectors: [][]float32{{1, 2, 3}, {4, 5, 6}},
				Dim:     3,
			}

			manifest, err := Save(ctx, store, "snapshots/0001", map[string]any{
				"dataset": want,
				"meta":    map[string]string{"kind": "simplelsh"},
			}, func(o *Options) {
				o.Codec = codec
			})
			require.NoError(t, err)

			require.Len(t, manifest.Sections, 2)
			assert.Equal(t, "dataset", manifest.Sections[0].Name)
			assert.Equal(t, "meta", manifest.Sections[1].Name)
			assert.Equal(t, codec, manifest.Sections[0].Codec)

			var (
				got  fixture
				meta map[string]string
			)

			_, err = Load(ctx, store, "snapshots/0001", map[string]any{
				"dataset": &got,
				"meta":    &meta,
			})
			require.NoError(t, err)

			assert.Equal(t, want, got)
			assert.Equal(t, "simplelsh", meta["kind"])
		})
	}
}

func TestSavePublishesCurrent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	_, err := Save(ctx, store, "snapshots/0007", map[string]any{"meta": 42})
	require.NoError(t, err)

	current, err := Current(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/0007", current)

	// Publishing can be disabled for staging snapshots.
	_, err = Save(ctx, store, "snapshots/0008", map[string]any{"meta": 43}, func(o *Options) {
		o.UpdateCurrent = false
	})
	require.NoError(t, err)

	current, err = Current(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/0007", current)
}

func TestLoadMissingSection(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	_, err := Save(ctx, store, "snap", map[string]any{"meta": 1})
	require.NoError(t, err)

	var target int
	_, err = Load(ctx, store, "snap", map[string]any{"missing": &target})
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestLoadChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	manifest, err := Save(ctx, store, "snap", map[string]any{"meta": 1})
	require.NoError(t, err)

	// Corrupt the payload behind the manifest's back.
	blob := path.Join("snap", manifest.Sections[0].Blob)
	data, err := store.Get(ctx, blob)
	require.NoError(t, err)
	data[0] ^= 0xff
	require.NoError(t, store.Put(ctx, blob, data))

	var target int
	_, err = Load(ctx, store, "snap", map[string]any{"meta": &target})
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReadManifestRejectsNewerFormat(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	data, err := json.Marshal(Manifest{FormatVersion: FormatVersion + 1})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "snap/"+ManifestName, data))

	_, err = ReadManifest(ctx, store, "snap")
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestSaveWithController(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	rc := resource.NewController(resource.Config{
		MaxBackgroundWorkers: 2,
		IOLimitBytesPerSec:   1 << 30,
	})

	_, err := Save(ctx, store, "snap", map[string]any{
		"a": []int{1, 2, 3},
		"b": []int{4, 5, 6},
		"c": []int{7, 8, 9},
	}, func(o *Options) {
		o.Controller = rc
	})
	require.NoError(t, err)

	// All reserved memory was released.
	assert.Equal(t, int64(0), rc.MemoryUsage())

	names, err := store.List(ctx, "snap/")
	require.NoError(t, err)
	assert.Len(t, names, 4)
}
