// Package snapshot persists index state to a blobstore.
//
// A snapshot is a set of named sections, each gob-encoded, compressed, and
// checksummed into its own blob, plus a JSON manifest describing them. A
// CURRENT pointer blob names the latest published snapshot prefix, so
// readers can discover it without listing.
package snapshot

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"path"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/mipgo/blobstore"
	"github.com/hupe1980/mipgo/resource"
)

// FormatVersion is the manifest format written by this package.
const FormatVersion = 1

const (
	// ManifestName is the manifest blob name inside a snapshot prefix.
	ManifestName = "MANIFEST.json"

	// CurrentName is the pointer blob naming the latest snapshot prefix.
	CurrentName = "CURRENT"
)

var (
	// ErrChecksumMismatch is returned when a section payload is corrupt.
	ErrChecksumMismatch = errors.New("section checksum mismatch")

	// ErrSectionNotFound is returned when a requested section is absent
	// from the manifest.
	ErrSectionNotFound = errors.New("section not found in manifest")

	// ErrUnsupportedVersion is returned for manifests written by a newer
	// format than this package understands.
	ErrUnsupportedVersion = errors.New("unsupported snapshot format version")

	// ErrUnknownCodec is returned for an unrecognized section codec.
	ErrUnknownCodec = errors.New("unknown codec")
)

// Section describes one persisted blob inside a snapshot.
type Section struct {
	Name  string `json:"name"`
	Blob  string `json:"blob"`
	Size  int64  `json:"size"`
	CRC32 uint32 `json:"crc32"`
	Codec Codec  `json:"codec"`
}

// Manifest describes a complete snapshot.
type Manifest struct {
	FormatVersion int       `json:"format_version"`
	CreatedAt     time.Time `json:"created_at"`
	Sections      []Section `json:"sections"`
}

// Options contains configuration options for Save and Load.
type Options struct {
	// Codec is the compression applied to section payloads.
	Codec Codec

	// Controller throttles section transfers; nil means unlimited.
	Controller *resource.Controller

	// Parallelism caps concurrent section transfers. If 0, the
	// controller's worker count is used (1 without a controller).
	Parallelism int

	// UpdateCurrent controls whether Save publishes the snapshot by
	// rewriting the CURRENT pointer after the manifest.
	UpdateCurrent bool
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	Codec:         CodecZstd,
	UpdateCurrent: true,
}

func (o *Options) parallelism() int {
	if o.Parallelism > 0 {
		return o.Parallelism
	}

	return o.Controller.Workers()
}

// Save encodes every section, uploads them concurrently, and finishes with
// the manifest and, unless disabled, the CURRENT pointer. The manifest is
// written last so a partially uploaded snapshot is never discoverable.
func Save(ctx context.Context, store blobstore.Store, prefix string, sections map[string]any, optFns ...func(o *Options)) (*Manifest, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	manifest := &Manifest{
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Sections:      make([]Section, len(names)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallelism())

	for i, name := range names {
		g.Go(func() error {
			payload, err := encodeSection(opts.Codec, sections[name])
			if err != nil {
				return fmt.Errorf("snapshot: encode section %q: %w", name, err)
			}

			size := int64(len(payload))

			if err := opts.Controller.AcquireMemory(gctx, size); err != nil {
				return err
			}
			defer opts.Controller.ReleaseMemory(size)

			if err := opts.Controller.AcquireIO(gctx, len(payload)); err != nil {
				return err
			}

			blob := name + ".bin" + opts.Codec.extension()
			if err := store.Put(gctx, path.Join(prefix, blob), payload); err != nil {
				return fmt.Errorf("snapshot: upload section %q: %w", name, err)
			}

			manifest.Sections[i] = Section{
				Name:  name,
				Blob:  blob,
				Size:  size,
				CRC32: crc32.ChecksumIEEE(payload),
				Codec: opts.Codec,
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}

	if err := store.Put(ctx, path.Join(prefix, ManifestName), data); err != nil {
		return nil, fmt.Errorf("snapshot: write manifest: %w", err)
	}

	if opts.UpdateCurrent {
		if err := store.Put(ctx, CurrentName, []byte(prefix)); err != nil {
			return nil, fmt.Errorf("snapshot: update current pointer: %w", err)
		}
	}

	return manifest, nil
}

// Current resolves the latest published snapshot prefix.
func Current(ctx context.Context, store blobstore.Store) (string, error) {
	data, err := store.Get(ctx, CurrentName)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// ReadManifest fetches and decodes the manifest of a snapshot prefix.
func ReadManifest(ctx context.Context, store blobstore.Store, prefix string) (*Manifest, error) {
	data, err := store.Get(ctx, path.Join(prefix, ManifestName))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("snapshot: decode manifest: %w", err)
	}

	if manifest.FormatVersion > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, manifest.FormatVersion)
	}

	return &manifest, nil
}

// Load downloads the listed sections concurrently, verifies their
// checksums, and gob-decodes each into the caller's target pointer.
func Load(ctx context.Context, store blobstore.Store, prefix string, targets map[string]any, optFns ...func(o *Options)) (*Manifest, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	manifest, err := ReadManifest(ctx, store, prefix)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Section, len(manifest.Sections))
	for _, s := range manifest.Sections {
		byName[s.Name] = s
	}

	for name := range targets {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, name)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallelism())

	for name, target := range targets {
		section := byName[name]

		g.Go(func() error {
			if err := opts.Controller.AcquireMemory(gctx, section.Size); err != nil {
				return err
			}
			defer opts.Controller.ReleaseMemory(section.Size)

			payload, err := store.Get(gctx, path.Join(prefix, section.Blob))
			if err != nil {
				return fmt.Errorf("snapshot: fetch section %q: %w", name, err)
			}

			if err := opts.Controller.AcquireIO(gctx, len(payload)); err != nil {
				return err
			}

			if crc32.ChecksumIEEE(payload) != section.CRC32 {
				return fmt.Errorf("%w: section %q", ErrChecksumMismatch, name)
			}

			if err := decodeSection(section.Codec, payload, target); err != nil {
				return fmt.Errorf("snapshot: decode section %q: %w", name, err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return manifest, nil
}

func encodeSection(codec Codec, v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}

	return compress(codec, buf.Bytes())
}

func decodeSection(codec Codec, payload []byte, target any) error {
	data, err := decompress(codec, payload)
	if err != nil {
		return err
	}

	return gob.NewDecoder(bytes.NewReader(data)).Decode(target)
}
