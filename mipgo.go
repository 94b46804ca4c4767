package mipgo

import (
	"context"
	"errors"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/mipgo/blobstore"
	"github.com/hupe1980/mipgo/index"
	"github.com/hupe1980/mipgo/index/simplelsh"
	"github.com/hupe1980/mipgo/index/srplsh"
	"github.com/hupe1980/mipgo/snapshot"
	"github.com/hupe1980/mipgo/topk"
)

// ErrNilDataset is returned when a builder is given a nil dataset.
var ErrNilDataset = errors.New("dataset must not be nil")

// MIP is a read-only approximate maximum inner product index. It is safe
// for concurrent searches after Build.
type MIP struct {
	ds      *index.Dataset
	engine  index.MIPIndex
	kind    string
	logger  *Logger
	metrics MetricsCollector
}

func newMIP(kind string, ds *index.Dataset, logger *Logger, metrics MetricsCollector) *MIP {
	if logger == nil {
		logger = NoopLogger()
	}

	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}

	return &MIP{
		ds:      ds,
		kind:    kind,
		logger:  logger,
		metrics: metrics,
	}
}

// searchOptions holds per-search configuration.
type searchOptions struct {
	filter index.FilterFunc
}

// SearchOption configures a single Search call.
type SearchOption func(*searchOptions)

// WithFilter restricts results to the internal (0-based) ids contained in
// the bitmap. Filtered-out candidates still cost hash/scan work; only the
// refinement skips them.
func WithFilter(allowed *roaring.Bitmap) SearchOption {
	return func(o *searchOptions) {
		if allowed == nil {
			return
		}

		o.filter = allowed.Contains
	}
}

// WithFilterFunc restricts results with an arbitrary predicate over
// internal (0-based) ids.
func WithFilterFunc(filter index.FilterFunc) SearchOption {
	return func(o *searchOptions) {
		o.filter = filter
	}
}

// Search returns the k data points with the highest exact inner product
// against query, best first. Result ids are 1-based.
func (m *MIP) Search(ctx context.Context, query []float32, k int, optFns ...SearchOption) ([]index.Result, error) {
	var opts searchOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	start := time.Now()

	results, err := m.search(query, k, opts.filter)

	duration := time.Since(start)
	m.metrics.RecordSearch(k, duration, err)
	m.logger.LogSearch(ctx, k, len(results), duration, err)

	return results, err
}

func (m *MIP) search(query []float32, k int, filter index.FilterFunc) ([]index.Result, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}

	normQuery, err := m.ds.ValidateQuery(query)
	if err != nil {
		return nil, translateError(err)
	}

	list := topk.NewMaxKList(k)
	if err := m.engine.KMIP(k, query, normQuery, filter, list); err != nil {
		return nil, translateError(err)
	}

	return index.ResultsFromList(list), nil
}

// Dataset returns the underlying dataset.
func (m *MIP) Dataset() *index.Dataset { return m.ds }

// Kind returns the reduction backing this index.
func (m *MIP) Kind() string { return m.kind }

// Stats prints the engine parameters for operator inspection.
func (m *MIP) Stats() { m.engine.Stats() }

// SaveSnapshot persists the index to the store under the given prefix. The
// dataset is always saved; a Simple-LSH index additionally saves its hasher
// so Open restores identical signatures without re-drawing hyperplanes.
// The other reductions rebuild deterministically from the dataset.
func (m *MIP) SaveSnapshot(ctx context.Context, store blobstore.Store, prefix string, optFns ...func(o *snapshot.Options)) error {
	sections := map[string]any{
		"dataset": m.ds,
		"kind":    m.kind,
	}

	if s, ok := m.engine.(*simplelsh.SimpleLSH); ok {
		sections["hasher"] = s.Hasher()
	}

	start := time.Now()

	_, err := snapshot.Save(ctx, store, prefix, sections, optFns...)

	duration := time.Since(start)
	m.metrics.RecordSnapshot("save", duration, err)
	m.logger.LogSnapshot(ctx, "save", prefix, duration, err)

	return err
}

// LoadDataset restores just the dataset section of a snapshot.
func LoadDataset(ctx context.Context, store blobstore.Store, prefix string, optFns ...func(o *snapshot.Options)) (*index.Dataset, error) {
	var ds index.Dataset
	if _, err := snapshot.Load(ctx, store, prefix, map[string]any{"dataset": &ds}, optFns...); err != nil {
		return nil, err
	}

	return &ds, nil
}

// OpenH2ALSH restores a snapshot's dataset and rebuilds an H2-ALSH index
// over it.
func OpenH2ALSH(ctx context.Context, store blobstore.Store, prefix string, builder func(b H2ALSHBuilder) H2ALSHBuilder) (*MIP, error) {
	ds, err := LoadDataset(ctx, store, prefix)
	if err != nil {
		return nil, err
	}

	b := H2ALSH(ds)
	if builder != nil {
		b = builder(b)
	}

	return b.Build()
}

// OpenL2ALSH restores a snapshot's dataset and rebuilds an L2-ALSH index
// over it.
func OpenL2ALSH(ctx context.Context, store blobstore.Store, prefix string, builder func(b L2ALSHBuilder) L2ALSHBuilder) (*MIP, error) {
	ds, err := LoadDataset(ctx, store, prefix)
	if err != nil {
		return nil, err
	}

	b := L2ALSH(ds)
	if builder != nil {
		b = builder(b)
	}

	return b.Build()
}

// OpenSimpleLSH restores a Simple-LSH index from a snapshot. The persisted
// hasher is reattached when present; otherwise the index is rebuilt from
// the dataset through the builder.
func OpenSimpleLSH(ctx context.Context, store blobstore.Store, prefix string, builder func(b SimpleLSHBuilder) SimpleLSHBuilder, optFns ...func(o *snapshot.Options)) (*MIP, error) {
	ds, err := LoadDataset(ctx, store, prefix, optFns...)
	if err != nil {
		return nil, err
	}

	b := SimpleLSH(ds)
	if builder != nil {
		b = builder(b)
	}

	var hasher srplsh.Hasher
	_, err = snapshot.Load(ctx, store, prefix, map[string]any{"hasher": &hasher}, optFns...)

	switch {
	case errors.Is(err, snapshot.ErrSectionNotFound):
		return b.Build()
	case err != nil:
		return nil, err
	}

	m := newMIP("simplelsh", ds, b.logger, b.metrics)

	engine, err := simplelsh.NewFromHasher(ds, &hasher, func(o *simplelsh.Options) {
		o.Candidates = b.candidates
	})
	if err != nil {
		return nil, translateError(err)
	}

	m.engine = engine

	return m, nil
}
