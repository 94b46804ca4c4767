// This file implements reduction-specific fluent builder APIs for creating
// and configuring MIP instances. Builders are immutable - each method
// returns a new builder with the updated configuration.
package mipgo

import (
	"context"
	"time"

	"github.com/hupe1980/mipgo/hnsw"
	"github.com/hupe1980/mipgo/index"
	"github.com/hupe1980/mipgo/index/h2alsh"
	"github.com/hupe1980/mipgo/index/l2alsh"
	"github.com/hupe1980/mipgo/index/simplelsh"
)

// =============================================================================
// H2-ALSH Builder (Immutable)
// =============================================================================

// H2ALSH creates a builder for the norm-blocking reduction. It gives the
// best accuracy/speed trade-off for datasets with spread-out norms.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration.
//
// Example:
//
//	db, err := mipgo.H2ALSH(ds).
//	    NNRatio(2.0).
//	    MIPRatio(0.9).
//	    MaxBlockSize(4096).
//	    Build()
func H2ALSH(ds *index.Dataset) H2ALSHBuilder {
	return H2ALSHBuilder{
		ds:            ds,
		nnRatio:       h2alsh.DefaultOptions.NNRatio,
		mipRatio:      h2alsh.DefaultOptions.MIPRatio,
		maxBlockSize:  h2alsh.DefaultOptions.MaxBlockSize,
		scanThreshold: h2alsh.DefaultOptions.ScanThreshold,
	}
}

// H2ALSHBuilder is an immutable fluent builder for H2-ALSH instances.
type H2ALSHBuilder struct {
	ds            *index.Dataset
	nnRatio       float32
	mipRatio      float32
	maxBlockSize  int
	scanThreshold int
	nnEngine      index.NNIndexBuilder
	logger        *Logger
	metrics       MetricsCollector
}

// NNRatio sets the approximation ratio c0 of the per-block NN delegates.
func (b H2ALSHBuilder) NNRatio(ratio float32) H2ALSHBuilder {
	b.nnRatio = ratio
	return b
}

// MIPRatio sets the MIP approximation ratio c. Must satisfy c0^4 > c.
func (b H2ALSHBuilder) MIPRatio(ratio float32) H2ALSHBuilder {
	b.mipRatio = ratio
	return b
}

// MaxBlockSize caps the member count of a single norm block.
func (b H2ALSHBuilder) MaxBlockSize(size int) H2ALSHBuilder {
	b.maxBlockSize = size
	return b
}

// ScanThreshold sets the block size above which an NN delegate replaces the
// linear scan.
func (b H2ALSHBuilder) ScanThreshold(threshold int) H2ALSHBuilder {
	b.scanThreshold = threshold
	return b
}

// NNEngine overrides the NN delegate constructor. Default: HNSW.
func (b H2ALSHBuilder) NNEngine(builder index.NNIndexBuilder) H2ALSHBuilder {
	b.nnEngine = builder
	return b
}

// Logger sets the structured logger.
func (b H2ALSHBuilder) Logger(logger *Logger) H2ALSHBuilder {
	b.logger = logger
	return b
}

// Metrics sets the metrics collector.
func (b H2ALSHBuilder) Metrics(metrics MetricsCollector) H2ALSHBuilder {
	b.metrics = metrics
	return b
}

// Build bulkloads the index.
func (b H2ALSHBuilder) Build() (*MIP, error) {
	if b.ds == nil {
		return nil, ErrNilDataset
	}

	m := newMIP("h2alsh", b.ds, b.logger, b.metrics)

	nnEngine := b.nnEngine
	if nnEngine == nil {
		nnEngine = hnsw.NewBuilder()
	}

	start := time.Now()

	engine, err := h2alsh.New(b.ds, nnEngine, func(o *h2alsh.Options) {
		o.NNRatio = b.nnRatio
		o.MIPRatio = b.mipRatio
		o.MaxBlockSize = b.maxBlockSize
		o.ScanThreshold = b.scanThreshold
	})

	return m.finishBuild(engine, err, start)
}

// =============================================================================
// L2-ALSH Builder (Immutable)
// =============================================================================

// L2ALSH creates a builder for the global asymmetric reduction: one NN
// index over the scaled and norm-augmented dataset.
//
// Example:
//
//	db, err := mipgo.L2ALSH(ds).
//	    M(3).
//	    U(0.83).
//	    Build()
func L2ALSH(ds *index.Dataset) L2ALSHBuilder {
	return L2ALSHBuilder{
		ds:      ds,
		m:       l2alsh.DefaultOptions.M,
		u:       l2alsh.DefaultOptions.U,
		nnRatio: l2alsh.DefaultOptions.NNRatio,
	}
}

// L2ALSHBuilder is an immutable fluent builder for L2-ALSH instances.
type L2ALSHBuilder struct {
	ds       *index.Dataset
	m        int
	u        float32
	nnRatio  float32
	nnEngine index.NNIndexBuilder
	logger   *Logger
	metrics  MetricsCollector
}

// M sets the number of augmentation coordinates appended per point.
func (b L2ALSHBuilder) M(m int) L2ALSHBuilder {
	b.m = m
	return b
}

// U sets the scale factor in (0,1) applied to the whole dataset.
func (b L2ALSHBuilder) U(u float32) L2ALSHBuilder {
	b.u = u
	return b
}

// NNRatio sets the approximation ratio handed to the NN engine.
func (b L2ALSHBuilder) NNRatio(ratio float32) L2ALSHBuilder {
	b.nnRatio = ratio
	return b
}

// NNEngine overrides the NN engine constructor. Default: HNSW.
func (b L2ALSHBuilder) NNEngine(builder index.NNIndexBuilder) L2ALSHBuilder {
	b.nnEngine = builder
	return b
}

// Logger sets the structured logger.
func (b L2ALSHBuilder) Logger(logger *Logger) L2ALSHBuilder {
	b.logger = logger
	return b
}

// Metrics sets the metrics collector.
func (b L2ALSHBuilder) Metrics(metrics MetricsCollector) L2ALSHBuilder {
	b.metrics = metrics
	return b
}

// Build bulkloads the index.
func (b L2ALSHBuilder) Build() (*MIP, error) {
	if b.ds == nil {
		return nil, ErrNilDataset
	}

	m := newMIP("l2alsh", b.ds, b.logger, b.metrics)

	nnEngine := b.nnEngine
	if nnEngine == nil {
		nnEngine = hnsw.NewBuilder()
	}

	start := time.Now()

	engine, err := l2alsh.New(b.ds, nnEngine, func(o *l2alsh.Options) {
		o.M = b.m
		o.U = b.u
		o.NNRatio = b.nnRatio
	})

	return m.finishBuild(engine, err, start)
}

// =============================================================================
// Simple-LSH Builder (Immutable)
// =============================================================================

// SimpleLSH creates a builder for the unit-norm lifting reduction over
// random-hyperplane signatures. Queries cost one bit-packed Hamming scan;
// no NN engine is involved.
//
// Example:
//
//	db, err := mipgo.SimpleLSH(ds).
//	    K(128).
//	    Candidates(100).
//	    Seed(42).
//	    Build()
func SimpleLSH(ds *index.Dataset) SimpleLSHBuilder {
	return SimpleLSHBuilder{
		ds:         ds,
		k:          simplelsh.DefaultOptions.K,
		candidates: simplelsh.DefaultOptions.Candidates,
		seed:       simplelsh.DefaultOptions.Seed,
	}
}

// SimpleLSHBuilder is an immutable fluent builder for Simple-LSH instances.
type SimpleLSHBuilder struct {
	ds         *index.Dataset
	k          int
	candidates int
	seed       int64
	logger     *Logger
	metrics    MetricsCollector
}

// K sets the signature length in bits.
// Higher values improve ranking quality but slow the Hamming scan.
func (b SimpleLSHBuilder) K(k int) SimpleLSHBuilder {
	b.k = k
	return b
}

// Candidates sets the oversampling margin of the candidate scan.
func (b SimpleLSHBuilder) Candidates(candidates int) SimpleLSHBuilder {
	b.candidates = candidates
	return b
}

// Seed seeds the Gaussian hyperplane draw, making builds reproducible.
func (b SimpleLSHBuilder) Seed(seed int64) SimpleLSHBuilder {
	b.seed = seed
	return b
}

// Logger sets the structured logger.
func (b SimpleLSHBuilder) Logger(logger *Logger) SimpleLSHBuilder {
	b.logger = logger
	return b
}

// Metrics sets the metrics collector.
func (b SimpleLSHBuilder) Metrics(metrics MetricsCollector) SimpleLSHBuilder {
	b.metrics = metrics
	return b
}

// Build bulkloads the index.
func (b SimpleLSHBuilder) Build() (*MIP, error) {
	if b.ds == nil {
		return nil, ErrNilDataset
	}

	m := newMIP("simplelsh", b.ds, b.logger, b.metrics)

	start := time.Now()

	engine, err := simplelsh.New(b.ds, func(o *simplelsh.Options) {
		o.K = b.k
		o.Candidates = b.candidates
		o.Seed = b.seed
	})

	return m.finishBuild(engine, err, start)
}

func (m *MIP) finishBuild(engine index.MIPIndex, err error, start time.Time) (*MIP, error) {
	duration := time.Since(start)

	m.metrics.RecordBulkload(m.ds.Len(), duration, err)
	m.logger.LogBulkload(context.Background(), m.kind, m.ds.Len(), m.ds.Dim(), duration, err)

	if err != nil {
		return nil, translateError(err)
	}

	m.engine = engine

	return m, nil
}
