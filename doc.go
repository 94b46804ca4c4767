// Package mipgo provides approximate Maximum Inner Product (MIP) search
// for dense float32 vectors.
//
// MIP search finds the k data points maximizing the inner product with a
// query. Inner product is not a metric, so the package reduces the problem
// to spaces where locality-sensitive methods work:
//
//   - H2-ALSH: norm-homogeneous blocking with per-block equal-norm lifting
//     and a Cauchy-Schwarz branch-and-bound over blocks
//   - L2-ALSH: one global asymmetric transform into a Euclidean NN index
//   - Simple-LSH: unit-norm lifting over random-hyperplane signatures with
//     bit-packed Hamming ranking
//
// All reductions refine candidates against the original vectors, so
// returned scores are exact inner products. Result ids are 1-based.
//
// # Quick Start
//
//	ds, err := index.NewDataset(vectors)
//	if err != nil {
//	    panic(err)
//	}
//
//	db, err := mipgo.H2ALSH(ds).
//	    NNRatio(2.0).
//	    MIPRatio(0.9).
//	    Build()
//	if err != nil {
//	    panic(err)
//	}
//
//	results, err := db.Search(ctx, query, 10)
//
// Indexes are read-only after Build and safe for concurrent searches.
// Snapshots persist an index to any blobstore.Store (local disk, S3,
// MinIO) via SaveSnapshot and the Open* functions.
package mipgo
