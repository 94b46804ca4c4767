// Package blobstore defines the storage abstraction used to persist index
// snapshots, plus in-memory and local-filesystem implementations.
//
// Remote backends live in subpackages:
//   - blobstore/s3: Amazon S3, optionally with DynamoDB commit coordination
//   - blobstore/minio: MinIO and other S3-compatible object stores
package blobstore
