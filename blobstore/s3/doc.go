// Package s3 provides a blobstore.Store backed by Amazon S3.
//
// Snapshot blobs are uploaded with the transfer manager so large payloads
// use multipart uploads with concurrent parts. An optional DynamoDB commit
// store layers atomic pointer updates on top, so multiple writers can
// publish snapshots without losing commits.
package s3
