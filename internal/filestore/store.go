// Package filestore is the object storage boundary for execution audit
// records. minio talks to an S3-compatible server; memstore keeps objects
// in process for tests.
package filestore

import (
	"context"
	"io"
)

type Store interface {
	// Ping checks the backend is reachable and the audit bucket is visible.
	Ping(ctx context.Context) error
	Close() error

	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject overwrites key. size is -1 when unknown.
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts PutOptions) (*ObjectInfo, error)
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string) (Object, error)
}
