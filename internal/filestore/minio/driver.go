// Package minio stores audit records on an S3-compatible server through
// minio-go.
package minio

import (
	"context"
	"io"
	"strings"

	miniosdk "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/filestore"
)

// Driver is safe for concurrent use.
type Driver struct {
	client *miniosdk.Client
	bucket string
	region string
}

// New builds a client for cfg and pings it. The bucket need not exist yet;
// call EnsureBucket before writing.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := miniosdk.New(cfg.Endpoint, &miniosdk.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid object store endpoint", err)
	}

	d := &Driver{client: client, bucket: cfg.Bucket, region: cfg.Region}
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Ping probes the configured bucket rather than listing every bucket, so
// credentials scoped to one bucket are enough.
func (d *Driver) Ping(ctx context.Context) error {
	_, err := d.client.BucketExists(ctx, d.bucket)
	return mapError(err, "object store unreachable")
}

func (d *Driver) Close() error { return nil }

func (d *Driver) EnsureBucket(ctx context.Context, bucket string) error {
	ok, err := d.client.BucketExists(ctx, bucket)
	if err != nil {
		return mapError(err, "check bucket "+bucket)
	}
	if ok {
		return nil
	}
	err = d.client.MakeBucket(ctx, bucket, miniosdk.MakeBucketOptions{Region: d.region})
	if err != nil {
		// Another writer may have created it in between.
		var resp miniosdk.ErrorResponse
		if asResponse(err, &resp) && resp.Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return mapError(err, "create bucket "+bucket)
	}
	return nil
}

func (d *Driver) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	up, err := d.client.PutObject(ctx, bucket, key, body, size, miniosdk.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return nil, mapError(err, "put "+key)
	}
	return &filestore.ObjectInfo{
		Key:          up.Key,
		Size:         up.Size,
		ContentType:  opts.ContentType,
		LastModified: up.LastModified,
	}, nil
}

func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	// Cancelling stops the SDK's listing goroutine when we stop early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]filestore.ObjectInfo, 0)
	for obj := range d.client.ListObjects(ctx, bucket, miniosdk.ListObjectsOptions{
		Prefix:    opts.Prefix,
		Recursive: opts.Recursive,
	}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "list "+bucket)
		}
		info := filestore.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		}
		if strings.HasSuffix(obj.Key, "/") {
			info.IsDir, info.Size = true, -1
		}
		out = append(out, info)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// GetObject stats eagerly so a missing key fails here rather than on the
// first Read.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	obj, err := d.client.GetObject(ctx, bucket, key, miniosdk.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "get "+key)
	}
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, mapError(err, "get "+key)
	}
	return &object{ReadCloser: obj, info: filestore.ObjectInfo{
		Key:          key,
		Size:         st.Size,
		ContentType:  st.ContentType,
		LastModified: st.LastModified,
	}}, nil
}

var _ filestore.Store = (*Driver)(nil)

type object struct {
	io.ReadCloser
	info filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo { return &o.info }
