// Package memstore is an in-memory filestore.Store for tests and for
// running without object storage.
package memstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/filestore"
)

type entry struct {
	data []byte
	info filestore.ObjectInfo
}

// Store keeps objects in memory, keyed by bucket then key.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]entry
}

// New returns an empty store.
func New() *Store {
	return &Store{buckets: make(map[string]map[string]entry)}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) EnsureBucket(_ context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = make(map[string]entry)
	}
	return nil
}

func (s *Store) PutObject(_ context.Context, bucket, key string, body io.Reader, _ int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read object body", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "bucket %q does not exist", bucket)
	}
	info := filestore.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		LastModified: time.Now().UTC(),
	}
	b[key] = entry{data: data, info: info}
	return &info, nil
}

func (s *Store) ListObjects(_ context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "bucket %q does not exist", bucket)
	}

	keys := make([]string, 0, len(b))
	for k := range b {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []filestore.ObjectInfo
	seenDirs := make(map[string]bool)
	for _, k := range keys {
		if !opts.Recursive {
			if i := strings.IndexByte(k[len(opts.Prefix):], '/'); i >= 0 {
				dir := k[:len(opts.Prefix)+i+1]
				if !seenDirs[dir] {
					seenDirs[dir] = true
					out = append(out, filestore.ObjectInfo{Key: dir, Size: -1, IsDir: true})
				}
				continue
			}
		}
		out = append(out, b[k].info)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetObject(_ context.Context, bucket, key string) (filestore.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.buckets[bucket][key]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "object %s/%s not found", bucket, key)
	}
	info := e.info
	return &object{ReadCloser: io.NopCloser(bytes.NewReader(e.data)), info: &info}, nil
}

var _ filestore.Store = (*Store)(nil)

type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo { return o.info }
