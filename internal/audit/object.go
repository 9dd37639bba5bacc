package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/filestore"
)

const contentTypeJSON = "application/json"

// ObjectSink stores each record as a JSON object under
// <prefix>/YYYY/MM/DD/<id>.json.
type ObjectSink struct {
	store  filestore.Store
	bucket string
	prefix string
}

// NewObjectSink writes to bucket on store. prefix may be empty.
func NewObjectSink(store filestore.Store, bucket, prefix string) *ObjectSink {
	return &ObjectSink{store: store, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *ObjectSink) key(rec Record) string {
	return path.Join(s.prefix, rec.At.Format("2006/01/02"), rec.ID.String()+".json")
}

func (s *ObjectSink) Record(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "encode audit record", err)
	}
	_, err = s.store.PutObject(ctx, s.bucket, s.key(rec), bytes.NewReader(body), int64(len(body)), filestore.PutOptions{
		ContentType: contentTypeJSON,
		Metadata: map[string]string{
			"state":  rec.State,
			"bypass": strconv.FormatBool(rec.BypassValidation),
		},
	})
	return err
}

// List returns records stored under day ("2006/01/02"), or every record
// when day is empty, oldest key first.
func (s *ObjectSink) List(ctx context.Context, day string, limit int) ([]Record, error) {
	prefix := s.prefix
	if day != "" {
		prefix = path.Join(prefix, day)
	}
	if prefix != "" {
		prefix += "/"
	}

	objs, err := s.store.ListObjects(ctx, s.bucket, filestore.ListOptions{Prefix: prefix, Recursive: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })

	out := make([]Record, 0, len(objs))
	for _, o := range objs {
		if o.IsDir || !strings.HasSuffix(o.Key, ".json") {
			continue
		}
		rec, err := s.read(ctx, o.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get loads one record by id, searching under day.
func (s *ObjectSink) Get(ctx context.Context, day string, id uuid.UUID) (Record, error) {
	return s.read(ctx, path.Join(s.prefix, day, id.String()+".json"))
}

func (s *ObjectSink) read(ctx context.Context, key string) (Record, error) {
	obj, err := s.store.GetObject(ctx, s.bucket, key)
	if err != nil {
		return Record{}, err
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return Record{}, errs.Wrap(errs.ErrKindQueryFailed, "read audit record", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, errs.Wrap(errs.ErrKindInvalidInput, "decode audit record "+key, err)
	}
	return rec, nil
}
