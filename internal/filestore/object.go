package filestore

import (
	"io"
	"time"
)

// ObjectInfo describes a stored object, or a virtual directory when IsDir
// is set (Size is then -1).
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	IsDir        bool
}

// Object streams an object's body. Callers must Close it.
type Object interface {
	io.ReadCloser
	Info() *ObjectInfo
}

// ListOptions filters ListObjects. Without Recursive, keys below the next
// "/" after Prefix collapse into one IsDir entry. Limit 0 is unbounded.
type ListOptions struct {
	Prefix    string
	Recursive bool
	Limit     int
}

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}
