// Package prefs persists per-table grid preferences (column order,
// hidden columns, widths) in a single YAML file keyed by "schema.table".
// The contents are opaque to the read and write paths.
package prefs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/logger"
)

// TablePreferences is the stored blob for one table.
type TablePreferences struct {
	ColumnOrder   []string       `yaml:"columnOrder,omitempty" json:"columnOrder"`
	HiddenColumns []string       `yaml:"hiddenColumns,omitempty" json:"hiddenColumns"`
	ColumnWidths  map[string]int `yaml:"columnWidths,omitempty" json:"columnWidths"`
}

// Store reads and writes preferences.
type Store interface {
	Get(ctx context.Context, schema, table string) (*TablePreferences, error)
	Put(ctx context.Context, schema, table string, p *TablePreferences) error
}

// Key is the map key for a table.
func Key(schema, table string) string {
	return schema + "." + table
}

type document struct {
	Tables map[string]*TablePreferences `yaml:"tables"`
}

// FileStore keeps everything in memory and rewrites the file on each Put.
type FileStore struct {
	path string
	log  *logger.Logger

	mu     sync.RWMutex
	tables map[string]*TablePreferences
}

// Open loads path. A missing file starts empty and is created on the
// first Put.
func Open(path string, log *logger.Logger) (*FileStore, error) {
	s := &FileStore{path: path, log: logger.OrNop(log), tables: make(map[string]*TablePreferences)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, errs.Wrap(errs.ErrKindUnknown, "failed to read preferences file", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse preferences file", err)
	}
	for k, p := range doc.Tables {
		if p != nil {
			s.tables[k] = p
		}
	}
	s.log.With().Str("path", path).Int("tables", len(s.tables)).Logger().Debug("preferences loaded")
	return s, nil
}

// Get returns the stored preferences, or an empty value when none exist.
func (s *FileStore) Get(_ context.Context, schema, table string) (*TablePreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.tables[Key(schema, table)]
	if !ok {
		return &TablePreferences{}, nil
	}
	return p.clone(), nil
}

// Put replaces the preferences for a table and persists the file.
func (s *FileStore) Put(_ context.Context, schema, table string, p *TablePreferences) error {
	if p == nil {
		return errs.New(errs.ErrKindInvalidInput, "preferences are required")
	}
	for name, w := range p.ColumnWidths {
		if w < 0 {
			return errs.Newf(errs.ErrKindInvalidInput, "column %q: width must not be negative", name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := Key(schema, table)
	prev, had := s.tables[key]
	s.tables[key] = p.clone()
	if err := s.flush(); err != nil {
		if had {
			s.tables[key] = prev
		} else {
			delete(s.tables, key)
		}
		return err
	}
	return nil
}

// Tables lists the keys with stored preferences, sorted.
func (s *FileStore) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.tables))
	for k := range s.tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// flush writes via a temp file and rename. Caller holds mu.
func (s *FileStore) flush() error {
	data, err := yaml.Marshal(document{Tables: s.tables})
	if err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "failed to encode preferences", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(errs.ErrKindUnknown, "failed to create preferences directory", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "failed to write preferences", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "failed to write preferences", err)
	}
	return nil
}

func (p *TablePreferences) clone() *TablePreferences {
	out := &TablePreferences{
		ColumnOrder:   append([]string(nil), p.ColumnOrder...),
		HiddenColumns: append([]string(nil), p.HiddenColumns...),
	}
	if p.ColumnWidths != nil {
		out.ColumnWidths = make(map[string]int, len(p.ColumnWidths))
		for k, v := range p.ColumnWidths {
			out.ColumnWidths[k] = v
		}
	}
	return out
}

var _ Store = (*FileStore)(nil)
