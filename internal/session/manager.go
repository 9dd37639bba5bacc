package session

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/koustreak/pgedit/internal/browse"
	"github.com/koustreak/pgedit/internal/database"
	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/executor"
	"github.com/koustreak/pgedit/internal/logger"
	"github.com/koustreak/pgedit/internal/schema"
)

// Manager is the registry of open views.
type Manager struct {
	clients  database.ClientProvider
	metadata schema.Source
	exec     *executor.Executor
	pageSize int
	log      *logger.Logger

	mu    sync.RWMutex
	views map[string]*View
}

// Option customises a Manager.
type Option func(*Manager)

// WithPageSize sets the page size of new views.
func WithPageSize(n int) Option {
	return func(m *Manager) { m.pageSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = logger.OrNop(l) }
}

// NewManager creates a registry. metadata is the uncached source each
// view wraps in its own cache; exec runs change-sets.
func NewManager(clients database.ClientProvider, metadata schema.Source, exec *executor.Executor, opts ...Option) *Manager {
	m := &Manager{
		clients:  clients,
		metadata: metadata,
		exec:     exec,
		pageSize: browse.DefaultPageSize,
		log:      logger.Nop(),
		views:    make(map[string]*View),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Open creates a view and resolves its metadata once. An unreachable
// connection or a missing table is reported and no view is kept.
func (m *Manager) Open(ctx context.Context, connectionID, schemaName, table string) (*View, *schema.TableMetadata, error) {
	if schemaName == "" || table == "" {
		return nil, nil, errs.New(errs.ErrKindInvalidInput, "schema and table are required")
	}

	id := uuid.NewString()
	v := &View{
		ID:           id,
		ConnectionID: connectionID,
		Schema:       schemaName,
		Table:        table,
		clients:      m.clients,
		cache:        schema.NewCache(m.metadata),
		exec:         m.exec,
		log: m.log.With().
			Str("view", id).
			Str("connection", connectionID).
			Str("table", schemaName+"."+table).
			Logger(),
		state: browse.ViewState{PageSize: m.pageSize},
	}

	md, err := v.Metadata(ctx)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	m.views[id] = v
	m.mu.Unlock()
	v.log.Debug("view opened")
	return v, md, nil
}

// Get returns an open view.
func (m *Manager) Get(id string) (*View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.views[id]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "view %s not found", id)
	}
	return v, nil
}

// Close disposes a view and its cache.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	v, ok := m.views[id]
	delete(m.views, id)
	m.mu.Unlock()
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "view %s not found", id)
	}
	v.Close()
	v.log.Debug("view closed")
	return nil
}

// CloseAll disposes every view.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	views := m.views
	m.views = make(map[string]*View)
	m.mu.Unlock()
	for _, v := range views {
		v.Close()
	}
}

// IDs lists open view ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.views))
	for id := range m.views {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
