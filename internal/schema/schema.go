package schema

import (
	"context"

	"github.com/koustreak/pgedit/internal/database"
	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/logger"
)

// Reader introspects one database.
type Reader interface {
	ListTables(ctx context.Context, schema string) ([]string, error)
	InspectTable(ctx context.Context, schema, table string) (*TableMetadata, error)
}

var _ Reader = (*PgIntrospector)(nil)

// Source yields table metadata for a logical connection.
// Fetcher always reads the catalog; Cache remembers the answer.
type Source interface {
	Fetch(ctx context.Context, connectionID, schema, table string) (*TableMetadata, error)
}

// Fetcher resolves a connection id to a live handle and introspects it.
type Fetcher struct {
	clients database.ClientProvider
	log     *logger.Logger
}

// NewFetcher creates a Fetcher. A nil log discards output.
func NewFetcher(clients database.ClientProvider, log *logger.Logger) *Fetcher {
	return &Fetcher{clients: clients, log: logger.OrNop(log)}
}

// Fetch reads fresh metadata. When no live handle exists it returns a
// ConnectionUnavailable error and no metadata.
func (f *Fetcher) Fetch(ctx context.Context, connectionID, schema, table string) (*TableMetadata, error) {
	h := f.clients.Client(ctx, connectionID)
	if h == nil {
		return nil, errs.NotConnected(connectionID)
	}

	md, err := NewPgIntrospector(h).InspectTable(ctx, schema, table)
	if err != nil {
		f.log.With().
			Str("connection", connectionID).
			Str("table", schema+"."+table).
			Err(err).
			Logger().Warn("metadata fetch failed")
		return nil, err
	}
	return md, nil
}

// ListTables lists base tables of schema on the given connection.
func (f *Fetcher) ListTables(ctx context.Context, connectionID, schema string) ([]string, error) {
	h := f.clients.Client(ctx, connectionID)
	if h == nil {
		return nil, errs.NotConnected(connectionID)
	}
	return NewPgIntrospector(h).ListTables(ctx, schema)
}

var _ Source = (*Fetcher)(nil)
