// Package schematest builds table fixtures for tests: scripted catalog
// responses on a dbtest.Handle, or a static metadata Source.
package schematest

import (
	"context"
	"sync/atomic"

	"github.com/koustreak/pgedit/internal/database/dbtest"
	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/schema"
)

// Script registers catalog answers describing md on h. Enum columns get
// synthetic type OIDs; array columns an element OID.
func Script(h *dbtest.Handle, md *schema.TableMetadata) *dbtest.Handle {
	var colRows, enumRows, idxRows, fkRows, pkRows [][]any
	nextOID := int64(90000)

	for _, c := range md.Columns {
		typeOID, elemOID := c.TypeOID, c.ElemOID
		if typeOID == 0 {
			nextOID++
			typeOID = nextOID
		}
		if c.IsArray() && elemOID == 0 {
			nextOID++
			elemOID = nextOID
		}
		colRows = append(colRows, []any{c.Name, c.Type, c.Nullable, typeOID, elemOID})

		if len(c.EnumValues) > 0 {
			enumOID := typeOID
			if c.IsArray() {
				enumOID = elemOID
			}
			for _, l := range c.EnumValues {
				enumRows = append(enumRows, []any{enumOID, l})
			}
		}
		if c.IsIndexed || c.IsUnique {
			idxRows = append(idxRows, []any{c.Name, c.IsUnique})
		}
		if fk := c.ForeignKey; fk != nil {
			fkRows = append(fkRows, []any{c.Name, fk.ReferencedSchema, fk.ReferencedTable, fk.ReferencedColumn})
		}
	}
	for _, k := range md.PrimaryKey.Columns {
		pkRows = append(pkRows, []any{k})
	}

	h.On("format_type(", []string{"attname", "format_type", "nullable", "typoid", "elemoid"}, colRows...)
	h.On("FROM pg_enum", []string{"enumtypid", "enumlabel"}, enumRows...)
	h.On("indisprimary", []string{"attname"}, pkRows...)
	h.On("indnatts", []string{"attname", "is_unique"}, idxRows...)
	h.On("contype = 'f'", []string{"attname", "nspname", "relname", "attname"}, fkRows...)
	return h
}

// Users is the public.users fixture: id int PK, name text, role user_role.
func Users() *schema.TableMetadata {
	return &schema.TableMetadata{
		Schema: "public",
		Table:  "users",
		Columns: []schema.ColumnDefinition{
			{Name: "id", Type: "integer", IsUnique: true, IsIndexed: true},
			{Name: "name", Type: "text", Nullable: true},
			{Name: "role", Type: "user_role", Nullable: true, EnumValues: []string{"admin", "member"}},
		},
		PrimaryKey: schema.PrimaryKeyInfo{Columns: []string{"id"}},
	}
}

// Source is a static schema.Source that counts calls.
type Source struct {
	Tables map[string]*schema.TableMetadata // keyed by "schema.table"
	Err    error
	calls  atomic.Int64
}

// NewSource serves the given tables.
func NewSource(tables ...*schema.TableMetadata) *Source {
	s := &Source{Tables: make(map[string]*schema.TableMetadata)}
	for _, t := range tables {
		s.Tables[t.Schema+"."+t.Table] = t
	}
	return s
}

func (s *Source) Fetch(_ context.Context, _ string, schemaName, table string) (*schema.TableMetadata, error) {
	s.calls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	md, ok := s.Tables[schemaName+"."+table]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %s.%s not found or has no columns", schemaName, table)
	}
	return md, nil
}

// Calls reports how many times Fetch ran.
func (s *Source) Calls() int {
	return int(s.calls.Load())
}
