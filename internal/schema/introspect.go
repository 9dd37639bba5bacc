package schema

import (
	"context"

	"github.com/koustreak/pgedit/internal/database"
	"github.com/koustreak/pgedit/internal/errs"
)

// PgIntrospector reads table structure from pg_catalog over any Querier,
// so it works on a pooled handle or inside a transaction.
type PgIntrospector struct {
	db database.Querier
}

func NewPgIntrospector(db database.Querier) *PgIntrospector {
	return &PgIntrospector{db: db}
}

// ListTables returns the base tables of schema in name order.
func (p *PgIntrospector) ListTables(ctx context.Context, schema string) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := p.db.Query(ctx, q, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindMetadataFetchFailure, "list tables", err)
	}
	tables, err := database.ScanStrings(rows)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindMetadataFetchFailure, "list tables", err)
	}
	return tables, nil
}

// InspectTable resolves columns, enum labels, primary key, index flags and
// foreign keys for one table.
func (p *PgIntrospector) InspectTable(ctx context.Context, schema, table string) (*TableMetadata, error) {
	cols, err := p.columns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %s.%s not found or has no columns", schema, table)
	}

	if err := p.attachEnums(ctx, cols); err != nil {
		return nil, err
	}

	pk, err := p.primaryKey(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	if err := p.attachIndexFlags(ctx, schema, table, cols); err != nil {
		return nil, err
	}

	if err := p.attachForeignKeys(ctx, schema, table, cols); err != nil {
		return nil, err
	}

	return &TableMetadata{
		Schema:     schema,
		Table:      table,
		Columns:    cols,
		PrimaryKey: PrimaryKeyInfo{Columns: pk},
	}, nil
}

func (p *PgIntrospector) columns(ctx context.Context, schema, table string) ([]ColumnDefinition, error) {
	const q = `
		SELECT
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			NOT a.attnotnull,
			a.atttypid::int8,
			CASE WHEN t.typcategory = 'A' THEN t.typelem::int8 ELSE 0 END
		FROM pg_attribute a
		JOIN pg_class c     ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_type t      ON t.oid = a.atttypid
		WHERE n.nspname = $1
		  AND c.relname = $2
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum`

	rows, err := p.db.Query(ctx, q, schema, table)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindMetadataFetchFailure, "fetch columns", err)
	}
	defer rows.Close()

	var cols []ColumnDefinition
	for rows.Next() {
		var col ColumnDefinition
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.TypeOID, &col.ElemOID); err != nil {
			return nil, errs.Wrap(errs.ErrKindMetadataFetchFailure, "scan column", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindMetadataFetchFailure, "fetch columns", err)
	}
	return cols, nil
}

// attachEnums looks up labels for every candidate type OID in one query.
func (p *PgIntrospector) attachEnums(ctx context.Context, cols []ColumnDefinition) error {
	seen := make(map[int64]bool)
	var oids []int64
	for _, c := range cols {
		for _, oid := range []int64{c.TypeOID, c.ElemOID} {
			if oid != 0 && !seen[oid] {
				seen[oid] = true
				oids = append(oids, oid)
			}
		}
	}
	if len(oids) == 0 {
		return nil
	}

	const q = `
		SELECT enumtypid::int8, enumlabel::text
		FROM pg_enum
		WHERE enumtypid::int8 = ANY($1::int8[])
		ORDER BY enumtypid, enumsortorder`

	rows, err := p.db.Query(ctx, q, oids)
	if err != nil {
		return errs.Wrap(errs.ErrKindMetadataFetchFailure, "fetch enum labels", err)
	}
	defer rows.Close()

	labels := make(map[int64][]string)
	for rows.Next() {
		var oid int64
		var label string
		if err := rows.Scan(&oid, &label); err != nil {
			return errs.Wrap(errs.ErrKindMetadataFetchFailure, "scan enum label", err)
		}
		labels[oid] = append(labels[oid], label)
	}
	if err := rows.Err(); err != nil {
		return errs.Wrap(errs.ErrKindMetadataFetchFailure, "fetch enum labels", err)
	}

	for i := range cols {
		if l, ok := labels[cols[i].TypeOID]; ok {
			cols[i].EnumValues = l
		} else if l, ok := labels[cols[i].ElemOID]; ok && cols[i].ElemOID != 0 {
			cols[i].EnumValues = l
		}
	}
	return nil
}

func (p *PgIntrospector) primaryKey(ctx context.Context, schema, table string) ([]string, error) {
	const q = `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_class c     ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		CROSS JOIN LATERAL unnest(i.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1
		  AND c.relname = $2
		  AND i.indisprimary
		ORDER BY k.ord`

	rows, err := p.db.Query(ctx, q, schema, table)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindMetadataFetchFailure, "fetch primary key", err)
	}
	pk, err := database.ScanStrings(rows)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindMetadataFetchFailure, "fetch primary key", err)
	}
	if pk == nil {
		pk = []string{}
	}
	return pk, nil
}

// attachIndexFlags marks columns covered by any index, and columns that are
// alone in a unique index.
func (p *PgIntrospector) attachIndexFlags(ctx context.Context, schema, table string, cols []ColumnDefinition) error {
	const q = `
		SELECT a.attname, bool_or(i.indisunique AND i.indnatts = 1)
		FROM pg_index i
		JOIN pg_class c     ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey::int2[])
		WHERE n.nspname = $1
		  AND c.relname = $2
		GROUP BY a.attname`

	rows, err := p.db.Query(ctx, q, schema, table)
	if err != nil {
		return errs.Wrap(errs.ErrKindMetadataFetchFailure, "fetch indexes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var unique bool
		if err := rows.Scan(&name, &unique); err != nil {
			return errs.Wrap(errs.ErrKindMetadataFetchFailure, "scan index", err)
		}
		for i := range cols {
			if cols[i].Name == name {
				cols[i].IsIndexed = true
				cols[i].IsUnique = unique
			}
		}
	}
	if err := rows.Err(); err != nil {
		return errs.Wrap(errs.ErrKindMetadataFetchFailure, "fetch indexes", err)
	}
	return nil
}

func (p *PgIntrospector) attachForeignKeys(ctx context.Context, schema, table string, cols []ColumnDefinition) error {
	const q = `
		SELECT a.attname, rn.nspname, rc.relname, ra.attname
		FROM pg_constraint con
		JOIN pg_class c      ON c.oid = con.conrelid
		JOIN pg_namespace n  ON n.oid = c.relnamespace
		JOIN pg_class rc     ON rc.oid = con.confrelid
		JOIN pg_namespace rn ON rn.oid = rc.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) AS k(attnum, refnum)
		JOIN pg_attribute a  ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refnum
		WHERE con.contype = 'f'
		  AND n.nspname = $1
		  AND c.relname = $2
		ORDER BY con.conname`

	rows, err := p.db.Query(ctx, q, schema, table)
	if err != nil {
		return errs.Wrap(errs.ErrKindMetadataFetchFailure, "fetch foreign keys", err)
	}
	defer rows.Close()

	for rows.Next() {
		var col string
		var ref ForeignKeyRef
		if err := rows.Scan(&col, &ref.ReferencedSchema, &ref.ReferencedTable, &ref.ReferencedColumn); err != nil {
			return errs.Wrap(errs.ErrKindMetadataFetchFailure, "scan foreign key", err)
		}
		for i := range cols {
			// a column in several foreign keys keeps the first by constraint name
			if cols[i].Name == col && cols[i].ForeignKey == nil {
				r := ref
				cols[i].ForeignKey = &r
			}
		}
	}
	if err := rows.Err(); err != nil {
		return errs.Wrap(errs.ErrKindMetadataFetchFailure, "fetch foreign keys", err)
	}
	return nil
}
