package browse

import (
	"fmt"
	"strings"

	"github.com/koustreak/pgedit/internal/schema"
	"github.com/koustreak/pgedit/internal/sqlcodec"
)

// SortDirection controls the ORDER BY direction.
type SortDirection string

const (
	Asc  SortDirection = "ASC"
	Desc SortDirection = "DESC"
)

// ParseDirection accepts "asc"/"desc" in any case.
func ParseDirection(s string) (SortDirection, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ASC":
		return Asc, true
	case "DESC":
		return Desc, true
	}
	return "", false
}

// Query is a parameterized statement ready for a Querier.
type Query struct {
	SQL  string
	Args []any
}

// SelectBuilder constructs the page and count queries for one table view.
// Values are never interpolated into the SQL string, always passed as args.
//
// Usage:
//
//	page, count, err := NewSelect(md).
//	    Filters(map[string]string{"name": "jo"}).
//	    Search("42").
//	    OrderBy("name", Desc).
//	    Limit(100).
//	    Offset(200).
//	    Build()
type SelectBuilder struct {
	md      *schema.TableMetadata
	filters map[string]string
	search  string
	orderBy *Sort
	limit   *int
	offset  *int
}

// NewSelect starts a builder over the live column metadata of a table.
func NewSelect(md *schema.TableMetadata) *SelectBuilder {
	return &SelectBuilder{md: md}
}

// Filters sets per-column substring filters. Unknown columns and empty
// values are ignored.
func (b *SelectBuilder) Filters(f map[string]string) *SelectBuilder {
	b.filters = f
	return b
}

// Search sets a term matched against every column.
func (b *SelectBuilder) Search(term string) *SelectBuilder {
	b.search = term
	return b
}

// OrderBy sorts by column. A column missing from the metadata means no sort.
func (b *SelectBuilder) OrderBy(column string, dir SortDirection) *SelectBuilder {
	b.orderBy = &Sort{Column: column, Direction: dir}
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Offset sets the number of rows to skip (for pagination).
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = &n
	return b
}

// Where renders the shared WHERE body (without the keyword) and its args.
// Filters come first in column order, then the search group, joined by AND.
func (b *SelectBuilder) Where() (string, []any, error) {
	var parts []string
	var args []any

	for _, col := range b.md.Columns {
		val, ok := b.filters[col.Name]
		if !ok || val == "" {
			continue
		}
		q, err := sqlcodec.QuoteIdentifier(col.Name)
		if err != nil {
			return "", nil, err
		}
		args = append(args, "%"+val+"%")
		parts = append(parts, fmt.Sprintf("(CAST(%s AS TEXT) ILIKE $%d)", q, len(args)))
	}

	if strings.TrimSpace(b.search) != "" && len(b.md.Columns) > 0 {
		args = append(args, "%"+b.search+"%")
		ph := fmt.Sprintf("$%d", len(args))
		ors := make([]string, 0, len(b.md.Columns))
		for _, col := range b.md.Columns {
			q, err := sqlcodec.QuoteIdentifier(col.Name)
			if err != nil {
				return "", nil, err
			}
			ors = append(ors, fmt.Sprintf("CAST(%s AS TEXT) ILIKE %s", q, ph))
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}

	return strings.Join(parts, " AND "), args, nil
}

// Build produces the page query and the matching COUNT(*) query. Both
// share the WHERE clause and its parameter values.
func (b *SelectBuilder) Build() (page Query, count Query, err error) {
	from, err := sqlcodec.QualifiedName(b.md.Schema, b.md.Table)
	if err != nil {
		return Query{}, Query{}, err
	}
	cols, err := sqlcodec.QuoteIdentifiers(b.md.ColumnNames())
	if err != nil {
		return Query{}, Query{}, err
	}
	where, args, err := b.Where()
	if err != nil {
		return Query{}, Query{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(cols) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(cols, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(from)

	cb := strings.Builder{}
	cb.WriteString("SELECT COUNT(*) FROM ")
	cb.WriteString(from)

	if where != "" {
		sb.WriteString(" WHERE " + where)
		cb.WriteString(" WHERE " + where)
	}

	if b.orderBy != nil && b.md.Column(b.orderBy.Column) != nil {
		q, err := sqlcodec.QuoteIdentifier(b.orderBy.Column)
		if err != nil {
			return Query{}, Query{}, err
		}
		dir := Asc
		if b.orderBy.Direction == Desc {
			dir = Desc
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", q, dir)
	}

	pageArgs := append([]any{}, args...)
	if b.limit != nil {
		pageArgs = append(pageArgs, *b.limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(pageArgs))
	}
	if b.offset != nil {
		pageArgs = append(pageArgs, *b.offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(pageArgs))
	}

	countArgs := append([]any{}, args...)
	return Query{SQL: sb.String(), Args: pageArgs}, Query{SQL: cb.String(), Args: countArgs}, nil
}
