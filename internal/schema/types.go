package schema

import "github.com/koustreak/pgedit/internal/sqlcodec"

// ForeignKeyRef points at the column a foreign key references.
type ForeignKeyRef struct {
	ReferencedSchema string `json:"referencedSchema"`
	ReferencedTable  string `json:"referencedTable"`
	ReferencedColumn string `json:"referencedColumn"`
}

// ColumnDefinition describes a single column in a table
type ColumnDefinition struct {
	Name      string `json:"name"`
	Type      string `json:"type"` // format_type output, e.g. "integer", "user_role[]"
	Nullable  bool   `json:"nullable"`
	IsUnique  bool   `json:"isUnique"`
	IsIndexed bool   `json:"isIndexed"`

	// EnumValues is set only when the column's type, or its array element
	// type, resolved to a pg_enum type. Labels are in enumsortorder.
	EnumValues []string       `json:"enumValues,omitempty"`
	ForeignKey *ForeignKeyRef `json:"foreignKey,omitempty"`

	TypeOID int64 `json:"-"`
	ElemOID int64 `json:"-"` // zero unless the column is an array
}

// IsArray reports whether the column holds a Postgres array.
func (c *ColumnDefinition) IsArray() bool {
	return c.ElemOID != 0 || sqlcodec.IsArrayType(c.Type)
}

// BaseType is the column type with any array marker and modifiers removed.
func (c *ColumnDefinition) BaseType() string {
	return sqlcodec.BaseType(c.Type)
}

// IsEnum reports whether enum labels were resolved for the column.
func (c *ColumnDefinition) IsEnum() bool {
	return len(c.EnumValues) > 0
}

// PrimaryKeyInfo lists primary-key columns in catalog-declared order.
type PrimaryKeyInfo struct {
	Columns []string `json:"columns"`
}

// TableMetadata is everything the editor needs to know about one table.
type TableMetadata struct {
	Schema     string             `json:"schema"`
	Table      string             `json:"table"`
	Columns    []ColumnDefinition `json:"columns"`
	PrimaryKey PrimaryKeyInfo     `json:"primaryKey"`
}

// Column returns the named column, or nil.
func (m *TableMetadata) Column(name string) *ColumnDefinition {
	for i := range m.Columns {
		if m.Columns[i].Name == name {
			return &m.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns column names in ordinal order.
func (m *TableMetadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// Editable reports whether rows can be targeted by UPDATE and DELETE.
func (m *TableMetadata) Editable() bool {
	return len(m.PrimaryKey.Columns) > 0
}
