package browse

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/koustreak/pgedit/internal/schema"
	"github.com/koustreak/pgedit/internal/sqlcodec"
)

// converter turns one raw driver value into its display form.
type converter func(v any) (any, error)

// tryConvert applies fn and falls back to the raw value when fn fails.
// A single bad column never fails the row.
func tryConvert(v any, fn converter) any {
	out, err := fn(v)
	if err != nil {
		return v
	}
	return out
}

// NormalizeRow returns a copy of row with JSON text parsed, array text
// split into slices, and UUID bytes rendered canonically. Columns not in
// the metadata pass through.
func NormalizeRow(md *schema.TableMetadata, row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	for i := range md.Columns {
		col := &md.Columns[i]
		v, ok := out[col.Name]
		if !ok || v == nil {
			continue
		}
		if fn := converterFor(col); fn != nil {
			out[col.Name] = tryConvert(v, fn)
		}
	}
	return out
}

func converterFor(col *schema.ColumnDefinition) converter {
	if col.IsArray() {
		return arrayConverter(col.BaseType())
	}
	switch sqlcodec.FamilyOf(col.Type) {
	case sqlcodec.FamilyJSON:
		return parseJSON
	case sqlcodec.FamilyUUID:
		return formatUUID
	}
	return nil
}

func parseJSON(v any) (any, error) {
	var raw []byte
	switch t := v.(type) {
	case string:
		raw = []byte(t)
	case []byte:
		raw = t
	default:
		return v, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func arrayConverter(elementType string) converter {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		return sqlcodec.ParseArrayLiteral(s, elementType)
	}
}

func formatUUID(v any) (any, error) {
	switch t := v.(type) {
	case [16]byte:
		return uuid.UUID(t).String(), nil
	case []byte:
		u, err := uuid.FromBytes(t)
		if err != nil {
			return nil, err
		}
		return u.String(), nil
	case string:
		return t, nil
	}
	return nil, fmt.Errorf("unexpected uuid value %T", v)
}
