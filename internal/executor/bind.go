package executor

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/koustreak/pgedit/internal/changeset"
	"github.com/koustreak/pgedit/internal/schema"
	"github.com/koustreak/pgedit/internal/sqlcodec"
)

// bindChange returns a copy of c whose values are shaped for the driver
// according to the live column types. Preview never goes through here.
func bindChange(md *schema.TableMetadata, c changeset.GridChange) changeset.GridChange {
	if md == nil {
		return c
	}
	switch t := c.(type) {
	case *changeset.Insert:
		return &changeset.Insert{Data: bindValues(md, t.Data)}
	case *changeset.Update:
		return &changeset.Update{Data: bindValues(md, t.Data), Where: bindValues(md, t.Where)}
	case *changeset.Delete:
		return &changeset.Delete{Where: bindValues(md, t.Where)}
	}
	return c
}

func bindValues(md *schema.TableMetadata, v *changeset.Values) *changeset.Values {
	if v == nil {
		return nil
	}
	out := changeset.NewValues()
	v.Each(func(name string, val any) {
		out.Set(name, bindValue(md.Column(name), val))
	})
	return out
}

// bindValue converts one value. Unknown columns and values that need no
// conversion pass through unchanged.
func bindValue(col *schema.ColumnDefinition, v any) any {
	if col == nil || v == nil {
		return v
	}

	if col.IsArray() {
		var elems []any
		switch t := v.(type) {
		case []any:
			elems = t
		case []string:
			elems = make([]any, len(t))
			for i, s := range t {
				elems[i] = s
			}
		default:
			return v
		}
		if sqlcodec.FamilyOf(col.Type) == sqlcodec.FamilyJSON {
			elems = jsonElements(elems)
		}
		return sqlcodec.FormatArrayLiteral(elems)
	}

	switch sqlcodec.FamilyOf(col.Type) {
	case sqlcodec.FamilyJSON:
		if _, ok := v.(string); ok {
			return v
		}
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	case sqlcodec.FamilyBoolean:
		switch t := v.(type) {
		case string:
			switch strings.ToLower(t) {
			case "true", "1":
				return true
			case "false", "0":
				return false
			}
		case int64:
			return t != 0
		case int:
			return t != 0
		case float64:
			return t != 0
		}
	case sqlcodec.FamilyInteger:
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
	}
	return v
}

// jsonElements encodes each element of a json[]/jsonb[] value as JSON text so
// objects and nested arrays stay single elements instead of becoming Go
// syntax or extra array dimensions. Strings are taken as JSON text already.
func jsonElements(elems []any) []any {
	out := make([]any, len(elems))
	for i, e := range elems {
		switch e.(type) {
		case nil, string:
			out[i] = e
			continue
		}
		b, err := json.Marshal(e)
		if err != nil {
			out[i] = e
			continue
		}
		out[i] = string(b)
	}
	return out
}
