package sqlcodec

import "strings"

// TypeFamily groups Postgres type names by the casting and validation rules
// that apply to them.
type TypeFamily int

const (
	FamilyOther TypeFamily = iota
	FamilyInteger
	FamilyNumeric
	FamilyBoolean
	FamilyJSON
	FamilyTemporal
	FamilyUUID
	FamilyText
)

// IsArrayType reports whether a formatted type name carries an array marker.
func IsArrayType(typ string) bool {
	return strings.HasSuffix(strings.TrimSpace(typ), "[]")
}

// BaseType strips every trailing "[]" and any type modifier, lower-cased:
// "character varying(20)[]" -> "character varying".
func BaseType(typ string) string {
	t := strings.ToLower(strings.TrimSpace(typ))
	for strings.HasSuffix(t, "[]") {
		t = strings.TrimSpace(strings.TrimSuffix(t, "[]"))
	}
	if i := strings.IndexByte(t, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(t[i:], ')'); j >= 0 {
			rest = t[i+j+1:]
		}
		t = strings.TrimSpace(t[:i] + rest)
	}
	// format_type quotes mixed-case names of user types
	return strings.Trim(t, `"`)
}

// FamilyOf classifies a type name (array marker ignored).
func FamilyOf(typ string) TypeFamily {
	base := BaseType(typ)
	switch base {
	case "smallint", "integer", "bigint", "int", "int2", "int4", "int8",
		"smallserial", "serial", "bigserial", "serial2", "serial4", "serial8":
		return FamilyInteger
	case "numeric", "decimal", "real", "double precision", "float4", "float8", "money":
		return FamilyNumeric
	case "boolean", "bool":
		return FamilyBoolean
	case "json", "jsonb":
		return FamilyJSON
	case "uuid":
		return FamilyUUID
	case "date", "timestamp", "timestamptz", "time", "timetz",
		"timestamp without time zone", "timestamp with time zone",
		"time without time zone", "time with time zone":
		return FamilyTemporal
	case "text", "character varying", "varchar", "character", "char", "bpchar", "name", "citext":
		return FamilyText
	}
	return FamilyOther
}
