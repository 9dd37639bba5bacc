// Package validate checks change-set values against live column types
// before any statement reaches the database.
//
// It checks type shape only. Nullability and other constraints are left to
// the database, which reports them when the statement runs.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/koustreak/pgedit/internal/changeset"
	"github.com/koustreak/pgedit/internal/schema"
	"github.com/koustreak/pgedit/internal/sqlcodec"
)

var (
	integerRe = regexp.MustCompile(`^-?\d+$`)
	// date prefix only: 9999-99-99 passes and is left for the database to reject
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T|$)`)
)

// Validate returns one human-readable message per problem, in change-set
// order. An empty result means the change-set is valid.
func Validate(md *schema.TableMetadata, cs changeset.ChangeSet) []string {
	var problems []string
	for i, c := range cs {
		switch ch := c.(type) {
		case *changeset.Insert:
			problems = append(problems, checkData(md, i, ch.Data)...)
		case *changeset.Update:
			problems = append(problems, checkTarget(md, i, ch.Where)...)
			problems = append(problems, checkData(md, i, ch.Data)...)
		case *changeset.Delete:
			problems = append(problems, checkTarget(md, i, ch.Where)...)
		}
	}
	return problems
}

// checkTarget requires where to name exactly the primary-key columns.
func checkTarget(md *schema.TableMetadata, idx int, where *changeset.Values) []string {
	pk := md.PrimaryKey.Columns
	if len(pk) == 0 {
		return []string{fmt.Sprintf("change %d: table %s.%s has no primary key; rows cannot be updated or deleted", idx, md.Schema, md.Table)}
	}
	got := where.Keys()
	want := slices.Clone(pk)
	sort.Strings(got)
	sort.Strings(want)
	if !slices.Equal(got, want) {
		return []string{fmt.Sprintf("change %d: row must be identified by its primary key (%s)", idx, strings.Join(pk, ", "))}
	}
	return nil
}

func checkData(md *schema.TableMetadata, idx int, data *changeset.Values) []string {
	var problems []string
	data.Each(func(name string, val any) {
		col := md.Column(name)
		if col == nil {
			return
		}
		if msg := CheckValue(col, val); msg != "" {
			problems = append(problems, fmt.Sprintf("change %d: column %q: %s", idx, name, msg))
		}
	})
	return problems
}

// CheckValue returns why val cannot be stored in col, or "" when it can.
func CheckValue(col *schema.ColumnDefinition, val any) string {
	if val == nil {
		return ""
	}
	family := sqlcodec.FamilyOf(col.Type)
	if family == sqlcodec.FamilyJSON && !col.IsArray() {
		return ""
	}

	if col.IsArray() {
		elems, ok := asSlice(val)
		if !ok {
			return fmt.Sprintf("expected an array for %s, got %s", col.Type, describe(val))
		}
		if col.IsEnum() {
			for _, e := range elems {
				if e == nil {
					continue
				}
				if !isLabel(col.EnumValues, e) {
					return fmt.Sprintf("array element %s is not a valid %s (expected one of: %s)",
						describe(e), col.BaseType(), strings.Join(col.EnumValues, ", "))
				}
			}
		}
		return ""
	}

	if col.IsEnum() {
		if !isLabel(col.EnumValues, val) {
			return fmt.Sprintf("value %s is not a valid %s (expected one of: %s)",
				describe(val), col.BaseType(), strings.Join(col.EnumValues, ", "))
		}
		return ""
	}

	switch family {
	case sqlcodec.FamilyInteger:
		if !isInteger(val) {
			return fmt.Sprintf("expected an integer for %s, got %s", col.Type, describe(val))
		}
	case sqlcodec.FamilyNumeric:
		if !isNumeric(val) {
			return fmt.Sprintf("expected a number for %s, got %s", col.Type, describe(val))
		}
	case sqlcodec.FamilyTemporal:
		if !isDateLike(val) {
			return fmt.Sprintf("expected a date (YYYY-MM-DD) for %s, got %s", col.Type, describe(val))
		}
	case sqlcodec.FamilyUUID:
		if !isUUID(val) {
			return fmt.Sprintf("expected a UUID for %s, got %s", col.Type, describe(val))
		}
	case sqlcodec.FamilyBoolean:
		if !isBoolean(val) {
			return fmt.Sprintf("expected a boolean for %s, got %s", col.Type, describe(val))
		}
	}
	return ""
}

func isLabel(labels []string, v any) bool {
	s, ok := v.(string)
	return ok && slices.Contains(labels, s)
}

func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func isInteger(v any) bool {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return t == math.Trunc(t) && !math.IsInf(t, 0)
	case float32:
		f := float64(t)
		return f == math.Trunc(f) && !math.IsInf(f, 0)
	case json.Number:
		return integerRe.MatchString(t.String())
	case string:
		return integerRe.MatchString(t)
	}
	return false
}

func isNumeric(v any) bool {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return !math.IsNaN(float64(t)) && !math.IsInf(float64(t), 0)
	case float64:
		return !math.IsNaN(t) && !math.IsInf(t, 0)
	case decimal.Decimal:
		return true
	case json.Number:
		_, err := decimal.NewFromString(t.String())
		return err == nil
	case string:
		_, err := decimal.NewFromString(strings.TrimSpace(t))
		return err == nil
	}
	return false
}

func isDateLike(v any) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case string:
		return dateRe.MatchString(t)
	}
	return false
}

func isUUID(v any) bool {
	switch t := v.(type) {
	case uuid.UUID:
		return true
	case string:
		// uuid.Parse also takes urn and braced forms; only the 36-char
		// canonical layout is accepted here
		if len(t) != 36 {
			return false
		}
		_, err := uuid.Parse(t)
		return err == nil
	}
	return false
}

func isBoolean(v any) bool {
	switch t := v.(type) {
	case bool:
		return true
	case int:
		return t == 0 || t == 1
	case int64:
		return t == 0 || t == 1
	case float64:
		return t == 0 || t == 1
	case string:
		switch strings.ToLower(t) {
		case "true", "false", "1", "0":
			return true
		}
	}
	return false
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case nil:
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
