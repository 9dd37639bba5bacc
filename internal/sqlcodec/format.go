package sqlcodec

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Quoted identifiers and string literals are matched whole so a "$1" inside
// them is never treated as a placeholder.
var placeholderRe = regexp.MustCompile(`"(?:[^"]|"")*"|'(?:[^']|'')*'|\$\d+`)

// FormatSQLWithValues inlines values into query's $n placeholders for human
// preview. The result must never be executed: it is a best-effort rendering.
//
// Strings are single-quoted with embedded quotes doubled; maps and slices are
// JSON-encoded and then quoted; numbers and booleans are written bare; nil is
// NULL. A placeholder without a matching value is left as is.
func FormatSQLWithValues(query string, values []any) string {
	return placeholderRe.ReplaceAllStringFunc(query, func(m string) string {
		if m[0] != '$' {
			return m
		}
		n, err := strconv.Atoi(m[1:])
		if err != nil || n < 1 || n > len(values) {
			return m
		}
		return FormatLiteral(values[n-1])
	})
}

// FormatLiteral renders a single value as SQL literal text for previews.
func FormatLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case string:
		return quoteLiteral(x)
	case []byte:
		return quoteLiteral(string(x))
	case time.Time:
		return quoteLiteral(x.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return quoteLiteral(x.String())
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return quoteLiteral(fmt.Sprintf("%v", x))
		}
		return quoteLiteral(string(b))
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
