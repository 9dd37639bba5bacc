// Package sqlcodec holds the pure SQL text helpers shared by the read and
// write paths: identifier quoting, Postgres array literal parsing and
// formatting, and the display-only statement inliner used for previews.
//
// Nothing in this package touches a database.
package sqlcodec

import (
	"strings"

	"github.com/koustreak/pgedit/internal/errs"
)

// QuoteIdentifier wraps name in double quotes and doubles any embedded
// double quote, so `a"b` becomes `"a""b"`.
//
// An empty or whitespace-only name is an error; an identifier is never
// silently dropped from a statement.
func QuoteIdentifier(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "identifier must not be empty")
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, nil
}

// QuoteIdentifiers quotes each name in order.
func QuoteIdentifiers(names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		q, err := QuoteIdentifier(n)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

// QualifiedName returns "schema"."table".
func QualifiedName(schema, table string) (string, error) {
	qs, err := QuoteIdentifier(schema)
	if err != nil {
		return "", errs.New(errs.ErrKindInvalidInput, "schema name must not be empty")
	}
	qt, err := QuoteIdentifier(table)
	if err != nil {
		return "", errs.New(errs.ErrKindInvalidInput, "table name must not be empty")
	}
	return qs + "." + qt, nil
}
