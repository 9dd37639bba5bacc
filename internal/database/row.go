package database

import "github.com/koustreak/pgedit/internal/errs"

// Collect drains rows, decoding each one with scan, and always closes rows.
// The result is non-nil even when no rows match.
func Collect[T any](rows Rows, scan func(Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "scan row", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "read rows", err)
	}
	return out, nil
}

// ScanMaps decodes every row into a column-name keyed map holding the
// driver's native values.
func ScanMaps(rows Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "read column names", err)
	}
	return Collect(rows, func(r Rows) (map[string]any, error) {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := r.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			m[c] = vals[i]
		}
		return m, nil
	})
}

// ScanStrings decodes a single text column.
func ScanStrings(rows Rows) ([]string, error) {
	return Collect(rows, func(r Rows) (string, error) {
		var s string
		err := r.Scan(&s)
		return s, err
	})
}
