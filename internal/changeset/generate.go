package changeset

import (
	"fmt"
	"strings"

	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/sqlcodec"
)

// Statement is one parameterized DML statement. Only quoted identifiers
// are ever written into Query; every data value travels in Values.
type Statement struct {
	Query  string `json:"query"`
	Values []any  `json:"values"`
}

// Generate translates one change into exactly one statement against
// schema.table. It performs no validation.
func Generate(schema, table string, change GridChange) (Statement, error) {
	target, err := sqlcodec.QualifiedName(schema, table)
	if err != nil {
		return Statement{}, err
	}

	switch c := change.(type) {
	case *Insert:
		return generateInsert(target, c)
	case *Update:
		return generateUpdate(target, c)
	case *Delete:
		return generateDelete(target, c)
	case nil:
		return Statement{}, errs.New(errs.ErrKindInvalidInput, "nil change")
	}
	return Statement{}, errs.Newf(errs.ErrKindInvalidInput, "unsupported change %T", change)
}

// GenerateAll generates one statement per change, in change-set order.
func GenerateAll(schema, table string, cs ChangeSet) ([]Statement, error) {
	out := make([]Statement, 0, len(cs))
	for i, c := range cs {
		st, err := Generate(schema, table, c)
		if err != nil {
			return nil, errs.Wrap(errs.KindOf(err), fmt.Sprintf("change %d: %s", i, errs.UserMessage(err)), err)
		}
		out = append(out, st)
	}
	return out, nil
}

func generateInsert(target string, c *Insert) (Statement, error) {
	if c.Data.Len() == 0 {
		return Statement{Query: "INSERT INTO " + target + " DEFAULT VALUES", Values: []any{}}, nil
	}

	cols := make([]string, 0, c.Data.Len())
	phs := make([]string, 0, c.Data.Len())
	values := make([]any, 0, c.Data.Len())
	var err error
	c.Data.Each(func(col string, val any) {
		if err != nil {
			return
		}
		var q string
		if q, err = sqlcodec.QuoteIdentifier(col); err != nil {
			return
		}
		values = append(values, val)
		cols = append(cols, q)
		phs = append(phs, fmt.Sprintf("$%d", len(values)))
	})
	if err != nil {
		return Statement{}, err
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", target, strings.Join(cols, ", "), strings.Join(phs, ", "))
	return Statement{Query: query, Values: values}, nil
}

func generateUpdate(target string, c *Update) (Statement, error) {
	if c.Data.Len() == 0 {
		return Statement{}, errs.New(errs.ErrKindInvalidInput, "update needs at least one changed column")
	}
	if c.Where.Len() == 0 {
		return Statement{}, errs.New(errs.ErrKindInvalidInput, "update needs a primary-key where")
	}

	var values []any
	set, err := assignments(c.Data, &values)
	if err != nil {
		return Statement{}, err
	}
	where, err := assignments(c.Where, &values)
	if err != nil {
		return Statement{}, err
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", target, strings.Join(set, ", "), strings.Join(where, " AND "))
	return Statement{Query: query, Values: values}, nil
}

func generateDelete(target string, c *Delete) (Statement, error) {
	if c.Where.Len() == 0 {
		return Statement{}, errs.New(errs.ErrKindInvalidInput, "delete needs a primary-key where")
	}

	var values []any
	where, err := assignments(c.Where, &values)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Query: fmt.Sprintf("DELETE FROM %s WHERE %s", target, strings.Join(where, " AND ")), Values: values}, nil
}

// assignments renders `"col" = $n` for each column, numbering from the
// current length of values so placeholders continue across clauses.
func assignments(v *Values, values *[]any) ([]string, error) {
	parts := make([]string, 0, v.Len())
	var err error
	v.Each(func(col string, val any) {
		if err != nil {
			return
		}
		var q string
		if q, err = sqlcodec.QuoteIdentifier(col); err != nil {
			return
		}
		*values = append(*values, val)
		parts = append(parts, fmt.Sprintf("%s = $%d", q, len(*values)))
	})
	return parts, err
}

// Preview renders statements for display with values inlined, one per
// line, each terminated by a semicolon. Never executed.
func Preview(stmts []Statement) string {
	lines := make([]string, len(stmts))
	for i, st := range stmts {
		lines[i] = sqlcodec.FormatSQLWithValues(st.Query, st.Values) + ";"
	}
	return strings.Join(lines, "\n")
}
