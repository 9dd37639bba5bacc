package sqlcodec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/koustreak/pgedit/internal/errs"
)

// ParseArrayLiteral parses Postgres's brace-delimited array text format,
// e.g. {a,b,"c,d",NULL}, into a native slice.
//
// Inside quoted elements a backslash escapes the next character and a doubled
// quote stands for one quote. The unquoted token NULL (case-sensitive) becomes
// nil. Unquoted elements are trimmed and cast by elementType: integers to
// int64, numerics to float64, booleans to bool; everything else stays a
// string. A cast that fails leaves the trimmed string in place. Nested arrays
// become nested []any.
func ParseArrayLiteral(literal, elementType string) ([]any, error) {
	s := strings.TrimSpace(literal)
	// optional dimension decoration: [1:3]={...}
	if strings.HasPrefix(s, "[") {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "malformed array literal %q", literal)
		}
		s = strings.TrimSpace(s[eq+1:])
	}

	p := &arrayParser{src: s, family: FamilyOf(elementType)}
	out, err := p.parseArray()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("malformed array literal %q", literal), err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "malformed array literal %q: trailing input at %d", literal, p.pos)
	}
	return out, nil
}

type arrayParser struct {
	src    string
	pos    int
	family TypeFamily
}

func (p *arrayParser) skipSpace() {
	for p.pos < len(p.src) && isArraySpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *arrayParser) parseArray() ([]any, error) {
	if p.pos >= len(p.src) || p.src[p.pos] != '{' {
		return nil, fmt.Errorf("expected '{' at %d", p.pos)
	}
	p.pos++
	out := make([]any, 0)

	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '}' {
		p.pos++
		return out, nil
	}

	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated array")
		}

		var (
			elem any
			err  error
		)
		switch p.src[p.pos] {
		case '{':
			elem, err = p.parseArray()
		case '"':
			elem, err = p.parseQuoted()
		default:
			elem, err = p.parseUnquoted()
		}
		if err != nil {
			return nil, err
		}
		out = append(out, elem)

		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated array")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return out, nil
		default:
			return nil, fmt.Errorf("unexpected %q at %d", p.src[p.pos], p.pos)
		}
	}
}

func (p *arrayParser) parseQuoted() (any, error) {
	p.pos++ // opening quote
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\\':
			if p.pos+1 >= len(p.src) {
				return nil, fmt.Errorf("dangling escape at %d", p.pos)
			}
			sb.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case c == '"' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '"':
			sb.WriteByte('"')
			p.pos += 2
		case c == '"':
			p.pos++
			return sb.String(), nil
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return nil, fmt.Errorf("unterminated quoted element")
}

func (p *arrayParser) parseUnquoted() (any, error) {
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ',' || c == '}' {
			break
		}
		if c == '{' || c == '"' {
			return nil, fmt.Errorf("unexpected %q at %d", c, p.pos)
		}
		if c == '\\' && p.pos+1 < len(p.src) {
			sb.WriteByte(p.src[p.pos+1])
			p.pos += 2
			continue
		}
		sb.WriteByte(c)
		p.pos++
	}
	tok := strings.TrimSpace(sb.String())
	if tok == "" {
		return nil, fmt.Errorf("empty element at %d", p.pos)
	}
	if tok == "NULL" {
		return nil, nil
	}
	return castElement(tok, p.family), nil
}

func castElement(tok string, family TypeFamily) any {
	switch family {
	case FamilyInteger:
		if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return v
		}
	case FamilyNumeric:
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			return v
		}
	case FamilyBoolean:
		switch strings.ToLower(tok) {
		case "t", "true":
			return true
		case "f", "false":
			return false
		}
	}
	return tok
}

func isArraySpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// FormatArrayLiteral renders values in Postgres array text format. nil
// elements become NULL; strings are quoted when they would otherwise be
// ambiguous (empty, the word NULL, or containing braces, commas, quotes,
// backslashes or whitespace). Nested slices become nested arrays.
func FormatArrayLiteral(values []any) string {
	var sb strings.Builder
	writeArray(&sb, values)
	return sb.String()
}

func writeArray(sb *strings.Builder, values []any) {
	sb.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		switch e := v.(type) {
		case nil:
			sb.WriteString("NULL")
		case []any:
			writeArray(sb, e)
		case []string:
			nested := make([]any, len(e))
			for j, s := range e {
				nested[j] = s
			}
			writeArray(sb, nested)
		case bool:
			if e {
				sb.WriteString("t")
			} else {
				sb.WriteString("f")
			}
		case string:
			sb.WriteString(quoteArrayElement(e))
		default:
			sb.WriteString(quoteArrayElement(fmt.Sprint(e)))
		}
	}
	sb.WriteByte('}')
}

func quoteArrayElement(s string) string {
	if !needsArrayQuoting(s) {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func needsArrayQuoting(s string) bool {
	if s == "" || strings.EqualFold(s, "NULL") {
		return true
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{', '}', ',', '"', '\\':
			return true
		}
		if isArraySpace(s[i]) {
			return true
		}
	}
	return false
}
