package changeset

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/koustreak/pgedit/internal/errs"
)

// Values maps column names to cell values and remembers insertion order.
// Generated statements list columns in that order.
//
// A nil *Values is an empty, read-only mapping.
type Values struct {
	m *orderedmap.OrderedMap[string, any]
}

// NewValues returns an empty mapping.
func NewValues() *Values {
	return &Values{m: orderedmap.New[string, any]()}
}

// Set assigns col, keeping its original position if it already exists.
func (v *Values) Set(col string, val any) *Values {
	if v.m == nil {
		v.m = orderedmap.New[string, any]()
	}
	v.m.Set(col, val)
	return v
}

// Get returns the value for col.
func (v *Values) Get(col string) (any, bool) {
	if v == nil || v.m == nil {
		return nil, false
	}
	return v.m.Get(col)
}

// Len is the number of columns.
func (v *Values) Len() int {
	if v == nil || v.m == nil {
		return 0
	}
	return v.m.Len()
}

// Keys returns column names in insertion order.
func (v *Values) Keys() []string {
	keys := make([]string, 0, v.Len())
	v.Each(func(col string, _ any) { keys = append(keys, col) })
	return keys
}

// Each calls fn for every column in insertion order.
func (v *Values) Each(fn func(col string, val any)) {
	if v == nil || v.m == nil {
		return
	}
	for p := v.m.Oldest(); p != nil; p = p.Next() {
		fn(p.Key, p.Value)
	}
}

// MarshalJSON writes an object whose keys keep insertion order.
func (v *Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var err error
	v.Each(func(col string, val any) {
		if err != nil {
			return
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		var k, b []byte
		if k, err = json.Marshal(col); err != nil {
			return
		}
		if b, err = json.Marshal(val); err != nil {
			return
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(b)
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping key order. Integral numbers
// decode as int64, other numbers as float64; nested objects and arrays
// (JSON cell values) become map[string]any and []any.
func (v *Values) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "row values must be a JSON object", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errs.New(errs.ErrKindInvalidInput, "row values must be a JSON object")
	}

	v.m = orderedmap.New[string, any]()
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "malformed row values", err)
		}
		key, _ := kt.(string)
		val, err := decodeValue(dec)
		if err != nil {
			return err
		}
		v.m.Set(key, val)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return errs.Wrap(errs.ErrKindInvalidInput, "malformed row values", err)
	}
	return nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed row values", err)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := make(map[string]any)
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed row values", err)
				}
				key, _ := kt.(string)
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj[key] = val
			}
			if _, err := dec.Token(); err != nil {
				return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed row values", err)
			}
			return obj, nil
		case '[':
			arr := make([]any, 0)
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed row values", err)
			}
			return arr, nil
		}
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unexpected %q in row values", t)
	case json.Number:
		return numberValue(t), nil
	default:
		// string, bool, nil
		return t, nil
	}
}

// numberValue maps a JSON number to int64 when it is integral and fits,
// to its digit string when integral but too large, otherwise float64.
func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return s
}
