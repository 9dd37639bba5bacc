// Package changeset models a batch of grid edits and turns each edit into
// one parameterized DML statement.
package changeset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/koustreak/pgedit/internal/errs"
)

// Kind discriminates the GridChange variants on the wire.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// GridChange is one row-level edit: *Insert, *Update or *Delete.
type GridChange interface {
	Kind() Kind
	isGridChange()
}

// Insert adds a row. Data keys become the column list.
type Insert struct {
	Data *Values
}

// Update changes the Data columns of the row whose primary key, as it was
// displayed before the edit, is Where.
type Update struct {
	Data  *Values
	Where *Values
}

// Delete removes the row whose pre-edit primary key is Where.
type Delete struct {
	Where *Values
}

func (*Insert) Kind() Kind { return KindInsert }
func (*Update) Kind() Kind { return KindUpdate }
func (*Delete) Kind() Kind { return KindDelete }

func (*Insert) isGridChange() {}
func (*Update) isGridChange() {}
func (*Delete) isGridChange() {}

// ChangeSet is an ordered batch of edits submitted together.
type ChangeSet []GridChange

// envelope is the wire shape of one change.
type envelope struct {
	Type  Kind    `json:"type"`
	Data  *Values `json:"data,omitempty"`
	Where *Values `json:"where,omitempty"`
}

// rawEnvelope keeps payloads undecoded so presence can be checked.
type rawEnvelope struct {
	Type  Kind            `json:"type"`
	Data  json.RawMessage `json:"data"`
	Where json.RawMessage `json:"where"`
}

// DecodeChange parses one change and checks that it carries exactly the
// fields its kind needs.
func DecodeChange(raw []byte) (GridChange, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var env rawEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed change", err)
	}

	data, err := decodeValues(env.Data, "data")
	if err != nil {
		return nil, err
	}
	where, err := decodeValues(env.Where, "where")
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case KindInsert:
		if where != nil {
			return nil, errs.New(errs.ErrKindInvalidInput, "insert must not carry where")
		}
		if data == nil {
			data = NewValues()
		}
		return &Insert{Data: data}, nil
	case KindUpdate:
		if data.Len() == 0 {
			return nil, errs.New(errs.ErrKindInvalidInput, "update needs at least one changed column")
		}
		if where.Len() == 0 {
			return nil, errs.New(errs.ErrKindInvalidInput, "update needs a primary-key where")
		}
		return &Update{Data: data, Where: where}, nil
	case KindDelete:
		if data != nil {
			return nil, errs.New(errs.ErrKindInvalidInput, "delete must not carry data")
		}
		if where.Len() == 0 {
			return nil, errs.New(errs.ErrKindInvalidInput, "delete needs a primary-key where")
		}
		return &Delete{Where: where}, nil
	case "":
		return nil, errs.New(errs.ErrKindInvalidInput, "change is missing a type")
	}
	return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown change type %q", env.Type)
}

func decodeValues(raw json.RawMessage, field string) (*Values, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	v := NewValues()
	if err := v.UnmarshalJSON(raw); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, field+" must be an object of column values", err)
	}
	return v, nil
}

// UnmarshalJSON decodes a JSON array of changes, rejecting the whole
// batch on the first malformed entry.
func (cs *ChangeSet) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "changes must be an array", err)
	}
	out := make(ChangeSet, 0, len(raws))
	for i, raw := range raws {
		c, err := DecodeChange(raw)
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("change %d: %s", i, errs.UserMessage(err)), err)
		}
		out = append(out, c)
	}
	*cs = out
	return nil
}

// MarshalJSON writes the wire form accepted by UnmarshalJSON.
func (cs ChangeSet) MarshalJSON() ([]byte, error) {
	envs := make([]envelope, len(cs))
	for i, c := range cs {
		switch t := c.(type) {
		case *Insert:
			data := t.Data
			if data == nil {
				data = NewValues()
			}
			envs[i] = envelope{Type: KindInsert, Data: data}
		case *Update:
			envs[i] = envelope{Type: KindUpdate, Data: t.Data, Where: t.Where}
		case *Delete:
			envs[i] = envelope{Type: KindDelete, Where: t.Where}
		}
	}
	return json.Marshal(envs)
}

// Decode parses a JSON array of changes.
func Decode(data []byte) (ChangeSet, error) {
	var cs ChangeSet
	if err := cs.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return cs, nil
}
