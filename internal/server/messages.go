package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/koustreak/pgedit/internal/changeset"
	"github.com/koustreak/pgedit/internal/errs"
)

// Message is one view request. The set of implementations is closed.
type Message interface {
	isMessage()
}

type LoadPage struct {
	Page *int `json:"page"`
}

type ApplySort struct {
	Column    string  `json:"column"`
	Direction *string `json:"direction"`
}

type ApplyFilters struct {
	Filters map[string]string `json:"filters"`
}

type Search struct {
	Term string `json:"term"`
}

type Refresh struct{}

type PreviewChanges struct {
	Changes *changeset.ChangeSet `json:"changes"`
}

type ExecuteChanges struct {
	Changes          *changeset.ChangeSet `json:"changes"`
	BypassValidation bool                 `json:"bypassValidation"`
}

func (*LoadPage) isMessage()       {}
func (*ApplySort) isMessage()      {}
func (*ApplyFilters) isMessage()   {}
func (*Search) isMessage()         {}
func (*Refresh) isMessage()        {}
func (*PreviewChanges) isMessage() {}
func (*ExecuteChanges) isMessage() {}

var messageTypes = map[string]func() Message{
	"loadPage":       func() Message { return &LoadPage{} },
	"applySort":      func() Message { return &ApplySort{} },
	"applyFilters":   func() Message { return &ApplyFilters{} },
	"search":         func() Message { return &Search{} },
	"refresh":        func() Message { return &Refresh{} },
	"previewChanges": func() Message { return &PreviewChanges{} },
	"executeChanges": func() Message { return &ExecuteChanges{} },
}

// DecodeMessage parses {"type": "...", ...fields}. Unknown types, unknown
// fields and missing required fields are InvalidInput.
func DecodeMessage(data []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "message must be a JSON object", err)
	}
	if fields == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "message must be a JSON object")
	}

	var typ string
	if raw, ok := fields["type"]; !ok {
		return nil, errs.New(errs.ErrKindInvalidInput, `message is missing "type"`)
	} else if err := json.Unmarshal(raw, &typ); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, `message "type" must be a string`, err)
	}
	delete(fields, "type")

	mk, ok := messageTypes[typ]
	if !ok {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown message type %q", typ)
	}
	msg := mk()

	rest, err := json.Marshal(fields)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed message", err)
	}
	dec := json.NewDecoder(bytes.NewReader(rest))
	dec.DisallowUnknownFields()
	if err := dec.Decode(msg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("%s: %s", typ, errs.UserMessage(err)), err)
	}
	if err := checkRequired(msg); err != nil {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "%s: %s", typ, err)
	}
	return msg, nil
}

func checkRequired(msg Message) error {
	switch m := msg.(type) {
	case *LoadPage:
		if m.Page == nil {
			return fmt.Errorf(`"page" is required`)
		}
		if *m.Page < 0 {
			return fmt.Errorf(`"page" must not be negative`)
		}
	case *PreviewChanges:
		if m.Changes == nil {
			return fmt.Errorf(`"changes" is required`)
		}
	case *ExecuteChanges:
		if m.Changes == nil {
			return fmt.Errorf(`"changes" is required`)
		}
	}
	return nil
}
