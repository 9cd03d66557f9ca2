package lsp

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// InsertReplaceEdit is a completion edit with two ranges: one used when the
// client inserts and one used when it replaces the word under the caret.
type InsertReplaceEdit struct {
	NewText string `json:"newText"`
	Insert  Range  `json:"insert"`
	Replace Range  `json:"replace"`
}

// CompletionTextEdit is the textEdit property of a completion item. Exactly
// one of Edit or InsertReplace is set.
type CompletionTextEdit struct {
	Edit          *TextEdit
	InsertReplace *InsertReplaceEdit
}

// NewTextEditValue wraps a plain TextEdit.
func NewTextEditValue(rng Range, newText string) *CompletionTextEdit {
	return &CompletionTextEdit{Edit: &TextEdit{Range: rng, NewText: newText}}
}

// NewInsertReplaceValue wraps an InsertReplaceEdit.
func NewInsertReplaceValue(insert, replace Range, newText string) *CompletionTextEdit {
	return &CompletionTextEdit{InsertReplace: &InsertReplaceEdit{NewText: newText, Insert: insert, Replace: replace}}
}

// Range returns the range the client applies. For an insert/replace edit
// that is the insert range.
func (e *CompletionTextEdit) Range() Range {
	switch {
	case e == nil:
		return Range{}
	case e.InsertReplace != nil:
		return e.InsertReplace.Insert
	case e.Edit != nil:
		return e.Edit.Range
	}
	return Range{}
}

// NewText returns the replacement text.
func (e *CompletionTextEdit) NewText() string {
	switch {
	case e == nil:
		return ""
	case e.InsertReplace != nil:
		return e.InsertReplace.NewText
	case e.Edit != nil:
		return e.Edit.NewText
	}
	return ""
}

// WithNewText returns a copy of e carrying text.
func (e *CompletionTextEdit) WithNewText(text string) *CompletionTextEdit {
	if e == nil {
		return nil
	}
	out := &CompletionTextEdit{}
	if e.InsertReplace != nil {
		ir := *e.InsertReplace
		ir.NewText = text
		out.InsertReplace = &ir
	}
	if e.Edit != nil {
		te := *e.Edit
		te.NewText = text
		out.Edit = &te
	}
	return out
}

// AsTextEdit normalizes e to a single-range edit.
func (e *CompletionTextEdit) AsTextEdit() TextEdit {
	return TextEdit{Range: e.Range(), NewText: e.NewText()}
}

// MarshalJSON implements json.Marshaler.
func (e CompletionTextEdit) MarshalJSON() ([]byte, error) {
	switch {
	case e.InsertReplace != nil:
		return json.Marshal(e.InsertReplace)
	case e.Edit != nil:
		return json.Marshal(e.Edit)
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *CompletionTextEdit) UnmarshalJSON(data []byte) error {
	*e = CompletionTextEdit{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var probe struct {
		Range  *json.RawMessage `json:"range"`
		Insert *json.RawMessage `json:"insert"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return errors.Wrap(err, "decode completion text edit")
	}

	switch {
	case probe.Insert != nil:
		var ir InsertReplaceEdit
		if err := json.Unmarshal(data, &ir); err != nil {
			return errors.Wrap(err, "decode insert/replace edit")
		}
		e.InsertReplace = &ir
	case probe.Range != nil:
		var te TextEdit
		if err := json.Unmarshal(data, &te); err != nil {
			return errors.Wrap(err, "decode text edit")
		}
		e.Edit = &te
	default:
		return errors.Wrap(ErrInvalidResponse, "text edit has neither range nor insert")
	}
	return nil
}
