package document

import (
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/dshills/lspcomplete/internal/lsp"
)

// Buffer is a document with a single caret. All methods are thread-safe.
type Buffer struct {
	mu         sync.RWMutex
	path       string
	languageID string
	text       string
	conv       *lsp.PositionConverter
	version    int
	caret      int
	history    *history
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithLanguageID overrides the language detected from the path.
func WithLanguageID(id string) Option {
	return func(b *Buffer) { b.languageID = id }
}

// WithCaret places the caret, clamped to the content.
func WithCaret(offset int) Option {
	return func(b *Buffer) { b.caret = offset }
}

// WithUndoLimit bounds the number of undo steps kept. Zero keeps all.
func WithUndoLimit(n int) Option {
	return func(b *Buffer) { b.history = newHistory(n) }
}

// New creates a buffer for path holding text.
func New(path, text string, opts ...Option) *Buffer {
	b := &Buffer{
		path:       path,
		languageID: lsp.DetectLanguageID(path),
		text:       text,
		conv:       lsp.NewPositionConverter(text),
		version:    1,
		history:    newHistory(100),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.caret = clamp(b.caret, len(text))
	return b
}

func clamp(v, hi int) int {
	return max(0, min(v, hi))
}

// Path returns the file path of the document.
func (b *Buffer) Path() string { return b.path }

// LanguageID returns the LSP language identifier.
func (b *Buffer) LanguageID() string { return b.languageID }

// Text returns the full content.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// Len returns the content length in bytes.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.text)
}

// Version increases with every applied batch and undo.
func (b *Buffer) Version() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Item describes the document for textDocument/didOpen.
func (b *Buffer) Item() lsp.TextDocumentItem {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return lsp.TextDocumentItem{
		URI:        lsp.FilePathToURI(b.path),
		LanguageID: b.languageID,
		Version:    b.version,
		Text:       b.text,
	}
}

// OffsetToPosition converts a byte offset to an LSP position.
func (b *Buffer) OffsetToPosition(offset int) lsp.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conv.ByteOffsetToPosition(offset)
}

// PositionToOffset converts an LSP position to a byte offset.
func (b *Buffer) PositionToOffset(pos lsp.Position) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conv.PositionToByteOffset(pos)
}

// CaretOffset returns the caret position.
func (b *Buffer) CaretOffset() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.caret
}

// MoveCaret moves the caret by delta bytes, clamped to the content.
func (b *Buffer) MoveCaret(delta int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.caret = clamp(b.caret+delta, len(b.text))
}

// SetCaret places the caret at offset, clamped to the content.
func (b *Buffer) SetCaret(offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.caret = clamp(offset, len(b.text))
}

// ApplyEdits applies LSP edits expressed against the current content as one
// undo step. Edits may come in any order. Inserts at the same position keep
// their relative order and go before a replacement starting there.
func (b *Buffer) ApplyEdits(edits []lsp.TextEdit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	converted := make([]Edit, len(edits))
	for i, te := range edits {
		start, end := b.conv.RangeToByteOffsets(te.Range)
		if end < start {
			return errors.Wrapf(lsp.ErrRangeInvalid, "edit %d: %d > %d", i, start, end)
		}
		converted[i] = Edit{Range: Range{Start: start, End: end}, NewText: te.NewText}
	}
	return b.apply(converted)
}

// Apply applies byte offset edits as one undo step.
func (b *Buffer) Apply(edits ...Edit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, e := range edits {
		if e.Range.Start < 0 || e.Range.End > len(b.text) || e.Range.End < e.Range.Start {
			return errors.Wrapf(lsp.ErrRangeInvalid, "edit %d: %s", i, e.Range)
		}
	}
	return b.apply(edits)
}

// Undo reverts the last batch. It returns false when there is nothing to
// undo.
func (b *Buffer) Undo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.history.pop()
	if !ok {
		return false
	}
	inverse := make([]Edit, len(s.changes))
	for i, c := range s.changes {
		inverse[i] = c.Invert()
	}
	text, _ := splice(b.text, inverse)
	b.setText(text)
	b.caret = clamp(s.caret, len(b.text))
	return true
}

// CanUndo reports whether Undo has anything to revert.
func (b *Buffer) CanUndo() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.history.len() > 0
}

func (b *Buffer) apply(edits []Edit) error {
	sorted := sortEdits(edits)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Range.Start < sorted[i-1].Range.End {
			return errors.Wrapf(lsp.ErrEditsOverlap, "%s and %s", sorted[i-1], sorted[i])
		}
	}

	text, changes := splice(b.text, sorted)
	caret := b.caret
	b.setText(text)
	b.caret = clamp(b.caret, len(b.text))
	b.history.push(step{changes: changes, caret: caret})
	return nil
}

func (b *Buffer) setText(text string) {
	b.text = text
	b.conv = lsp.NewPositionConverter(text)
	b.version++
}

// sortEdits orders edits by start offset. At equal starts empty ranges go
// first; otherwise input order is kept.
func sortEdits(edits []Edit) []Edit {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Range, sorted[j].Range
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.IsEmpty() && !b.IsEmpty()
	})
	return sorted
}

// splice applies sorted, non-overlapping edits to text.
func splice(text string, sorted []Edit) (string, []Change) {
	var sb strings.Builder
	sb.Grow(len(text))
	changes := make([]Change, 0, len(sorted))
	last, delta := 0, 0
	for _, e := range sorted {
		sb.WriteString(text[last:e.Range.Start])
		sb.WriteString(e.NewText)
		start := e.Range.Start + delta
		changes = append(changes, Change{
			Range:    e.Range,
			NewRange: Range{Start: start, End: start + len(e.NewText)},
			OldText:  text[e.Range.Start:e.Range.End],
			NewText:  e.NewText,
		})
		delta += e.Delta()
		last = e.Range.End
	}
	sb.WriteString(text[last:])
	return sb.String(), changes
}
