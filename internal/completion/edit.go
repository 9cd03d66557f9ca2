package completion

import (
	"github.com/rivo/uniseg"

	"github.com/dshills/lspcomplete/internal/lsp"
)

// Edit replaces the bytes [Start, End) of a document with NewText.
type Edit struct {
	Start   int
	End     int
	NewText string
}

// TextEdit converts e to positions in doc.
func (e Edit) TextEdit(doc Document) lsp.TextEdit {
	return lsp.TextEdit{
		Range:   lsp.Range{Start: doc.OffsetToPosition(e.Start), End: doc.OffsetToPosition(e.End)},
		NewText: e.NewText,
	}
}

// editRange is the span item replaces when committed at commitOffset. The
// bool is true when the server sent no edit and the span was derived from
// prefixStart.
func editRange(doc Document, item lsp.CompletionItem, prefixStart, completionOffset, commitOffset int) (start, end int, synthesized bool) {
	if item.TextEdit != nil {
		r := item.TextEdit.Range()
		start, end = doc.PositionToOffset(r.Start), doc.PositionToOffset(r.End)
		// The user kept typing after the request was sent.
		if commitOffset > completionOffset {
			end += commitOffset - completionOffset
		}
	} else {
		start, end, synthesized = prefixStart, commitOffset, true
	}
	if end < start {
		start, end = end, start
	}
	size := len(doc.Text())
	return clamp(start, 0, size), clamp(end, 0, size), synthesized
}

// PrimaryEdit computes the main replacement for item. The bool reports
// whether the edit was synthesized rather than sent by the server.
//
// A synthesized edit also swallows text after the commit offset that repeats
// the rest of the inserted text, so accepting "foo.bar" inside "foo.b|ar"
// does not leave "foo.barar" behind.
func PrimaryEdit(doc Document, item lsp.CompletionItem, prefixStart, completionOffset, commitOffset int) (Edit, bool) {
	return primaryEdit(doc, item, newTextOf(item), prefixStart, completionOffset, commitOffset)
}

// primaryEdit is PrimaryEdit with the inserted text given explicitly, which
// may be empty for an expanded snippet.
func primaryEdit(doc Document, item lsp.CompletionItem, newText string, prefixStart, completionOffset, commitOffset int) (Edit, bool) {
	start, end, synthesized := editRange(doc, item, prefixStart, completionOffset, commitOffset)
	e := Edit{Start: start, End: end, NewText: newText}
	if synthesized {
		e.End += reusableTail(doc.Text()[e.End:], remainder(e.NewText, commitOffset-start))
	}
	return e, synthesized
}

// remainder is text after its first typed bytes, or "" when typed does not
// fall on a rune boundary.
func remainder(text string, typed int) string {
	if typed < 0 || typed >= len(text) {
		return ""
	}
	rest := text[typed:]
	if typed > 0 && len(rest) > 0 && !isRuneStart(rest[0]) {
		return ""
	}
	return rest
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// reusableTail returns the byte length of the longest run of grapheme
// clusters at the start of after that equals the start of rest.
func reusableTail(after, rest string) int {
	if after == "" || rest == "" {
		return 0
	}
	ga, gr := uniseg.NewGraphemes(after), uniseg.NewGraphemes(rest)
	n := 0
	for ga.Next() && gr.Next() {
		if ga.Str() != gr.Str() {
			break
		}
		n += len(ga.Str())
	}
	return n
}

// caretAfter is the offset just past the primary edit's new text once all
// edits are applied. Additional edits ending at or before the primary start
// shift it. Inserts at the start of an empty primary edit land after it.
func caretAfter(doc Document, primary Edit, additional []lsp.TextEdit) int {
	caret := primary.Start + len(primary.NewText)
	for _, te := range additional {
		start, end := doc.PositionToOffset(te.Range.Start), doc.PositionToOffset(te.Range.End)
		if end > primary.Start {
			continue
		}
		if start == end && start == primary.Start && primary.Start == primary.End {
			continue
		}
		caret += len(te.NewText) - (end - start)
	}
	return caret
}
