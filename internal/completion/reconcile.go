package completion

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/lspcomplete/internal/lsp"
)

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WordStart returns the start of the identifier run that ends at offset.
// ok is false when the rune before offset is not part of an identifier.
func WordStart(text string, offset int) (start int, ok bool) {
	offset = clamp(offset, 0, len(text))
	start = offset
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}
	return start, start < offset
}

// WordEnd returns the end of the identifier run that starts at offset.
func WordEnd(text string, offset int) int {
	end := clamp(offset, 0, len(text))
	for end < len(text) {
		r, size := utf8.DecodeRuneInString(text[end:])
		if !isIdentRune(r) {
			break
		}
		end += size
	}
	return end
}

// MatchingPrefixStart finds the longest suffix of text[:offset] that is also
// a prefix of insertText and returns where it begins. Typing "foo.b" before
// accepting "foo.bar" yields the offset of "f".
func MatchingPrefixStart(text string, offset int, insertText string) (start int, ok bool) {
	offset = clamp(offset, 0, len(text))
	for n := min(len(insertText), offset); n > 0; n-- {
		start = offset - n
		if !utf8.RuneStart(text[start]) {
			continue
		}
		if strings.HasPrefix(insertText, text[start:offset]) {
			return start, true
		}
	}
	return offset, false
}

// PrefixStart returns where the text the user already typed begins when the
// server sent no edit range. When both the identifier run and the insert
// text match, the earlier start wins. The result is never after offset.
func PrefixStart(text string, offset int, insertText string) int {
	offset = clamp(offset, 0, len(text))
	best := offset
	if start, ok := WordStart(text, offset); ok {
		best = start
	}
	if start, ok := MatchingPrefixStart(text, offset, insertText); ok && start < best {
		best = start
	}
	return best
}

// prefixStartOffset computes the boundary between typed and replaced text for
// item. An explicit edit wins over any heuristic.
func prefixStartOffset(doc Document, item lsp.CompletionItem, completionOffset int) int {
	if item.TextEdit != nil {
		start := doc.PositionToOffset(item.TextEdit.Range().Start)
		return min(start, completionOffset)
	}
	return PrefixStart(doc.Text(), completionOffset, insertTextOf(item))
}

// insertTextOf is the text an item inserts when it has no edit.
func insertTextOf(item lsp.CompletionItem) string {
	if item.InsertText != "" {
		return item.InsertText
	}
	return item.Label
}

// newTextOf is the text an item inserts, honouring its edit.
func newTextOf(item lsp.CompletionItem) string {
	if item.TextEdit != nil {
		return item.TextEdit.NewText()
	}
	return insertTextOf(item)
}
