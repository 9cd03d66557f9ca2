package lsp

import (
	"sort"
	"unicode/utf8"
)

// PositionConverter translates between byte offsets and LSP positions.
// LSP uses 0-based line/column positions with UTF-16 code units for columns;
// the rest of the module works in UTF-8 byte offsets.
type PositionConverter struct {
	content string
	starts  []int // byte offset of each line start
}

// NewPositionConverter creates a new converter for the given content.
func NewPositionConverter(content string) *PositionConverter {
	pc := &PositionConverter{content: content, starts: []int{0}}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			pc.starts = append(pc.starts, i+1)
		}
	}
	return pc
}

// Content returns the text the converter indexes.
func (pc *PositionConverter) Content() string {
	return pc.content
}

// Len returns the content length in bytes.
func (pc *PositionConverter) Len() int {
	return len(pc.content)
}

// LineCount returns the number of lines.
func (pc *PositionConverter) LineCount() int {
	return len(pc.starts)
}

// lineOf returns the line containing byteOffset.
func (pc *PositionConverter) lineOf(byteOffset int) int {
	return sort.Search(len(pc.starts), func(i int) bool { return pc.starts[i] > byteOffset }) - 1
}

// LineByteRange returns the byte range for a line (excluding newline).
func (pc *PositionConverter) LineByteRange(line int) (start, end int) {
	if line < 0 || line >= len(pc.starts) {
		return 0, 0
	}
	start = pc.starts[line]
	if line+1 < len(pc.starts) {
		end = pc.starts[line+1] - 1
	} else {
		end = len(pc.content)
	}
	if end > start && pc.content[end-1] == '\r' {
		end--
	}
	return start, end
}

// LineContent returns the content of a line (excluding newline).
func (pc *PositionConverter) LineContent(line int) string {
	start, end := pc.LineByteRange(line)
	return pc.content[start:end]
}

// LineAt returns the line index containing byteOffset, clamped to the content.
func (pc *PositionConverter) LineAt(byteOffset int) int {
	if byteOffset <= 0 {
		return 0
	}
	if byteOffset > len(pc.content) {
		byteOffset = len(pc.content)
	}
	return pc.lineOf(byteOffset)
}

// ByteOffsetToPosition converts a byte offset to an LSP Position.
func (pc *PositionConverter) ByteOffsetToPosition(byteOffset int) Position {
	if byteOffset <= 0 {
		return Position{}
	}
	if byteOffset > len(pc.content) {
		byteOffset = len(pc.content)
	}
	line := pc.lineOf(byteOffset)
	start, end := pc.LineByteRange(line)
	if byteOffset > end {
		byteOffset = end
	}
	return Position{Line: line, Character: utf16Len(pc.content[start:byteOffset])}
}

// PositionToByteOffset converts an LSP Position to a byte offset. Positions
// past the end of a line clamp to the line end, positions past the last line
// clamp to the end of the content.
func (pc *PositionConverter) PositionToByteOffset(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(pc.starts) {
		return len(pc.content)
	}
	start, end := pc.LineByteRange(pos.Line)
	return start + utf16ToByteOffset(pc.content[start:end], pos.Character)
}

// RangeToByteOffsets converts an LSP Range to start and end byte offsets.
func (pc *PositionConverter) RangeToByteOffsets(rng Range) (start, end int) {
	return pc.PositionToByteOffset(rng.Start), pc.PositionToByteOffset(rng.End)
}

// ByteOffsetsToRange converts start and end byte offsets to an LSP Range.
func (pc *PositionConverter) ByteOffsetsToRange(start, end int) Range {
	return Range{
		Start: pc.ByteOffsetToPosition(start),
		End:   pc.ByteOffsetToPosition(end),
	}
}

// --- UTF-16 conversion helpers ---

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// utf16ToByteOffset converts a UTF-16 offset to a byte offset within s.
// An offset falling inside a surrogate pair rounds up to the end of the rune.
func utf16ToByteOffset(s string, utf16Off int) int {
	if utf16Off <= 0 {
		return 0
	}
	count := 0
	for i := 0; i < len(s); {
		if count >= utf16Off {
			return i
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r >= 0x10000 {
			count += 2
		} else {
			count++
		}
		i += size
	}
	return len(s)
}

// ComparePositions returns -1 if a < b, 0 if a == b, 1 if a > b.
func ComparePositions(a, b Position) int {
	switch {
	case a.Line < b.Line:
		return -1
	case a.Line > b.Line:
		return 1
	case a.Character < b.Character:
		return -1
	case a.Character > b.Character:
		return 1
	}
	return 0
}

// IsPositionBefore returns true if a is before b.
func IsPositionBefore(a, b Position) bool {
	return ComparePositions(a, b) < 0
}

// RangesOverlap returns true if two ranges share at least one character.
// Touching ranges do not overlap.
func RangesOverlap(a, b Range) bool {
	return ComparePositions(a.Start, b.End) < 0 && ComparePositions(b.Start, a.End) < 0
}
