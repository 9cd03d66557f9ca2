package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPositionConverter(t *testing.T) {
	assert.Equal(t, 2, NewPositionConverter("hello\nworld").LineCount())
	assert.Equal(t, 1, NewPositionConverter("").LineCount())
	assert.Equal(t, 3, NewPositionConverter("a\nb\n").LineCount())
}

func TestPositionConverter_MultiLine(t *testing.T) {
	pc := NewPositionConverter("line1\nline2\nline3")

	tests := []struct {
		byteOffset int
		line       int
		char       int
	}{
		{0, 0, 0},
		{5, 0, 5},
		{6, 1, 0},
		{11, 1, 5},
		{12, 2, 0},
		{17, 2, 5},
		{99, 2, 5},
	}

	for _, tt := range tests {
		pos := pc.ByteOffsetToPosition(tt.byteOffset)
		assert.Equal(t, Position{Line: tt.line, Character: tt.char}, pos, "offset %d", tt.byteOffset)
	}
}

func TestPositionConverter_UTF16(t *testing.T) {
	// é is 2 bytes / 1 unit, 😀 is 4 bytes / 2 units.
	content := "aé😀b\nx"
	pc := NewPositionConverter(content)

	tests := []struct {
		name   string
		offset int
		pos    Position
	}{
		{"after a", 1, Position{0, 1}},
		{"after é", 3, Position{0, 2}},
		{"after emoji", 7, Position{0, 4}},
		{"after b", 8, Position{0, 5}},
		{"second line", 9, Position{1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.pos, pc.ByteOffsetToPosition(tt.offset))
			assert.Equal(t, tt.offset, pc.PositionToByteOffset(tt.pos))
		})
	}
}

func TestPositionConverter_Clamping(t *testing.T) {
	pc := NewPositionConverter("ab\ncd")

	assert.Equal(t, 2, pc.PositionToByteOffset(Position{Line: 0, Character: 40}))
	assert.Equal(t, 5, pc.PositionToByteOffset(Position{Line: 9, Character: 0}))
	assert.Equal(t, 0, pc.PositionToByteOffset(Position{Line: -1, Character: 3}))
	assert.Equal(t, Position{}, pc.ByteOffsetToPosition(-4))
}

func TestPositionConverter_CRLF(t *testing.T) {
	pc := NewPositionConverter("ab\r\ncd")

	assert.Equal(t, "ab", pc.LineContent(0))
	assert.Equal(t, "cd", pc.LineContent(1))
	assert.Equal(t, 4, pc.PositionToByteOffset(Position{Line: 1}))
	assert.Equal(t, 2, pc.PositionToByteOffset(Position{Line: 0, Character: 5}))
}

func TestPositionConverter_LineAt(t *testing.T) {
	pc := NewPositionConverter("one\ntwo\nthree")

	assert.Equal(t, 0, pc.LineAt(3))
	assert.Equal(t, 1, pc.LineAt(4))
	assert.Equal(t, 2, pc.LineAt(100))
}

func TestRangesOverlap(t *testing.T) {
	r := func(a, b, c, d int) Range { return Range{Start: Position{a, b}, End: Position{c, d}} }

	assert.True(t, RangesOverlap(r(0, 0, 0, 5), r(0, 3, 0, 8)))
	assert.False(t, RangesOverlap(r(0, 0, 0, 5), r(0, 5, 0, 8)))
	assert.False(t, RangesOverlap(r(1, 0, 1, 2), r(0, 0, 0, 9)))
	assert.Equal(t, -1, ComparePositions(Position{0, 9}, Position{1, 0}))
	assert.True(t, IsPositionBefore(Position{2, 1}, Position{2, 2}))
}
