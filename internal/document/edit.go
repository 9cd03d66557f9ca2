package document

import "fmt"

// Range is a byte range [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the length of the range in bytes.
func (r Range) Len() int { return r.End - r.Start }

// IsEmpty returns true if the range has zero length.
func (r Range) IsEmpty() bool { return r.Start == r.End }

// String returns a human-readable representation of the range.
func (r Range) String() string { return fmt.Sprintf("[%d:%d)", r.Start, r.End) }

// Edit replaces Range with NewText.
type Edit struct {
	Range   Range
	NewText string
}

// String returns a human-readable representation of the edit.
func (e Edit) String() string {
	if e.Range.IsEmpty() {
		return fmt.Sprintf("Insert(%d, %q)", e.Range.Start, e.NewText)
	}
	if e.NewText == "" {
		return fmt.Sprintf("Delete%s", e.Range)
	}
	return fmt.Sprintf("Replace%s with %q", e.Range, e.NewText)
}

// Delta returns the change in buffer length caused by this edit.
func (e Edit) Delta() int {
	return len(e.NewText) - e.Range.Len()
}

// Change records an applied edit so it can be undone.
type Change struct {
	Range    Range  // range in the content before the edit
	NewRange Range  // range of NewText in the content after the edit
	OldText  string // text that was replaced
	NewText  string
}

// Invert returns the edit that restores the replaced text. Its range is in
// post-edit coordinates.
func (c Change) Invert() Edit {
	return Edit{Range: c.NewRange, NewText: c.OldText}
}
