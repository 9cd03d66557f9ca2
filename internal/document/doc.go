// Package document provides an in-memory text buffer with a caret that
// completion edits are applied to.
//
// Edits arrive as LSP text edits against the current content. A batch of
// edits is validated, applied in one pass and recorded as a single undo
// step.
package document
