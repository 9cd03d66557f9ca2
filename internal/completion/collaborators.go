package completion

import (
	"context"

	"github.com/dshills/lspcomplete/internal/lsp"
	"github.com/dshills/lspcomplete/internal/snippet"
)

// Document is the text a completion is applied to.
type Document interface {
	// Text returns the current content.
	Text() string

	// OffsetToPosition and PositionToOffset convert between byte offsets
	// and LSP positions, clamping out of range values.
	OffsetToPosition(offset int) lsp.Position
	PositionToOffset(pos lsp.Position) int

	// ApplyEdits applies edits expressed against the current content as a
	// single undoable change. Overlapping edits are rejected.
	ApplyEdits(edits []lsp.TextEdit) error
}

// Editor owns the caret of the view the completion runs in.
type Editor interface {
	CaretOffset() int
	MoveCaret(delta int)
}

// Resolver fetches the full form of a completion item.
type Resolver interface {
	ResolveCompletionItem(ctx context.Context, item lsp.CompletionItem) (lsp.CompletionItem, error)
}

// CommandExecutor runs the command attached to an item after insertion.
type CommandExecutor interface {
	ExecuteCommand(ctx context.Context, cmd lsp.Command) error
}

// TemplateEngine takes over interactive editing of a snippet whose literal
// text starts at offset.
type TemplateEngine interface {
	StartTemplate(ctx context.Context, tmpl *snippet.Template, offset int) error
}

// SignatureHelpTrigger opens parameter hints at offset.
type SignatureHelpTrigger interface {
	TriggerParameterHints(ctx context.Context, offset int) error
}

// Policy holds the client side switches that influence completion.
type Policy interface {
	// ShouldResolveOnApply reports whether item is resolved before it is
	// inserted.
	ShouldResolveOnApply(item lsp.CompletionItem) bool

	// UseTemplateForInvocationOnlySnippet keeps snippets like
	// pow(${1:x}, ${2:y}) as templates. When false they are collapsed to
	// pow($0).
	UseTemplateForInvocationOnlySnippet() bool

	UseContextAwareSorting() bool
	CaseSensitive() bool

	// Indent describes how snippet tabs are expanded.
	Indent() (tabSize int, insertSpaces bool)
}

// DefaultPolicy is the Policy used when a session is given none.
type DefaultPolicy struct {
	DisableResolveOnApply bool
	SimplifyInvocations   bool
	ContextAwareSorting   bool
	MatchCase             bool
	TabSize               int
	UseTabs               bool
}

func (p DefaultPolicy) ShouldResolveOnApply(lsp.CompletionItem) bool { return !p.DisableResolveOnApply }

func (p DefaultPolicy) UseTemplateForInvocationOnlySnippet() bool { return !p.SimplifyInvocations }

func (p DefaultPolicy) UseContextAwareSorting() bool { return p.ContextAwareSorting }

func (p DefaultPolicy) CaseSensitive() bool { return p.MatchCase }

func (p DefaultPolicy) Indent() (int, bool) {
	tab := p.TabSize
	if tab <= 0 {
		tab = 4
	}
	return tab, !p.UseTabs
}
