package completion

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/dshills/lspcomplete/internal/lsp"
	"github.com/dshills/lspcomplete/internal/snippet"
)

// Insertion reports what Insert did.
type Insertion struct {
	Applied bool
	Edit    Edit
	Caret   int

	// Template is the parsed snippet, nil for plain text items.
	Template        *snippet.Template
	TemplateStarted bool

	Err error
}

// Insert applies the proposal with the caret at commitOffset. It never
// panics; failures come back in Insertion.Err and leave Applied false.
func (p *Proposal) Insert(ctx context.Context, commitOffset int) (ins Insertion) {
	s := p.session
	log := s.logger.With("label", p.Label(), "offset", p.completionOffset, "commit", commitOffset)

	defer func() {
		if r := recover(); r != nil {
			err := errors.Newf("completion insert panicked: %v", r)
			log.Errorw("completion insert failed", "error", err)
			ins = Insertion{Err: err}
		}
	}()

	ins, err := p.insert(ctx, commitOffset)
	if err != nil {
		log.Errorw("completion insert failed", "error", err)
		return Insertion{Err: err}
	}
	return ins
}

func (p *Proposal) insert(ctx context.Context, commitOffset int) (Insertion, error) {
	s := p.session
	p.Resolve(ctx)
	item := p.Item()
	text := s.doc.Text()

	var tmpl *snippet.Template
	newText := newTextOf(item)
	if item.IsSnippet() {
		start, end, _ := editRange(s.doc, item, p.prefixStart, p.completionOffset, commitOffset)
		tabSize, spaces := s.policy.Indent()
		tmpl = snippet.Parse(newText, snippet.Options{
			Resolve: variableResolver(s.Path, text, start, end),
			Indent: snippet.IndentOptions{
				TabSize:      tabSize,
				InsertSpaces: spaces,
				LineIndent:   lineIndent(text, start),
			},
			SimplifyInvocation: !s.policy.UseTemplateForInvocationOnlySnippet(),
		})
		newText = tmpl.Text
	}

	primary, _ := primaryEdit(s.doc, item, newText, p.prefixStart, p.completionOffset, commitOffset)

	additional := item.AdditionalTextEdits
	if len(additional) == 0 && s.IsResolveSupported() {
		if resolved, ok := p.resolvedItem(ctx); ok {
			additional = resolved.AdditionalTextEdits
		}
	}

	caret := caretAfter(s.doc, primary, additional)
	edits := make([]lsp.TextEdit, 0, 1+len(additional))
	edits = append(edits, primary.TextEdit(s.doc))
	edits = append(edits, additional...)
	if err := s.doc.ApplyEdits(edits); err != nil {
		return Insertion{}, errors.Wrapf(err, "apply %d edits", len(edits))
	}
	s.editor.MoveCaret(caret - s.editor.CaretOffset())

	ins := Insertion{Applied: true, Edit: primary, Template: tmpl}
	if tmpl != nil {
		started, err := p.handOff(ctx, tmpl, caret)
		if err != nil {
			s.logger.Warnw("snippet template failed to start", "error", err)
		}
		ins.TemplateStarted = started
	}
	ins.Caret = s.editor.CaretOffset()

	if item.Command != nil && s.commands != nil {
		if err := s.commands.ExecuteCommand(ctx, *item.Command); err != nil {
			s.logger.Warnw("completion command failed", "command", item.Command.Command, "error", err)
		}
	}

	if s.hints != nil && s.IsSignatureHelpSupported() {
		if err := s.hints.TriggerParameterHints(ctx, ins.Caret); err != nil {
			s.logger.Warnw("signature help trigger failed", "error", err)
		}
	}
	return ins, nil
}

// handOff positions the caret inside the inserted snippet, which ends at
// caret, and starts the template engine when there is something to edit.
// The caret is back at the end when the engine refuses the template.
func (p *Proposal) handOff(ctx context.Context, tmpl *snippet.Template, caret int) (bool, error) {
	s := p.session
	if !tmpl.HasStops() {
		return false, nil
	}
	start := caret - len(tmpl.Text)
	if stop, ok := tmpl.SingleEmptyStop(); ok {
		s.editor.MoveCaret(start + stop.Offset - caret)
		return false, nil
	}
	if s.templates == nil {
		s.logger.Debugw("no template engine, leaving caret after snippet")
		return false, nil
	}
	s.editor.MoveCaret(start - caret)
	if err := s.templates.StartTemplate(ctx, tmpl, start); err != nil {
		s.editor.MoveCaret(caret - start)
		return false, errors.Wrap(err, "start template")
	}
	return true, nil
}

// String is used in logs.
func (i Insertion) String() string {
	if i.Err != nil {
		return fmt.Sprintf("insertion failed: %v", i.Err)
	}
	return fmt.Sprintf("inserted %q at [%d,%d) caret %d", i.Edit.NewText, i.Edit.Start, i.Edit.End, i.Caret)
}
