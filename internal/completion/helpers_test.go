package completion

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/dshills/lspcomplete/internal/capability"
	"github.com/dshills/lspcomplete/internal/document"
	"github.com/dshills/lspcomplete/internal/lsp"
	"github.com/dshills/lspcomplete/internal/snippet"
)

const testPath = "/src/main.go"

type fakeResolver struct {
	mu      sync.Mutex
	calls   int
	resolve func(ctx context.Context, item lsp.CompletionItem) (lsp.CompletionItem, error)
}

func (r *fakeResolver) ResolveCompletionItem(ctx context.Context, item lsp.CompletionItem) (lsp.CompletionItem, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.resolve == nil {
		return item, nil
	}
	return r.resolve(ctx, item)
}

func (r *fakeResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type startedTemplate struct {
	tmpl   *snippet.Template
	offset int
}

// recorder stands in for the command executor, template engine and
// signature help trigger.
type recorder struct {
	mu          sync.Mutex
	commands    []lsp.Command
	templates   []startedTemplate
	hints       []int
	commandErr  error
	templateErr error
	panicOnTmpl bool
}

func (r *recorder) ExecuteCommand(_ context.Context, cmd lsp.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	return r.commandErr
}

func (r *recorder) StartTemplate(_ context.Context, tmpl *snippet.Template, offset int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panicOnTmpl {
		panic("template engine exploded")
	}
	r.templates = append(r.templates, startedTemplate{tmpl: tmpl, offset: offset})
	return r.templateErr
}

func (r *recorder) TriggerParameterHints(_ context.Context, offset int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hints = append(r.hints, offset)
	return nil
}

func newFeatures(t *testing.T, resolve, signatureHelp bool) *capability.Features {
	t.Helper()
	fs := capability.NewFeatures(zaptest.NewLogger(t).Sugar())
	caps := &lsp.ServerCapabilities{
		CompletionProvider: &lsp.CompletionOptions{ResolveProvider: resolve},
	}
	if signatureHelp {
		caps.SignatureHelpProvider = &lsp.SignatureHelpOptions{TriggerCharacters: []string{"("}}
	}
	fs.SetServerCapabilities(caps)
	return fs
}

func newSession(t *testing.T, text string, offset int, features *capability.Features, opts ...SessionOption) (*Session, *document.Buffer) {
	t.Helper()
	buf := document.New(testPath, text, document.WithCaret(offset))
	opts = append([]SessionOption{WithLogger(zaptest.NewLogger(t).Sugar())}, opts...)
	s := NewSession(context.Background(), testPath, offset, buf, buf, features, opts...)
	t.Cleanup(s.Close)
	return s, buf
}

func proposal(s *Session, item lsp.CompletionItem) *Proposal {
	ps := s.Proposals([]lsp.CompletionItem{item})
	return ps[0]
}

func rng(sl, sc, el, ec int) lsp.Range {
	return lsp.Range{Start: lsp.Position{Line: sl, Character: sc}, End: lsp.Position{Line: el, Character: ec}}
}
