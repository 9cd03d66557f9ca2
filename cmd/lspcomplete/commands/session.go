package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/lspcomplete/internal/capability"
	"github.com/dshills/lspcomplete/internal/completion"
	"github.com/dshills/lspcomplete/internal/document"
	"github.com/dshills/lspcomplete/internal/langserver"
	"github.com/dshills/lspcomplete/internal/lsp"
	"github.com/dshills/lspcomplete/internal/snippet"
)

// location selects the completion offset, either as a byte offset or as an
// LSP line and UTF-16 character.
type location struct {
	offset    int
	line      int
	character int
	commit    int
}

func (l *location) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&l.offset, "offset", -1, "Completion byte offset")
	cmd.Flags().IntVar(&l.line, "line", -1, "Completion line (0-based)")
	cmd.Flags().IntVar(&l.character, "character", 0, "Completion character (UTF-16, 0-based)")
	cmd.Flags().IntVar(&l.commit, "commit", -1, "Caret byte offset when the item is accepted (defaults to the completion offset)")
}

// resolve returns the completion and commit offsets in buf.
func (l location) resolve(buf *document.Buffer) (offset, commit int, err error) {
	switch {
	case l.line >= 0:
		offset = buf.PositionToOffset(lsp.Position{Line: l.line, Character: l.character})
	case l.offset >= 0:
		offset = l.offset
	default:
		return 0, 0, errors.New("one of --offset or --line is required")
	}
	if offset > buf.Len() {
		return 0, 0, errors.Newf("offset %d is past the end of the document (%d bytes)", offset, buf.Len())
	}
	commit = offset
	if l.commit >= 0 {
		commit = l.commit
	}
	return offset, commit, nil
}

// parseLocation reads "N" as a byte offset or "L:C" as a position.
func parseLocation(buf *document.Buffer, s string) (int, error) {
	if line, char, ok := strings.Cut(s, ":"); ok {
		l, err := strconv.Atoi(line)
		if err != nil {
			return 0, errors.Wrapf(err, "line %q", line)
		}
		c, err := strconv.Atoi(char)
		if err != nil {
			return 0, errors.Wrapf(err, "character %q", char)
		}
		return buf.PositionToOffset(lsp.Position{Line: l, Character: c}), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "offset %q", s)
	}
	if n < 0 || n > buf.Len() {
		return 0, errors.Newf("offset %d out of range", n)
	}
	return n, nil
}

func openBuffer(path string) (*document.Buffer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return document.New(abs, string(data)), nil
}

func writeBuffer(buf *document.Buffer) error {
	info, err := os.Stat(buf.Path())
	if err != nil {
		return errors.Wrapf(err, "stat %s", buf.Path())
	}
	if err := os.WriteFile(buf.Path(), []byte(buf.Text()), info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, "write %s", buf.Path())
	}
	return nil
}

// stopPrinter lists the tab stops of a started template.
type stopPrinter struct {
	w io.Writer
}

func (p stopPrinter) StartTemplate(_ context.Context, t *snippet.Template, offset int) error {
	for _, st := range t.Stops {
		kind := "stop"
		switch {
		case st.IsFinal():
			kind = "final"
		case st.Mirror:
			kind = "mirror"
		}
		fmt.Fprintf(p.w, "%s $%d at %d", kind, st.Index, offset+st.Offset)
		if st.Default != "" {
			fmt.Fprintf(p.w, " %q", st.Default)
		}
		if len(st.Choices) > 0 {
			fmt.Fprintf(p.w, " choices=%s", strings.Join(st.Choices, "|"))
		}
		fmt.Fprintln(p.w)
	}
	return nil
}

// hintLogger records parameter hint requests.
type hintLogger struct {
	log *zap.SugaredLogger
}

func (h hintLogger) TriggerParameterHints(_ context.Context, offset int) error {
	h.log.Infow("parameter hints requested", "offset", offset)
	return nil
}

// newSession starts a completion session at offset using the active
// configuration.
func (e *env) newSession(ctx context.Context, buf *document.Buffer, offset int, fs *capability.Features, out io.Writer, opts ...completion.SessionOption) *completion.Session {
	cfg := e.store.Get()
	base := []completion.SessionOption{
		completion.WithPolicy(cfg.Completion.Policy()),
		completion.WithResolveTimeout(cfg.Completion.ResolveTimeout.Std()),
		completion.WithLogger(e.log),
		completion.WithLanguageID(buf.LanguageID()),
		completion.WithTemplateEngine(stopPrinter{w: out}),
		completion.WithSignatureHelpTrigger(hintLogger{log: e.log}),
	}
	return completion.NewSession(ctx, buf.Path(), offset, buf, buf, fs, append(base, opts...)...)
}

// startServer launches the configured language server for buf.
func (e *env) startServer(ctx context.Context, buf *document.Buffer) (*langserver.Server, error) {
	cfg := e.store.Get().Server
	if cfg.Command == "" {
		return nil, errors.New("no language server configured (set server.command or LSPCOMPLETE_SERVER_COMMAND)")
	}
	root := cfg.RootDir
	if root == "" {
		root = filepath.Dir(buf.Path())
	}

	srv := langserver.New(langserver.Config{
		Command:           cfg.Command,
		Args:              cfg.Args,
		RootDir:           root,
		InitializeTimeout: cfg.InitializeTimeout.Std(),
		RequestTimeout:    cfg.RequestTimeout.Std(),
	}, langserver.WithLogger(e.log), langserver.WithFeatures(capability.NewFeatures(e.log)))

	for _, name := range []string{"editor.action.triggerParameterHints", "editor.action.triggerSuggest"} {
		srv.OnClientCommand(name, func(_ context.Context, cmd lsp.Command) error {
			e.log.Infow("client command", "command", cmd.Command, "title", cmd.Title)
			return nil
		})
	}

	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	if err := srv.DidOpen(ctx, buf.Item()); err != nil {
		_ = srv.Shutdown(context.WithoutCancel(ctx))
		return nil, errors.Wrap(err, "open document")
	}
	return srv, nil
}

// request asks srv for completions at offset and wraps them in a session.
func (e *env) request(ctx context.Context, srv *langserver.Server, buf *document.Buffer, offset int, trigger string, out io.Writer) (*completion.Session, []*completion.Proposal, error) {
	item := buf.Item()
	doc := capability.DocumentContext{URI: item.URI, LanguageID: item.LanguageID}
	list, err := srv.Completion(ctx, doc, buf.OffsetToPosition(offset), trigger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "completion request")
	}
	s := e.newSession(ctx, buf, offset, srv.Features(), out,
		completion.WithResolver(srv), completion.WithCommandExecutor(srv))
	return s, s.Proposals(list.Items), nil
}

// pick finds a proposal by index or label.
func pick(proposals []*completion.Proposal, sel string) (*completion.Proposal, error) {
	if n, err := strconv.Atoi(sel); err == nil {
		if n < 0 || n >= len(proposals) {
			return nil, errors.Newf("no proposal %d (have %d)", n, len(proposals))
		}
		return proposals[n], nil
	}
	for _, p := range proposals {
		if p.Label() == sel {
			return p, nil
		}
	}
	return nil, errors.Newf("no proposal labelled %q", sel)
}

func printProposals(w io.Writer, proposals []*completion.Proposal) {
	for i, p := range proposals {
		fmt.Fprintf(w, "%3d  %s", i, p.Label())
		if tail := p.TailText(); tail != "" {
			fmt.Fprint(w, tail)
		}
		if typ := p.TypeText(); typ != "" {
			fmt.Fprintf(w, "  %s", typ)
		}
		if p.IsDeprecated() {
			fmt.Fprint(w, "  (deprecated)")
		}
		fmt.Fprintln(w)
	}
}
