package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/lspcomplete/internal/completion"
	"github.com/dshills/lspcomplete/internal/config"
	"github.com/dshills/lspcomplete/internal/document"
	"github.com/dshills/lspcomplete/internal/langserver"
)

const replHelp = `commands:
  complete [offset|line:char] [trigger]  request proposals (default: at the caret)
  list                                   show the current proposals
  doc <n>                                show detail and documentation of proposal n
  pick <n|label>                         apply a proposal with the caret as commit offset
  type <text>                            insert text at the caret
  caret <offset|line:char>               move the caret
  show                                   print the document with the caret marked
  undo                                   revert the last change
  write                                  save the document
  quit                                   leave
`

func newReplCommand(e *env) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "repl <file>",
		Short: "Drive completion sessions interactively",
		Long: `Open a file and drive completion sessions from commands read on stdin.

The language server from the configuration is started unless --offline is
set. When --config names a file it is watched and completion settings are
reloaded for the next session.

` + replHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runRepl(cmd, args[0], offline)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Do not start a language server")
	return cmd
}

type repl struct {
	e   *env
	out io.Writer
	buf *document.Buffer
	srv *langserver.Server

	session   *completion.Session
	proposals []*completion.Proposal
}

func (e *env) runRepl(cmd *cobra.Command, path string, offline bool) error {
	buf, err := openBuffer(path)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	r := &repl{e: e, out: cmd.OutOrStdout(), buf: buf}
	if !offline {
		srv, err := e.startServer(ctx, buf)
		if err != nil {
			return err
		}
		r.srv = srv
		defer func() {
			if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
				e.log.Warnw("server shutdown", "error", err)
			}
		}()
	}
	defer r.closeSession()

	if e.configPath != "" {
		w := config.NewWatcher(e.configPath, e.store, config.WithWatcherLogger(e.log))
		w.OnReload(func(cfg *config.Config) {
			e.log.Infow("configuration reloaded", "context_aware_sorting", cfg.Completion.ContextAwareSorting, "resolve_on_apply", cfg.Completion.ResolveOnApply)
		})
		go func() {
			if err := w.Run(ctx); err != nil {
				e.log.Warnw("config watcher stopped", "error", err)
			}
		}()
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, arg, _ := strings.Cut(line, " ")
		if name == "quit" || name == "exit" {
			return nil
		}
		if err := r.exec(ctx, name, strings.TrimSpace(arg)); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

func (r *repl) exec(ctx context.Context, name, arg string) error {
	switch name {
	case "help":
		fmt.Fprint(r.out, replHelp)
	case "complete":
		return r.complete(ctx, arg)
	case "list":
		printProposals(r.out, r.proposals)
	case "doc":
		return r.doc(ctx, arg)
	case "pick":
		return r.pick(ctx, arg)
	case "type":
		return r.typeText(ctx, arg)
	case "caret":
		offset, err := parseLocation(r.buf, arg)
		if err != nil {
			return err
		}
		r.buf.SetCaret(offset)
	case "show":
		caret := r.buf.CaretOffset()
		text := r.buf.Text()
		fmt.Fprintf(r.out, "%s|%s\n", text[:caret], text[caret:])
	case "undo":
		if !r.buf.Undo() {
			return errors.New("nothing to undo")
		}
		return r.sync(ctx)
	case "write":
		return writeBuffer(r.buf)
	default:
		return errors.Newf("unknown command %q (try help)", name)
	}
	return nil
}

func (r *repl) closeSession() {
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}
	r.proposals = nil
}

func (r *repl) complete(ctx context.Context, arg string) error {
	where, trigger, _ := strings.Cut(arg, " ")
	offset := r.buf.CaretOffset()
	if where != "" {
		var err error
		if offset, err = parseLocation(r.buf, where); err != nil {
			return err
		}
		r.buf.SetCaret(offset)
	}

	r.closeSession()
	if r.srv == nil {
		return errors.New("no language server in offline mode")
	}
	s, proposals, err := r.e.request(ctx, r.srv, r.buf, offset, trigger, r.out)
	if err != nil {
		return err
	}
	r.session, r.proposals = s, proposals
	printProposals(r.out, proposals)
	return nil
}

func (r *repl) doc(ctx context.Context, arg string) error {
	p, err := pick(r.proposals, arg)
	if err != nil {
		return err
	}
	if detail := p.Detail(ctx); detail != "" {
		fmt.Fprintln(r.out, detail)
	}
	if doc, ok := p.Documentation(ctx); ok {
		fmt.Fprintln(r.out, doc.Value)
	}
	return nil
}

func (r *repl) pick(ctx context.Context, arg string) error {
	p, err := pick(r.proposals, arg)
	if err != nil {
		return err
	}
	ins := p.Insert(ctx, r.buf.CaretOffset())
	r.closeSession()
	if !ins.Applied {
		return ins.Err
	}
	fmt.Fprintln(r.out, ins.String())
	return r.sync(ctx)
}

func (r *repl) typeText(ctx context.Context, text string) error {
	text, err := unquote(text)
	if err != nil {
		return err
	}
	caret := r.buf.CaretOffset()
	if err := r.buf.Apply(document.Edit{Range: document.Range{Start: caret, End: caret}, NewText: text}); err != nil {
		return err
	}
	r.buf.MoveCaret(len(text))
	return r.sync(ctx)
}

// sync pushes the document to the server after a change.
func (r *repl) sync(ctx context.Context) error {
	if r.srv == nil {
		return nil
	}
	return r.srv.DidChange(ctx, r.buf.Item())
}

func unquote(s string) (string, error) {
	if len(s) >= 2 && s[0] == '"' {
		v, err := strconv.Unquote(s)
		return v, errors.Wrap(err, "unquote")
	}
	return s, nil
}
