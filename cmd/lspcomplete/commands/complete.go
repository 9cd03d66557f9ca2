package commands

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

type completeOptions struct {
	loc     location
	trigger string
	pick    string
	write   bool
}

func newCompleteCommand(e *env) *cobra.Command {
	opts := &completeOptions{}
	cmd := &cobra.Command{
		Use:   "complete <file>",
		Short: "Request completions from the configured language server",
		Long: `Start the configured language server, open the file and request completions.

Without --pick the proposals are listed. With --pick the chosen proposal,
by index or label, is resolved and applied and the resulting text is printed
unless --write is set.

Examples:
  lspcomplete complete main.go --offset 120
  lspcomplete complete main.go --line 10 --character 7 --trigger . --pick Println`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runComplete(cmd, args[0], opts)
		},
	}
	opts.loc.bind(cmd)
	cmd.Flags().StringVar(&opts.trigger, "trigger", "", "Trigger character typed before the completion offset")
	cmd.Flags().StringVar(&opts.pick, "pick", "", "Proposal index or label to apply")
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "Write the result back to the file")
	return cmd
}

func (e *env) runComplete(cmd *cobra.Command, path string, opts *completeOptions) error {
	buf, err := openBuffer(path)
	if err != nil {
		return err
	}
	offset, commit, err := opts.loc.resolve(buf)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	srv, err := e.startServer(ctx, buf)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			e.log.Warnw("server shutdown", "error", err)
		}
	}()

	s, proposals, err := e.request(ctx, srv, buf, offset, opts.trigger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.pick == "" {
		printProposals(cmd.OutOrStdout(), proposals)
		return nil
	}

	p, err := pick(proposals, opts.pick)
	if err != nil {
		return err
	}
	buf.SetCaret(commit)
	ins := p.Insert(ctx, commit)
	if !ins.Applied {
		return errors.Wrap(ins.Err, "apply completion")
	}
	e.log.Infow("completion applied", "label", p.Label(), "result", ins.String())

	if opts.write {
		return writeBuffer(buf)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), buf.Text())
	return err
}
