package commands

import (
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/lspcomplete/internal/capability"
	"github.com/dshills/lspcomplete/internal/lsp"
)

type applyOptions struct {
	loc   location
	item  string
	write bool
}

func newApplyCommand(e *env) *cobra.Command {
	opts := &applyOptions{}
	cmd := &cobra.Command{
		Use:   "apply <file>",
		Short: "Apply a completion item to a file without a server",
		Long: `Apply a completion item, read as LSP JSON, to a file at the given offset.

No language server is started, so the item is used as given: it is never
resolved and its command can only be one registered on the client.
The resulting text is printed unless --write is set.

Examples:
  lspcomplete apply main.go --offset 42 --item item.json
  echo '{"label":"Println","insertText":"Println($1)","insertTextFormat":2}' | \
    lspcomplete apply main.go --line 3 --character 5 --item -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runApply(cmd, args[0], opts)
		},
	}
	opts.loc.bind(cmd)
	cmd.Flags().StringVar(&opts.item, "item", "-", "Completion item JSON file, or - for stdin")
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "Write the result back to the file")
	return cmd
}

func (e *env) runApply(cmd *cobra.Command, path string, opts *applyOptions) error {
	buf, err := openBuffer(path)
	if err != nil {
		return err
	}
	offset, commit, err := opts.loc.resolve(buf)
	if err != nil {
		return err
	}
	item, err := readItem(cmd.InOrStdin(), opts.item)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	buf.SetCaret(commit)
	s := e.newSession(ctx, buf, offset, capability.NewFeatures(e.log), cmd.ErrOrStderr())
	defer s.Close()

	proposals := s.Proposals([]lsp.CompletionItem{item})
	if len(proposals) == 0 {
		return errors.New("completion item has no label")
	}
	ins := proposals[0].Insert(ctx, commit)
	if !ins.Applied {
		return errors.Wrap(ins.Err, "apply completion")
	}
	e.log.Infow("completion applied", "label", item.Label, "result", ins.String())

	if opts.write {
		return writeBuffer(buf)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), buf.Text())
	return err
}

func readItem(stdin io.Reader, name string) (lsp.CompletionItem, error) {
	var (
		data []byte
		err  error
	)
	if name == "" || name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return lsp.CompletionItem{}, errors.Wrap(err, "read completion item")
	}

	var item lsp.CompletionItem
	if err := json.Unmarshal(data, &item); err != nil {
		return lsp.CompletionItem{}, errors.Wrap(err, "decode completion item")
	}
	return item, nil
}
