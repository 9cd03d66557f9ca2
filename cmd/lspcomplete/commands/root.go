// Package commands implements the lspcomplete command tree.
package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/lspcomplete/internal/config"
	"github.com/dshills/lspcomplete/internal/logger"
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// env is the state shared by every subcommand once the root has run.
type env struct {
	configPath string
	logLevel   string
	jsonLog    bool

	store *config.Store
	log   *zap.SugaredLogger
}

// NewRootCommand builds the lspcomplete command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:   "lspcomplete",
		Short: "Apply language server completions to files",
		Long: `lspcomplete resolves language server completion items and applies them
to a document the way an editor would: the typed prefix is reconciled with
the item's edit, snippets are expanded, additional edits and commands run.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (LSPCOMPLETE_* prefix)
3. The file named by --config (TOML or YAML)
4. Default values

Examples:
  lspcomplete apply main.go --offset 42 --item item.json
  lspcomplete complete main.go --line 10 --character 7 --pick Println
  lspcomplete repl main.go --config lspcomplete.toml
  lspcomplete config show --format yaml`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: e.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&e.configPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&e.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&e.jsonLog, "log-json", false, "Write logs as JSON")

	root.AddCommand(newApplyCommand(e))
	root.AddCommand(newCompleteCommand(e))
	root.AddCommand(newReplCommand(e))
	root.AddCommand(newConfigCommand(e))
	root.AddCommand(newVersionCommand(info))
	return root
}

func (e *env) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = e.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = e.jsonLog
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, Output: cmd.ErrOrStderr()})
	if err != nil {
		return errors.Wrap(err, "initialize logger")
	}
	e.log = log
	e.store = config.NewStore(cfg)
	return nil
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lspcomplete %s\n", info.Version)
			fmt.Fprintf(out, "Commit: %s\n", info.Commit)
			fmt.Fprintf(out, "Built: %s\n", info.Date)
		},
	}
}
