package commands

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the configuration after files and environment are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := e.store.Get()
			var (
				data []byte
				err  error
			)
			switch format {
			case "toml":
				data, err = toml.Marshal(cfg)
			case "yaml":
				data, err = yaml.Marshal(cfg)
			case "json":
				data, err = json.MarshalIndent(cfg, "", "  ")
				data = append(data, '\n')
			default:
				return errors.Newf("unsupported format: %s (supported: toml, yaml, json)", format)
			}
			if err != nil {
				return errors.Wrapf(err, "marshal config to %s", format)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	show.Flags().StringVar(&format, "format", "toml", "Output format: toml, yaml, json")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check that the configuration loads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.store.Get().Validate(); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return err
		},
	}

	cmd.AddCommand(show, validate)
	return cmd
}
