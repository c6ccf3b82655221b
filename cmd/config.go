package cmd

import (
	"fmt"
	"os"

	"github.com/grovetools/pulse/cli"
	"github.com/grovetools/pulse/config"
	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/pkg/daemon"
	"github.com/grovetools/pulse/schema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd groups configuration helpers.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect pulse configuration",
	}

	cmd.AddCommand(cli.NewSchemaCommand("schema", "Print the JSON schema for pulse.yml", config.GenerateSchema))
	cmd.AddCommand(cli.NewSchemaCommand("batch-schema", "Print the JSON schema for ingest batches", schema.BatchSchema))
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var fromDaemon bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging the global file, the project
file, pulse.override.* and PULSE_* variables. With --daemon, print what
the running daemon loaded instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := cli.LoadConfig(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if fromDaemon {
				client, err := daemon.New(cli.SocketPath(opts, cfg))
				if err != nil {
					return err
				}
				defer client.Close()
				running, err := client.Config(cmd.Context())
				if err != nil {
					return err
				}
				if opts.JSONOutput {
					return cli.PrintJSON(out, running)
				}
				fmt.Fprintf(out, "# daemon PID %d, collectors: %v\n", running.PID, running.Collectors)
				cfg = running.Config
			} else if opts.JSONOutput {
				return cli.PrintJSON(out, cfg)
			} else {
				cwd, _ := os.Getwd()
				source, err := config.FindConfigFile(cwd)
				switch {
				case opts.ConfigFile != "":
					source = opts.ConfigFile
				case errors.Is(err, errors.ErrCodeConfigNotFound):
					source = "(defaults)"
				case err != nil:
					return err
				}
				fmt.Fprintf(out, "# Source: %s\n", source)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprint(out, string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromDaemon, "daemon", false, "Show the running daemon's configuration")
	return cmd
}
