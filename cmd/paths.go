package cmd

import (
	"fmt"

	"github.com/grovetools/pulse/cli"
	"github.com/grovetools/pulse/config"
	"github.com/grovetools/pulse/logging"
	"github.com/grovetools/pulse/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput lists the files and directories pulse uses.
type PathsOutput struct {
	ConfigDir string `json:"config_dir"`
	StateDir  string `json:"state_dir"`
	LogDir    string `json:"log_dir"`
	Socket    string `json:"socket"`
	PidFile   string `json:"pid_file"`
	Registry  string `json:"registry"`
	Inbox     string `json:"inbox"`
	Feed      string `json:"feed"`
}

func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by pulse",
		Long: `Print the paths used by pulse after applying configuration.

Paths follow the XDG Base Directory Specification. PULSE_HOME, when set,
roots every path in one directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := cli.LoadConfig(opts)
			if err != nil {
				return err
			}
			output := PathsOutput{
				ConfigDir: paths.ConfigDir(),
				StateDir:  paths.StateDir(),
				LogDir:    paths.LogDir(),
				Socket:    cli.SocketPath(opts, cfg),
				PidFile:   cfg.Daemon.PidFile,
				Registry:  cfg.Registry.Path,
				Inbox:     cfg.Collectors.Inbox.Path,
				Feed:      cfg.Collectors.Feed.Path,
			}
			if cfg.Registry.Backend == config.BackendMemory {
				output.Registry = "(memory)"
			}

			if opts.JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), output)
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			pretty.Path("Config dir", output.ConfigDir)
			pretty.Path("State dir", output.StateDir)
			pretty.Path("Logs", output.LogDir)
			pretty.Path("Socket", output.Socket)
			pretty.Path("PID file", output.PidFile)
			pretty.Field("Registry", fmt.Sprintf("%s (%s)", output.Registry, cfg.Registry.Backend))
			pretty.Path("Inbox", output.Inbox)
			pretty.Path("Feed", output.Feed)
			return nil
		},
	}
}
