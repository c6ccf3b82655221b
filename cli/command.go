package cli

import (
	"encoding/json"
	"io"

	"github.com/grovetools/pulse/config"
	"github.com/grovetools/pulse/logging"
	"github.com/grovetools/pulse/pkg/daemon"
	"github.com/grovetools/pulse/pkg/paths"
	"github.com/spf13/cobra"
)

// CommandOptions holds common options for pulse commands
type CommandOptions struct {
	ConfigFile string
	Socket     string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a new command with the standard pulse flags
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to pulse.yml config file")
	cmd.PersistentFlags().String("socket", "", "Daemon socket path (overrides daemon.socket)")

	return cmd
}

// GetOptions extracts common options from a command
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	socket, _ := cmd.Flags().GetString("socket")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Socket:     socket,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// LoadConfig loads the file named by --config, or the layered
// configuration for the current directory.
func LoadConfig(opts CommandOptions) (*config.Config, error) {
	if opts.ConfigFile != "" {
		return config.Load(opts.ConfigFile)
	}
	return config.LoadDefault()
}

// SetupLogging applies the config's logging section. --verbose forces the
// debug level.
func SetupLogging(cfg *config.Config, verbose bool) error {
	logCfg, err := logging.FromConfig(cfg)
	if err != nil {
		return err
	}
	if verbose {
		logCfg.Level = "debug"
	}
	logging.Configure(logCfg)
	return nil
}

// SocketPath resolves the daemon socket: --socket, then daemon.socket,
// then the default location.
func SocketPath(opts CommandOptions, cfg *config.Config) string {
	if opts.Socket != "" {
		return opts.Socket
	}
	if cfg != nil && cfg.Daemon.Socket != "" {
		return cfg.Daemon.Socket
	}
	return paths.SocketPath()
}

// Connect loads configuration and returns a client for the running daemon.
func Connect(cmd *cobra.Command) (daemon.Client, CommandOptions, error) {
	opts := GetOptions(cmd)
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, opts, err
	}
	if err := SetupLogging(cfg, opts.Verbose); err != nil {
		return nil, opts, err
	}
	client, err := daemon.New(SocketPath(opts, cfg))
	return client, opts, err
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
