package cli

import (
	"fmt"

	"github.com/grovetools/pulse/version"
	"github.com/spf13/cobra"
)

// SetVersionTemplate sets the --version output of the root command.
func SetVersionTemplate(cmd *cobra.Command) {
	info := version.GetInfo()
	cmd.Version = info.Version
	cmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}} (%s, %s)\n", info.Commit, info.Platform))
}

// NewVersionCommand creates the standard version command. --json prints
// the full build info.
func NewVersionCommand(componentName string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: fmt.Sprintf("Print the version number of %s", componentName),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()
			if GetOptions(cmd).JSONOutput {
				return PrintJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n%s\n", componentName, info.Version, info.String())
			return nil
		},
	}
}
