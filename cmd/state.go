package cmd

import (
	"github.com/grovetools/pulse/cli"
	"github.com/spf13/cobra"
)

// NewStateCmd prints the current snapshot.
func NewStateCmd() *cobra.Command {
	var sections cli.SectionsValue

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the current snapshot",
		Long: `Print the current snapshot held by the daemon.

Examples:
  # Everything
  pulse state

  # Only priorities and commitments
  pulse state --section priorities,commitments

  # Raw JSON
  pulse state --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, opts, err := cli.Connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			snap, err := client.State(cmd.Context())
			if err != nil {
				return err
			}
			if opts.JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), snap)
			}
			cli.RenderSnapshot(cmd.OutOrStdout(), snap, sections.Sections)
			return nil
		},
	}

	cmd.Flags().VarP(&sections, "section", "s", "Section to show (repeatable or comma-separated)")
	return cmd
}
