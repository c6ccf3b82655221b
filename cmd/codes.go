package cmd

import (
	"github.com/grovetools/pulse/cli"
	"github.com/spf13/cobra"
)

// NewCodesCmd lists the persisted code table.
func NewCodesCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "codes",
		Short: "List assigned codes and the items they address",
		Long: `List every code ever assigned. Codes are never reused, so the table
also holds codes whose items have left the snapshot (PRESENT = no).

Examples:
  pulse codes
  pulse codes --category P`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, opts, err := cli.Connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			entries, err := client.Codes(cmd.Context(), category)
			if err != nil {
				return err
			}
			if opts.JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), entries)
			}
			cli.RenderCodes(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only this category: C (schedule), P (priority) or M (commitment)")
	return cmd
}

// NewVerbsCmd lists the command verbs the daemon accepts.
func NewVerbsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verbs",
		Short: "List the verbs accepted by 'pulse do'",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, opts, err := cli.Connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			verbs, err := client.Verbs(cmd.Context())
			if err != nil {
				return err
			}
			if opts.JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), verbs)
			}
			cli.RenderVerbs(cmd.OutOrStdout(), verbs)
			return nil
		},
	}
}
