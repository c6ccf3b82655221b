package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grovetools/pulse/cli"
	"github.com/grovetools/pulse/errors"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// NewDoCmd runs a piped command line against the daemon.
func NewDoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "do <command line>",
		Short: "Run one or more verb [code] [arg] commands",
		Long: `Run commands against the current snapshot. Segments are separated by
the configured delimiter ("|" by default) and each reports its own outcome.
With no arguments the line is read from stdin, one line per run.

Examples:
  pulse do approve P7
  pulse do 'approve P7 | refresh | brief C3'
  echo 'done M2' | pulse do`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := commandLines(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			client, opts, err := cli.Connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			failed := 0
			for _, line := range lines {
				report, err := client.Command(cmd.Context(), line)
				if err != nil {
					return err
				}
				if report.Failed {
					failed++
				}
				if opts.JSONOutput {
					if err := cli.PrintJSON(cmd.OutOrStdout(), report); err != nil {
						return err
					}
					continue
				}
				cli.RenderReport(cmd.OutOrStdout(), report)
			}
			if failed > 0 {
				return errors.Newf(errors.ErrCodeHandlerFailed, "%d of %d command lines had failing segments", failed, len(lines))
			}
			return nil
		},
	}
}

// commandLines joins args into one line, or reads non-empty lines from in
// when there are no args and in is not a terminal.
func commandLines(in io.Reader, args []string) ([]string, error) {
	if len(args) > 0 {
		return []string{strings.Join(args, " ")}, nil
	}
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no command given")
	}

	var lines []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commands: %w", err)
	}
	if len(lines) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no command given")
	}
	return lines, nil
}
