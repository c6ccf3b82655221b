package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/pulse/cli"
	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/internal/daemon/collector"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/spf13/cobra"
)

// NewIngestCmd pushes a batch of records into one item section.
func NewIngestCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "ingest <section> [file|-]",
		Short: "Replace an item section with records from a file or stdin",
		Long: `Replace calendar, priorities or commitments with a batch of records.
The input is a list of records or a map with an "items" list, as JSON,
YAML or TOML. Records with a "key" field keep their code across batches
by that key; others are keyed by their content.

Examples:
  pulse ingest priorities today.yml
  cat events.json | pulse ingest calendar --format json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sec, err := models.ParseSection(args[0])
			if err != nil {
				return err
			}
			if !sec.HoldsItems() {
				return errors.InvalidSection(string(sec))
			}

			src := "-"
			if len(args) == 2 {
				src = args[1]
			}
			req, err := readBatch(cmd.InOrStdin(), src, format, sec)
			if err != nil {
				return err
			}
			if req.Source == "" {
				req.Source = "cli"
			}

			client, opts, err := cli.Connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Ingest(cmd.Context(), req)
			if err != nil {
				return err
			}
			if opts.JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items at version %d (%s)\n",
				resp.Section, len(resp.Codes), resp.Version, strings.Join(resp.Codes, " "))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Input format: json, yaml or toml (default from file extension, yaml for stdin)")
	return cmd
}

// readBatch reads and validates a batch from src, a path or "-" for in.
func readBatch(in io.Reader, src, format string, sec models.Section) (models.IngestRequest, error) {
	var data []byte
	var err error
	if src == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return models.IngestRequest{}, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read batch").
			WithDetail("source", src)
	}

	if format == "" {
		format = "yaml"
		if f, ok := collector.Formats[strings.ToLower(filepath.Ext(src))]; ok {
			format = f
		}
	}
	doc, err := collector.DecodeDocument(data, format)
	if err != nil {
		return models.IngestRequest{}, errors.Wrap(err, errors.ErrCodeParse, "failed to decode batch").
			WithDetail("source", src)
	}
	return collector.BatchFromDocument(doc, string(sec))
}
