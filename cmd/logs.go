package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"

	"github.com/grovetools/pulse/cli"
	"github.com/grovetools/pulse/logging"
	"github.com/grovetools/pulse/pkg/logging/logutil"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// TailedLine is one log line and the file it came from.
type TailedLine struct {
	Component string `json:"component"`
	Line      string `json:"line"`
}

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	var (
		follow     bool
		tailLines  int
		components []string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon's log files",
		Long: `Show the log files written by the daemon's file sink
(logging.file.enabled in pulse.yml). By default the newest file of each
component is printed.

Examples:
  # Follow every component
  pulse logs -f

  # Last 50 lines from the hub and the registry
  pulse logs --tail 50 -C hub,registry`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := cli.LoadConfig(opts)
			if err != nil {
				return err
			}
			logCfg, err := logging.FromConfig(cfg)
			if err != nil {
				return err
			}

			files, err := logutil.FindLogFiles(logCfg, components)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No log files found. Enable logging.file in pulse.yml.")
				return nil
			}

			ctx := cmd.Context()
			lineChan := make(chan TailedLine, 100)
			var wg sync.WaitGroup
			for component, path := range files {
				wg.Add(1)
				go func(component, path string) {
					defer wg.Done()
					if err := tailFile(ctx, component, path, follow, tailLines, lineChan); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					}
				}(component, path)
			}
			go func() {
				wg.Wait()
				close(lineChan)
			}()

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			for line := range lineChan {
				if opts.JSONOutput {
					if err := enc.Encode(line); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s %s\n", cli.DefaultTheme.Muted.Render(line.Component), line.Line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVar(&tailLines, "tail", -1, "Number of lines to show from the end of each file (default: all)")
	cmd.Flags().StringSliceVarP(&components, "component", "C", nil, "Only these components (comma-separated)")
	return cmd
}

// tailFile sends the last tailLines lines of path (all when negative), then
// follows appends when follow is set.
func tailFile(ctx context.Context, component, path string, follow bool, tailLines int, out chan<- TailedLine) error {
	if tailLines >= 0 {
		lines, err := lastLines(path, tailLines)
		if err != nil {
			return err
		}
		for _, l := range lines {
			out <- TailedLine{Component: component, Line: l}
		}
		if !follow {
			return nil
		}
	}

	cfg := tail.Config{
		Follow: follow,
		ReOpen: follow,
		Logger: stdlog.New(io.Discard, "", 0),
	}
	if tailLines >= 0 {
		cfg.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}
	t, err := tail.TailFile(path, cfg)
	if err != nil {
		return err
	}
	defer t.Cleanup()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return line.Err
			}
			out <- TailedLine{Component: component, Line: line.Text}
		}
	}
}

func lastLines(path string, n int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
