package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grovetools/pulse/cli"
	"github.com/grovetools/pulse/logging"
	"github.com/grovetools/pulse/pkg/daemon"
	"github.com/spf13/cobra"
)

const reconnectDelay = 500 * time.Millisecond

// NewWatchCmd follows snapshots as the daemon publishes them.
func NewWatchCmd() *cobra.Command {
	var (
		sections  cli.SectionsValue
		websocket bool
		count     int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every new snapshot as it is published",
		Long: `Subscribe to the daemon and print each snapshot. If the daemon drops
the subscription because this client fell behind, watch reconnects and
starts again from the current snapshot.

Examples:
  pulse watch --section priorities
  pulse watch --json --ws | jq .version`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, opts, err := cli.Connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			log := logging.NewLogger("watch")
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			seen := 0

			subscribe := client.StreamState
			if websocket {
				subscribe = client.WatchState
			}

			ctx := cmd.Context()
			for {
				subCtx, cancel := context.WithCancel(ctx)
				updates, err := subscribe(subCtx)
				if err != nil {
					cancel()
					return err
				}
				dropped, err := drain(subCtx, updates, func(u daemon.StateUpdate) error {
					seen++
					if opts.JSONOutput {
						return enc.Encode(u.Snapshot)
					}
					if seen > 1 {
						fmt.Fprintln(out)
					}
					cli.RenderSnapshot(out, u.Snapshot, sections.Sections)
					return nil
				}, func() bool { return count > 0 && seen >= count })
				cancel()
				if err != nil || ctx.Err() != nil || (count > 0 && seen >= count) {
					return err
				}
				if dropped {
					log.Warn("Subscription dropped by the daemon, resubscribing")
				} else {
					log.Warn("Stream closed, reconnecting")
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(reconnectDelay):
				}
			}
		},
	}

	cmd.Flags().VarP(&sections, "section", "s", "Section to show (repeatable or comma-separated)")
	cmd.Flags().BoolVar(&websocket, "ws", false, "Use the websocket transport and acknowledge each snapshot")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many snapshots (0 = run until interrupted)")
	return cmd
}

// drain hands snapshots to fn until the channel closes, done reports true,
// or ctx ends. It reports whether the daemon dropped the subscription.
func drain(ctx context.Context, updates <-chan daemon.StateUpdate, fn func(daemon.StateUpdate) error, done func() bool) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case u, ok := <-updates:
			if !ok {
				return false, nil
			}
			if u.Dropped {
				return true, nil
			}
			if u.Snapshot == nil {
				continue
			}
			if err := fn(u); err != nil {
				return false, err
			}
			if done() {
				return false, nil
			}
		}
	}
}
