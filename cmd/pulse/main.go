// Command pulse runs and talks to the pulse daemon.
package main

import (
	"os"

	"github.com/grovetools/pulse/cli"
	"github.com/grovetools/pulse/cmd"
	"github.com/grovetools/pulse/pkg/profiling"
)

func main() {
	root := cli.NewStandardCommand("pulse", "Versioned status snapshots with stable item codes")
	root.Long = `pulse keeps a versioned snapshot of schedule, priority and commitment
items, gives every item a short stable code (C1, P2, M3), and accepts
piped commands that act on those codes.

Examples:
  # Start the daemon in the foreground
  pulse daemon start

  # Show the current snapshot
  pulse state

  # Run several commands at once
  pulse do "done P1 | snooze C2 1h"`
	cli.SetVersionTemplate(root)
	profiling.NewCobraProfiler().Attach(root)

	root.AddCommand(
		cmd.NewDaemonCmd(),
		cmd.NewStateCmd(),
		cmd.NewDoCmd(),
		cmd.NewIngestCmd(),
		cmd.NewCodesCmd(),
		cmd.NewVerbsCmd(),
		cmd.NewWatchCmd(),
		cmd.NewConfigCmd(),
		cmd.NewPathsCmd(),
		cmd.NewLogsCmd(),
		cli.NewVersionCommand("pulse"),
	)
	cli.ApplyStyledHelp(root)

	if err := root.Execute(); err != nil {
		verbose, _ := root.PersistentFlags().GetBool("verbose")
		cli.NewErrorHandler(verbose).Handle(err)
		os.Exit(1)
	}
}
