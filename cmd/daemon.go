package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/grovetools/pulse/cli"
	"github.com/grovetools/pulse/config"
	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/internal/daemon/actions"
	"github.com/grovetools/pulse/internal/daemon/collector"
	"github.com/grovetools/pulse/internal/daemon/command"
	"github.com/grovetools/pulse/internal/daemon/engine"
	"github.com/grovetools/pulse/internal/daemon/hub"
	"github.com/grovetools/pulse/internal/daemon/pidfile"
	"github.com/grovetools/pulse/internal/daemon/registry"
	"github.com/grovetools/pulse/internal/daemon/registry/badgertable"
	"github.com/grovetools/pulse/internal/daemon/registry/sqlitetable"
	"github.com/grovetools/pulse/internal/daemon/server"
	"github.com/grovetools/pulse/internal/daemon/store"
	"github.com/grovetools/pulse/logging"
	"github.com/grovetools/pulse/pkg/daemon"
	"github.com/grovetools/pulse/pkg/paths"
	"github.com/grovetools/pulse/pkg/process"
	"github.com/grovetools/pulse/util/pathutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewDaemonCmd returns the daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and inspect the pulse daemon",
		Long:  "The daemon owns the snapshot, the code registry and every subscriber connection.",
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := cli.LoadConfig(opts)
			if err != nil {
				return err
			}
			if err := cli.SetupLogging(cfg, opts.Verbose); err != nil {
				return err
			}
			if opts.Socket != "" {
				cfg.Daemon.Socket = opts.Socket
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cwd, _ := os.Getwd()
			return runDaemon(ctx, cfg, cwd, logging.NewLogger("pulsed"))
		},
	}
}

// runDaemon builds every component from cfg and serves until ctx is
// cancelled or the server fails. watchDir, when set, is watched for config
// changes.
func runDaemon(ctx context.Context, cfg *config.Config, watchDir string, logger *logrus.Entry) error {
	pidPath := cfg.Daemon.PidFile
	if err := pidfile.Acquire(pidPath); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.WithError(err).Error("Failed to release pidfile")
		}
	}()

	reg, err := openRegistry(ctx, cfg.Registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Flush(context.Background()); err != nil {
			logger.WithError(err).Error("Failed to flush code table")
		}
		if err := reg.Close(); err != nil {
			logger.WithError(err).Error("Failed to close code table")
		}
	}()

	st := store.New(reg, store.WithLogger(logging.NewLogger("store")))

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	h := hub.New(st,
		hub.WithQueueSize(cfg.Hub.QueueSize),
		hub.WithLogger(logging.NewLogger("hub")),
		hub.WithRegisterer(promReg),
	)
	st.SetPublisher(h)

	eng := engine.New(st, logging.NewLogger("engine"))
	if err := registerCollectors(eng, cfg); err != nil {
		return err
	}

	verbs := command.NewRegistry()
	if err := actions.Register(verbs, st, eng, actions.WithLogger(logging.NewLogger("actions"))); err != nil {
		return err
	}
	policy := command.PolicyContinue
	if cfg.Commands.FailFast() {
		policy = command.PolicyFailFast
	}
	runner := command.NewRunner(verbs, reg, st, cfg.Commands.Delimiter, policy, logging.NewLogger("command"))

	srv := server.New(logging.NewLogger("server"), server.Deps{
		State:    st,
		Hub:      h,
		Ingest:   eng,
		Commands: runner,
		Verbs:    verbs,
		Codes:    reg,
		Gatherer: promReg,
		Running: &server.RunningConfig{
			Config:     cfg,
			Collectors: eng.Collectors(),
			StartedAt:  time.Now().UTC(),
			PID:        os.Getpid(),
		},
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return eng.Start(gctx) })

	if watchDir != "" {
		watcher, err := config.NewWatcher(watchDir, []string{paths.ConfigDir()}, 0, logging.NewLogger("config"), func(next *config.Config) {
			applyReload(cfg, next, logger)
		})
		if err != nil {
			logger.WithError(err).Warn("Config watching disabled")
		} else {
			g.Go(func() error {
				watcher.Start(gctx)
				return nil
			})
		}
	}

	g.Go(func() error {
		defer cancel()
		return srv.ListenAndServe(cfg.Daemon.Socket)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Stopping daemon")
		// Closing the hub ends every stream handler so Shutdown does not
		// wait on them.
		h.Close()
		timeout := time.Duration(cfg.Daemon.ShutdownTimeoutMs) * time.Millisecond
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Server shutdown error")
		}
		return nil
	})

	logger.WithFields(logrus.Fields{
		"pid":      os.Getpid(),
		"socket":   cfg.Daemon.Socket,
		"registry": cfg.Registry.Backend,
	}).Info("Starting daemon")

	if err := g.Wait(); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}
	return nil
}

// openRegistry opens the configured code table and loads it.
func openRegistry(ctx context.Context, cfg config.RegistryConfig) (*registry.Registry, error) {
	log := logging.NewLogger("registry")

	var table registry.Table
	switch cfg.Backend {
	case config.BackendMemory:
		table = registry.NewMemoryTable()
	case config.BackendBadger:
		bcfg := badgertable.DefaultConfig(cfg.Path)
		bcfg.Logger = log
		t, err := badgertable.Open(bcfg)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodePersistence, "failed to open badger code table").
				WithDetail("path", cfg.Path)
		}
		table = t
	default:
		t, err := sqlitetable.Open(ctx, cfg.Path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodePersistence, "failed to open sqlite code table").
				WithDetail("path", cfg.Path)
		}
		table = t
	}

	reg, err := registry.Open(ctx, table, registry.WithLogger(log))
	if err != nil {
		_ = table.Close()
		return nil, err
	}
	return reg, nil
}

func registerCollectors(eng *engine.Engine, cfg *config.Config) error {
	if cfg.InboxEnabled() {
		inbox := cfg.Collectors.Inbox
		c, err := collector.NewInboxCollector(collector.InboxConfig{
			Dir:      inbox.Path,
			Patterns: inbox.Patterns,
			Ignore:   inbox.Ignore,
			Debounce: time.Duration(inbox.DebounceMs) * time.Millisecond,
		}, logging.NewLogger("inbox"))
		if err != nil {
			return err
		}
		eng.Register(c)
	}
	if cfg.FeedEnabled() {
		feed := cfg.Collectors.Feed
		if err := os.MkdirAll(filepath.Dir(feed.Path), 0755); err != nil {
			return fmt.Errorf("failed to create feed directory: %w", err)
		}
		eng.Register(collector.NewFeedCollector(feed.Path, logging.NewLogger("feed")))
	}
	return nil
}

// applyReload applies the parts of a reloaded config that can change
// without a restart and warns about the rest.
func applyReload(current, next *config.Config, logger *logrus.Entry) {
	if logCfg, err := logging.FromConfig(next); err != nil {
		logger.WithError(err).Warn("Ignoring invalid logging config")
	} else {
		logging.Configure(logCfg)
	}

	restart := map[string]bool{
		"daemon.socket":    current.Daemon.Socket != next.Daemon.Socket,
		"registry":         current.Registry != next.Registry,
		"hub.queue_size":   current.Hub.QueueSize != next.Hub.QueueSize,
		"commands":         current.Commands != next.Commands,
		"collectors.inbox": !samePath(current.Collectors.Inbox.Path, next.Collectors.Inbox.Path),
		"collectors.feed":  !samePath(current.Collectors.Feed.Path, next.Collectors.Feed.Path),
	}
	for key, changed := range restart {
		if changed {
			logger.WithField("setting", key).Warn("Setting changed; restart the daemon to apply it")
		}
	}
}

func samePath(a, b string) bool {
	same, err := pathutil.ComparePaths(a, b)
	return err == nil && same
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cli.GetOptions(cmd))
			if err != nil {
				return err
			}
			pidPath := cfg.Daemon.PidFile
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				pretty.WarnPretty("Daemon is not running")
				return nil
			}

			p, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := p.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			deadline := time.Now().Add(time.Duration(cfg.Daemon.ShutdownTimeoutMs)*time.Millisecond + time.Second)
			for time.Now().Before(deadline) {
				if !process.IsProcessAlive(pid) {
					pretty.Success(fmt.Sprintf("Stopped daemon (PID %d)", pid))
					return nil
				}
				time.Sleep(50 * time.Millisecond)
			}
			pretty.WarnPretty(fmt.Sprintf("Sent SIGTERM to process %d; it is still shutting down", pid))
			return nil
		},
	}
}

// DaemonStatus is the --json output of daemon status.
type DaemonStatus struct {
	Running     bool   `json:"running"`
	PID         int    `json:"pid,omitempty"`
	Socket      string `json:"socket"`
	Version     uint64 `json:"version,omitempty"`
	Subscribers int    `json:"subscribers,omitempty"`
	Uptime      string `json:"uptime,omitempty"`
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		Long:  "Check daemon status. Exits non-zero when the daemon is stopped.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := cli.LoadConfig(opts)
			if err != nil {
				return err
			}
			socket := cli.SocketPath(opts, cfg)
			status := DaemonStatus{Socket: socket}

			running, pid, err := pidfile.IsRunning(cfg.Daemon.PidFile)
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}
			status.Running, status.PID = running, pid

			if client, err := daemon.New(socket); err == nil {
				defer client.Close()
				if health, err := client.Health(cmd.Context()); err == nil {
					status.Running = true
					status.PID = health.PID
					status.Version = health.Version
					status.Subscribers = health.Subscribers
					status.Uptime = health.Uptime
				}
			}

			if opts.JSONOutput {
				if err := cli.PrintJSON(cmd.OutOrStdout(), status); err != nil {
					return err
				}
			} else if status.Running {
				pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
				pretty.Success(fmt.Sprintf("Running (PID %d)", status.PID))
				pretty.Path("Socket", status.Socket)
				if status.Uptime != "" {
					pretty.Field("Uptime", status.Uptime)
					pretty.Field("Version", status.Version)
					pretty.Field("Subscribers", status.Subscribers)
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
			}

			if !status.Running {
				return errors.DaemonNotRunning(socket)
			}
			return nil
		},
	}
}
