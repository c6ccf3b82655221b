package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/pkg/paths"
	"github.com/grovetools/pulse/util/pathutil"
)

// Defaults applied by SetDefaults.
const (
	DefaultQueueSize         = 64
	DefaultDelimiter         = "|"
	DefaultDebounceMs        = 250
	DefaultShutdownTimeoutMs = 5000
)

// Default returns a configuration with only defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Daemon.Socket == "" {
		c.Daemon.Socket = paths.SocketPath()
	}
	if c.Daemon.PidFile == "" {
		c.Daemon.PidFile = paths.PidFilePath()
	}
	if c.Daemon.ShutdownTimeoutMs == 0 {
		c.Daemon.ShutdownTimeoutMs = DefaultShutdownTimeoutMs
	}
	if c.Registry.Backend == "" {
		c.Registry.Backend = BackendSQLite
	}
	if c.Registry.Path == "" && c.Registry.Backend != BackendMemory {
		c.Registry.Path = paths.RegistryPath(c.Registry.Backend)
	}
	if c.Hub.QueueSize == 0 {
		c.Hub.QueueSize = DefaultQueueSize
	}
	if c.Commands.Delimiter == "" {
		c.Commands.Delimiter = DefaultDelimiter
	}
	if c.Commands.Policy == "" {
		c.Commands.Policy = PolicyContinue
	}

	inbox := &c.Collectors.Inbox
	if inbox.Enabled == nil {
		enabled := true
		inbox.Enabled = &enabled
	}
	if inbox.Path == "" {
		inbox.Path = paths.InboxDir()
	}
	if inbox.DebounceMs == 0 {
		inbox.DebounceMs = DefaultDebounceMs
	}

	feed := &c.Collectors.Feed
	if feed.Enabled == nil {
		enabled := false
		feed.Enabled = &enabled
	}
	if feed.Path == "" {
		feed.Path = paths.FeedPath()
	}
}

// ExpandPaths expands ~ and environment variables in every path setting
// and makes them absolute.
func (c *Config) ExpandPaths() error {
	for field, p := range map[string]*string{
		"daemon.socket":         &c.Daemon.Socket,
		"daemon.pid_file":       &c.Daemon.PidFile,
		"registry.path":         &c.Registry.Path,
		"collectors.inbox.path": &c.Collectors.Inbox.Path,
		"collectors.feed.path":  &c.Collectors.Feed.Path,
	} {
		expanded, err := pathutil.Expand(*p)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, "failed to expand path").
				WithDetail("field", field)
		}
		*p = expanded
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Registry.Backend {
	case BackendSQLite, BackendBadger, BackendMemory:
	default:
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("unknown registry backend '%s'", c.Registry.Backend)).
			WithDetail("backend", c.Registry.Backend)
	}

	if c.Hub.QueueSize < 1 {
		return errors.New(errors.ErrCodeConfigValidation, "hub.queue_size must be at least 1").
			WithDetail("queue_size", c.Hub.QueueSize)
	}

	if strings.TrimSpace(c.Commands.Delimiter) == "" {
		return errors.New(errors.ErrCodeConfigValidation, "commands.delimiter cannot be blank")
	}

	switch c.Commands.Policy {
	case PolicyContinue, PolicyFailFast:
	default:
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("unknown command policy '%s'", c.Commands.Policy)).
			WithDetail("policy", c.Commands.Policy)
	}

	if c.Collectors.Inbox.DebounceMs < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "collectors.inbox.debounce_ms cannot be negative")
	}
	if c.Daemon.ShutdownTimeoutMs < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "daemon.shutdown_timeout_ms cannot be negative")
	}

	for field, path := range map[string]string{
		"daemon.socket":         c.Daemon.Socket,
		"daemon.pid_file":       c.Daemon.PidFile,
		"collectors.inbox.path": c.Collectors.Inbox.Path,
		"collectors.feed.path":  c.Collectors.Feed.Path,
	} {
		if err := validatePath(field, path); err != nil {
			return err
		}
	}

	return nil
}

// InboxEnabled reports whether the inbox collector should run.
func (c *Config) InboxEnabled() bool {
	return c.Collectors.Inbox.Enabled == nil || *c.Collectors.Inbox.Enabled
}

// FeedEnabled reports whether the feed collector should run.
func (c *Config) FeedEnabled() bool {
	return c.Collectors.Feed.Enabled != nil && *c.Collectors.Feed.Enabled
}

func validatePath(fieldName, path string) error {
	if path == "" {
		return nil
	}
	if strings.ContainsRune(path, 0) {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s contains a NUL byte", fieldName))
	}
	if filepath.Clean(path) == "." {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must name a file or directory", fieldName)).
			WithDetail("path", path)
	}
	return nil
}
