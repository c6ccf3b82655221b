package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Registry backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Command failure policies.
const (
	PolicyContinue = "continue"
	PolicyFailFast = "fail_fast"
)

// DaemonConfig locates the daemon's socket and pid file.
type DaemonConfig struct {
	Socket            string `yaml:"socket,omitempty" toml:"socket,omitempty" json:"socket,omitempty" env:"PULSE_SOCKET" jsonschema:"description=Unix socket the daemon listens on"`
	PidFile           string `yaml:"pid_file,omitempty" toml:"pid_file,omitempty" json:"pid_file,omitempty" env:"PULSE_PID_FILE" jsonschema:"description=Path of the daemon pid file"`
	ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms,omitempty" toml:"shutdown_timeout_ms,omitempty" json:"shutdown_timeout_ms,omitempty" env:"PULSE_SHUTDOWN_TIMEOUT_MS" jsonschema:"minimum=0,description=Grace period for open connections on shutdown"`
}

// RegistryConfig selects where the code table is persisted.
type RegistryConfig struct {
	Backend string `yaml:"backend,omitempty" toml:"backend,omitempty" json:"backend,omitempty" env:"PULSE_REGISTRY_BACKEND" jsonschema:"enum=sqlite,enum=badger,enum=memory,description=Code table storage backend"`
	Path    string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" env:"PULSE_REGISTRY_PATH" jsonschema:"description=Code table location (file for sqlite, directory for badger)"`
}

// HubConfig tunes subscriber fan-out.
type HubConfig struct {
	QueueSize int `yaml:"queue_size,omitempty" toml:"queue_size,omitempty" json:"queue_size,omitempty" env:"PULSE_HUB_QUEUE_SIZE" jsonschema:"minimum=1,description=Snapshots buffered per subscriber before it is dropped"`
}

// CommandsConfig controls how command lines are split and executed.
type CommandsConfig struct {
	Delimiter string `yaml:"delimiter,omitempty" toml:"delimiter,omitempty" json:"delimiter,omitempty" env:"PULSE_COMMAND_DELIMITER" jsonschema:"description=Separator between piped commands"`
	Policy    string `yaml:"policy,omitempty" toml:"policy,omitempty" json:"policy,omitempty" env:"PULSE_COMMAND_POLICY" jsonschema:"enum=continue,enum=fail_fast,description=What happens to later segments after one fails"`
}

// FailFast reports whether the command policy stops at the first failure.
func (c CommandsConfig) FailFast() bool {
	return c.Policy == PolicyFailFast
}

// InboxConfig configures the directory-watching collector.
type InboxConfig struct {
	Enabled    *bool    `yaml:"enabled,omitempty" toml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"description=Watch the inbox directory (default true)"`
	Path       string   `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" env:"PULSE_INBOX" jsonschema:"description=Directory holding <section>.json|yaml|toml files"`
	Patterns   []string `yaml:"patterns,omitempty" toml:"patterns,omitempty" json:"patterns,omitempty" jsonschema:"description=File patterns to ingest"`
	Ignore     []string `yaml:"ignore,omitempty" toml:"ignore,omitempty" json:"ignore,omitempty" jsonschema:"description=File patterns to skip"`
	DebounceMs int      `yaml:"debounce_ms,omitempty" toml:"debounce_ms,omitempty" json:"debounce_ms,omitempty" jsonschema:"minimum=0,description=Quiet period before a changed file is read"`
}

// FeedConfig configures the JSONL feed collector.
type FeedConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty" toml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"description=Follow the feed file (default false)"`
	Path    string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" env:"PULSE_FEED" jsonschema:"description=Append-only JSONL file of batches"`
}

// CollectorsConfig groups the built-in collectors.
type CollectorsConfig struct {
	Inbox InboxConfig `yaml:"inbox,omitempty" toml:"inbox,omitempty" json:"inbox,omitempty" jsonschema:"description=Inbox directory collector"`
	Feed  FeedConfig  `yaml:"feed,omitempty" toml:"feed,omitempty" json:"feed,omitempty" jsonschema:"description=JSONL feed collector"`
}

// Config represents pulse.yml.
type Config struct {
	Version    string           `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty" jsonschema:"description=Configuration version (e.g. 1.0)"`
	Daemon     DaemonConfig     `yaml:"daemon,omitempty" toml:"daemon,omitempty" json:"daemon,omitempty" jsonschema:"description=Daemon process settings"`
	Registry   RegistryConfig   `yaml:"registry,omitempty" toml:"registry,omitempty" json:"registry,omitempty" jsonschema:"description=Code registry persistence"`
	Hub        HubConfig        `yaml:"hub,omitempty" toml:"hub,omitempty" json:"hub,omitempty" jsonschema:"description=Subscriber broadcast settings"`
	Commands   CommandsConfig   `yaml:"commands,omitempty" toml:"commands,omitempty" json:"commands,omitempty" jsonschema:"description=Command line handling"`
	Collectors CollectorsConfig `yaml:"collectors,omitempty" toml:"collectors,omitempty" json:"collectors,omitempty" jsonschema:"description=Built-in item collectors"`

	// Extensions captures all other top-level keys, such as logging.
	Extensions map[string]interface{} `yaml:"-" toml:"-" json:"-" jsonschema:"-"`
}

var knownKeys = map[string]bool{
	"version":    true,
	"daemon":     true,
	"registry":   true,
	"hub":        true,
	"commands":   true,
	"collectors": true,
}

// UnmarshalExtension decodes a specific extension's configuration into the
// provided target struct. The target must be a pointer. A missing key
// leaves target untouched.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
