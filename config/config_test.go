package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/pulse/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("PULSE_HOME", home)
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadFromWithoutFileUsesDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Registry.Backend)
	assert.Equal(t, filepath.Join(home, "state", "codes.db"), cfg.Registry.Path)
	assert.Equal(t, DefaultQueueSize, cfg.Hub.QueueSize)
	assert.Equal(t, "|", cfg.Commands.Delimiter)
	assert.Equal(t, PolicyContinue, cfg.Commands.Policy)
	assert.False(t, cfg.Commands.FailFast())
	assert.True(t, cfg.InboxEnabled())
	assert.False(t, cfg.FeedEnabled())
	assert.Equal(t, filepath.Join(home, "data", "inbox"), cfg.Collectors.Inbox.Path)
}

func TestLoadYAMLWithEnvExpansionAndExtensions(t *testing.T) {
	isolate(t)
	t.Setenv("PULSE_TEST_INBOX", "/srv/inbox")

	cfg, err := LoadFromBytes([]byte(`
registry:
  backend: badger
  path: ${PULSE_TEST_REGISTRY:-/var/lib/pulse/codes}
hub:
  queue_size: 16
commands:
  delimiter: ";"
  policy: fail_fast
collectors:
  inbox:
    path: ${PULSE_TEST_INBOX}
    patterns: ["*.yml"]
    debounce_ms: 50
  feed:
    enabled: true
logging:
  level: debug
`), "yaml")
	require.NoError(t, err)

	assert.Equal(t, BackendBadger, cfg.Registry.Backend)
	assert.Equal(t, "/var/lib/pulse/codes", cfg.Registry.Path)
	assert.Equal(t, 16, cfg.Hub.QueueSize)
	assert.Equal(t, ";", cfg.Commands.Delimiter)
	assert.True(t, cfg.Commands.FailFast())
	assert.Equal(t, "/srv/inbox", cfg.Collectors.Inbox.Path)
	assert.Equal(t, []string{"*.yml"}, cfg.Collectors.Inbox.Patterns)
	assert.Equal(t, 50, cfg.Collectors.Inbox.DebounceMs)
	assert.True(t, cfg.FeedEnabled())

	var logCfg struct {
		Level string `yaml:"level"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "debug", logCfg.Level)

	var missing struct {
		Level string `yaml:"level"`
	}
	require.NoError(t, cfg.UnmarshalExtension("absent", &missing))
	assert.Empty(t, missing.Level)
}

func TestLoadTOML(t *testing.T) {
	isolate(t)

	cfg, err := LoadFromBytes([]byte(`
[registry]
backend = "memory"

[hub]
queue_size = 4

[collectors.inbox]
enabled = false
`), "toml")
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Registry.Backend)
	assert.Empty(t, cfg.Registry.Path)
	assert.Equal(t, 4, cfg.Hub.QueueSize)
	assert.False(t, cfg.InboxEnabled())
}

func TestEnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PULSE_HUB_QUEUE_SIZE", "8")
	t.Setenv("PULSE_COMMAND_POLICY", "fail_fast")
	t.Setenv("PULSE_SOCKET", "/tmp/custom.sock")

	cfg, err := LoadFromBytes([]byte("hub:\n  queue_size: 32\n"), "yaml")
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Hub.QueueSize)
	assert.Equal(t, PolicyFailFast, cfg.Commands.Policy)
	assert.Equal(t, "/tmp/custom.sock", cfg.Daemon.Socket)
}

func TestLayeredLoading(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, "config", "pulse.yml"), `
registry:
  backend: badger
hub:
  queue_size: 10
`)

	project := t.TempDir()
	writeFile(t, filepath.Join(project, "pulse.toml"), `
[hub]
queue_size = 20
`)
	writeFile(t, filepath.Join(project, "pulse.override.yml"), `
commands:
  delimiter: ";"
`)

	nested := filepath.Join(project, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := LoadFrom(nested)
	require.NoError(t, err)

	assert.Equal(t, BackendBadger, cfg.Registry.Backend, "global layer")
	assert.Equal(t, 20, cfg.Hub.QueueSize, "project overrides global")
	assert.Equal(t, ";", cfg.Commands.Delimiter, "override file applies last")
}

func TestInvalidConfiguration(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		doc  string
		code errors.ErrorCode
	}{
		{"unknown backend", "registry:\n  backend: postgres\n", errors.ErrCodeConfigInvalid},
		{"wrong type", "hub:\n  queue_size: lots\n", errors.ErrCodeConfigInvalid},
		{"unknown policy", "commands:\n  policy: retry\n", errors.ErrCodeConfigInvalid},
		{"blank delimiter", "commands:\n  delimiter: \" \"\n", errors.ErrCodeConfigValidation},
		{"bad yaml", "hub: [\n", errors.ErrCodeConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.doc), "yaml")
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pulse.yaml"), "version: \"1.0\"\n")
	nested := filepath.Join(root, "x", "y")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	path, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "pulse.yaml"), path)

	_, err = FindConfigFile(t.TempDir())
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PULSE_TEST_SET", "value")
	assert.Equal(t, "value", expandEnvVars("${PULSE_TEST_SET}"))
	assert.Equal(t, "fallback", expandEnvVars("${PULSE_TEST_UNSET:-fallback}"))
	assert.Equal(t, "", expandEnvVars("${PULSE_TEST_UNSET}"))
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)
	assert.Contains(t, string(data), "queue_size")
	assert.Contains(t, string(data), "fail_fast")
	assert.NotContains(t, string(data), "Extensions")
}

func TestWatcherReloadsOnChange(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yml")
	writeFile(t, path, "hub:\n  queue_size: 5\n")

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(dir, nil, 20*time.Millisecond, testLogger(), func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)

	ctx, cancel := contextWithCancel(t)
	defer cancel()
	go w.Start(ctx)

	writeFile(t, path, "hub:\n  queue_size: 7\n")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 7, cfg.Hub.QueueSize)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestPathsAreExpanded(t *testing.T) {
	isolate(t)
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := LoadFromBytes([]byte(`
daemon:
  socket: ~/run/pulsed.sock
registry:
  path: codes.db
`), "yaml")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "run", "pulsed.sock"), cfg.Daemon.Socket)
	assert.True(t, filepath.IsAbs(cfg.Registry.Path))
	assert.Equal(t, "codes.db", filepath.Base(cfg.Registry.Path))
}
