// Package paths resolves where pulse keeps its files.
//
// Resolution order:
// 1. PULSE_HOME (portable root) → $PULSE_HOME/{config,data,state,run}
// 2. XDG env vars → $XDG_*_HOME/pulse
// 3. Platform defaults → ~/.config/pulse, ~/.local/share/pulse, ~/.local/state/pulse
package paths

import (
	"os"
	"path/filepath"
)

const appName = "pulse"

func home(sub, xdgVar string, fallback ...string) string {
	if root := os.Getenv("PULSE_HOME"); root != "" {
		return filepath.Join(root, sub)
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return filepath.Join(dir, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{homeDir}, append(fallback, appName)...)...)
	}
	return ""
}

// ConfigDir holds the user-level pulse.yml.
func ConfigDir() string {
	return home("config", "XDG_CONFIG_HOME", ".config")
}

// DataDir holds user data such as the default inbox.
func DataDir() string {
	return home("data", "XDG_DATA_HOME", ".local", "share")
}

// StateDir holds the code table, pid file and logs.
func StateDir() string {
	return home("state", "XDG_STATE_HOME", ".local", "state")
}

// RuntimeDir holds the daemon socket. It uses XDG_RUNTIME_DIR when set and
// falls back to StateDir.
func RuntimeDir() string {
	if root := os.Getenv("PULSE_HOME"); root != "" {
		return filepath.Join(root, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// SocketPath returns the path to the daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "pulsed.sock")
}

// PidFilePath returns the path to the daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "pulsed.pid")
}

// RegistryPath returns the default code table location for a backend.
// SQLite uses a file; badger uses a directory.
func RegistryPath(backend string) string {
	if backend == "badger" {
		return filepath.Join(StateDir(), "codes.badger")
	}
	return filepath.Join(StateDir(), "codes.db")
}

// InboxDir returns the default inbox directory.
func InboxDir() string {
	return filepath.Join(DataDir(), "inbox")
}

// FeedPath returns the default feed file.
func FeedPath() string {
	return filepath.Join(DataDir(), "feed.jsonl")
}

// LogDir returns the directory for daemon log files.
func LogDir() string {
	return filepath.Join(StateDir(), "logs")
}

// EnsureDirs creates all pulse directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), DataDir(), StateDir(), RuntimeDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
