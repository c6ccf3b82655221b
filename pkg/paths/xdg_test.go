package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPulseHomeWins(t *testing.T) {
	root := t.TempDir()
	t.Setenv("PULSE_HOME", root)
	t.Setenv("XDG_CONFIG_HOME", "/elsewhere")

	assert.Equal(t, filepath.Join(root, "config"), ConfigDir())
	assert.Equal(t, filepath.Join(root, "state", "pulsed.pid"), PidFilePath())
	assert.Equal(t, filepath.Join(root, "run", "pulsed.sock"), SocketPath())
	assert.Equal(t, filepath.Join(root, "state", "codes.db"), RegistryPath("sqlite"))
	assert.Equal(t, filepath.Join(root, "state", "codes.badger"), RegistryPath("badger"))
	assert.Equal(t, filepath.Join(root, "data", "inbox"), InboxDir())

	require.NoError(t, EnsureDirs())
	assert.DirExists(t, filepath.Join(root, "run"))
}

func TestXDGFallback(t *testing.T) {
	t.Setenv("PULSE_HOME", "")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")
	t.Setenv("XDG_RUNTIME_DIR", "")

	assert.Equal(t, "/xdg/state/pulse", StateDir())
	assert.Equal(t, "/xdg/state/pulse/pulsed.sock", SocketPath())
}
