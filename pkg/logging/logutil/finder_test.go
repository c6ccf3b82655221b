package logutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/pulse/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLogFiles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PULSE_HOME", home)
	dir := filepath.Join(home, "state", "logs")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range []string{"pulsed-2026-10-15.log", "pulsed-2026-10-16.log", "hub-2026-10-16.log", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0644))
	}

	files, err := FindLogFiles(logging.Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"pulsed": filepath.Join(dir, "pulsed-2026-10-16.log"),
		"hub":    filepath.Join(dir, "hub-2026-10-16.log"),
	}, files)

	files, err = FindLogFiles(logging.Config{}, []string{" hub "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"hub": filepath.Join(dir, "hub-2026-10-16.log")}, files)
}

func TestFindLogFilesSharedPath(t *testing.T) {
	cfg := logging.Config{}
	cfg.File.Path = "/var/log/pulse.log"
	files, err := FindLogFiles(cfg, []string{"hub"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{SharedComponent: "/var/log/pulse.log"}, files)
}

func TestComponentOf(t *testing.T) {
	c, ok := componentOf("/x/command-runner-2026-10-16.log")
	assert.True(t, ok)
	assert.Equal(t, "command-runner", c)

	_, ok = componentOf("/x/2026-10-16.log")
	assert.False(t, ok)
}
