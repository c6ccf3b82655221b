package daemon

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/pkg/paths"
)

// dialTimeout bounds the liveness probe in New.
const dialTimeout = 100 * time.Millisecond

// New returns a Client for the daemon listening on socketPath. An empty
// path uses the default socket location. If the socket does not exist or
// nothing accepts on it, New returns a DAEMON_NOT_RUNNING error.
func New(socketPath string) (Client, error) {
	if socketPath == "" {
		socketPath = paths.SocketPath()
	}
	if _, err := os.Stat(socketPath); err != nil {
		return nil, errors.DaemonNotRunning(socketPath)
	}
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDaemonNotRunning, "pulse daemon is not accepting connections").
			WithDetail("socket", socketPath)
	}
	conn.Close()
	return NewRemoteClient(socketPath), nil
}

// MustConnect returns a Client or panics if the daemon is not available.
// Use this in contexts where the daemon is required (e.g., daemon-only tools).
func MustConnect(socketPath string) Client {
	client, err := New(socketPath)
	if err != nil {
		panic("pulse daemon is not running; start it with 'pulse daemon start'")
	}
	return client
}
