package daemon

import (
	"context"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/pulse/config"
	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/internal/daemon/actions"
	"github.com/grovetools/pulse/internal/daemon/command"
	"github.com/grovetools/pulse/internal/daemon/engine"
	"github.com/grovetools/pulse/internal/daemon/hub"
	"github.com/grovetools/pulse/internal/daemon/registry"
	"github.com/grovetools/pulse/internal/daemon/server"
	"github.com/grovetools/pulse/internal/daemon/store"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/grovetools/pulse/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDaemon serves a fully wired daemon on a temporary unix socket and
// returns the socket path.
func startDaemon(t *testing.T) (string, *store.Store) {
	t.Helper()
	ctx := context.Background()
	log := testutil.QuietLogger()

	reg, err := registry.Open(ctx, registry.NewMemoryTable(), registry.WithLogger(log))
	require.NoError(t, err)
	st := store.New(reg, store.WithLogger(log))
	h := hub.New(st, hub.WithQueueSize(16), hub.WithLogger(log), hub.WithRegisterer(prometheus.NewRegistry()))
	st.SetPublisher(h)
	eng := engine.New(st, log)
	verbs := command.NewRegistry()
	require.NoError(t, actions.Register(verbs, st, eng, actions.WithLogger(log)))
	runner := command.NewRunner(verbs, reg, st, "|", command.PolicyContinue, log)

	srv := server.New(log, server.Deps{
		State:    st,
		Hub:      h,
		Ingest:   eng,
		Commands: runner,
		Verbs:    verbs,
		Codes:    reg,
		Running:  &server.RunningConfig{Config: config.Default(), Collectors: []string{"api"}, PID: os.Getpid()},
	})

	socketPath := filepath.Join(testutil.SocketDir(t), "d.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ts := httptest.NewUnstartedServer(srv.Handler())
	ts.Listener = listener
	ts.Start()
	t.Cleanup(func() {
		h.Close()
		ts.Close()
	})
	return socketPath, st
}

func ingestRequest(section string, titles ...string) models.IngestRequest {
	items := make([]map[string]any, len(titles))
	for i, title := range titles {
		items[i] = map[string]any{"title": title}
	}
	return models.IngestRequest{Section: section, Items: items}
}

func TestNewWithoutDaemon(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.sock"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonNotRunning))
}

func TestClientRoundTrip(t *testing.T) {
	socketPath, _ := startDaemon(t)
	ctx := context.Background()

	client, err := New(socketPath)
	require.NoError(t, err)
	defer client.Close()
	assert.True(t, client.IsRunning())

	resp, err := client.Ingest(ctx, ingestRequest("priorities", "Ship release", "Write notes"))
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, resp.Codes)

	items, version, err := client.Items(ctx, models.SectionPriorities)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Write notes", items[1].Title())
	assert.NotZero(t, version)

	report, err := client.Command(ctx, "done P1 | done P7")
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.True(t, report.Failed)
	assert.Equal(t, command.KindOK, report.Outcomes[0].Kind)
	assert.Equal(t, command.KindUnresolvedCode, report.Outcomes[1].Kind)

	snap, err := client.State(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Priorities, 2)
	assert.Equal(t, "done", snap.Priorities[0].Field(actions.FieldStatus))

	codes, err := client.Codes(ctx, "P")
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.True(t, codes[0].Present)

	verbs, err := client.Verbs(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, verbs)

	running, err := client.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, running.Collectors)
	assert.Equal(t, os.Getpid(), running.PID)

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, snap.Version, health.Version)

	require.NoError(t, client.Refresh(ctx))
}

func TestClientErrorsCarryCodes(t *testing.T) {
	socketPath, _ := startDaemon(t)
	ctx := context.Background()
	client := NewRemoteClient(socketPath)

	_, err := client.Codes(ctx, "Z")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	assert.NotContains(t, err.Error(), "INVALID_INPUT: INVALID_INPUT")

	_, err = client.Ingest(ctx, ingestRequest("summary", "nope"))
	require.Error(t, err)
	assert.NotEqual(t, errors.ErrCodeDaemonNotRunning, errors.GetCode(err))

	_, _, err = client.Items(ctx, models.SectionStatus)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidSection))
}

func TestClientUnreachableSocket(t *testing.T) {
	client := NewRemoteClient(filepath.Join(t.TempDir(), "gone.sock"))
	assert.False(t, client.IsRunning())

	_, err := client.State(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonNotRunning))
}

func receive(t *testing.T, ch <-chan StateUpdate) StateUpdate {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "stream closed")
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a snapshot")
	}
	return StateUpdate{}
}

func TestStreamState(t *testing.T) {
	socketPath, st := startDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := NewRemoteClient(socketPath)

	ch, err := client.StreamState(ctx)
	require.NoError(t, err)

	first := receive(t, ch)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, st.Version(), first.Snapshot.Version)

	_, err = st.SetSummary(ctx, models.Summary{Text: "focus on the release"})
	require.NoError(t, err)

	next := receive(t, ch)
	require.NotNil(t, next.Snapshot)
	assert.Greater(t, next.Snapshot.Version, first.Snapshot.Version)
	assert.Equal(t, "focus on the release", next.Snapshot.Summary.Text)

	cancel()
	for range ch {
	}
}

func TestWatchState(t *testing.T) {
	socketPath, st := startDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := NewRemoteClient(socketPath)

	ch, err := client.WatchState(ctx)
	require.NoError(t, err)

	first := receive(t, ch)
	require.NotNil(t, first.Snapshot)

	_, err = st.SetStatus(ctx, models.Status{Message: "all green"})
	require.NoError(t, err)

	next := receive(t, ch)
	require.NotNil(t, next.Snapshot)
	assert.Equal(t, "all green", next.Snapshot.Status.Message)
	assert.False(t, next.Dropped)

	cancel()
	for range ch {
	}
}

func TestParseEvent(t *testing.T) {
	u, ok := parseEvent(server.DroppedEvent, `{"last_sent":3}`)
	assert.True(t, ok)
	assert.True(t, u.Dropped)

	_, ok = parseEvent("", "")
	assert.False(t, ok)

	_, ok = parseEvent("", "{not json")
	assert.False(t, ok)

	u, ok = parseEvent("", `{"version":4}`)
	require.True(t, ok)
	assert.Equal(t, uint64(4), u.Snapshot.Version)
}
