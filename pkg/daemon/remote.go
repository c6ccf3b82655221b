package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/internal/daemon/command"
	"github.com/grovetools/pulse/internal/daemon/server"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/grovetools/pulse/version"
)

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

const wsURL = "ws://unix/api/ws"

// RemoteClient implements Client by calling the daemon's HTTP API over a Unix socket.
type RemoteClient struct {
	httpClient *http.Client
	socketPath string
}

// NewRemoteClient creates a new RemoteClient connected to the daemon socket.
// It does not check that the daemon is running; see New.
func NewRemoteClient(socketPath string) *RemoteClient {
	transport := &http.Transport{
		DialContext:       unixDialer(socketPath),
		DisableKeepAlives: false,
		MaxIdleConns:      10,
		IdleConnTimeout:   90 * time.Second,
	}

	return &RemoteClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
		socketPath: socketPath,
	}
}

func unixDialer(socketPath string) func(ctx context.Context, _, _ string) (net.Conn, error) {
	return func(ctx context.Context, _, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", socketPath)
	}
}

// State returns the current snapshot.
func (c *RemoteClient) State(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	if _, err := c.do(ctx, http.MethodGet, "/api/state", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Items returns one item section and the snapshot version it was read from.
func (c *RemoteClient) Items(ctx context.Context, section models.Section) ([]models.Item, uint64, error) {
	if !section.HoldsItems() {
		return nil, 0, errors.InvalidSection(string(section))
	}
	var items []models.Item
	header, err := c.do(ctx, http.MethodGet, "/api/sections/"+url.PathEscape(string(section)), nil, &items)
	if err != nil {
		return nil, 0, err
	}
	v, _ := strconv.ParseUint(header.Get("X-Pulse-Version"), 10, 64)
	return items, v, nil
}

// Command runs a command line. A partially failed line is not an error;
// inspect Report.Failed and the outcomes.
func (c *RemoteClient) Command(ctx context.Context, line string) (*command.Report, error) {
	var report command.Report
	if _, err := c.do(ctx, http.MethodPost, "/api/command", models.CommandRequest{Line: line}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Ingest replaces one item section with the given records.
func (c *RemoteClient) Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestResponse, error) {
	var resp models.IngestResponse
	if _, err := c.do(ctx, http.MethodPost, "/api/ingest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Codes lists the code table, optionally filtered by category letter or name.
func (c *RemoteClient) Codes(ctx context.Context, category string) ([]models.CodeEntry, error) {
	path := "/api/codes"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var entries []models.CodeEntry
	if _, err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Verbs lists the daemon's command verbs.
func (c *RemoteClient) Verbs(ctx context.Context) ([]models.VerbInfo, error) {
	var verbs []models.VerbInfo
	if _, err := c.do(ctx, http.MethodGet, "/api/verbs", nil, &verbs); err != nil {
		return nil, err
	}
	return verbs, nil
}

// Config returns the daemon's running configuration.
func (c *RemoteClient) Config(ctx context.Context) (*server.RunningConfig, error) {
	var running server.RunningConfig
	if _, err := c.do(ctx, http.MethodGet, "/api/config", nil, &running); err != nil {
		return nil, err
	}
	return &running, nil
}

// Refresh asks the daemon to rescan every collector.
func (c *RemoteClient) Refresh(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/refresh", struct{}{}, nil)
	return err
}

// Health returns daemon liveness information.
func (c *RemoteClient) Health(ctx context.Context) (*models.HealthResponse, error) {
	var health models.HealthResponse
	if _, err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := c.Health(ctx)
	return err == nil
}

// StreamState subscribes to real-time snapshots via Server-Sent Events (SSE).
// The first update is the full current snapshot. If the daemon drops the
// subscription, a final update with Dropped set is sent before the channel
// closes.
func (c *RemoteClient) StreamState(ctx context.Context) (<-chan StateUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	// Use a separate client with no timeout for streaming
	streamTransport := &http.Transport{DialContext: unixDialer(c.socketPath)}
	streamClient := &http.Client{
		Transport: streamTransport,
		Timeout:   0,
	}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, c.connectError(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	ch := make(chan StateUpdate, 10)

	go func() {
		defer resp.Body.Close()
		defer close(ch)
		defer streamTransport.CloseIdleConnections()

		scanner := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 1024*1024)
		scanner.Buffer(buf, 16*1024*1024)

		var event string
		var data strings.Builder
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, ":"):
				continue
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data.WriteString(strings.TrimPrefix(line, "data: "))
			case line == "":
				update, ok := parseEvent(event, data.String())
				event = ""
				data.Reset()
				if !ok {
					continue
				}
				select {
				case ch <- update:
				case <-ctx.Done():
					return
				}
				if update.Dropped {
					return
				}
			}
		}
	}()

	return ch, nil
}

func parseEvent(event, data string) (StateUpdate, bool) {
	if event == server.DroppedEvent {
		return StateUpdate{Dropped: true}, true
	}
	if data == "" {
		return StateUpdate{}, false
	}
	var snap models.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return StateUpdate{}, false
	}
	return StateUpdate{Snapshot: &snap}, true
}

// WatchState subscribes via the websocket endpoint. Each snapshot is
// acknowledged once the caller has received it from the channel, so a slow
// reader shows up as lag on the daemon side.
func (c *RemoteClient) WatchState(ctx context.Context) (<-chan StateUpdate, error) {
	dialer := websocket.Dialer{
		NetDialContext:   unixDialer(c.socketPath),
		HandshakeTimeout: 5 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, http.Header{"User-Agent": {version.UserAgent()}})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, c.connectError(err)
	}

	ch := make(chan StateUpdate, 10)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(ch)
		defer close(done)
		defer conn.Close()

		for {
			var snap models.Snapshot
			if err := conn.ReadJSON(&snap); err != nil {
				if websocket.IsCloseError(err, server.CloseDropped) {
					select {
					case ch <- StateUpdate{Dropped: true}:
					case <-ctx.Done():
					}
				}
				return
			}
			select {
			case ch <- StateUpdate{Snapshot: &snap}:
			case <-ctx.Done():
				return
			}
			ack := models.AckMessage{Type: "ack", Version: snap.Version}
			if err := conn.WriteJSON(ack); err != nil {
				return
			}
		}
	}()

	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// do sends one JSON request and decodes a 2xx body into out. Non-2xx
// responses become PulseErrors carrying the daemon's error code.
func (c *RemoteClient) do(ctx context.Context, method, path string, body, out interface{}) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.connectError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode daemon response").
				WithDetail("path", path)
		}
	}
	return resp.Header, nil
}

func (c *RemoteClient) connectError(err error) error {
	return errors.Wrap(err, errors.ErrCodeDaemonNotRunning, "failed to reach pulse daemon").
		WithDetail("socket", c.socketPath)
}

func decodeError(resp *http.Response) error {
	var body models.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return errors.Newf(errors.ErrCodeInternal, "daemon returned status %d", resp.StatusCode)
	}
	code := errors.ErrorCode(body.Code)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	msg := strings.TrimPrefix(body.Error, body.Code+": ")
	pe := errors.New(code, msg).WithDetail("status", resp.StatusCode)
	for k, v := range body.Details {
		pe = pe.WithDetail(k, v)
	}
	return pe
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
