// Package server provides the HTTP server for the pulse daemon.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/grovetools/pulse/config"
	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/internal/daemon/collector"
	"github.com/grovetools/pulse/internal/daemon/command"
	"github.com/grovetools/pulse/internal/daemon/hub"
	"github.com/grovetools/pulse/internal/daemon/registry"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// maxBodyBytes bounds ingest and command request bodies.
const maxBodyBytes = 8 << 20

// RunningConfig is exposed via /api/config so clients can see what the
// daemon is actually running with.
type RunningConfig struct {
	Config     *config.Config `json:"config"`
	Collectors []string       `json:"collectors"`
	StartedAt  time.Time      `json:"started_at"`
	PID        int            `json:"pid"`
}

// StateReader returns the current snapshot.
type StateReader interface {
	Current() *models.Snapshot
}

// Subscriptions is the broadcast hub as seen by stream handlers.
type Subscriptions interface {
	Subscribe() *hub.Subscriber
	Unsubscribe(sub *hub.Subscriber)
	Len() int
}

// Ingester applies pushed batches and triggers collector rescans.
type Ingester interface {
	Apply(ctx context.Context, b collector.Batch) (uint64, error)
	Refresh(ctx context.Context) error
}

// CommandRunner executes one command line.
type CommandRunner interface {
	Run(ctx context.Context, line string) []command.Outcome
}

// VerbLister lists the registered verbs.
type VerbLister interface {
	Verbs() []command.Verb
}

// CodeLister lists the persisted code table.
type CodeLister interface {
	Entries() []registry.Entry
}

// Deps are the daemon components the server exposes.
type Deps struct {
	State    StateReader
	Hub      Subscriptions
	Ingest   Ingester
	Commands CommandRunner
	Verbs    VerbLister
	Codes    CodeLister
	Gatherer prometheus.Gatherer
	Running  *RunningConfig
}

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger    *logrus.Entry
	deps      Deps
	server    *http.Server
	startedAt time.Time
}

// New creates a new Server instance.
func New(logger *logrus.Entry, deps Deps) *Server {
	s := &Server{
		logger:    logger,
		deps:      deps,
		startedAt: time.Now(),
	}
	s.server = &http.Server{
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/state", s.handleGetState)
	mux.HandleFunc("GET /api/sections/{name}", s.handleGetSection)
	mux.HandleFunc("GET /api/stream", s.handleStreamState)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/command", s.handleCommand)
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/codes", s.handleGetCodes)
	mux.HandleFunc("GET /api/verbs", s.handleGetVerbs)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)

	if s.deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	err = s.server.Serve(listener)
	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server. Stream handlers end when the hub
// is closed, so close the hub before calling Shutdown. A Shutdown that
// happens before ListenAndServe makes ListenAndServe return immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:    "ok",
		PID:       os.Getpid(),
		StartedAt: s.startedAt.UTC(),
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.deps.State != nil {
		resp.Version = s.deps.State.Current().Version
	}
	if s.deps.Hub != nil {
		resp.Subscribers = s.deps.Hub.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetState returns the complete snapshot as JSON.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	if s.deps.State == nil {
		unavailable(w, "store")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.State.Current())
}

// handleGetSection returns one section of the current snapshot.
func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	if s.deps.State == nil {
		unavailable(w, "store")
		return
	}
	sec, err := models.ParseSection(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}

	snap := s.deps.State.Current()
	var body interface{}
	switch sec {
	case models.SectionSummary:
		body = snap.Summary
	case models.SectionStatus:
		body = snap.Status
	default:
		items := snap.Items(sec)
		if items == nil {
			items = []models.Item{}
		}
		body = items
	}
	w.Header().Set("X-Pulse-Version", fmt.Sprint(snap.Version))
	writeJSON(w, http.StatusOK, body)
}

// handleCommand runs a command line and returns one outcome per segment.
// Partial failure is reported in the body with status 200; only a malformed
// request is an HTTP error.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if s.deps.Commands == nil {
		unavailable(w, "command runner")
		return
	}
	var req models.CommandRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	outcomes := s.deps.Commands.Run(r.Context(), req.Line)
	report := command.NewReport(outcomes)
	s.logger.WithFields(logrus.Fields{
		"segments": len(outcomes),
		"failed":   report.Failed,
	}).Debug("Command executed")
	writeJSON(w, http.StatusOK, report)
}

// handleIngest replaces one item section with the posted batch.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingest == nil {
		unavailable(w, "engine")
		return
	}
	var doc interface{}
	if err := decodeBody(w, r, &doc); err != nil {
		writeError(w, err)
		return
	}
	req, err := collector.BatchFromDocument(doc, "")
	if err != nil {
		writeError(w, err)
		return
	}
	batch, err := collector.ToBatch(req, "api")
	if err != nil {
		writeError(w, err)
		return
	}

	version, err := s.deps.Ingest.Apply(r.Context(), batch)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := models.IngestResponse{Section: string(batch.Section), Version: version, Codes: []string{}}
	if s.deps.State != nil {
		for _, it := range s.deps.State.Current().Items(batch.Section) {
			resp.Codes = append(resp.Codes, it.Code.String())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingest == nil {
		unavailable(w, "engine")
		return
	}
	if err := s.deps.Ingest.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh requested"})
}

// handleGetCodes lists the code table, optionally filtered by ?category=P.
func (s *Server) handleGetCodes(w http.ResponseWriter, r *http.Request) {
	if s.deps.Codes == nil {
		unavailable(w, "registry")
		return
	}

	var filter models.Category
	if q := r.URL.Query().Get("category"); q != "" {
		c, ok := models.ParseCategory(q)
		if !ok {
			writeError(w, errors.Newf(errors.ErrCodeInvalidInput, "unknown category '%s'", q))
			return
		}
		filter = c
	}

	var snap *models.Snapshot
	if s.deps.State != nil {
		snap = s.deps.State.Current()
	}

	out := []models.CodeEntry{}
	for _, e := range s.deps.Codes.Entries() {
		if filter != "" && e.Category != filter {
			continue
		}
		entry := models.CodeEntry{
			Code:      e.Code().String(),
			Category:  e.Category.Name(),
			Key:       e.Key,
			CreatedAt: e.CreatedAt,
		}
		if snap != nil {
			_, entry.Present = snap.FindByCode(e.Code())
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetVerbs(w http.ResponseWriter, r *http.Request) {
	out := []models.VerbInfo{}
	if s.deps.Verbs != nil {
		for _, v := range s.deps.Verbs.Verbs() {
			aliases := append([]string(nil), v.Aliases...)
			sort.Strings(aliases)
			out = append(out, models.VerbInfo{
				Name:        v.Name,
				Aliases:     aliases,
				Code:        v.Code.String(),
				Description: v.Description,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.deps.Running == nil {
		unavailable(w, "config")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Running)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	resp := models.ErrorResponse{Error: err.Error(), Code: string(code)}
	var pe *errors.PulseError
	if stderrors.As(err, &pe) && len(pe.Details) > 0 {
		resp.Details = pe.Details
	}
	writeJSON(w, statusFor(code), resp)
}

func unavailable(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{
		Error: what + " not initialized",
		Code:  string(errors.ErrCodeInternal),
	})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidSection, errors.ErrCodeParse, errors.ErrCodeInvalidCode:
		return http.StatusBadRequest
	case errors.ErrCodeCodeNotFound, errors.ErrCodeItemNotFound:
		return http.StatusNotFound
	}
	if strings.HasPrefix(string(code), "CONFIG_") {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
