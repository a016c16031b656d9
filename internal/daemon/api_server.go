package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"sermoncast/internal/api"
	"sermoncast/internal/config"
	"sermoncast/internal/logging"
	"sermoncast/internal/services"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
	// done closes when the daemon shuts down; hijacked websocket
	// connections are not closed by http.Server.Shutdown.
	done <-chan struct{}
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(cfg *config.Config) http.Handler {
	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, authMiddleware(token, h))
	}

	handle("GET /api/status", s.handleStatus)
	handle("GET /api/jobs", s.handleListJobs)
	handle("POST /api/jobs", s.handleEnqueue)
	handle("GET /api/jobs/{id}", s.handleGetJob)
	handle("DELETE /api/jobs/{id}", s.handleRemoveJob)
	handle("POST /api/jobs/{id}/retry", s.handleRetryJob)
	handle("GET /api/jobs/{id}/events", s.handleJobEvents)

	handle("POST /api/playback/sessions", s.handleOpenSession)
	handle("GET /api/playback/sessions/{id}", s.handleGetSession)
	handle("POST /api/playback/sessions/{id}/events", s.handleSessionEvent)
	handle("DELETE /api/playback/sessions/{id}", s.handleCloseSession)

	if cfg.Storage.Backend == config.StorageFilesystem && cfg.Storage.LocalDir != "" {
		mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.Storage.LocalDir))))
	}
	if cfg.Metrics.Enabled && s.daemon.metrics != nil {
		mux.Handle("GET /metrics", s.daemon.metrics.Handler())
	}
	return s.withRequestID(mux)
}

// withRequestID tags each request context with an id echoed in X-Request-ID.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.done = ctx.Done()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	cfg := s.daemon.cfg
	payload := api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		DatabasePath:   status.DatabasePath,
		LockFilePath:   status.LockFilePath,
		StorageBackend: cfg.Storage.Backend,
		TelemetrySink:  cfg.Telemetry.Sink,
		Sessions:       status.Sessions,
		Workflow:       api.FromStatusSummary(status.Workflow),
		Dependencies:   api.FromDependencies(status.Dependencies),
		Checks:         api.FromChecks(status.Checks),
	}
	if cfg.Ingest.Enabled {
		payload.IngestDir = cfg.Ingest.WatchDir
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeServiceError maps classified errors onto HTTP statuses.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	kind := services.ErrorKind(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, api.ErrAlreadyQueued):
		status, kind = http.StatusConflict, "already_queued"
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidFileType):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", logging.Error(err), logging.String(logging.FieldErrorKind, kind))
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: kind})
}
