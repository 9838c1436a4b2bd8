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

	"easel/internal/api"
	"easel/internal/config"
	"easel/internal/generate"
	"easel/internal/logging"
	"easel/internal/queue"
)

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	queueSvc *api.QueueService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:     bind,
		logger:   logger,
		daemon:   d,
		queueSvc: api.NewQueueService(d.store),
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/queue", authMiddleware(token, srv.handleQueue))
	mux.HandleFunc("/api/queue/", authMiddleware(token, srv.handleQueueSubtree))
	mux.HandleFunc("/api/generate", authMiddleware(token, srv.handleGenerate))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
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
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Engine:       api.FromSnapshot(status.Engine),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		parsed, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, parsed)
	}

	items, err := s.queueSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items})
}

// handleQueueSubtree routes /api/queue/{action} control verbs and
// /api/queue/{id}[/cancel] item operations.
func (s *apiServer) handleQueueSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	switch rest {
	case "pause":
		s.handleAction(w, r, func() error {
			s.daemon.engine.Pause()
			return nil
		})
	case "resume":
		s.handleAction(w, r, func() error {
			s.daemon.engine.Resume()
			return nil
		})
	case "clear-completed":
		s.handleClearCompleted(w, r)
	case "enabled":
		s.handleSetEnabled(w, r)
	default:
		s.handleQueueItem(w, r, rest)
	}
}

func (s *apiServer) handleAction(w http.ResponseWriter, r *http.Request, action func() error) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := action(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cleared, err := s.daemon.engine.ClearCompleted(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"cleared": cleared})
}

func (s *apiServer) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.daemon.engine.SetEnabled(body.Enabled)
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": body.Enabled})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request, rest string) {
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		item, err := s.queueSvc.Describe(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if item == nil {
			s.writeError(w, http.StatusNotFound, "queue item not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: *item})
	case action == "cancel" && r.Method == http.MethodPost:
		err := s.daemon.engine.CancelItem(r.Context(), id)
		switch {
		case errors.Is(err, queue.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "queue item not found")
		case errors.Is(err, queue.ErrInvalidTransition):
			s.writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		default:
			s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "id": id})
		}
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type generateRequest struct {
	GenerationType string          `json:"generationType"`
	Provider       string          `json:"provider"`
	Payload        json.RawMessage `json:"payload"`
	Metadata       queue.Metadata  `json:"metadata"`
	UseQueue       *bool           `json:"useQueue"`
}

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	provider, ok := queue.ParseProvider(req.Provider)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown provider %q", req.Provider))
		return
	}
	if queue.EmptyPayload(req.Payload) {
		s.writeError(w, http.StatusBadRequest, "payload must be a non-empty object")
		return
	}

	outcome, err := s.dispatchGenerate(r.Context(), provider, req)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if outcome.Queued != nil {
		s.writeJSON(w, http.StatusAccepted, outcome.Queued)
		return
	}
	if len(outcome.Result.Raw) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(outcome.Result.Raw)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome.Result)
}

func (s *apiServer) dispatchGenerate(ctx context.Context, provider queue.Provider, req generateRequest) (*generate.Outcome, error) {
	opts := generate.Options{UseQueue: req.UseQueue}
	wrapper := s.daemon.wrapper
	switch provider {
	case queue.ProviderFal:
		switch req.GenerationType {
		case "tts", "speech", "text-to-speech":
			return wrapper.TTSWithFal(ctx, req.Payload, req.Metadata, opts)
		}
		return wrapper.WithFal(ctx, req.GenerationType, req.Payload, req.Metadata, opts)
	case queue.ProviderMiniMax:
		if req.GenerationType == "text-to-music" {
			return wrapper.MusicWithMiniMax(ctx, req.Payload, req.Metadata, opts)
		}
		return wrapper.WithMiniMax(ctx, req.GenerationType, req.Payload, req.Metadata, opts)
	case queue.ProviderRunway:
		return wrapper.WithRunway(ctx, req.GenerationType, req.Payload, req.Metadata, opts)
	case queue.ProviderBFL:
		return wrapper.WithBFL(ctx, req.GenerationType, req.Payload, req.Metadata, opts)
	case queue.ProviderReplicate:
		return wrapper.WithReplicate(ctx, req.GenerationType, req.Payload, req.Metadata, opts)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
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
	s.writeJSON(w, status, map[string]string{"error": message})
}
