package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"lumina/internal/api"
	"lumina/internal/config"
	"lumina/internal/logging"
	"lumina/internal/queue"
	"lumina/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(cfg.Paths.APIToken, next)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/queue", srv.handleQueue)
	mux.HandleFunc("/api/queue/", srv.handleQueueItem)
	mux.HandleFunc("/api/queue/photos", auth(srv.handleEnqueuePhoto))
	mux.HandleFunc("/api/queue/live-photos", auth(srv.handleEnqueueLivePhoto))
	mux.HandleFunc("/api/queue/geocoding", auth(srv.handleEnqueueGeocoding))
	mux.HandleFunc("/api/queue/retry", auth(srv.handleQueueRetry))
	mux.HandleFunc("/api/queue/clear", auth(srv.handleQueueClear))
	mux.HandleFunc("/api/photos", srv.handlePhotos)
	mux.HandleFunc("/api/photos/", srv.handlePhotoItem)
	mux.HandleFunc("/api/settings", srv.handleSettings)
	mux.HandleFunc("/api/settings/", auth(srv.handleSettingUpdate))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
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
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
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

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:         status.Running,
		PID:             status.PID,
		DatabasePath:    status.DatabasePath,
		LockFilePath:    status.LockFilePath,
		StorageProvider: status.StorageProvider,
		PhotoCount:      status.PhotoCount,
		Workflow: api.WorkflowStatus{
			Running:    status.WorkflowRunning,
			QueueStats: api.FromStats(status.QueueStats),
			LastError:  status.LastError,
		},
	})
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

	jobs, err := s.daemon.ListQueue(r.Context(), statuses)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: api.FromJobs(jobs)})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	if idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, "queue job not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue job id")
		return
	}
	job, err := s.daemon.queueStore.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "queue job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueJobResponse{Item: api.FromJob(job)})
}

func (s *apiServer) handleEnqueuePhoto(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueuePhotoRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	job, err := s.daemon.EnqueuePhoto(r.Context(), req.StorageKey, req.Priority)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.QueueJobResponse{Item: api.FromJob(job)})
}

func (s *apiServer) handleEnqueueLivePhoto(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueuePhotoRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	job, err := s.daemon.EnqueueLivePhotoVideo(r.Context(), req.StorageKey, req.Priority)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.QueueJobResponse{Item: api.FromJob(job)})
}

func (s *apiServer) handleEnqueueGeocoding(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueGeocodingRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	payload := queue.ReverseGeocodingPayload{
		PhotoID:   req.PhotoID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	job, err := s.daemon.EnqueueGeocoding(r.Context(), payload, req.Priority)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.QueueJobResponse{Item: api.FromJob(job)})
}

func (s *apiServer) handleQueueRetry(w http.ResponseWriter, r *http.Request) {
	var req api.RetryRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	affected, err := s.daemon.RetryFailed(r.Context(), req.IDs...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueMutationResponse{Affected: affected})
}

func (s *apiServer) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var status queue.Status
	if value := strings.TrimSpace(r.URL.Query().Get("status")); value != "" {
		parsed, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		status = parsed
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("older-than")); raw != "" {
		olderThan, err := time.ParseDuration(raw)
		if err != nil || olderThan < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid older-than duration %q", raw))
			return
		}
		if status != "" && status != queue.StatusCompleted {
			s.writeError(w, http.StatusBadRequest, "older-than prunes completed jobs only")
			return
		}
		affected, err := s.daemon.PruneCompleted(r.Context(), olderThan)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueMutationResponse{Affected: affected})
		return
	}

	affected, err := s.daemon.ClearQueue(r.Context(), status)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueMutationResponse{Affected: affected})
}

func (s *apiServer) handlePhotos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.daemon.photoStore.List(r.Context(), limit, offset)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	total, err := s.daemon.photoStore.Count(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PhotoListResponse{
		Items:  api.FromPhotos(items),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *apiServer) handlePhotoItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/photos/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "photo not found")
		return
	}
	photo, err := s.daemon.photoStore.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if photo == nil {
		s.writeError(w, http.StatusNotFound, "photo not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.PhotoResponse{Item: api.FromPhoto(photo)})
}

func (s *apiServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	public, err := s.daemon.settings.Public(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, public)
}

// handleSettingUpdate handles PUT /api/settings/{namespace}/{key}. The auth
// middleware has already vetted the caller, so the write runs privileged.
func (s *apiServer) handleSettingUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/settings/")
	namespace, key, ok := strings.Cut(rest, "/")
	if !ok || namespace == "" || key == "" || strings.Contains(key, "/") {
		s.writeError(w, http.StatusNotFound, "setting not found")
		return
	}

	var req api.SettingUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.daemon.settings.Set(r.Context(), namespace, key, req.Value, "api", true); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

// decodePost enforces the POST method and decodes the JSON request body.
func (s *apiServer) decodePost(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps the service error taxonomy onto HTTP status codes.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrDeserialization):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrReadOnly):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotReady):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
