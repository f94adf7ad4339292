package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"scenecast/internal/api"
	"scenecast/internal/config"
	"scenecast/internal/jobstore"
	"scenecast/internal/logging"
	"scenecast/internal/pipeline"
	"scenecast/internal/services"
	"scenecast/internal/taskqueue"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "api", "paths.api_bind is required", nil)
	}
	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/notifications/test", s.handleTestNotification)

	mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("POST /api/jobs/purge-completed", s.handlePurgeCompleted)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("PUT /api/jobs/{id}", s.handleUpdateJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDeleteJob)
	mux.HandleFunc("POST /api/jobs/{id}/force", s.handleForceJob)
	mux.HandleFunc("POST /api/tracking", s.handleTrack)

	mux.HandleFunc("GET /api/queues", s.handleQueues)
	mux.HandleFunc("GET /api/queues/{name}", s.withQueue(s.handleQueue))
	mux.HandleFunc("PUT /api/queues/{name}/ceiling", s.withQueue(s.handleSetCeiling))
	mux.HandleFunc("POST /api/queues/{name}/cancel-pending", s.withQueue(s.handleCancelPending))
	mux.HandleFunc("DELETE /api/queues/{name}/tasks/{id}", s.withQueue(s.handleCancelTask))
	mux.HandleFunc("POST /api/queues/{name}/reset-stats", s.withQueue(s.handleResetStats))
	mux.HandleFunc("GET /api/queues/{name}/history", s.withQueue(s.handleHistory))
	mux.HandleFunc("GET /api/queues/{name}/events", s.withQueue(s.handleEvents))

	return s.withRequestID(authMiddleware(token, mux))
}

func (s *apiServer) listen() error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	return nil
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) serve() error {
	s.log().Info("api server listening", logging.String("address", s.addr()))
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api serve: %w", err)
	}
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		logging.WithContext(ctx, s.log()).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, resp)
}

func (s *apiServer) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.daemon.controller.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusAccepted, job)
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []jobstore.Status
	for _, value := range r.URL.Query()["status"] {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			status := jobstore.Status(trimmed)
			if !status.Valid() {
				s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "list jobs",
					fmt.Sprintf("unknown status %q", trimmed), nil))
				return
			}
			statuses = append(statuses, status)
		}
	}

	var (
		jobs []*jobstore.Job
		err  error
	)
	if len(statuses) == 0 {
		jobs, _, err = s.daemon.store.List(r.Context())
	} else {
		jobs, err = s.daemon.store.ListByStatus(r.Context(), statuses...)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*jobstore.Job{}
	}
	s.writeData(w, http.StatusOK, api.JobList{Jobs: jobs, Total: len(jobs)})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, job)
}

func (s *apiServer) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	patch, err := decodePatch(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	patch.ID = r.PathValue("id")
	job, err := s.daemon.controller.Update(r.Context(), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, job)
}

func (s *apiServer) handleTrack(w http.ResponseWriter, r *http.Request) {
	patch, err := decodePatch(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.daemon.controller.Track(r.Context(), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, job)
}

func (s *apiServer) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.controller.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, nil)
}

func (s *apiServer) handleForceJob(w http.ResponseWriter, r *http.Request) {
	var override pipeline.Override
	if err := decodeBody(r, &override); err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.daemon.controller.Force(r.Context(), r.PathValue("id"), override)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, job)
}

func (s *apiServer) handlePurgeCompleted(w http.ResponseWriter, r *http.Request) {
	removed, err := s.daemon.controller.PurgeCompleted(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, api.CountResponse{Count: removed})
}

func (s *apiServer) handleQueues(w http.ResponseWriter, _ *http.Request) {
	s.writeData(w, http.StatusOK, s.daemon.queues.Statuses())
}

type queueHandler func(w http.ResponseWriter, r *http.Request, q *taskqueue.Queue)

func (s *apiServer) withQueue(next queueHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := s.daemon.queues.Get(r.PathValue("name"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r, q)
	}
}

func (s *apiServer) handleQueue(w http.ResponseWriter, _ *http.Request, q *taskqueue.Queue) {
	s.writeData(w, http.StatusOK, q.Status())
}

func (s *apiServer) handleSetCeiling(w http.ResponseWriter, r *http.Request, q *taskqueue.Queue) {
	var req api.CeilingRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := q.SetCeiling(req.Ceiling); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, q.Status())
}

func (s *apiServer) handleCancelPending(w http.ResponseWriter, _ *http.Request, q *taskqueue.Queue) {
	s.writeData(w, http.StatusOK, api.CountResponse{Count: int64(q.CancelPending())})
}

func (s *apiServer) handleCancelTask(w http.ResponseWriter, r *http.Request, q *taskqueue.Queue) {
	id := r.PathValue("id")
	if !q.Cancel(id) {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, q.Name(), "cancel", fmt.Sprintf("no pending task %s", id), nil))
		return
	}
	s.writeData(w, http.StatusOK, nil)
}

func (s *apiServer) handleResetStats(w http.ResponseWriter, _ *http.Request, q *taskqueue.Queue) {
	q.ResetStats()
	s.writeData(w, http.StatusOK, q.Status())
}

func (s *apiServer) handleHistory(w http.ResponseWriter, _ *http.Request, q *taskqueue.Queue) {
	history := q.History()
	if history == nil {
		history = []taskqueue.HistoryEntry{}
	}
	s.writeData(w, http.StatusOK, history)
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request, q *taskqueue.Queue) {
	var since uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "events", "since must be a non-negative integer", nil))
			return
		}
		since = parsed
	}
	events := q.EventsSince(since)
	if events == nil {
		events = []taskqueue.Event{}
	}
	s.writeData(w, http.StatusOK, events)
}

func decodeBody(r *http.Request, out any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return services.Wrap(services.ErrValidation, "api", "read body", "", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return services.Wrap(services.ErrValidation, "api", "decode body", "request body is required", nil)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode body", "", err)
	}
	return nil
}

func decodePatch(r *http.Request) (jobstore.Patch, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return jobstore.Patch{}, services.Wrap(services.ErrValidation, "api", "read body", "", err)
	}
	return jobstore.DecodePatch(data)
}

func (s *apiServer) writeData(w http.ResponseWriter, status int, payload any) {
	envelope := api.Envelope{Success: true}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			s.log().Error("failed to encode response", logging.Error(err))
			status = http.StatusInternalServerError
			envelope = api.Envelope{Error: "failed to encode response"}
		} else {
			envelope.Data = data
		}
	}
	s.writeJSON(w, status, envelope)
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.log()).Error("api request failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.Envelope{Error: services.Details(err)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, envelope api.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		s.log().Error("failed to write response", logging.Error(err))
	}
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
