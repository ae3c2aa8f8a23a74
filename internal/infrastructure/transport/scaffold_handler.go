package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"apigen/app/usecase"
	"apigen/internal/domain/entity"
	"apigen/internal/infrastructure/events"
)

// Generator runs the pipeline for a stored schema.
type Generator interface {
	Generate(ctx context.Context, schemaID string) (*entity.Artifact, error)
}

type EventSource interface {
	Subscribe() (<-chan events.Event, func())
}

type ScaffoldHandler struct {
	schemaService usecase.SchemaUsecase
	jobService    usecase.JobUsecase
	generator     Generator
	events        EventSource
	logger        *slog.Logger
	upgrader      websocket.Upgrader

	// метрики
	reqDuration *prometheus.HistogramVec
	reqCount    *prometheus.CounterVec
	errCount    *prometheus.CounterVec
}

func NewScaffoldHandler(
	schemaService usecase.SchemaUsecase,
	jobService usecase.JobUsecase,
	generator Generator,
	eventSource EventSource,
	logger *slog.Logger,
	reg prometheus.Registerer,
) *ScaffoldHandler {

	reqDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	reqCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "path"},
	)

	errCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP request errors.",
		},
		[]string{"method", "path", "status"},
	)

	if reg != nil {
		reg.MustRegister(reqDuration, reqCount, errCount)
	}

	return &ScaffoldHandler{
		schemaService: schemaService,
		jobService:    jobService,
		generator:     generator,
		events:        eventSource,
		logger:        logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		reqDuration: reqDuration,
		reqCount:    reqCount,
		errCount:    errCount,
	}
}

// withMetrics labels requests by route template so ids do not explode the
// label space.
func (h *ScaffoldHandler) withMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		method := r.Method

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		duration := time.Since(start).Seconds()
		statusStr := strconv.Itoa(rw.status)

		h.reqCount.WithLabelValues(method, path).Inc()
		h.reqDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		if rw.status >= 400 {
			h.errCount.WithLabelValues(method, path, statusStr).Inc()
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (h *ScaffoldHandler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/schemas", h.withMetrics(h.handleCreateSchema)).Methods(http.MethodPost)
	api.HandleFunc("/schemas", h.withMetrics(h.handleListSchemas)).Methods(http.MethodGet)
	api.HandleFunc("/schemas/{id}", h.withMetrics(h.handleGetSchema)).Methods(http.MethodGet)
	api.HandleFunc("/schemas/{id}", h.withMetrics(h.handleDeleteSchema)).Methods(http.MethodDelete)
	api.HandleFunc("/schemas/{id}/generate", h.withMetrics(h.handleGenerate)).Methods(http.MethodPost)
	api.HandleFunc("/schemas/{id}/jobs", h.withMetrics(h.handleListSchemaJobs)).Methods(http.MethodGet)
	api.HandleFunc("/jobs", h.withMetrics(h.handleListJobs)).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", h.withMetrics(h.handleGetJob)).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/files", h.withMetrics(h.handleGetFiles)).Methods(http.MethodGet)
	api.HandleFunc("/events", h.withMetrics(h.handleEvents)).Methods(http.MethodGet)
	api.HandleFunc("/health", h.withMetrics(h.handleHealth)).Methods(http.MethodGet)

	// Prometheus
	r.Handle("/metrics", promhttp.Handler())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	// Upstream is true when retrying the generation may help; false means a
	// local problem worth reporting.
	Upstream bool `json:"upstream"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{
		Error:    err.Error(),
		Kind:     entity.ErrorKind(err),
		Upstream: entity.IsUpstreamFailure(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidSchema), errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case entity.IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type endpointReq struct {
	Method       string `json:"method"`
	Path         string `json:"path"`
	ResponseBody string `json:"response_body"`
}

type createSchemaReq struct {
	EntityName string        `json:"entity_name"`
	BasePath   string        `json:"base_path"`
	Fields     []string      `json:"fields"`
	Endpoints  []endpointReq `json:"endpoints"`
}

// POST /api/v1/schemas
func (h *ScaffoldHandler) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	var req createSchemaReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: bad request body: %w", entity.ErrInvalidInput, err))
		return
	}

	in := usecase.CreateSchemaInput{
		EntityName: req.EntityName,
		BasePath:   req.BasePath,
		Fields:     req.Fields,
	}
	for _, e := range req.Endpoints {
		in.Endpoints = append(in.Endpoints, entity.Endpoint{Method: e.Method, Path: e.Path, ResponseBody: e.ResponseBody})
	}

	schema, err := h.schemaService.CreateSchema(r.Context(), in)
	if err != nil {
		h.logger.Error("create schema failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	h.logger.Info("schema created", "schema_id", schema.ID, "entity", schema.EntityName)
	writeJSON(w, http.StatusCreated, schema)
}

// GET /api/v1/schemas
func (h *ScaffoldHandler) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.schemaService.ListSchemas(r.Context())
	if err != nil {
		h.logger.Error("list schemas failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	if schemas == nil {
		schemas = []*entity.Schema{}
	}
	writeJSON(w, http.StatusOK, schemas)
}

// GET /api/v1/schemas/{id}
func (h *ScaffoldHandler) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	schema, err := h.schemaService.GetSchema(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// DELETE /api/v1/schemas/{id}
func (h *ScaffoldHandler) handleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.schemaService.DeleteSchema(r.Context(), id); err != nil {
		h.logger.Error("delete schema failed", "schema_id", id, "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/schemas/{id}/generate
func (h *ScaffoldHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	artifact, err := h.generator.Generate(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	defer func() {
		if err := os.Remove(artifact.Path); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("remove delivered archive failed", "job_id", artifact.JobID, "err", err)
		}
	}()

	f, err := os.Open(artifact.Path)
	if err != nil {
		h.logger.Error("open archive failed", "job_id", artifact.JobID, "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("%w: open archive: %w", entity.ErrFilesystem, err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.FileName}))
	w.Header().Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	w.Header().Set("X-Job-ID", artifact.JobID)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("stream archive failed", "job_id", artifact.JobID, "err", err)
		return
	}
	h.logger.Info("archive delivered", "job_id", artifact.JobID, "file", artifact.FileName, "bytes", artifact.Size)
}

// GET /api/v1/schemas/{id}/jobs
func (h *ScaffoldHandler) handleListSchemaJobs(w http.ResponseWriter, r *http.Request) {
	h.listJobs(w, r, mux.Vars(r)["id"])
}

// GET /api/v1/jobs
func (h *ScaffoldHandler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	h.listJobs(w, r, r.URL.Query().Get("schema_id"))
}

func (h *ScaffoldHandler) listJobs(w http.ResponseWriter, r *http.Request, schemaID string) {
	jobs, err := h.jobService.ListJobs(r.Context(), schemaID)
	if err != nil {
		h.logger.Error("list jobs failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	if jobs == nil {
		jobs = []*entity.GenerationJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GET /api/v1/jobs/{id}
func (h *ScaffoldHandler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.jobService.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GET /api/v1/jobs/{id}/files
func (h *ScaffoldHandler) handleGetFiles(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	files, err := h.jobService.GetFiles(r.Context(), id)
	if err != nil {
		h.logger.Error("get files failed", "job_id", id, "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	if files == nil {
		files = []*entity.GeneratedFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

// GET /api/v1/health
func (h *ScaffoldHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"ok": true,
		"ts": time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, status)
}
