package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/gridmesh/gridmesh/pkg/coordinator"
	"github.com/gridmesh/gridmesh/pkg/log"
	"github.com/gridmesh/gridmesh/pkg/metrics"
	"github.com/gridmesh/gridmesh/pkg/transport"
	"github.com/gridmesh/gridmesh/pkg/types"
)

// ResultSink receives execution results pushed back by node agents. The
// HTTP transport implements it; tests use the fake.
type ResultSink interface {
	Deliver(res transport.Result)
}

// Server is the coordinator's HTTP control API
type Server struct {
	coord   *coordinator.Coordinator
	results ResultSink
	srv     *http.Server
	logger  zerolog.Logger
}

// NewServer creates the control API server
func NewServer(addr string, coord *coordinator.Coordinator, results ResultSink) *Server {
	s := &Server{
		coord:   coord,
		results: results,
		logger:  log.WithComponent("api"),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	// Node routes
	r.HandleFunc("/v1/nodes", s.registerNode).Methods("POST")
	r.HandleFunc("/v1/nodes", s.listNodes).Methods("GET")
	r.HandleFunc("/v1/nodes/{id}", s.getNode).Methods("GET")
	r.HandleFunc("/v1/nodes/{id}", s.unregisterNode).Methods("DELETE")
	r.HandleFunc("/v1/nodes/{id}/resources", s.updateResources).Methods("PUT")
	r.HandleFunc("/v1/nodes/{id}/heartbeat", s.heartbeat).Methods("POST")

	// Task routes
	r.HandleFunc("/v1/tasks", s.submitTask).Methods("POST")
	r.HandleFunc("/v1/tasks", s.listTasks).Methods("GET")
	r.HandleFunc("/v1/tasks/{id}", s.getTask).Methods("GET")
	r.HandleFunc("/v1/tasks/{id}", s.cancelTask).Methods("DELETE")
	r.HandleFunc("/v1/tasks/{id}/result", s.taskResult).Methods("POST")

	// Job routes
	r.HandleFunc("/v1/jobs", s.submitJob).Methods("POST")
	r.HandleFunc("/v1/jobs", s.listJobs).Methods("GET")
	r.HandleFunc("/v1/jobs/{id}", s.getJob).Methods("GET")

	// Cluster routes
	r.HandleFunc("/v1/clusters", s.createCluster).Methods("POST")
	r.HandleFunc("/v1/clusters", s.listClusters).Methods("GET")
	r.HandleFunc("/v1/clusters/{id}", s.getCluster).Methods("GET")
	r.HandleFunc("/v1/clusters/{id}/scale", s.scaleCluster).Methods("POST")
	r.HandleFunc("/v1/clusters/{id}/nodes/{nodeID}", s.addClusterNode).Methods("PUT")
	r.HandleFunc("/v1/clusters/{id}/nodes/{nodeID}", s.removeClusterNode).Methods("DELETE")

	// Observability
	r.HandleFunc("/v1/status", s.status).Methods("GET")
	r.HandleFunc("/v1/events", s.streamEvents).Methods("GET")
	r.HandleFunc("/v1/history", s.listHistory).Methods("GET")
	r.HandleFunc("/healthz", s.healthz).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	return r
}

// Start begins serving in the background
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("control API listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("control API server failed")
		}
	}()
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps the event stream working through the middleware wrapper
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.APIRequestsTotal.WithLabelValues(route, http.StatusText(rec.status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain error kinds to HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNodeNotFound),
		errors.Is(err, types.ErrTaskNotFound),
		errors.Is(err, types.ErrJobNotFound),
		errors.Is(err, types.ErrClusterNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidSpec):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
