package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/syncwatch/internal/core/config"
	"github.com/vietddude/syncwatch/internal/indexing/reconcile"
	"github.com/vietddude/syncwatch/internal/infra/rpc/provider"
)

// TriggerFunc runs the alert job on demand.
type TriggerFunc func(ctx context.Context) error

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	monitor *Monitor
	trigger TriggerFunc
	server  *http.Server
	log     *slog.Logger
}

// NewServer creates a new health server. trigger may be nil, in which case
// /api/monitor is not served.
func NewServer(monitor *Monitor, port int, trigger TriggerFunc, logger *slog.Logger) *Server {
	s := &Server{
		monitor: monitor,
		trigger: trigger,
		log:     logger.With("component", "http"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           WithCORS(s.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, fmt.Errorf("no route for %s", req.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", req.Method))
	})
	r.HandleFunc("/api/blocks", s.handleBlocks).Methods(http.MethodGet)
	if s.trigger != nil {
		r.HandleFunc("/api/monitor", s.handleMonitor).Methods(http.MethodGet, http.MethodPost)
	}
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/detailed", s.handleDetailed).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// WithCORS lets browser dashboards on other origins read the API.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleBlocks runs a fresh cycle. Query parameters fast_url, downstream_url
// (or envio_url, indexer_url) and threshold override the configuration.
func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := PollOptions{
		FastURL:       firstOf(q.Get("fast_url"), q.Get("envio_url")),
		DownstreamURL: firstOf(q.Get("downstream_url"), q.Get("indexer_url")),
	}
	if raw := q.Get("threshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			err = config.ValidateThreshold(t)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid threshold %q", raw))
			return
		}
		opts.Threshold = &t
	}

	report, err := s.monitor.Poll(r.Context(), opts)
	if err != nil {
		s.log.Error("Error in /api/blocks", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	if err := s.trigger(r.Context()); err != nil {
		s.log.Error("Monitoring task failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("monitoring task failed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	report := s.monitor.Latest()
	if report == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unknown"})
		return
	}

	code := http.StatusOK
	if report.Status == reconcile.StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":         report.Status,
		"healthy":        report.System.Healthy,
		"system_percent": report.System.Percent,
		"updated_at":     report.UpdatedAt,
	})
}

func (s *Server) handleDetailed(w http.ResponseWriter, _ *http.Request) {
	report := s.monitor.Latest()
	if report == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no completed poll cycle yet"))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*Report
		Providers map[string]provider.HealthStatus `json:"providers,omitempty"`
	}{report, s.monitor.Providers()})
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
