package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/go-drift/motion/pkg/effects"
)

const (
	defaultStreamInterval = 250 * time.Millisecond
	streamWriteWait       = 2 * time.Second
)

// ServerConfig configures the diagnostics server.
type ServerConfig struct {
	// Addr is the listen address. ":0" picks an ephemeral port.
	Addr string
	// AllowedOrigins enables CORS for browser dashboards. Empty disables it.
	AllowedOrigins []string
	// Runtime, when set, is served on /runtime.
	Runtime *RuntimeSampler
	// StreamInterval is how often /stream pushes metrics.
	StreamInterval time.Duration
	Logger         zerolog.Logger
}

// Server exposes scheduler state over HTTP:
//
//	GET /health           liveness
//	GET /metrics          Prometheus exposition
//	GET /stats            current Metrics as JSON
//	GET /ticks            recent tick trace (limit, min_ms, failed filters)
//	GET /entries/{handle} one live entry
//	GET /effects          GPU capability and per-kind fallbacks
//	GET /runtime          runtime/GC samples with tick load (window, overrun, limit filters)
//	GET /stream           websocket pushing Metrics every StreamInterval
type Server struct {
	scheduler *Scheduler
	cfg       ServerConfig
	log       zerolog.Logger
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	upgrader  websocket.Upgrader
	handler   http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer builds the router for s. It does not listen until Start.
func NewServer(s *Scheduler, cfg ServerConfig) *Server {
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = defaultStreamInterval
	}
	srv := &Server{
		scheduler: s,
		cfg:       cfg,
		log:       cfg.Logger,
		registry:  prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "diagnostics",
				Name:      "requests_total",
				Help:      "Total number of diagnostics HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
	}
	srv.registry.MustRegister(
		NewCollector(s),
		srv.requests,
		collectors.NewGoCollector(),
	)
	srv.upgrader = websocket.Upgrader{CheckOrigin: srv.checkOrigin}
	srv.handler = srv.routes()
	return srv
}

// Registry returns the Prometheus registry served on /metrics.
func (srv *Server) Registry() *prometheus.Registry { return srv.registry }

// Handler returns the router.
func (srv *Server) Handler() http.Handler { return srv.handler }

func (srv *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(srv.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: srv.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(srv.countRequests)

	r.Get("/health", srv.handleHealth)
	r.Get("/metrics", promhttp.HandlerFor(srv.registry, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/stats", srv.handleStats)
	r.Get("/ticks", srv.handleTicks)
	r.Get("/entries/{handle}", srv.handleEntry)
	r.Get("/effects", srv.handleEffects)
	r.Get("/runtime", srv.handleRuntime)
	r.Get("/stream", srv.handleStream)
	return r
}

// Start listens on cfg.Addr and serves in the background. It returns the
// bound address.
func (srv *Server) Start() (string, error) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.server != nil {
		return srv.listener.Addr().String(), nil
	}

	// Bind first to fail fast on port conflicts.
	listener, err := net.Listen("tcp", srv.cfg.Addr)
	if err != nil {
		return "", fmt.Errorf("diagnostics server listen: %w", err)
	}

	server := &http.Server{Handler: srv.handler, ReadHeaderTimeout: 5 * time.Second}
	srv.server = server
	srv.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			srv.mu.Lock()
			srv.server = nil
			srv.listener = nil
			srv.mu.Unlock()
			srv.log.Error().Err(err).Msg("diagnostics server stopped")
		}
	}()

	srv.log.Info().Str("addr", listener.Addr().String()).Msg("diagnostics server listening")
	return listener.Addr().String(), nil
}

// Shutdown gracefully stops the server.
func (srv *Server) Shutdown(ctx context.Context) error {
	srv.mu.Lock()
	server := srv.server
	srv.server = nil
	srv.listener = nil
	srv.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

func (srv *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(srv.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range srv.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	sr.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (srv *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		srv.requests.WithLabelValues(path, r.Method, strconv.Itoa(sr.status)).Inc()
	})
}

func (srv *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (srv *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, srv.scheduler.Metrics())
}

func (srv *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	resp := srv.scheduler.RecentTicks()
	applyTickFilters(r, &resp)
	writeJSON(w, http.StatusOK, resp)
}

func (srv *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	h, err := strconv.ParseUint(chi.URLParam(r, "handle"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid handle")
		return
	}
	info, ok := srv.scheduler.Lookup(Handle(h))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no live entry")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Handle   uint64  `json:"handle"`
		ID       string  `json:"id,omitempty"`
		Kind     string  `json:"kind"`
		State    string  `json:"state"`
		Priority int     `json:"priority"`
		Value    float64 `json:"value"`
	}{
		Handle:   uint64(info.Handle),
		ID:       info.ID,
		Kind:     info.Kind.String(),
		State:    info.State.String(),
		Priority: info.Priority,
		Value:    info.Value,
	})
}

func (srv *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	sel := srv.scheduler.Selector()
	capability := sel.Capability()
	resp := struct {
		Available bool              `json:"available"`
		Adapter   string            `json:"adapter,omitempty"`
		Fidelity  effects.Fidelity  `json:"fidelity"`
		Fallbacks map[string]string `json:"fallbacks"`
	}{
		Available: capability.Available,
		Adapter:   capability.Adapter,
		Fidelity:  sel.Fidelity(),
		Fallbacks: make(map[string]string),
	}
	for kind, err := range sel.Fallbacks() {
		resp.Fallbacks[kind.String()] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (srv *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	if srv.cfg.Runtime == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "runtime sampling disabled")
		return
	}
	samples := applyRuntimeFilters(r, srv.cfg.Runtime.Samples())
	writeJSON(w, http.StatusOK, struct {
		Samples []RuntimeSample `json:"samples"`
	}{Samples: samples})
}

func (srv *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Debug().Err(err).Msg("stream upgrade failed")
		return
	}
	defer conn.Close()

	// The read loop only detects the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(srv.cfg.StreamInterval)
	defer ticker.Stop()
	for {
		if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
			return
		}
		if err := conn.WriteJSON(srv.scheduler.Metrics()); err != nil {
			return
		}
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func applyTickFilters(r *http.Request, resp *TickTimeline) {
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var filters []func(TickSample) bool

	if v := parseFloatQuery(r, "min_ms"); v > 0 {
		filters = append(filters, func(s TickSample) bool { return s.TickMs >= v })
	}
	if v := parseFloatQuery(r, "advance_ms"); v > 0 {
		filters = append(filters, func(s TickSample) bool { return s.Phases.AdvanceMs >= v })
	}
	if value := r.URL.Query().Get("failed"); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil && parsed {
			filters = append(filters, func(s TickSample) bool { return s.Counts.Failed > 0 })
		}
	}

	if len(filters) > 0 {
		filtered := make([]TickSample, 0, len(resp.Samples))
	outer:
		for _, sample := range resp.Samples {
			for _, f := range filters {
				if !f(sample) {
					continue outer
				}
			}
			filtered = append(filtered, sample)
		}
		resp.Samples = filtered
	}

	if limit > 0 && len(resp.Samples) > limit {
		resp.Samples = resp.Samples[len(resp.Samples)-limit:]
	}
}

func applyRuntimeFilters(r *http.Request, samples []RuntimeSample) []RuntimeSample {
	var cutoff int64
	if windowSeconds := parseFloatQuery(r, "window"); windowSeconds > 0 {
		cutoff = time.Now().Add(-time.Duration(windowSeconds * float64(time.Second))).UnixMilli()
	}
	overrunOnly := r.URL.Query().Get("overrun") == "true"
	samples = slices.DeleteFunc(samples, func(sample RuntimeSample) bool {
		return sample.Timestamp < cutoff || (overrunOnly && sample.OverrunTicks == 0)
	})

	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples
}

func parseFloatQuery(r *http.Request, key string) float64 {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return 0
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("json encode error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
		"code":  status,
	})
}
