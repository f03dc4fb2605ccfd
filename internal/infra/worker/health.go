package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"orderpilot/internal/infra/browserpool"
	"orderpilot/internal/resilience/circuitbreaker"
)

// CircuitStatusSource is the slice of the circuit registry the health server
// reads.
type CircuitStatusSource interface {
	StatusAll(ctx context.Context) []circuitbreaker.Status
	AnyOpen(ctx context.Context) bool
}

// PoolStatusSource is the slice of the pool the health server reads.
type PoolStatusSource interface {
	HealthCheck() browserpool.HealthReport
	Stats() browserpool.Stats
}

// HealthServer provides the operational HTTP endpoints of a replica:
//   - /health: liveness probe (always 200 while the process serves)
//   - /health/ready: readiness probe (503 while starting, while any circuit
//     is open, or while the pool reports unhealthy)
//   - /status: full circuit and pool state as JSON
//
// The server supports graceful shutdown via context cancellation.
type HealthServer struct {
	addr     string
	logger   *slog.Logger
	circuits CircuitStatusSource
	pool     PoolStatusSource
	isReady  *atomic.Bool
	server   *http.Server
}

type healthResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type statusResponse struct {
	Circuits []circuitbreaker.Status `json:"circuits"`
	Pool     poolStatus              `json:"pool"`
}

type poolStatus struct {
	Health browserpool.HealthReport `json:"health"`
	Stats  browserpool.Stats        `json:"stats"`
}

// NewHealthServer creates the health server. Call Start to begin serving and
// SetReady(true) once initialization completes.
func NewHealthServer(addr string, circuits CircuitStatusSource, pool PoolStatusSource, logger *slog.Logger) *HealthServer {
	isReady := &atomic.Bool{}
	isReady.Store(false)

	return &HealthServer{
		addr:     addr,
		logger:   logger,
		circuits: circuits,
		pool:     pool,
		isReady:  isReady,
	}
}

// Start runs the server until ctx is cancelled or the listener fails. It
// returns http.ErrServerClosed after a graceful shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/health/ready", h.handleReadiness)
	mux.HandleFunc("/status", h.handleStatus)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("health server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if err != http.ErrServerClosed {
			h.logger.Error("health server failed", slog.Any("error", err))
		}
		return err
	}
}

// SetReady flips the readiness gate. The composition root calls it with true
// once the pool and circuits are wired, and with false before shutdown.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !h.isReady.Load() {
		h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting"})
		return
	}
	if h.circuits != nil && h.circuits.AnyOpen(r.Context()) {
		h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status: "degraded",
			Reason: "circuit open",
		})
		return
	}
	if h.pool != nil {
		if report := h.pool.HealthCheck(); !report.Healthy {
			h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status: "degraded",
				Reason: "pool unhealthy",
			})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ready"})
}

func (h *HealthServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{}
	if h.circuits != nil {
		resp.Circuits = h.circuits.StatusAll(r.Context())
	}
	if h.pool != nil {
		resp.Pool = poolStatus{
			Health: h.pool.HealthCheck(),
			Stats:  h.pool.Stats(),
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *HealthServer) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}
