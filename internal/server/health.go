// Package server exposes the client's liveness over the standard gRPC
// health protocol.
package server

import (
	"log/slog"
	"sync"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/alfredjeanlab/tix/internal/session"
	tixsync "github.com/alfredjeanlab/tix/internal/sync"
)

// SyncService is the health service name that reports whether the most
// recent resync succeeded. The empty service reports session readiness.
const SyncService = "tix.sync"

// Health maps session and sync state onto health serving statuses. Both
// services start NOT_SERVING.
type Health struct {
	hs     *health.Server
	logger *slog.Logger

	mu       sync.Mutex
	ready    bool
	synced   bool
	lastErr  error
	shutdown bool
}

// NewHealth returns a Health with both services NOT_SERVING.
func NewHealth(logger *slog.Logger) *Health {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Health{hs: health.NewServer(), logger: logger}
	h.hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.hs.SetServingStatus(SyncService, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// ObserveSession updates the overall status from a session state. It has
// the signature expected by session.OnChange.
func (h *Health) ObserveSession(st session.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shutdown || h.ready == st.Ready() {
		return
	}
	h.ready = st.Ready()
	h.hs.SetServingStatus("", servingStatus(h.ready))
	h.logger.Info("session readiness changed", "ready", h.ready, "generation", st.Generation)
}

// ObserveSync updates the sync service from a scheduler outcome. It has the
// signature expected by sync.WithOnSync.
func (h *Health) ObserveSync(o tixsync.Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shutdown {
		return
	}
	h.lastErr = o.Err
	ok := o.Err == nil
	if ok == h.synced {
		return
	}
	h.synced = ok
	h.hs.SetServingStatus(SyncService, servingStatus(ok))
	if ok {
		h.logger.Info("sync healthy", "generation", o.Snapshot.Generation)
	} else {
		h.logger.Warn("sync unhealthy", "err", o.Err)
	}
}

// LastSyncError returns the error of the most recent resync, or nil.
func (h *Health) LastSyncError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Shutdown sets every service to NOT_SERVING and ignores later updates.
func (h *Health) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdown = true
	h.hs.Shutdown()
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
