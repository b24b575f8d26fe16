package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/resilience"
)

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady toggles readiness; main flips it off when draining for shutdown.
func SetReady(v bool) {
	ready.Store(v)
}

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
	// OrderService is reported but never fails readiness: carts keep working
	// while the order service is down.
	OrderService *resilience.Breaker
}

// Routes mounts /live and /ready.
func (h Handler) Routes(r chi.Router) {
	r.Get("/live", h.Live)
	r.Get("/ready", h.Ready)
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	if h.Checker == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "dependencies unavailable", nil)
		return
	}
	ctx := r.Context()
	dbStatus := "ok"
	if err := h.Checker.PingDB(ctx, h.dbTimeout()); err != nil {
		dbStatus = err.Error()
	}
	redisStatus := "ok"
	if err := h.Checker.PingRedis(ctx, h.redisTimeout()); err != nil {
		redisStatus = err.Error()
	}
	status := map[string]string{
		"db":    dbStatus,
		"redis": redisStatus,
	}
	if h.OrderService != nil {
		status["order_service"] = h.OrderService.State().String()
	}
	code := http.StatusOK
	if dbStatus != "ok" || redisStatus != "ok" {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func (h Handler) dbTimeout() time.Duration {
	if h.DBTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.DBTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
