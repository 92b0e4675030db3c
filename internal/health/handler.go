// Package health implements the liveness/readiness probes (C8), grounded
// on the teacher's internal/v1/health.Handler. The teacher's SFU gRPC
// health check has no counterpart here (this service has no SFU); the
// only dependency worth checking at readiness time is the metadata
// mirror.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/khanmassab/flixers-server/internal/logging"
	"github.com/khanmassab/flixers-server/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// readinessTimeout bounds how long the readiness probe waits on its
// dependency checks.
const readinessTimeout = 3 * time.Second

// Handler serves the health endpoints.
type Handler struct {
	mirror    types.Mirror
	startedAt time.Time
}

// NewHandler builds a Handler. mirror may be nil when the service runs
// without a metadata mirror, in which case readiness never reports it
// unhealthy.
func NewHandler(mirror types.Mirror) *Handler {
	return &Handler{mirror: mirror, startedAt: time.Now()}
}

// LivenessResponse is returned by GET /health: a static status plus an
// uptime counter (spec §6).
type LivenessResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

// ReadinessResponse is returned by GET /health/ready.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness always reports the process alive once it can serve requests
// at all; it performs no dependency checks.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:        "alive",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness reports 503 if the metadata mirror is configured and
// unreachable. A nil mirror (no cache configured) is always healthy,
// since the room registry is fully functional without it.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string)
	status := "mirror_disabled"
	if h.mirror != nil {
		status = "healthy"
		if err := h.mirror.Ping(ctx); err != nil {
			logging.Error(ctx, "metadata mirror readiness check failed", zap.Error(err))
			status = "unhealthy"
		}
	}
	checks["mirror"] = status

	allHealthy := status != "unhealthy"
	respStatus := "ready"
	code := http.StatusOK
	if !allHealthy {
		respStatus = "unavailable"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, ReadinessResponse{
		Status:    respStatus,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
