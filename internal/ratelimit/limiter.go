// Package ratelimit enforces connection-establishment and control-plane
// rate limits, grounded on the teacher's internal/v1/ratelimit package.
// It deliberately stops at the connection boundary: per-message rate
// limiting on an established stream is out of scope (spec §1 Non-goals,
// "rate limiting beyond connection-level liveness").
package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/khanmassab/flixers-server/internal/config"
	"github.com/khanmassab/flixers-server/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Limiter holds the configured rate limiter instances for the control
// plane and the streaming upgrade endpoint.
type Limiter struct {
	apiGlobal *limiter.Limiter
	wsIP      *limiter.Limiter
	wsUser    *limiter.Limiter
	store     limiter.Store
}

// New builds a Limiter. redisClient may be nil, in which case an
// in-process memory store is used (single-instance mode).
func New(cfg *config.Config, redisClient *redis.Client) (*Limiter, error) {
	apiGlobalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIGlobal)
	if err != nil {
		return nil, fmt.Errorf("invalid API global rate: %w", err)
	}
	wsIPRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWSIP)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}
	wsUserRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWSUser)
	if err != nil {
		return nil, fmt.Errorf("invalid WS user rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		store, err = sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "ratelimit:v1:"})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStore()
	}

	return &Limiter{
		apiGlobal: limiter.New(store, apiGlobalRate),
		wsIP:      limiter.New(store, wsIPRate),
		wsUser:    limiter.New(store, wsUserRate),
		store:     store,
	}, nil
}

// ControlPlaneMiddleware rate-limits control-plane HTTP requests by
// remote IP.
func (l *Limiter) ControlPlaneMiddleware() gin.HandlerFunc {
	return mgin.NewMiddleware(l.apiGlobal, mgin.WithLimitExceededHandler(func(c *gin.Context) {
		metrics.RateLimitExceeded.WithLabelValues("control_plane").Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	}))
}

// AllowConnection checks both the per-IP and per-user limits for a new
// streaming connection attempt, returning false if either is exceeded.
func (l *Limiter) AllowConnection(c *gin.Context, userID string) bool {
	ctx := c.Request.Context()

	ipCtx, err := l.wsIP.Get(ctx, c.ClientIP())
	if err == nil && ipCtx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("ws_ip").Inc()
		return false
	}

	if userID != "" {
		userCtx, err := l.wsUser.Get(ctx, userID)
		if err == nil && userCtx.Reached {
			metrics.RateLimitExceeded.WithLabelValues("ws_user").Inc()
			return false
		}
	}

	return true
}
