// Command server runs the watch-party room hub: the control-plane HTTP
// API and the /ws streaming upgrade endpoint, wired from environment
// configuration, grounded on the teacher's cmd/v1/session/main.go
// wiring pattern but rebuilt around the Registry/Hub/Router stack.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/khanmassab/flixers-server/internal/auth"
	"github.com/khanmassab/flixers-server/internal/config"
	"github.com/khanmassab/flixers-server/internal/control"
	"github.com/khanmassab/flixers-server/internal/health"
	"github.com/khanmassab/flixers-server/internal/logging"
	"github.com/khanmassab/flixers-server/internal/middleware"
	"github.com/khanmassab/flixers-server/internal/mirror"
	"github.com/khanmassab/flixers-server/internal/ratelimit"
	"github.com/khanmassab/flixers-server/internal/room"
	"github.com/khanmassab/flixers-server/internal/tracing"
	"github.com/khanmassab/flixers-server/internal/types"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "flixers-room-hub"

func main() {
	if err := godotenv.Load(); err != nil {
		// Absence is expected outside local development.
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.GoEnv == "development"); err != nil {
		panic(err)
	}
	defer logging.GetLogger().Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.InitTracer(ctx, serviceName, os.Getenv("OTEL_COLLECTOR_ADDR"))
	if err != nil {
		logging.Error(ctx, "failed to initialize tracer", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logging.Warn(ctx, "tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	var validator types.TokenValidator = auth.NewVerifier(cfg.SessionSecret, cfg.TokenAudience)

	var mirrorSvc *mirror.Service
	var mirrorIface types.Mirror
	if cfg.CacheAddr != "" {
		mirrorSvc, err = mirror.NewService(cfg.CacheAddr, cfg.CachePassword)
		if err != nil {
			logging.Error(ctx, "failed to initialize metadata mirror, continuing without it", zap.Error(err))
		} else {
			mirrorIface = mirrorSvc
			defer mirrorSvc.Close()
		}
	}

	var rlRedisClient *redis.Client
	if cfg.CacheAddr != "" {
		rlRedisClient = redis.NewClient(&redis.Options{Addr: cfg.CacheAddr, Password: cfg.CachePassword})
		defer rlRedisClient.Close()
	}
	limiter, err := ratelimit.New(cfg, rlRedisClient)
	if err != nil {
		panic(err)
	}

	registry := room.NewRegistry(mirrorIface, cfg.DefaultEncryptionRequired, cfg.RoomEmptyGrace)
	router := room.NewRouter(mirrorIface)
	hub := room.NewHub(registry, router, validator, limiter, cfg.PingInterval, cfg.ActivityTimeout, cfg.AllowedOrigins)
	controlSvc := control.NewService(registry, cfg.DefaultEncryptionRequired)
	healthHandler := health.NewHandler(mirrorIface)

	if cfg.GoEnv == "development" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CorrelationID())
	engine.Use(otelgin.Middleware(serviceName))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.AllowedOrigins
	corsCfg.AllowCredentials = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	engine.Use(cors.New(corsCfg))

	engine.GET("/health", healthHandler.Liveness)
	engine.GET("/health/live", healthHandler.Liveness)
	engine.GET("/health/ready", healthHandler.Readiness)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/ws", hub.ServeWs)

	apiGroup := engine.Group("/", limiter.ControlPlaneMiddleware())
	controlSvc.RegisterRoutes(apiGroup, validator)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	go func() {
		logging.Info(ctx, "server starting", zap.String("port", cfg.Port), zap.String("go_env", cfg.GoEnv))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server forced to shutdown", zap.Error(err))
	}

	logging.Info(ctx, "server exited")
}
