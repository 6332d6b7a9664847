package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/config"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/engine/sqldb"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/handlers"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/health"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/middleware"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/registry"
	"github.com/kartikbazzad/bunbase/trinodbc/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Flags override config
	host := flag.String("host", cfg.Server.Host, "Host to bind the service to")
	port := flag.Int("port", cfg.Server.Port, "Port to run the service on")
	debug := flag.Bool("debug", false, "Run in debug mode")
	flag.Parse()
	cfg.Server.Host = *host
	cfg.Server.Port = *port
	if *debug {
		cfg.Log.Level = "DEBUG"
	}

	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, AddSource: *debug})
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := registry.New(sqldb.Engines(),
		registry.WithLogger(log),
		registry.WithShutdownWorkers(cfg.Registry.ShutdownWorkers),
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(cfg, reg),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Starting server", "name", health.Name, "version", health.Version, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", "error", err)
	}
	if err := reg.CloseAll(ctx); err != nil {
		log.Error("Failed to close connections", "error", err)
	}
	log.Info("Server stopped")
}

// newRouter wires middleware, the API routes and the health and metrics
// endpoints. Health and metrics stay outside auth and rate limiting.
func newRouter(cfg *config.Config, reg *registry.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware())
	if cfg.CORS.Origin != "" {
		router.Use(middleware.CORSMiddleware(cfg.CORS.Origin))
	}

	router.GET("/status", health.Status)
	router.GET("/ready", health.Ready(reg.Stats))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst))
	api.Use(middleware.AuthMiddleware([]byte(cfg.Auth.JWTSecret)))
	handlers.NewHandler(reg,
		handlers.WithLogger(logger.Get()),
		handlers.WithDefaultMaxRows(cfg.Fetch.DefaultMaxRows),
	).Register(api)

	return router
}
