package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dealdocs/engine/internal/api"
	"github.com/dealdocs/engine/internal/api/handlers"
	mw "github.com/dealdocs/engine/internal/api/middleware"
	"github.com/dealdocs/engine/internal/app"
	"github.com/dealdocs/engine/pkg/config"
	"github.com/dealdocs/engine/pkg/database"
	"github.com/dealdocs/engine/pkg/logger"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting deal documents api",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, using default (INSECURE for production)")
		cfg.JWTSecret = "change-me-in-production-please"
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("failed to initialise dependencies", zap.Error(err))
	}
	defer a.Close()

	if err := a.Blobs.EnsureBucket(ctx); err != nil {
		log.Fatal("blob store not ready", zap.Error(err))
	}

	queue := asynq.NewClient(app.AsynqRedis(cfg))
	defer queue.Close()

	limiter := mw.NewLimiter(10, 20)
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-t.C:
				limiter.Sweep(10 * time.Minute)
			}
		}
	}()

	router := api.NewRouter(api.Dependencies{
		HMACSecret:       []byte(cfg.JWTSecret),
		TrustProxy:       cfg.TrustProxy,
		Limiter:          limiter,
		AuthHandler:      handlers.NewAuthHandler(a.Auth),
		DealsHandler:     handlers.NewDealsHandler(a.Generation, a.Status, a.Documents, queue, cfg.TemplateTimeout*4),
		DocumentsHandler: handlers.NewDocumentsHandler(a.Documents, cfg.PresignExpiry),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Check{
			"postgres": func(ctx context.Context) error { return database.Ping(ctx, a.DB) },
			"redis":    func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
		}),
	})

	// Sync generation can run for several template timeouts.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.TemplateTimeout*4 + 30*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
