package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fluxhub/action-dispatch/internal/actions"
	"github.com/fluxhub/action-dispatch/internal/api"
	"github.com/fluxhub/action-dispatch/internal/config"
	"github.com/fluxhub/action-dispatch/internal/db"
	"github.com/fluxhub/action-dispatch/internal/dispatch"
	"github.com/fluxhub/action-dispatch/internal/domain"
	"github.com/fluxhub/action-dispatch/internal/metrics"
	"github.com/fluxhub/action-dispatch/internal/queue"
	"github.com/fluxhub/action-dispatch/internal/ratelimiter"
	"github.com/fluxhub/action-dispatch/internal/repository"
	"github.com/fluxhub/action-dispatch/internal/service"
	"github.com/fluxhub/action-dispatch/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	q := queue.New()
	repo := repository.NewPgInvocationRepository(pool)
	limiter := ratelimiter.New(cfg.RateLimit)

	// ---- action registry ----
	registry := actions.NewRegistry()
	webhook := actions.NewWebhookAction(cfg.WebhookBaseURL, cfg.WebhookTimeout)
	if err := registry.Register("webhook.post", webhook.Handle); err != nil {
		logger.Fatal("failed to register action", zap.Error(err))
	}
	if err := registry.Register("core.echo", actions.Echo); err != nil {
		logger.Fatal("failed to register action", zap.Error(err))
	}

	// ---- event bus ----
	// Workers publish a PhaseEvent for every phase transition; the bus
	// delivers them serially to subscribers. Metrics observe the stream
	// instead of being wired into the workers directly.
	bus := dispatch.NewBus[domain.PhaseEvent](cfg.BusBuffer)
	bus.Subscribe(m.ObservePhase)

	svc := service.NewActionService(repo, q, registry, logger)

	// ---- background goroutines ----
	// Context for all of them; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	workerPool := worker.NewPool(cfg.Workers, q, repo, registry, limiter, bus, logger)
	workerPool.Start(workerCtx)

	schedulerW := worker.NewSchedulerWorker(repo, q, cfg.SchedulerInterval, logger)
	go schedulerW.Run(workerCtx)

	reaperW := worker.NewReaperWorker(repo, cfg.ReaperInterval, cfg.RunningDeadline, bus, logger)
	go reaperW.Run(workerCtx)

	// Sample queue depths into the Prometheus gauges.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				m.SetQueueDepths(q.Depths())
			}
		}
	}()

	// ---- HTTP server ----
	router := api.NewRouter(svc, q, promReg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all background goroutines to stop pulling new work.
	cancelWorkers()

	// 3. Wait for in-flight dispatches to settle.
	workerPool.Wait()

	// 4. Drain remaining phase events so metrics reflect the final state.
	bus.Close()

	logger.Info("server stopped cleanly")
}
