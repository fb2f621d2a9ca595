package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chrisisia/traza-assistant/internal/bootstrap"
	"github.com/chrisisia/traza-assistant/internal/config"
	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/observability/logging"
	"github.com/chrisisia/traza-assistant/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeTraceRecorded(ctx, func(handlerCtx context.Context, record domain.TraceRecord) error {
		start := time.Now()
		workerMetrics.StartTrace()
		if !record.CreatedAt.IsZero() {
			workerMetrics.ObserveQueueLag("worker", time.Since(record.CreatedAt))
		}
		workerMetrics.ObserveUploadSize("worker", len(record.Document))

		processCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()
		processErr := app.ProcessUC.Process(processCtx, record)
		workerMetrics.FinishTrace("worker", time.Since(start), processErr)
		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
