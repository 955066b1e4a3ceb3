package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/alert"
	"github.com/upmon/upmon/internal/checker"
	"github.com/upmon/upmon/internal/config"
	"github.com/upmon/upmon/internal/metrics"
	"github.com/upmon/upmon/internal/model"
	"github.com/upmon/upmon/internal/reconciler"
	"github.com/upmon/upmon/internal/storage"
	"github.com/upmon/upmon/internal/worker"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Connect to NATS with more options
	opts := []nats.Option{
		nats.Name(cfg.App.Name),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.Timeout(cfg.NATS.ConnectTimeout),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.DrainTimeout(30 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS connection error", zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
	}

	// Connect with retry
	var nc *nats.Conn
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(cfg.NATS.URL, opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}
	defer nc.Close()

	logger.Info("Connected to NATS successfully",
		zap.String("url", nc.ConnectedUrl()))

	// Create JetStream context
	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Failed to create JetStream context", zap.Error(err))
	}

	// Open the target store
	store, err := storage.NewSQLiteStore(logger, cfg.Storage.Path)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	// Alert event feed
	events, err := alert.NewEvents(logger, js)
	if err != nil {
		logger.Fatal("Failed to create alert event feed", zap.Error(err))
	}

	// Notification senders and dispatcher
	senderClient := &http.Client{Timeout: cfg.Alerts.DispatchTimeout}
	senders := map[model.ChannelKind]alert.Sender{
		model.ChannelWebhook: alert.NewWebhookSender(logger, senderClient),
		model.ChannelChatBot: alert.NewChatBotSender(logger, senderClient, ""),
	}
	dispatcher := alert.NewDispatcher(logger, store, senders, events, cfg.Alerts.DispatchTimeout)

	// Probing plumbing shared by all workers
	prober := checker.NewProber(logger, cfg.Checks.Timeout, cfg.Checks.TLSWarningDays)
	retrier := checker.NewRetrier(logger, cfg.Checks.RetryAttempts, cfg.Checks.RetryBackoff)

	// Select the concurrency substrate
	var runtime worker.Runtime
	switch cfg.Engine.Runtime {
	case "pool":
		runtime = worker.NewPoolRuntime(cfg.Engine.PoolSize)
		logger.Info("Using pooled runtime", zap.Int("pool_size", cfg.Engine.PoolSize))
	default:
		runtime = worker.NewThreadRuntime()
		logger.Info("Using thread runtime")
	}

	stats := metrics.NewStats()
	registry := worker.NewRegistry()
	alertCfg := alert.Config{
		ThrottleWindow:     cfg.Alerts.ThrottleWindow,
		EscalationInterval: cfg.Alerts.EscalationInterval,
	}
	factory := worker.NewFactory(logger, registry, runtime, prober, retrier, dispatcher, store, stats, alertCfg)

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Reconciler keeps workers converged with the store
	rec := reconciler.New(logger, store, registry, factory, cfg.Engine.ReconcileInterval)
	rec.Start(ctx)

	// Metrics collection
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector, err = metrics.NewCollector(logger, js, stats, registry, cfg.Metrics.Interval)
		if err != nil {
			logger.Fatal("Failed to create metrics collector", zap.Error(err))
		}
		collector.Start(ctx)
	}

	// Scheduled history cleanup
	cleanup := cron.New()
	_, err = cleanup.AddFunc(cfg.History.CleanupSchedule, func() {
		cutoff := time.Now().Add(-cfg.History.Retention)
		if err := store.DeleteHistoryBefore(context.Background(), cutoff); err != nil {
			logger.Error("Failed to cleanup old check history", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("Failed to schedule history cleanup", zap.Error(err))
	}
	cleanup.Start()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown: stop converging, ask every worker to stop, then
	// wait for in-flight checks bounded by the shutdown timeout
	rec.Stop()
	cleanup.Stop()
	if collector != nil {
		collector.Stop()
	}

	for _, handle := range registry.Snapshot() {
		handle.SignalStop()
	}
	if !runtime.Shutdown(cfg.Engine.ShutdownTimeout) {
		logger.Warn("Shutdown timeout reached, some checks may not have completed")
	}

	logger.Info("Server shutting down gracefully")
}
