package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/enrollhq/leadscore/internal/bundle"
	"github.com/enrollhq/leadscore/internal/config"
	"github.com/enrollhq/leadscore/internal/leads"
	"github.com/enrollhq/leadscore/internal/predict"
	"github.com/enrollhq/leadscore/internal/server"
	"github.com/enrollhq/leadscore/internal/telemetry"
)

func main() {
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "leadscore.yaml", "path to config file")
	dev := flag.Bool("dev", false, "development logging (console encoder, debug level)")
	flag.Parse()

	// Local overrides for development; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := buildLogger(cfg.Logging.Level, *dev)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	var store leads.Store
	if cfg.Store.LeadsFile != "" {
		mem, err := leads.LoadMemoryStore(cfg.Store.LeadsFile)
		if err != nil {
			logger.Fatal("load leads file", zap.String("path", cfg.Store.LeadsFile), zap.Error(err))
		}
		logger.Info("lead store loaded", zap.String("path", cfg.Store.LeadsFile), zap.Int("records", mem.Len()))
		store = mem
	} else {
		logger.Warn("no leads_file configured, starting with an empty store")
		store = leads.NewMemoryStore()
	}
	store = leads.NewBreakerStore(store, leads.BreakerConfig{
		FailureThreshold: cfg.Store.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Store.Breaker.SuccessThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout(),
	}, logger)

	registry := bundle.NewRegistry(bundle.RegistryConfig{
		Root: cfg.Registry.BundleDir,
		TTL:  cfg.RegistryTTL(),
		Pin:  cfg.Registry.Pin,
	}, logger)
	defer registry.Close()

	emitter := telemetry.NewEmitter(telemetry.EmitterConfig{
		QueueSize:       cfg.Telemetry.QueueSize,
		Workers:         cfg.Telemetry.Workers,
		ShutdownTimeout: cfg.TelemetryShutdownTimeout(),
	}, buildSinks(cfg, logger), logger)

	service := predict.NewService(store, registry, emitter, predict.Config{
		MaxBatchSize: cfg.Scoring.MaxBatchSize,
		MinCoverage:  cfg.Scoring.MinCoverage,
		Workers:      cfg.Scoring.Workers,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(service, registry, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Warm the registry so the first request does not pay the load, but do
	// not refuse to start: readyz stays 503 until a bundle appears.
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if b, _, err := registry.Active(warmCtx); err != nil {
		logger.Warn("no model bundle loaded at startup", zap.Error(err))
	} else {
		logger.Info("model bundle loaded",
			zap.String("version", b.Version), zap.String("checksum", b.Checksum))
		b.Release()
	}
	warmCancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("lead scoring service listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	emitter.Close(shutdownCtx)
	counters := emitter.CountersSnapshot()
	logger.Info("shutdown complete",
		zap.Uint64("telemetry_enqueued", counters.Enqueued()),
		zap.Uint64("telemetry_dropped", counters.Dropped()))
}

func buildLogger(level string, dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func buildSinks(cfg *config.Config, logger *zap.Logger) []telemetry.Sink {
	sinks := []telemetry.Sink{telemetry.NewMetricsSink(nil)}
	if cfg.Telemetry.FilePath != "" {
		fs, err := telemetry.NewFileSink(cfg.Telemetry.FilePath)
		if err != nil {
			logger.Fatal("open telemetry file sink", zap.String("path", cfg.Telemetry.FilePath), zap.Error(err))
		}
		sinks = append(sinks, fs)
	}
	if cfg.Telemetry.WebhookURL != "" {
		ws, err := telemetry.NewWebhookSink(cfg.Telemetry.WebhookURL, nil, 5*time.Second)
		if err != nil {
			logger.Fatal("build telemetry webhook sink", zap.String("url", cfg.Telemetry.WebhookURL), zap.Error(err))
		}
		sinks = append(sinks, ws)
	}
	return sinks
}
