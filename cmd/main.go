package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/truthfuse/internal/adapters/classifier"
	"github.com/okian/truthfuse/internal/adapters/http/api"
	"github.com/okian/truthfuse/internal/adapters/http/swagger"
	"github.com/okian/truthfuse/internal/adapters/notifier"
	"github.com/okian/truthfuse/internal/adapters/repository"
	app "github.com/okian/truthfuse/internal/app"
	"github.com/okian/truthfuse/internal/config"
	"github.com/okian/truthfuse/internal/domain/fusion"
	"github.com/okian/truthfuse/internal/domain/matching"
	"github.com/okian/truthfuse/internal/domain/scoring"
	"github.com/okian/truthfuse/pkg/logger"
	"github.com/okian/truthfuse/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 15 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
	classifierBurst           = 5
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitWithFormat(logger.Format(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	sink, err := buildSink(cfg, log)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to build notifier: %w", err)
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithStore(store),
		app.WithSink(sink),
		app.WithClassifier(buildClassifier(cfg, log)),
		app.WithEngineOptions(engineOptions(cfg)...),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.StoreDriver),
			logger.String("notifier", cfg.Notifier))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// buildStore opens the configured event store.
func buildStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	dialect := repository.DialectSQLite
	switch cfg.StoreDriver {
	case config.StoreSQLite:
	case config.StorePostgres:
		dialect = repository.DialectPostgres
	default:
		return repository.NewMemoryStore(ctx), nil
	}
	store, err := repository.OpenSQLStore(ctx, dialect, cfg.StoreDSN)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// buildSink picks the notification transport.
func buildSink(cfg *config.Config, log logger.Logger) (notifier.Sink, error) {
	switch cfg.Notifier {
	case config.NotifierKafka:
		return notifier.FanOut{
			notifier.NewLogSink(log),
			notifier.NewKafkaSink(cfg.Brokers(), cfg.KafkaActivityTopic, cfg.KafkaEventTopic),
		}, nil
	case config.NotifierMQTT:
		sink, err := notifier.NewMQTTSink(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
		if err != nil {
			return nil, err
		}
		return notifier.FanOut{notifier.NewLogSink(log), sink}, nil
	default:
		return notifier.NewLogSink(log), nil
	}
}

// buildClassifier returns the remote image classifier, or the disabled
// fallback when no URL is configured.
func buildClassifier(cfg *config.Config, log logger.Logger) classifier.Classifier {
	if cfg.ClassifierURL == "" {
		return classifier.Disabled{}
	}
	return classifier.New(cfg.ClassifierURL,
		classifier.WithTimeout(time.Duration(cfg.ClassifierTimeoutMS)*time.Millisecond),
		classifier.WithRateLimit(cfg.ClassifierRPS, classifierBurst),
		classifier.WithBreaker(cfg.ClassifierMaxFailures, time.Duration(cfg.ClassifierResetMS)*time.Millisecond),
		classifier.WithLogger(log.Named("classifier")),
	)
}

func engineOptions(cfg *config.Config) []fusion.Option {
	return []fusion.Option{
		fusion.WithMatcher(matching.NewMatcher(
			matching.WithSpatialRadius(cfg.SpatialRadiusM),
			matching.WithAutoMergeRadius(cfg.AutoMergeRadiusM),
			matching.WithTitleSimilarity(cfg.TitleSimilarity),
		)),
		fusion.WithScorer(scoring.NewScorer(scoring.WithRoleWeights(cfg.RoleWeights))),
		fusion.WithCellLevel(cfg.CellLevel),
		fusion.WithDedupRadius(cfg.DedupRadiusM),
	}
}

// newHandler mounts the docs and business routes and wraps them with
// recovery and CORS.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) http.Handler {
	router := mux.NewRouter()
	swagger.Register(ctx, router)
	api.NewServer(svc, svc,
		api.WithMaxImageBytes(cfg.MaxImageBytes),
		api.WithLogger(log.Named("api")),
	).Register(ctx, router)
	return api.WithRecoveryAndCORS(router, log.Named("http"))
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
