// Package service wires the fusion engine, storage and notification delivery
// into the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/truthfuse/internal/adapters/classifier"
	"github.com/okian/truthfuse/internal/adapters/mq/worker"
	"github.com/okian/truthfuse/internal/adapters/notifier"
	"github.com/okian/truthfuse/internal/adapters/repository"
	"github.com/okian/truthfuse/internal/domain/dedupe"
	"github.com/okian/truthfuse/internal/domain/fusion"
	"github.com/okian/truthfuse/internal/domain/model"
	"github.com/okian/truthfuse/pkg/logger"
	"github.com/okian/truthfuse/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// Service implements the API dependencies for the fusion system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	sink       notifier.Sink
	classifier classifier.Classifier
	deduper    dedupe.Deduper
	dispatcher *notifier.Dispatcher
	engine     *fusion.Engine

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	engineOptions []fusion.Option

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of notification delivery workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the notification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the event and report store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSink sets the notification transport. The default logs notifications.
func WithSink(sink notifier.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithClassifier sets the content classifier handed to the engine.
func WithClassifier(c classifier.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithEngineOptions forwards options to the fusion engine.
func WithEngineOptions(opts ...fusion.Option) Option {
	return func(s *Service) {
		s.engineOptions = append(s.engineOptions, opts...)
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10_000,
		dedupeSize:  100_000,
		classifier:  classifier.Disabled{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting fusion service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
		s.logger.Info(ctx, "using in-memory store")
	}
	if s.sink == nil {
		s.sink = notifier.NewLogSink(s.logger)
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.dispatcher = notifier.NewDispatcher(s.sink, s.queueSize, s.workerCount,
		worker.WithLogger(s.logger.Named("worker")))
	s.dispatcher.Start(ctx)

	engineOpts := append([]fusion.Option{
		fusion.WithLogger(s.logger.Named("fusion")),
		fusion.WithClassifier(s.classifier),
		fusion.WithPublisher(s.dispatcher),
	}, s.engineOptions...)
	s.engine = fusion.NewEngine(s.store, engineOpts...)

	s.started = true
	s.logger.Info(ctx, "fusion service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains pending notifications and releases the store and transports.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping fusion service...")

	if err := s.dispatcher.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "notification drain incomplete", logger.Error(err))
	}
	if closer, ok := s.sink.(notifier.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn(ctx, "closing notifier failed", logger.Error(err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "fusion service stopped")
}

func (s *Service) running() (*fusion.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.engine, nil
}

// Submit fuses one report. A non-empty idempotencyKey already seen for the
// same reporter returns ErrReplayed without reprocessing; a failed submission
// forgets its key so the client can retry.
func (s *Service) Submit(ctx context.Context, r model.Report, idempotencyKey string) (fusion.Outcome, error) {
	engine, err := s.running()
	if err != nil {
		return fusion.Outcome{}, err
	}

	var key string
	if idempotencyKey != "" {
		key = dedupe.Key(r.ReporterID, idempotencyKey)
		if s.deduper.SeenAndRecord(ctx, key) {
			metrics.RecordReplay()
			s.logger.Debug(ctx, "replayed submission skipped",
				logger.String("reporter_id", r.ReporterID),
				logger.String("idempotency_key", idempotencyKey),
			)
			return fusion.Outcome{}, fmt.Errorf("%w: key %q", ErrReplayed, idempotencyKey)
		}
	}

	if r.ID == "" {
		r.ID = engine.NewID()
	}
	out, err := engine.Process(ctx, r)
	if err != nil && key != "" {
		s.deduper.Unrecord(ctx, key)
	}
	return out, err
}

// Events returns the active events.
func (s *Service) Events(ctx context.Context) ([]model.Event, error) {
	if _, err := s.running(); err != nil {
		return nil, err
	}
	return s.store.ListActive(ctx)
}

// AllEvents returns every event, resolved ones included.
func (s *Service) AllEvents(ctx context.Context) ([]model.Event, error) {
	if _, err := s.running(); err != nil {
		return nil, err
	}
	return s.store.ListAll(ctx)
}

// Event returns one event by id.
func (s *Service) Event(ctx context.Context, id string) (model.Event, error) {
	if _, err := s.running(); err != nil {
		return model.Event{}, err
	}
	return s.store.Get(ctx, id)
}

// Resolve closes an event.
func (s *Service) Resolve(ctx context.Context, id string) (model.Event, error) {
	engine, err := s.running()
	if err != nil {
		return model.Event{}, err
	}
	return engine.Resolve(ctx, id)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.dispatcher.Len(ctx)
		stats["queueLength"] = queueLen
		stats["idempotencyKeys"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.dispatcher.Workers())

		if active, total, err := s.store.Counts(ctx); err == nil {
			stats["activeEvents"] = active
			stats["totalEvents"] = total
			metrics.UpdateEventCounts(active, total)
		}
	}

	return stats
}

// Size returns the number of remembered idempotency keys.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
