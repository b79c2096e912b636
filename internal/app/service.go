// Package app provides the core business service that implements the
// dependencies required by the HTTP API.
package app

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Zaresol/staggerline/internal/adapters/archive"
	"github.com/Zaresol/staggerline/internal/adapters/mq/dispatch"
	"github.com/Zaresol/staggerline/internal/adapters/repository"
	"github.com/Zaresol/staggerline/internal/domain/dedupe"
	"github.com/Zaresol/staggerline/internal/domain/model"
	"github.com/Zaresol/staggerline/internal/domain/series"
	"github.com/Zaresol/staggerline/internal/domain/tracker"
	"github.com/Zaresol/staggerline/pkg/logger"
	"github.com/Zaresol/staggerline/pkg/metrics"
	"github.com/google/uuid"
)

// Service wires the encounter registry, ingest pipeline, deduper and
// archive behind one facade for the HTTP and websocket adapters.
type Service struct {
	mu sync.RWMutex

	registry repository.Store
	deduper  dedupe.Deduper
	pool     *dispatch.Pool
	archive  *archive.Store

	// Configuration
	dispatcherCount int
	queueSize       int
	dedupeSize      int
	maxEncounters   int
	purifyAbility   int64
	archivePath     string

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDispatcherCount sets the number of ingest dispatcher shards.
func WithDispatcherCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dispatcherCount = n
		}
	}
}

// WithQueueSize sets the capacity of each ingest queue shard.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithDedupeSize sets the size of the replay deduplication cache.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dedupeSize = n
		}
	}
}

// WithMaxEncounters caps concurrently open encounters.
func WithMaxEncounters(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxEncounters = n
		}
	}
}

// WithPurifyAbility sets the ability id that marks purifying removals.
func WithPurifyAbility(id int64) Option {
	return func(s *Service) {
		if id > 0 {
			s.purifyAbility = id
		}
	}
}

// WithArchivePath sets the SQLite file backing the report archive.
// Empty disables archiving.
func WithArchivePath(path string) Option {
	return func(s *Service) {
		s.archivePath = path
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

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dispatcherCount: runtime.NumCPU(),
		queueSize:       10_000,
		dedupeSize:      500_000,
		maxEncounters:   1_000,
		purifyAbility:   tracker.DefaultPurifyAbility,
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

	s.registry = repository.NewRegistry(
		repository.WithMaxEncounters(s.maxEncounters),
		repository.WithTrackerOptions(tracker.WithPurifyAbility(s.purifyAbility)),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.pool = dispatch.NewPool(s.dispatcherCount, s.queueSize, s.registry,
		dispatch.WithLogger(s.logger.Named("dispatch")),
	)
	s.pool.Start(ctx)

	if s.archivePath != "" {
		store, err := archive.Open(s.archivePath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		s.archive = store
	}

	s.started = true
	s.logger.Info(ctx, "staggerline service started",
		logger.Int("dispatchers", s.dispatcherCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("archive", s.archivePath),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "dispatch shutdown incomplete", logger.Error(err))
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			s.logger.Warn(ctx, "archive close failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "staggerline service stopped")
}

// OpenEncounter registers a new encounter and returns its id. An empty
// id is replaced with a fresh UUID.
func (s *Service) OpenEncounter(ctx context.Context, id string, startTime int64) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if _, err := s.registry.Open(ctx, id, startTime); err != nil {
		return "", err
	}
	return id, nil
}

// SeenAndRecord atomically checks if an event id was seen and records it
// if not. Returns true if the event was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes an event id from the seen set, allowing a retry.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Enqueue submits an event for asynchronous ingestion. Returns false on
// backpressure.
func (s *Service) Enqueue(ctx context.Context, e model.Event) bool {
	return s.pool.Enqueue(ctx, e)
}

// Series projects the current state of an open encounter.
func (s *Service) Series(ctx context.Context, id string) (series.Report, error) {
	enc, err := s.registry.Get(ctx, id)
	if err != nil {
		return series.Report{}, err
	}
	return s.project(enc), nil
}

// CloseEncounter drops an encounter, projects its final report and, when
// archiving is enabled, persists it.
func (s *Service) CloseEncounter(ctx context.Context, id string) (series.Report, error) {
	enc, err := s.registry.Remove(ctx, id)
	if err != nil {
		return series.Report{}, err
	}
	report := s.project(enc)

	if s.archive != nil {
		if err := s.archive.Save(ctx, report); err != nil {
			// The report is still returned; losing the archive copy must
			// not fail the close.
			s.logger.Error(ctx, "archiving report failed",
				logger.String("encounterID", id),
				logger.Error(err),
			)
		}
	}
	return report, nil
}

// ArchivedReports lists the archived report summaries.
func (s *Service) ArchivedReports(ctx context.Context) ([]archive.Summary, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.List(ctx)
}

// ArchivedReport loads one archived report.
func (s *Service) ArchivedReport(ctx context.Context, id string) (series.Report, error) {
	if s.archive == nil {
		return series.Report{}, ErrArchiveDisabled
	}
	return s.archive.Load(ctx, id)
}

func (s *Service) project(enc *repository.Encounter) series.Report {
	start := time.Now()
	report := series.Project(enc.Tracker, enc.StartTime)
	report.EncounterID = enc.ID
	metrics.RecordProjectionLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	return report
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"dispatchers": s.dispatcherCount,
		"queueSize":   s.queueSize,
		"archiving":   s.archive != nil,
	}
	if s.started {
		stats["queueLength"] = s.pool.Len(ctx)
		stats["openEncounters"] = s.registry.Count(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
	}
	return stats
}
