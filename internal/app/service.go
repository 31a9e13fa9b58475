// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/starsim/internal/adapters/repository"
	"github.com/okian/starsim/internal/domain/simulation"
	"github.com/okian/starsim/internal/domain/types"
	"github.com/okian/starsim/pkg/logger"
	"github.com/okian/starsim/pkg/metrics"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

const defaultRecommendations = 10

// Service implements the star rating operations on top of a snapshot store
// and a registry of what-if sessions.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	sessions *simulation.Registry

	// Configuration
	maxSessions      int
	batchConcurrency int
	recommendations  int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the snapshot store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithMaxSessions bounds the number of live simulation sessions.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithBatchConcurrency bounds how many contracts a batch computes in parallel.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// WithRecommendationLimit sets how many measures Recommendations returns
// when the caller does not ask for a specific number.
func WithRecommendationLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recommendations = n
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

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		maxSessions:      1024,
		batchConcurrency: runtime.NumCPU(),
		recommendations:  defaultRecommendations,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting star rating service...")

	if s.store == nil {
		s.store = repository.NewMemStore(repository.WithLogger(s.logger))
		s.logger.Info(ctx, "using in-memory store")
	}

	reg, err := simulation.NewRegistry(
		simulation.WithMaxSessions(s.maxSessions),
		simulation.WithEvictionHook(func(id string) {
			metrics.RecordSessionEvicted()
			s.logger.Debug(context.Background(), "session evicted", logger.String("session", id))
		}),
	)
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	s.sessions = reg

	s.started = true
	counts := s.store.Counts(ctx)
	s.logger.Info(ctx, "star rating service started",
		logger.Int("maxSessions", s.maxSessions),
		logger.Int("batchConcurrency", s.batchConcurrency),
		logger.Int("contracts", counts.Contracts),
		logger.Int("rows", counts.Rows),
	)
	return nil
}

// Stop releases the store and drops every session.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping star rating service...")

	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing store failed", logger.Error(err))
	}
	s.sessions = nil
	metrics.UpdateActiveSessions(0)

	s.started = false
	s.logger.Info(context.Background(), "star rating service stopped")
}

// components returns the store and registry, or ErrNotStarted.
func (s *Service) components() (repository.Store, *simulation.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.store, s.sessions, nil
}

// LoadSnapshot replaces the served data.
func (s *Service) LoadSnapshot(ctx context.Context, snap repository.Snapshot) (repository.Counts, error) {
	store, _, err := s.components()
	if err != nil {
		return repository.Counts{}, err
	}
	if err := store.Load(ctx, snap); err != nil {
		s.logger.Warn(ctx, "snapshot rejected", logger.Error(err))
		return repository.Counts{}, err
	}
	return store.Counts(ctx), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"maxSessions":      s.maxSessions,
		"batchConcurrency": s.batchConcurrency,
	}

	if s.started {
		counts := s.store.Counts(context.Background())
		sessions := s.sessions.Len()
		stats["contracts"] = counts.Contracts
		stats["measureRows"] = counts.Rows
		stats["cutPoints"] = counts.CutPoints
		stats["activeSessions"] = sessions

		metrics.UpdateActiveSessions(sessions)
	}

	return stats
}

// observe records latency for op and counts insufficient-data refusals.
func (s *Service) observe(op string, start time.Time, err error) {
	metrics.RecordComputeLatency(op, metrics.SinceMs(start))
	if errors.Is(err, types.ErrInsufficientData) {
		metrics.RecordInsufficientData(op)
	}
}
