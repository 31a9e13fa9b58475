package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/starsim/internal/domain/cutpoint"
	"github.com/okian/starsim/internal/domain/measure"
	"github.com/okian/starsim/pkg/logger"
	"github.com/okian/starsim/pkg/metrics"
)

// MemStore keeps the current snapshot in memory. Readers load an immutable
// state through an atomic pointer, so Load never blocks them.
type MemStore struct {
	opts   storeOptions
	state  atomic.Pointer[state]
	closed atomic.Bool
}

// NewMemStore returns an empty in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &MemStore{opts: o}
	s.state.Store(emptyState())
	return s
}

// Load validates snap and publishes it.
func (s *MemStore) Load(ctx context.Context, snap Snapshot) error {
	const op = "repository.mem.load"
	if s.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	st, err := build(snap)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_snapshot")
		return err
	}
	s.state.Store(st)
	recordLoad(ctx, s.opts, op, st.counts(), start)
	return nil
}

// Contracts returns contract summaries for year, or all years when zero.
func (s *MemStore) Contracts(_ context.Context, year int) ([]measure.Contract, error) {
	defer observe("contracts", time.Now())
	if s.closed.Load() {
		return nil, ErrClosed
	}
	st := s.state.Load()
	out := make([]measure.Contract, 0, len(st.ordered))
	for _, c := range st.ordered {
		if year == 0 || c.Year == year {
			out = append(out, c)
		}
	}
	return out, nil
}

// Contract returns one contract-year.
func (s *MemStore) Contract(_ context.Context, contractID string, year int) (measure.Contract, error) {
	const op = "repository.mem.contract"
	defer observe("contract", time.Now())
	if s.closed.Load() {
		return measure.Contract{}, ErrClosed
	}
	c, ok := s.state.Load().contracts[contractKey{contractID, year}]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return measure.Contract{}, notFound(op, contractID, year)
	}
	return c, nil
}

// MeasureRows returns the rows of a contract-year.
func (s *MemStore) MeasureRows(_ context.Context, contractID string, year int) ([]measure.Row, error) {
	const op = "repository.mem.measure_rows"
	defer observe("measure_rows", time.Now())
	if s.closed.Load() {
		return nil, ErrClosed
	}
	st := s.state.Load()
	if _, ok := st.contracts[contractKey{contractID, year}]; !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, notFound(op, contractID, year)
	}
	return st.rows.ContractYear(contractID, year), nil
}

// MeasureHistory returns one contract's rows for a measure across years.
func (s *MemStore) MeasureHistory(_ context.Context, contractID, measureName string) ([]measure.Row, error) {
	defer observe("measure_history", time.Now())
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.state.Load().rows.History(contractID, measureName), nil
}

// CutPoints returns the cut-point table.
func (s *MemStore) CutPoints(_ context.Context) (*cutpoint.Table, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.state.Load().cuts, nil
}

// Counts returns record counts.
func (s *MemStore) Counts(_ context.Context) Counts {
	return s.state.Load().counts()
}

// Close marks the store closed. Later calls fail with ErrClosed.
func (s *MemStore) Close() error {
	s.closed.Store(true)
	return nil
}

func observe(operation string, start time.Time) {
	metrics.RecordRepositoryQueryLatency(operation, metrics.SinceMs(start))
}

func recordLoad(ctx context.Context, o storeOptions, op string, c Counts, start time.Time) {
	metrics.RecordSnapshotLoad(o.now())
	metrics.UpdateRepositoryRecords("contracts", c.Contracts)
	metrics.UpdateRepositoryRecords("measure_rows", c.Rows)
	metrics.UpdateRepositoryRecords("cut_points", c.CutPoints)
	if o.log != nil {
		o.log.Info(ctx, "snapshot loaded",
			logger.String("op", op),
			logger.Int("contracts", c.Contracts),
			logger.Int("rows", c.Rows),
			logger.Int("cut_points", c.CutPoints),
			logger.Duration("took", time.Since(start)),
		)
	}
}
