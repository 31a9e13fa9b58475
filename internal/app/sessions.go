package service

import (
	"context"
	"time"

	"github.com/okian/starsim/internal/domain/aggregation"
	"github.com/okian/starsim/internal/domain/simulation"
	"github.com/okian/starsim/pkg/logger"
	"github.com/okian/starsim/pkg/metrics"
)

// CreateSession opens a what-if session and returns its ID.
func (s *Service) CreateSession(ctx context.Context) (string, error) {
	_, reg, err := s.components()
	if err != nil {
		return "", err
	}
	id := reg.Create()
	metrics.RecordSessionCreated()
	metrics.UpdateActiveSessions(reg.Len())
	s.logger.Debug(ctx, "session created", logger.String("session", id))
	return id, nil
}

// DropSession ends a session. Unknown sessions report types.ErrNotFound.
func (s *Service) DropSession(ctx context.Context, id string) error {
	_, reg, err := s.components()
	if err != nil {
		return err
	}
	if err := reg.Drop(id); err != nil {
		return err
	}
	metrics.RecordSessionDropped()
	metrics.UpdateActiveSessions(reg.Len())
	s.logger.Debug(ctx, "session dropped", logger.String("session", id))
	return nil
}

// SetOverride replaces the star of a measure within a session.
func (s *Service) SetOverride(ctx context.Context, id, measureName string, star int) error {
	_, reg, err := s.components()
	if err != nil {
		return err
	}
	if err := reg.Set(id, measureName, star); err != nil {
		return err
	}
	metrics.RecordOverrideSet()
	s.logger.Debug(ctx, "override set",
		logger.String("session", id),
		logger.String("measure", measureName),
		logger.Int("star", star),
	)
	return nil
}

// ClearOverrides removes every override of a session. Clearing an empty
// session succeeds.
func (s *Service) ClearOverrides(_ context.Context, id string) error {
	_, reg, err := s.components()
	if err != nil {
		return err
	}
	return reg.Clear(id)
}

// Overrides lists a session's overrides ordered by measure.
func (s *Service) Overrides(_ context.Context, id string) ([]simulation.Override, error) {
	_, reg, err := s.components()
	if err != nil {
		return nil, err
	}
	o, err := reg.Snapshot(id)
	if err != nil {
		return nil, err
	}
	return o.Overrides(), nil
}

// Simulate applies a session's overrides to a contract-year and compares the
// simulated stars with the published ones.
func (s *Service) Simulate(ctx context.Context, sessionID, contractID string, year int) ([]aggregation.Comparison, error) {
	const op = "simulate"
	start := time.Now()
	out, err := s.simulate(ctx, sessionID, contractID, year)
	s.observe(op, start, err)
	return out, err
}

func (s *Service) simulate(ctx context.Context, sessionID, contractID string, year int) ([]aggregation.Comparison, error) {
	store, reg, err := s.components()
	if err != nil {
		return nil, err
	}
	overlay, err := reg.Snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	c, err := store.Contract(ctx, contractID, year)
	if err != nil {
		return nil, err
	}
	rows, err := store.MeasureRows(ctx, contractID, year)
	if err != nil {
		return nil, err
	}
	return aggregation.Simulate(rows, overlay, c)
}
