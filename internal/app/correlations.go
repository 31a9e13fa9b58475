package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/starsim/internal/domain/correlation"
	"github.com/okian/starsim/internal/domain/types"
	"github.com/okian/starsim/pkg/metrics"
)

// Correlate correlates two aligned series.
func (s *Service) Correlate(_ context.Context, x, y []*float64) (correlation.Result, error) {
	const op = "correlate"
	start := time.Now()
	res, err := correlation.Correlate(x, y)
	s.observe(op, start, err)
	if err == nil {
		metrics.RecordCorrelation()
	}
	return res, err
}

// CorrelateAll correlates a target series with every named predictor.
func (s *Service) CorrelateAll(_ context.Context, target []*float64, predictors map[string][]*float64) []correlation.Report {
	const op = "correlate_all"
	start := time.Now()
	reports := correlation.CorrelateAll(target, predictors)
	s.recordReports(op, start, reports)
	return reports
}

// MeasureCorrelations correlates one measure's scores across the contracts of
// a year with external predictors. Each predictor maps contract ID to value;
// contracts missing from a predictor, or without a score, drop out of that
// predictor's pairs.
func (s *Service) MeasureCorrelations(ctx context.Context, year int, measureName string, predictors map[string]map[string]float64) ([]correlation.Report, error) {
	const op = "measure_correlations"
	start := time.Now()

	store, _, err := s.components()
	if err != nil {
		return nil, err
	}
	if len(predictors) == 0 {
		return nil, types.WrapKind("service.measure_correlations", types.ErrInvalidInput, fmt.Errorf("no predictors"))
	}
	contracts, err := store.Contracts(ctx, year)
	if err != nil {
		return nil, err
	}

	var (
		ids    []string
		target []*float64
	)
	for _, c := range contracts {
		rows, err := store.MeasureRows(ctx, c.ContractID, c.Year)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if r.Measure == measureName {
				ids = append(ids, c.ContractID)
				target = append(target, r.Score)
				break
			}
		}
	}
	if len(ids) == 0 {
		return nil, types.WrapKind("service.measure_correlations", types.ErrNotFound,
			fmt.Errorf("no contract reports %q in %d", measureName, year))
	}

	series := make(map[string][]*float64, len(predictors))
	for name, byContract := range predictors {
		xs := make([]*float64, len(ids))
		for i, id := range ids {
			if v, ok := byContract[id]; ok {
				xs[i] = &v
			}
		}
		series[name] = xs
	}

	reports := correlation.CorrelateAll(target, series)
	s.recordReports(op, start, reports)
	return reports, nil
}

func (s *Service) recordReports(op string, start time.Time, reports []correlation.Report) {
	metrics.RecordComputeLatency(op, metrics.SinceMs(start))
	for _, r := range reports {
		if errors.Is(r.Err, types.ErrInsufficientData) {
			metrics.RecordInsufficientData(op)
		}
		if r.Err != nil {
			continue
		}
		metrics.RecordCorrelation()
	}
}
