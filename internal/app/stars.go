package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/starsim/internal/domain/aggregation"
	"github.com/okian/starsim/internal/domain/cutpoint"
	"github.com/okian/starsim/internal/domain/measure"
	"github.com/okian/starsim/internal/domain/recommend"
	"github.com/okian/starsim/internal/domain/simulation"
	"github.com/okian/starsim/internal/domain/types"
	"github.com/okian/starsim/pkg/logger"
	"github.com/okian/starsim/pkg/metrics"
)

// ContractMeasures is the measure table of one contract-year as shown to an
// analyst: rows grouped by domain for each part the contract offers.
type ContractMeasures struct {
	Contract   measure.Contract      `json:"contract"`
	Rating     *float64              `json:"rating"`
	PartC      []measure.DomainGroup `json:"part_c,omitempty"`
	PartD      []measure.DomainGroup `json:"part_d,omitempty"`
	Selectable []string              `json:"selectable"`
}

// Contracts lists the contracts matching f.
func (s *Service) Contracts(ctx context.Context, f measure.Filter) ([]measure.Contract, error) {
	store, _, err := s.components()
	if err != nil {
		return nil, err
	}
	all, err := store.Contracts(ctx, f.Year)
	if err != nil {
		return nil, err
	}
	return measure.FilterContracts(all, f)
}

// Measures returns the part-gated measure table of a contract-year.
func (s *Service) Measures(ctx context.Context, contractID string, year int) (ContractMeasures, error) {
	store, _, err := s.components()
	if err != nil {
		return ContractMeasures{}, err
	}
	c, err := store.Contract(ctx, contractID, year)
	if err != nil {
		return ContractMeasures{}, err
	}
	rows, err := store.MeasureRows(ctx, contractID, year)
	if err != nil {
		return ContractMeasures{}, err
	}

	out := ContractMeasures{
		Contract:   c,
		Rating:     c.Rating(),
		Selectable: measure.SelectableMeasures(rows, c),
	}
	if c.HasPartC {
		out.PartC = measure.GroupByDomain(measure.PartC(rows))
	}
	if c.HasPartD {
		out.PartD = measure.GroupByDomain(measure.PartD(rows))
	}
	return out, nil
}

// ComputeStar computes one star type for a contract-year, optionally with
// ad-hoc overrides applied first. Overrides are validated before use.
func (s *Service) ComputeStar(ctx context.Context, contractID string, year int, t aggregation.StarType, overrides []simulation.Override) (aggregation.Result, error) {
	const op = "compute_star"
	start := time.Now()
	res, err := s.computeStar(ctx, contractID, year, t, overrides)
	s.observe(op, start, err)
	if err != nil {
		return aggregation.Result{}, err
	}
	metrics.RecordStarComputation(t.String())
	s.logger.Debug(ctx, "star computed",
		logger.String("contract", contractID),
		logger.Int("year", year),
		logger.String("starType", t.String()),
		logger.Float64("raw", res.Raw),
		logger.Bool("simulated", len(overrides) > 0),
	)
	return res, nil
}

func (s *Service) computeStar(ctx context.Context, contractID string, year int, t aggregation.StarType, overrides []simulation.Override) (aggregation.Result, error) {
	store, _, err := s.components()
	if err != nil {
		return aggregation.Result{}, err
	}
	rows, err := store.MeasureRows(ctx, contractID, year)
	if err != nil {
		return aggregation.Result{}, err
	}
	if len(overrides) > 0 {
		overlay := simulation.NewOverlay()
		for _, o := range overrides {
			if err := overlay.Set(o.Measure, o.Star); err != nil {
				return aggregation.Result{}, err
			}
		}
		rows = overlay.Apply(rows)
	}
	return aggregation.ComputeStar(rows, t)
}

// Recommendations ranks a contract-year's measures by improvement impact and
// returns at most limit of them; non-positive limit uses the configured
// default. Stand-alone drug plans are compared against PDP cut points.
func (s *Service) Recommendations(ctx context.Context, contractID string, year, limit int) ([]cutpoint.Enriched, error) {
	const op = "recommend"
	start := time.Now()
	defer func() { metrics.RecordComputeLatency(op, metrics.SinceMs(start)) }()

	store, _, err := s.components()
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
	cuts, err := store.CutPoints(ctx)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.recommendations
	}
	ranked := recommend.Top(cuts.Enrich(rows, c.UsePDP()), limit)
	metrics.RecordRecommendationsRanked(len(ranked))
	return ranked, nil
}

// Trend returns the cut-point history of a measure for one plan type.
func (s *Service) Trend(ctx context.Context, measureName string, isPDP bool) ([]cutpoint.StarTrend, error) {
	store, _, err := s.components()
	if err != nil {
		return nil, err
	}
	cuts, err := store.CutPoints(ctx)
	if err != nil {
		return nil, err
	}
	return cuts.Trend(measureName, isPDP)
}

// MeasureTrend is one contract's yearly record on a measure next to the
// cut-point history of the plan type it is scored against.
type MeasureTrend struct {
	Contract measure.Contract     `json:"contract"`
	Measure  string               `json:"measure"`
	History  []cutpoint.Enriched  `json:"history"`
	Bands    []cutpoint.StarTrend `json:"bands"`
}

// MeasureTrend returns every year of a contract's measure, each joined with
// that year's band, and the measure's cut-point trend. The contract-year picks
// the plan type. A measure without cut points comes back with no bands.
func (s *Service) MeasureTrend(ctx context.Context, contractID string, year int, measureName string) (MeasureTrend, error) {
	const op = "measure_trend"
	store, _, err := s.components()
	if err != nil {
		return MeasureTrend{}, err
	}
	c, err := store.Contract(ctx, contractID, year)
	if err != nil {
		return MeasureTrend{}, err
	}
	history, err := store.MeasureHistory(ctx, contractID, measureName)
	if err != nil {
		return MeasureTrend{}, err
	}
	if len(history) == 0 {
		return MeasureTrend{}, types.NewKind(op, types.ErrNotFound)
	}
	cuts, err := store.CutPoints(ctx)
	if err != nil {
		return MeasureTrend{}, err
	}
	bands, err := cuts.Trend(measureName, c.UsePDP())
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return MeasureTrend{}, err
	}
	if bands == nil {
		bands = []cutpoint.StarTrend{}
	}
	return MeasureTrend{
		Contract: c,
		Measure:  measureName,
		History:  cuts.Enrich(history, c.UsePDP()),
		Bands:    bands,
	}, nil
}

// BatchResult is the recomputed-vs-published comparison of one contract.
// Error is set instead of Comparisons when the contract cannot be computed.
type BatchResult struct {
	ContractID  string                   `json:"contract_id"`
	Comparisons []aggregation.Comparison `json:"comparisons,omitempty"`
	Error       string                   `json:"error,omitempty"`
}

// BatchStars recomputes every published star of every contract in year and
// returns them next to the published values, ordered by contract ID.
// Contracts lacking data are reported inline; store failures abort the batch.
func (s *Service) BatchStars(ctx context.Context, year int) ([]BatchResult, error) {
	const op = "batch_stars"
	start := time.Now()
	defer func() { metrics.RecordComputeLatency(op, metrics.SinceMs(start)) }()

	store, _, err := s.components()
	if err != nil {
		return nil, err
	}
	contracts, err := store.Contracts(ctx, year)
	if err != nil {
		return nil, err
	}

	results := make([]BatchResult, len(contracts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i, c := range contracts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, err := store.MeasureRows(gctx, c.ContractID, c.Year)
			if err != nil {
				return err
			}
			res := BatchResult{ContractID: c.ContractID}
			cmp, err := aggregation.Simulate(rows, nil, c)
			switch {
			case errors.Is(err, types.ErrInsufficientData):
				metrics.RecordInsufficientData(op)
				res.Error = err.Error()
			case err != nil:
				return err
			default:
				res.Comparisons = cmp
				for _, cm := range cmp {
					metrics.RecordStarComputation(cm.StarType.String())
				}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "batch recomputed",
		logger.Int("year", year),
		logger.Int("contracts", len(results)),
		logger.Duration("took", time.Since(start)),
	)
	return results, nil
}
