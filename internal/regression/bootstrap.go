package regression

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// #region indirect
// BootstrapIndirect estimates the indirect effect a*b of each treatment on
// outcome through mediator, where a is the treatment coefficient in
// mediator ~ predictors and b is the mediator coefficient in
// outcome ~ mediator + predictors. Both paths use the same complete rows.
//
// The interval is the percentile bootstrap: rows are resampled with
// replacement cfg.Resamples times, a*b is recomputed on each, and the
// (1-level)/2 and 1-(1-level)/2 quantiles bound the interval. Resample i draws
// from a PCG stream keyed by (seed, i), so a fixed seed gives the same
// interval regardless of worker scheduling. Resamples whose fits are not
// estimable are skipped and counted in Failed.
func BootstrapIndirect(ctx context.Context, rows []Row, predictors []string, mediator, outcome string, treatments []string, cfg BootstrapConfig) ([]IndirectEffect, error) {
	if cfg.Resamples < 1 {
		return nil, fmt.Errorf("bootstrap: resamples must be positive, got %d", cfg.Resamples)
	}
	if cfg.Level <= 0 || cfg.Level >= 1 {
		return nil, fmt.Errorf("bootstrap: level must be in (0,1), got %v", cfg.Level)
	}
	vars := append([]string{mediator, outcome}, predictors...)
	data := CompleteRows(rows, vars)

	full, err := indirectOnce(data, predictors, mediator, outcome, treatments)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: full sample: %w", err)
	}

	seed := rand.Uint64()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	draws := make([][]float64, len(treatments))
	for t := range draws {
		draws[t] = make([]float64, cfg.Resamples)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < cfg.Resamples; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seed, uint64(i)))
			ab, err := indirectOnce(resample(data, rng), predictors, mediator, outcome, treatments)
			for t := range treatments {
				if err != nil {
					draws[t][i] = math.NaN()
					continue
				}
				draws[t][i] = ab[t]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	alpha := (1 - cfg.Level) / 2
	out := make([]IndirectEffect, len(treatments))
	for t, name := range treatments {
		effects := make([]float64, 0, cfg.Resamples)
		for _, v := range draws[t] {
			if !math.IsNaN(v) {
				effects = append(effects, v)
			}
		}
		if len(effects) == 0 {
			return nil, fmt.Errorf("%w: every bootstrap resample failed", ErrInsufficientData)
		}
		sort.Float64s(effects)
		out[t] = IndirectEffect{
			Treatment: name,
			Estimate:  full[t],
			CILow:     stat.Quantile(alpha, stat.Empirical, effects, nil),
			CIHigh:    stat.Quantile(1-alpha, stat.Empirical, effects, nil),
			Effects:   effects,
			Resamples: cfg.Resamples,
			Failed:    cfg.Resamples - len(effects),
			Seed:      seed,
		}
	}
	return out, nil
}

// #endregion indirect

// #region helpers
func indirectOnce(data []Row, predictors []string, mediator, outcome string, treatments []string) ([]float64, error) {
	fitA, err := FitOLS(BuildDesign(data, mediator, predictors), false)
	if err != nil {
		return nil, fmt.Errorf("path a: %w", err)
	}
	withMediator := append([]string{mediator}, predictors...)
	fitB, err := FitOLS(BuildDesign(data, outcome, withMediator), false)
	if err != nil {
		return nil, fmt.Errorf("path b: %w", err)
	}
	b, _ := fitB.Coefficient(mediator)

	out := make([]float64, len(treatments))
	for i, t := range treatments {
		a, ok := fitA.Coefficient(t)
		if !ok {
			return nil, fmt.Errorf("treatment %q is not a predictor", t)
		}
		out[i] = a.Estimate * b.Estimate
	}
	return out, nil
}

func resample(data []Row, rng *rand.Rand) []Row {
	out := make([]Row, len(data))
	for i := range out {
		out[i] = data[rng.IntN(len(data))]
	}
	return out
}

// #endregion helpers
