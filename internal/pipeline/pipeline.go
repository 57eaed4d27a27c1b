package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/analytics"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/logging"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/metrics"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/scoring"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/store"
)

// #region types
// Pipeline sequences the store, scoring and report stages. Every run is
// recorded in pipeline_runs whether it succeeds or not.
type Pipeline struct {
	store    *store.Store
	computer *scoring.Computer
	builder  *analytics.Builder
	version  string
	modes    []records.Mode
	logger   *zap.Logger
	newRunID func() string
}

// RecomputeResult summarizes one scoring run.
type RecomputeResult struct {
	RunID            string              `json:"run_id"`
	AlgorithmVersion string              `json:"algorithm_version"`
	Participants     int                 `json:"participants"` // participants scored
	Changed          int                 `json:"changed"`      // rows whose values changed
	Pruned           int                 `json:"pruned"`       // stale rows of participants no longer scored
	Skipped          []records.Violation `json:"skipped,omitempty"`
	Duration         time.Duration       `json:"duration_ns"`
}

// #endregion types

// #region constructor
// New creates a Pipeline over an open store. logger may be nil.
func New(st *store.Store, sc scoring.Config, ac analytics.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:    st,
		computer: scoring.NewComputer(sc, logger.Named("scoring")),
		builder:  analytics.NewBuilder(ac, logger.Named("analytics")),
		version:  sc.AlgorithmVersion,
		modes:    ac.Conditions,
		logger:   logger,
		newRunID: func() string { return uuid.New().String() },
	}
}

// #endregion constructor

// #region import
// Import writes a raw record snapshot into the store. Re-importing the same
// participants replaces their records.
func (p *Pipeline) Import(ctx context.Context, pop records.Population) error {
	start := time.Now()
	runID := p.newRunID()

	err := p.store.ImportPopulation(ctx, pop)
	metrics.ObserveStage("import", start)
	p.finish(logging.RunEntry{
		RunID:        runID,
		Kind:         logging.KindImport,
		Participants: len(pop.Participants),
	}, start, err)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	p.logger.Info("population imported",
		zap.String("run_id", runID),
		zap.Int("participants", len(pop.Participants)))
	return nil
}

// #endregion import

// #region recompute
// Recompute scores every valid participant and upserts the results.
// Participants that fail validation are skipped with a warning and lose any
// score stored by an earlier run. Unchanged scores are not rewritten.
func (p *Pipeline) Recompute(ctx context.Context) (*RecomputeResult, error) {
	start := time.Now()
	res := &RecomputeResult{RunID: p.newRunID(), AlgorithmVersion: p.version}

	err := p.recompute(ctx, res)
	res.Duration = time.Since(start)
	p.finish(logging.RunEntry{
		RunID:            res.RunID,
		Kind:             logging.KindRecompute,
		AlgorithmVersion: p.version,
		Participants:     res.Participants,
		Changed:          res.Changed,
	}, start, err)
	if err != nil {
		return nil, fmt.Errorf("recompute: %w", err)
	}

	metrics.RecordScored(res.Participants, res.Changed)
	p.logger.Info("scores recomputed",
		zap.String("run_id", res.RunID),
		zap.String("algorithm_version", p.version),
		zap.Int("participants", res.Participants),
		zap.Int("changed", res.Changed),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("pruned", res.Pruned),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (p *Pipeline) recompute(ctx context.Context, res *RecomputeResult) error {
	// 1. Load
	stage := time.Now()
	pop, err := p.store.LoadPopulation(ctx)
	if err != nil {
		return err
	}
	metrics.ObserveStage("load", stage)

	// 2. Validate
	res.Skipped = records.Validate(pop.Participants, p.modes)
	pop.Participants = dropInvalid(pop.Participants, res.Skipped)
	for _, v := range res.Skipped {
		p.logger.Warn("participant skipped",
			zap.String("participant_id", v.ParticipantID),
			zap.String("reason", v.Reason))
	}

	// 3. Score
	stage = time.Now()
	scores := p.computer.Compute(pop)
	metrics.ObserveStage("score", stage)
	res.Participants = len(scores)

	// 4. Upsert
	stage = time.Now()
	changed, err := p.store.UpsertScores(ctx, scores)
	if err != nil {
		return err
	}
	res.Changed = changed

	keep := make([]string, len(scores))
	for i, sc := range scores {
		keep[i] = sc.ParticipantID
	}
	pruned, err := p.store.PruneScores(ctx, keep)
	if err != nil {
		return err
	}
	metrics.ObserveStage("upsert", stage)
	res.Pruned = pruned
	return nil
}

// dropInvalid removes participants named by a violation, and any with an
// empty id.
func dropInvalid(participants []records.Participant, violations []records.Violation) []records.Participant {
	if len(violations) == 0 {
		return participants
	}
	bad := make(map[string]bool, len(violations))
	for _, v := range violations {
		bad[v.ParticipantID] = true
	}
	out := make([]records.Participant, 0, len(participants))
	for _, part := range participants {
		if part.ID == "" || bad[part.ID] {
			continue
		}
		out = append(out, part)
	}
	return out
}

// #endregion recompute

// #region report
// Report builds the hypothesis report from the stored participants and their
// latest computed scores. Participants that fail validation are left out, as
// in Recompute.
func (p *Pipeline) Report(ctx context.Context) (*analytics.Report, error) {
	start := time.Now()
	runID := p.newRunID()

	report, err := p.report(ctx)
	entry := logging.RunEntry{RunID: runID, Kind: logging.KindReport}
	if report != nil {
		entry.AlgorithmVersion = report.ScoreVersion
		entry.Participants = report.N
	}
	p.finish(entry, start, err)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	for _, m := range report.Models {
		metrics.RecordModel(string(m.Status))
	}
	if med := report.Mediation; med != nil && med.Status == analytics.StatusOK {
		metrics.RecordResamples(med.Resamples)
	}
	p.logger.Info("report built",
		zap.String("run_id", runID),
		zap.Int("n", report.N),
		zap.Int("models", len(report.Models)))
	return report, nil
}

func (p *Pipeline) report(ctx context.Context) (*analytics.Report, error) {
	stage := time.Now()
	pop, err := p.store.LoadPopulation(ctx)
	if err != nil {
		return nil, err
	}
	scores, err := p.store.ListScores(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage("load", stage)

	violations := records.Validate(pop.Participants, p.modes)
	for _, v := range violations {
		p.logger.Warn("participant excluded from report",
			zap.String("participant_id", v.ParticipantID),
			zap.String("reason", v.Reason))
	}
	participants := dropInvalid(pop.Participants, violations)

	stage = time.Now()
	report, err := p.builder.Build(ctx, participants, scores)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage("analyze", stage)
	return report, nil
}

// Refresh recomputes scores and then builds the report from them.
func (p *Pipeline) Refresh(ctx context.Context) (*RecomputeResult, *analytics.Report, error) {
	res, err := p.Recompute(ctx)
	if err != nil {
		return nil, nil, err
	}
	report, err := p.Report(ctx)
	if err != nil {
		return res, nil, err
	}
	return res, report, nil
}

// #endregion report

// #region provenance
// RecentRuns returns the latest pipeline runs, newest first.
func (p *Pipeline) RecentRuns(limit int) ([]logging.RunEntry, error) {
	return logging.RecentRuns(p.store.DB(), limit)
}

// finish records a run's outcome. A provenance write failure is logged and
// does not fail the run.
func (p *Pipeline) finish(entry logging.RunEntry, start time.Time, runErr error) {
	entry.Duration = time.Since(start)
	entry.Outcome = logging.OutcomeOK
	if runErr != nil {
		entry.Outcome = logging.OutcomeFailed
		entry.Reason = runErr.Error()
	}
	metrics.RecordRun(entry.Kind, entry.Outcome)
	if err := logging.LogRun(p.store.DB(), entry); err != nil {
		p.logger.Warn("provenance write failed", zap.String("run_id", entry.RunID), zap.Error(err))
	}
}

// #endregion provenance
