package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/analytics"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/logging"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/regression"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/scoring"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/store"
)

// #region helpers

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func tempPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ac := analytics.DefaultConfig()
	seed := uint64(5)
	ac.Bootstrap = regression.BootstrapConfig{Resamples: 50, Workers: 2, Seed: &seed, Level: 0.95}
	return New(st, scoring.DefaultConfig(), ac, nil), st
}

// ratedPopulation has n participants, each with one early and one late
// vertical rating.
func ratedPopulation(n int) records.Population {
	modes := []records.Mode{"control", "assist", "socratic"}
	var pop records.Population
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%02d", i)
		pop.Participants = append(pop.Participants, records.Participant{ID: id, Mode: modes[i%3], StartedAt: t0})
		for _, stage := range []int{1, 3} {
			v := float64(2 + (i+stage)%4)
			pop.Ratings = append(pop.Ratings, records.Rating{
				ParticipantID: id, Stage: stage, RaterID: "r1",
				Coherence: f(v), Evidence: f(v), Novelty: f(v - 1),
			})
		}
		pop.Memos = append(pop.Memos, records.Memo{ParticipantID: id, Stage: 3, Text: fmt.Sprintf("memo %d keeps 20%% of budget", i)})
	}
	return pop
}

// seedScores stores n participants with synthetic computed scores.
func seedScores(t *testing.T, st *store.Store, n int) {
	t.Helper()
	rng := rand.New(rand.NewPCG(9, 9))
	modes := []records.Mode{"control", "assist", "socratic"}
	var pop records.Population
	var scores []records.ComputedScore
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%02d", i)
		assist := 0.0
		if modes[i%3] == "assist" {
			assist = 1
		}
		refl := rng.NormFloat64()
		sc := 0.8*assist + 0.5*rng.NormFloat64()
		pop.Participants = append(pop.Participants, records.Participant{ID: id, Mode: modes[i%3], StartedAt: t0})
		scores = append(scores, records.ComputedScore{
			ParticipantID:    id,
			VQEarly:          f(3 + 0.3*rng.NormFloat64()),
			VQLate:           f(3 + 0.4*assist + 0.3*refl - 0.5*sc + 0.3*rng.NormFloat64()),
			HQLate:           f(2.5 + 0.2*refl + 0.3*rng.NormFloat64()),
			Reflexivity:      f(refl),
			ShortCircuit:     f(sc),
			ComputedAt:       t0,
			AlgorithmVersion: "rs-1.2.0",
		})
	}
	ctx := context.Background()
	require.NoError(t, st.ImportPopulation(ctx, pop))
	_, err := st.UpsertScores(ctx, scores)
	require.NoError(t, err)
}

// #endregion helpers

// #region recompute-tests

func TestRecompute_IdempotentRerun(t *testing.T) {
	p, _ := tempPipeline(t)
	ctx := context.Background()
	require.NoError(t, p.Import(ctx, ratedPopulation(6)))

	first, err := p.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, first.Participants)
	assert.Equal(t, 6, first.Changed)
	assert.Equal(t, "rs-1.2.0", first.AlgorithmVersion)
	assert.NotEmpty(t, first.RunID)

	second, err := p.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Changed, "an unchanged snapshot must not rewrite scores")
	assert.NotEqual(t, first.RunID, second.RunID)

	runs, err := p.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, logging.KindRecompute, runs[0].Kind)
	assert.Equal(t, 0, runs[0].Changed)
	assert.Equal(t, logging.KindImport, runs[2].Kind)
	for _, r := range runs {
		assert.Equal(t, logging.OutcomeOK, r.Outcome)
	}
}

func TestRecompute_SkipsInvalidParticipants(t *testing.T) {
	p, st := tempPipeline(t)
	ctx := context.Background()
	pop := ratedPopulation(6)
	pop.Participants[4].Mode = "mystery"
	require.NoError(t, p.Import(ctx, pop))

	res, err := p.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Participants)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "p04", res.Skipped[0].ParticipantID)

	scores, err := st.ListScores(ctx)
	require.NoError(t, err)
	assert.Len(t, scores, 5)
}

func TestRecompute_InvalidatedParticipantLosesScoreAndLeavesReport(t *testing.T) {
	p, st := tempPipeline(t)
	ctx := context.Background()
	pop := ratedPopulation(9)
	require.NoError(t, p.Import(ctx, pop))

	first, err := p.Recompute(ctx)
	require.NoError(t, err)
	require.Equal(t, 9, first.Participants)
	_, err = st.GetScore(ctx, "p04")
	require.NoError(t, err)

	// p04 is re-imported with a completion time before its start
	broken := pop.Participants[4]
	done := broken.StartedAt.Add(-time.Hour)
	broken.CompletedAt = &done
	require.NoError(t, p.Import(ctx, records.Population{Participants: []records.Participant{broken}}))

	second, err := p.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, second.Participants)
	require.Len(t, second.Skipped, 1)
	assert.Equal(t, "p04", second.Skipped[0].ParticipantID)
	assert.Equal(t, 1, second.Pruned)

	_, err = st.GetScore(ctx, "p04")
	assert.ErrorIs(t, err, sql.ErrNoRows, "a skipped participant must not keep an old score")

	report, err := p.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, report.N)
	for _, row := range report.Rows {
		assert.NotEqual(t, "p04", row.ParticipantID)
	}
}

func TestImport_FailureIsRecorded(t *testing.T) {
	p, _ := tempPipeline(t)
	pop := ratedPopulation(3)
	pop.Memos = append(pop.Memos, records.Memo{ParticipantID: "ghost", Stage: 1, Text: "x"})

	require.Error(t, p.Import(context.Background(), pop))

	runs, err := p.RecentRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, logging.KindImport, runs[0].Kind)
	assert.Equal(t, logging.OutcomeFailed, runs[0].Outcome)
	assert.NotEmpty(t, runs[0].Reason)
}

// #endregion recompute-tests

// #region report-tests

func TestReport_FromStoredScores(t *testing.T) {
	p, st := tempPipeline(t)
	seedScores(t, st, 60)

	report, err := p.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60, report.N)
	assert.Equal(t, "rs-1.2.0", report.ScoreVersion)

	m, ok := report.Model("H1a_vq_late")
	require.True(t, ok)
	assert.Equal(t, analytics.StatusOK, m.Status)
	require.NotNil(t, report.Mediation)
	assert.Equal(t, 50, report.Mediation.Resamples)

	runs, err := p.RecentRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, logging.KindReport, runs[0].Kind)
	assert.Equal(t, 60, runs[0].Participants)
	assert.Equal(t, "rs-1.2.0", runs[0].AlgorithmVersion)
}

func TestReport_ExcludesInvalidParticipantWithStoredScore(t *testing.T) {
	p, st := tempPipeline(t)
	ctx := context.Background()
	seedScores(t, st, 30)

	// invalidate s03 directly in the store, leaving its score behind
	pop, err := st.LoadPopulation(ctx)
	require.NoError(t, err)
	bad := pop.Participants[3]
	require.Equal(t, "s03", bad.ID)
	done := bad.StartedAt.Add(-time.Minute)
	bad.CompletedAt = &done
	require.NoError(t, st.ImportPopulation(ctx, records.Population{Participants: []records.Participant{bad}}))

	report, err := p.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, 29, report.N)
	for _, row := range report.Rows {
		assert.NotEqual(t, "s03", row.ParticipantID)
	}
}

func TestReport_CancelledContextIsRecordedAsFailed(t *testing.T) {
	p, st := tempPipeline(t)
	seedScores(t, st, 30)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Report(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	runs, err := p.RecentRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, logging.OutcomeFailed, runs[0].Outcome)
}

func TestRefresh_ScoresThenReports(t *testing.T) {
	p, _ := tempPipeline(t)
	ctx := context.Background()
	require.NoError(t, p.Import(ctx, ratedPopulation(12)))

	res, report, err := p.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Participants)
	assert.Equal(t, 12, report.N)
	assert.Len(t, report.Models, 8) // H1 x3, H2 x2, H3 x2, H4
}

// #endregion report-tests
