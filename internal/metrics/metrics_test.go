package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordScored(t *testing.T) {
	beforeP := testutil.ToFloat64(participantsScored)
	beforeC := testutil.ToFloat64(scoresChanged)

	RecordScored(12, 3)

	assert.Equal(t, beforeP+12, testutil.ToFloat64(participantsScored))
	assert.Equal(t, beforeC+3, testutil.ToFloat64(scoresChanged))
}

func TestRecordModel_ByStatus(t *testing.T) {
	ok := modelOutcomes.WithLabelValues("ok")
	singular := modelOutcomes.WithLabelValues("not_estimable")
	beforeOK, beforeSingular := testutil.ToFloat64(ok), testutil.ToFloat64(singular)

	RecordModel("ok")
	RecordModel("ok")
	RecordModel("not_estimable")

	assert.Equal(t, beforeOK+2, testutil.ToFloat64(ok))
	assert.Equal(t, beforeSingular+1, testutil.ToFloat64(singular))
}

func TestRecordResamples_IgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(bootstrapResamples)
	RecordResamples(0)
	RecordResamples(-5)
	assert.Equal(t, before, testutil.ToFloat64(bootstrapResamples))
	RecordResamples(1000)
	assert.Equal(t, before+1000, testutil.ToFloat64(bootstrapResamples))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	ObserveStage("score", time.Now().Add(-10*time.Millisecond))
	RecordRun("recompute", "ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"analytics_stage_duration_seconds",
		"analytics_runs_total",
		"analytics_participants_scored_total",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
