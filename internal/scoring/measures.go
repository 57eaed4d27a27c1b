package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
)

// #region stage-quality
// StageQuality averages the selected sub-scores within each rating at the
// stage, then averages those rating means across raters. Unrated sub-scores
// are skipped; a rating with no rated sub-scores does not count. Returns nil
// when nothing at the stage was rated.
func StageQuality(ratings []records.Rating, stage int, pick func(records.Rating) []*float64) *float64 {
	var perRater []*float64
	for _, r := range ratings {
		if r.Stage != stage {
			continue
		}
		perRater = append(perRater, MeanOf(pick(r)...))
	}
	return MeanOf(perRater...)
}

// #endregion stage-quality

// #region latency
// DecisionLatency pairs each decision with the most recent assistant turn in
// the same stage that precedes it, and averages the gaps in milliseconds over
// the paired stages. Returns nil when no decision could be paired.
func DecisionLatency(decisions []records.Decision, chats []records.ChatTurn) *float64 {
	var gaps []*float64
	for _, d := range decisions {
		var last *records.ChatTurn
		for i := range chats {
			turn := &chats[i]
			if turn.Stage != d.Stage || turn.Role != records.RoleAssistant {
				continue
			}
			if turn.CreatedAt.After(d.SubmittedAt) {
				continue
			}
			if last == nil || turn.CreatedAt.After(last.CreatedAt) {
				last = turn
			}
		}
		if last == nil {
			continue
		}
		gap := float64(d.SubmittedAt.Sub(last.CreatedAt).Milliseconds())
		gaps = append(gaps, &gap)
	}
	return MeanOf(gaps...)
}

// #endregion latency

// #region zscore
// ZScores standardizes the non-nil values against their population mean and
// standard deviation. Nil stays nil. A zero standard deviation is treated as
// 1, which collapses every z-score to 0.
func ZScores(values []*float64) []*float64 {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			present = append(present, *v)
		}
	}
	out := make([]*float64, len(values))
	if len(present) == 0 {
		return out
	}

	mean, sd := stat.PopMeanStdDev(present, nil)
	if sd == 0 || math.IsNaN(sd) {
		sd = 1
	}
	for i, v := range values {
		if v != nil {
			out[i] = ptr((*v - mean) / sd)
		}
	}
	return out
}

// #endregion zscore

// #region helpers
// MeanOf averages the non-nil values, returning nil when there are none.
func MeanOf(values ...*float64) *float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return nil
	}
	return ptr(sum / float64(n))
}

func neg(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(-*v)
}

func ptr(v float64) *float64 { return &v }

// #endregion helpers
