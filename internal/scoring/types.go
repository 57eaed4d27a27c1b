package scoring

import "github.com/danielpatrickdp/decision-lab/go-analytics/internal/features"

// #region config
// Config holds the scoring parameters that define an algorithm version.
// Changing any of them should come with a new AlgorithmVersion.
type Config struct {
	AlgorithmVersion string
	EarlyStage       int // checkpoint for vq_early
	LateStage        int // checkpoint for vq_late and hq_late
	Behavior         features.BehaviorConfig
	EvidenceFacts    []string // ground-truth figures from the case materials
}

// DefaultConfig returns the stage-1 / stage-3 checkpoints and the default
// vocabularies.
func DefaultConfig() Config {
	return Config{
		AlgorithmVersion: "rs-1.2.0",
		EarlyStage:       1,
		LateStage:        3,
		Behavior:         features.DefaultBehaviorConfig(),
		EvidenceFacts:    []string{"20%", "35%", "12%", "$4.2m", "$1.8m"},
	}
}

// #endregion config

// #region raw
// rawScores is one participant's pre-normalization measures.
type rawScores struct {
	vqEarly *float64
	vqLate  *float64
	hqLate  *float64

	questions     int
	challenges    int
	verifications int
	latencyMs     *float64

	finalMemo     string // empty when no memo was submitted
	assistantText string // all assistant turns, concatenated

	similarity  *float64
	uniqueWords *float64
	factCount   *float64
}

// #endregion raw
