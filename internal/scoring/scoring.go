package scoring

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/features"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
)

// #region computer
// Computer turns raw participant traces into ComputedScores.
type Computer struct {
	config  Config
	counter *features.Counter
	logger  *zap.Logger
	now     func() time.Time
}

// NewComputer creates a Computer. logger may be nil.
func NewComputer(config Config, logger *zap.Logger) *Computer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Computer{
		config:  config,
		counter: features.NewCounter(config.Behavior),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// #endregion computer

// #region compute
// Compute scores every participant in the snapshot. The idf table and the
// z-score statistics are derived from this snapshot only, so the composites
// are relative to the population passed in.
func (c *Computer) Compute(pop records.Population) []records.ComputedScore {
	traces := pop.GroupByParticipant()
	raws := make([]rawScores, len(traces))
	for i, t := range traces {
		raws[i] = c.raw(t)
	}

	c.textSignals(raws)

	reflexivity, shortCircuit := composites(raws)

	computedAt := c.now()
	out := make([]records.ComputedScore, len(traces))
	for i, t := range traces {
		r := raws[i]
		out[i] = records.ComputedScore{
			ParticipantID:        t.Participant.ID,
			VQEarly:              r.vqEarly,
			VQLate:               r.vqLate,
			HQLate:               r.hqLate,
			Reflexivity:          reflexivity[i],
			ShortCircuit:         shortCircuit[i],
			QuestionCount:        r.questions,
			ChallengeCount:       r.challenges,
			VerificationCount:    r.verifications,
			DecisionLatencyMs:    r.latencyMs,
			Similarity:           r.similarity,
			UniqueMemoWords:      r.uniqueWords,
			EvidenceFactMentions: r.factCount,
			ComputedAt:           computedAt,
			AlgorithmVersion:     c.config.AlgorithmVersion,
		}
	}

	c.logger.Debug("scored population",
		zap.Int("participants", len(out)),
		zap.String("algorithm_version", c.config.AlgorithmVersion))
	return out
}

// #endregion compute

// #region raw
func (c *Computer) raw(t records.Traces) rawScores {
	r := rawScores{
		vqEarly:       StageQuality(t.Ratings, c.config.EarlyStage, records.Rating.Vertical),
		vqLate:        StageQuality(t.Ratings, c.config.LateStage, records.Rating.Vertical),
		hqLate:        StageQuality(t.Ratings, c.config.LateStage, records.Rating.Horizontal),
		questions:     c.counter.Questions(t.Chats),
		challenges:    c.counter.Challenges(t.Chats),
		verifications: c.counter.Verifications(t.Events),
		latencyMs:     DecisionLatency(records.LatestDecisions(t.Decisions), t.Chats),
		finalMemo:     finalMemo(t.Memos),
	}

	var parts []string
	for _, turn := range t.Chats {
		if turn.Role == records.RoleAssistant && strings.TrimSpace(turn.Content) != "" {
			parts = append(parts, turn.Content)
		}
	}
	r.assistantText = strings.Join(parts, "\n")
	return r
}

// finalMemo returns the text of the highest-stage memo. Memos are sorted by
// stage in GroupByParticipant.
func finalMemo(memos []records.Memo) string {
	if len(memos) == 0 {
		return ""
	}
	return strings.TrimSpace(memos[len(memos)-1].Text)
}

// #endregion raw

// #region text-signals
// textSignals fills similarity, lexical diversity and fact use. The idf corpus
// is every final memo plus every participant's assistant text, rebuilt on
// each call.
func (c *Computer) textSignals(raws []rawScores) {
	var corpus []string
	for _, r := range raws {
		if r.finalMemo != "" {
			corpus = append(corpus, r.finalMemo)
		}
		if r.assistantText != "" {
			corpus = append(corpus, r.assistantText)
		}
	}
	idf := features.BuildIDF(corpus)

	for i := range raws {
		r := &raws[i]
		if r.finalMemo == "" {
			continue
		}
		unique := float64(features.UniqueWordCount(r.finalMemo))
		facts := float64(features.CountFactMentions(r.finalMemo, c.config.EvidenceFacts))
		r.uniqueWords = &unique
		r.factCount = &facts

		if r.assistantText == "" {
			continue
		}
		if sim, ok := features.CosineSimilarity(
			features.Vectorize(r.finalMemo, idf),
			features.Vectorize(r.assistantText, idf),
		); ok {
			r.similarity = &sim
		}
	}
}

// #endregion text-signals

// #region composites
// composites builds R and S from population z-scores. Latency, lexical
// diversity and fact use enter S negated; latency enters R negated.
func composites(raws []rawScores) (reflexivity, shortCircuit []*float64) {
	n := len(raws)
	questions := make([]*float64, n)
	challenges := make([]*float64, n)
	verifications := make([]*float64, n)
	latency := make([]*float64, n)
	similarity := make([]*float64, n)
	unique := make([]*float64, n)
	facts := make([]*float64, n)
	for i, r := range raws {
		questions[i] = ptr(float64(r.questions))
		challenges[i] = ptr(float64(r.challenges))
		verifications[i] = ptr(float64(r.verifications))
		latency[i] = r.latencyMs
		similarity[i] = r.similarity
		unique[i] = r.uniqueWords
		facts[i] = r.factCount
	}

	zq, zc, zv := ZScores(questions), ZScores(challenges), ZScores(verifications)
	zLat, zSim := ZScores(latency), ZScores(similarity)
	zUniq, zFacts := ZScores(unique), ZScores(facts)

	reflexivity = make([]*float64, n)
	shortCircuit = make([]*float64, n)
	for i := 0; i < n; i++ {
		reflexivity[i] = MeanOf(zq[i], zc[i], zv[i], neg(zLat[i]))
		shortCircuit[i] = MeanOf(zSim[i], neg(zLat[i]), neg(zUniq[i]), neg(zFacts[i]))
	}
	return reflexivity, shortCircuit
}

// #endregion composites
