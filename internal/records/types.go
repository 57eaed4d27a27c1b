package records

import "time"

// #region mode
// Mode is the experimental condition a participant was assigned to.
type Mode string

// Role identifies the speaker of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// #endregion mode

// #region participant
// Participant is one enrolled subject. Mode is empty before assignment.
type Participant struct {
	ID           string             `json:"id"`
	Mode         Mode               `json:"mode"`
	StartedAt    time.Time          `json:"started_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	Demographics map[string]any     `json:"demographics,omitempty"`
	Covariates   map[string]any     `json:"covariates,omitempty"`
	FollowUp     map[string]float64 `json:"follow_up,omitempty"` // post-task measures
}

// Attribute looks up a named value in covariates first, then demographics.
func (p Participant) Attribute(name string) (any, bool) {
	if v, ok := p.Covariates[name]; ok && v != nil {
		return v, true
	}
	if v, ok := p.Demographics[name]; ok && v != nil {
		return v, true
	}
	return nil, false
}

// #endregion participant

// #region traces
// Decision is a participant's choice at one stage.
type Decision struct {
	ParticipantID string    `json:"participant_id"`
	Stage         int       `json:"stage"`
	OptionID      string    `json:"option_id"`
	SubmittedAt   time.Time `json:"submitted_at"`
	LatencyMs     int64     `json:"latency_ms"`
	Confidence    *float64  `json:"confidence,omitempty"`
}

// Memo is a free-text submission for one stage.
type Memo struct {
	ParticipantID string `json:"participant_id"`
	Stage         int    `json:"stage"`
	Text          string `json:"text"`
	WordCount     int    `json:"word_count"`
}

// ChatTurn is one message of a participant/assistant exchange.
type ChatTurn struct {
	ParticipantID string            `json:"participant_id"`
	Stage         int               `json:"stage"`
	Turn          int               `json:"turn"`
	Role          Role              `json:"role"`
	Content       string            `json:"content"`
	CreatedAt     time.Time         `json:"created_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Event is a UI interaction trace entry.
type Event struct {
	ParticipantID string         `json:"participant_id"`
	Type          string         `json:"type"`
	DurationMs    *int64         `json:"duration_ms,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Rating holds one rater's sub-scores for a participant at one stage.
// Nil sub-scores were not rated.
type Rating struct {
	ParticipantID string `json:"participant_id"`
	Stage         int    `json:"stage"`
	RaterID       string `json:"rater_id"`

	// vertical
	Coherence        *float64 `json:"coherence,omitempty"`
	Evidence         *float64 `json:"evidence,omitempty"`
	TradeOffs        *float64 `json:"trade_offs,omitempty"`
	Accuracy         *float64 `json:"accuracy,omitempty"`
	Implementability *float64 `json:"implementability,omitempty"`

	// horizontal
	Novelty         *float64 `json:"novelty,omitempty"`
	Differentiation *float64 `json:"differentiation,omitempty"`
	Synthesis       *float64 `json:"synthesis,omitempty"`
}

// Vertical returns the five depth/rigor sub-scores.
func (r Rating) Vertical() []*float64 {
	return []*float64{r.Coherence, r.Evidence, r.TradeOffs, r.Accuracy, r.Implementability}
}

// Horizontal returns the three originality/breadth sub-scores.
func (r Rating) Horizontal() []*float64 {
	return []*float64{r.Novelty, r.Differentiation, r.Synthesis}
}

// #endregion traces

// #region computed-score
// ComputedScore is the pipeline's per-participant output. Nil means the value
// could not be computed from the available data.
type ComputedScore struct {
	ParticipantID string `json:"participant_id"`

	VQEarly      *float64 `json:"vq_early"`
	VQLate       *float64 `json:"vq_late"`
	HQLate       *float64 `json:"hq_late"`
	Reflexivity  *float64 `json:"reflexivity"`
	ShortCircuit *float64 `json:"short_circuit"`

	// raw components
	QuestionCount        int      `json:"question_count"`
	ChallengeCount       int      `json:"challenge_count"`
	VerificationCount    int      `json:"verification_count"`
	DecisionLatencyMs    *float64 `json:"decision_latency_ms"`
	Similarity           *float64 `json:"similarity"`
	UniqueMemoWords      *float64 `json:"unique_memo_words"`
	EvidenceFactMentions *float64 `json:"evidence_fact_mentions"`

	ComputedAt       time.Time `json:"computed_at"`
	AlgorithmVersion string    `json:"algorithm_version"`
}

// #endregion computed-score

// #region population
// Population is the read-only snapshot of raw records handed to the pipeline.
type Population struct {
	Participants []Participant `json:"participants"`
	Decisions    []Decision    `json:"decisions"`
	Memos        []Memo        `json:"memos"`
	Chats        []ChatTurn    `json:"chats"`
	Events       []Event       `json:"events"`
	Ratings      []Rating      `json:"ratings"`
}

// Traces groups one participant's raw records.
type Traces struct {
	Participant Participant
	Decisions   []Decision
	Memos       []Memo
	Chats       []ChatTurn
	Events      []Event
	Ratings     []Rating
}

// #endregion population
