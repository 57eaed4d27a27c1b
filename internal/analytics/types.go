package analytics

import (
	"time"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/regression"
)

// #region metrics
// Composite metric column names, in report order.
const (
	MetricVQEarly      = "vq_early"
	MetricVQLate       = "vq_late"
	MetricHQLate       = "hq_late"
	MetricReflexivity  = "reflexivity"
	MetricShortCircuit = "short_circuit"
)

// Metrics lists the composites summarized in descriptives and correlations.
var Metrics = []string{MetricVQEarly, MetricVQLate, MetricHQLate, MetricReflexivity, MetricShortCircuit}

// #endregion metrics

// #region config
// ControlType is how a declared control variable is measured.
type ControlType string

const (
	ControlNumeric     ControlType = "numeric"
	ControlCategorical ControlType = "categorical"
)

// ControlDecl declares a participant attribute to control for. Numeric
// controls enter the regressions; categorical ones are balance-checked only.
type ControlDecl struct {
	Name string      `json:"name" yaml:"name"`
	Type ControlType `json:"type" yaml:"type"`
}

// Config drives report construction.
type Config struct {
	Conditions []records.Mode // analysed conditions; Conditions[0] is the reference
	Controls   []ControlDecl
	Alpha      float64 // significance level for interpretations
	Robust     bool    // HC3 standard errors
	Bootstrap  regression.BootstrapConfig
}

// DefaultConfig returns the three study conditions with control as the
// reference, no controls, α = 0.05 and the default bootstrap.
func DefaultConfig() Config {
	return Config{
		Conditions: []records.Mode{"control", "assist", "socratic"},
		Alpha:      0.05,
		Bootstrap:  regression.DefaultBootstrapConfig(),
	}
}

// Reference is the baseline condition the indicators are contrasted with.
func (c Config) Reference() records.Mode {
	if len(c.Conditions) == 0 {
		return ""
	}
	return c.Conditions[0]
}

// #endregion config

// #region rows
// Row is one participant's analysis record: condition, composites and the
// resolved control values.
type Row struct {
	ParticipantID string
	Condition     records.Mode
	Score         records.ComputedScore
	Numeric       map[string]float64 // resolved numeric controls
	Categorical   map[string]string  // resolved categorical controls
	FollowUp      map[string]float64
}

// Metric returns the named composite, or nil.
func (r Row) Metric(name string) *float64 {
	switch name {
	case MetricVQEarly:
		return r.Score.VQEarly
	case MetricVQLate:
		return r.Score.VQLate
	case MetricHQLate:
		return r.Score.HQLate
	case MetricReflexivity:
		return r.Score.Reflexivity
	case MetricShortCircuit:
		return r.Score.ShortCircuit
	}
	return nil
}

// DroppedControl is a declared control that could not be used.
type DroppedControl struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// #endregion rows

// #region report
// Status is the outcome of one statistical model or test.
type Status string

const (
	StatusOK               Status = "ok"
	StatusNotEstimable     Status = "not_estimable"
	StatusInsufficientData Status = "insufficient_data"
	StatusNotTestable      Status = "not_testable"
)

// Descriptive summarizes one metric within one condition. SD is the sample
// standard deviation and is nil below two observations.
type Descriptive struct {
	Condition records.Mode `json:"condition"`
	Metric    string       `json:"metric"`
	N         int          `json:"n"`
	Mean      *float64     `json:"mean"`
	SD        *float64     `json:"sd"`
}

// Correlations is a pairwise-complete Pearson matrix over Metrics. A cell is
// nil when fewer than three pairs exist or either side has no variance.
type Correlations struct {
	Metrics []string     `json:"metrics"`
	R       [][]*float64 `json:"r"`
	N       [][]int      `json:"n"`
}

// Check is a balance or manipulation test across conditions.
type Check struct {
	Variable  string  `json:"variable"`
	Test      string  `json:"test"` // "anova" or "chi_square"
	Statistic float64 `json:"statistic"`
	DF        []int   `json:"df"`
	P         float64 `json:"p"`
	Status    Status  `json:"status"`
	Message   string  `json:"message,omitempty"`
}

// Model is one fitted hypothesis regression.
type Model struct {
	Name           string          `json:"name"`
	Hypothesis     string          `json:"hypothesis"`
	Outcome        string          `json:"outcome"`
	Equation       string          `json:"equation"`
	Testable       bool            `json:"testable"`
	Status         Status          `json:"status"`
	Message        string          `json:"message,omitempty"`
	Dropped        int             `json:"dropped"` // rows removed by listwise deletion
	Fit            *regression.Fit `json:"fit,omitempty"`
	Interpretation string          `json:"interpretation,omitempty"`
}

// SimpleSlope is the predicted outcome across reflexivity levels within one
// condition, other predictors held at their means.
type SimpleSlope struct {
	Model       string                  `json:"model"`
	Condition   records.Mode            `json:"condition"`
	Moderator   string                  `json:"moderator"`
	Slope       float64                 `json:"slope"`
	Predictions []regression.Prediction `json:"predictions"` // at mean-1SD, mean, mean+1SD
}

// Mediation is the H3 indirect effect of each treatment through the mediator.
type Mediation struct {
	Mediator  string                      `json:"mediator"`
	Outcome   string                      `json:"outcome"`
	Level     float64                     `json:"level"`
	Status    Status                      `json:"status"`
	Message   string                      `json:"message,omitempty"`
	Effects   []regression.IndirectEffect `json:"effects,omitempty"`
	Resamples int                         `json:"resamples"`
}

// Report is the complete hypothesis-testing output for one snapshot.
type Report struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	ScoreVersion    string           `json:"score_version,omitempty"` // AlgorithmVersion of the scores
	N               int              `json:"n"`
	Conditions      []records.Mode   `json:"conditions"`
	Reference       records.Mode     `json:"reference"`
	Controls        []ControlDecl    `json:"controls"`
	DroppedControls []DroppedControl `json:"dropped_controls,omitempty"`
	Alpha           float64          `json:"alpha"`
	Robust          bool             `json:"robust"`
	Descriptives    []Descriptive    `json:"descriptives"`
	Correlations    Correlations     `json:"correlations"`
	Balance         []Check          `json:"balance"`
	Manipulation    []Check          `json:"manipulation"`
	Models          []Model          `json:"models"`
	SimpleSlopes    []SimpleSlope    `json:"simple_slopes,omitempty"`
	Mediation       *Mediation       `json:"mediation,omitempty"`
	Rows            []Row            `json:"-"`
}

// Model returns the named model.
func (r *Report) Model(name string) (Model, bool) {
	for _, m := range r.Models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

// #endregion report
