package fixture

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a study fixture: a raw record
// snapshot plus the scores it is expected to produce.
type Fixture struct {
	Description string             `json:"description"`
	Conditions  []string           `json:"conditions,omitempty"`
	Population  records.Population `json:"population"`
	Expected    []ExpectedScore    `json:"expected_scores,omitempty"`
}

// ExpectedScore pins one metric for one participant. A nil Value means the
// metric must come out null.
type ExpectedScore struct {
	ParticipantID string   `json:"participant_id"`
	Metric        string   `json:"metric"`
	Value         *float64 `json:"value"`
}

// Mismatch describes one expectation the computed scores did not meet.
type Mismatch struct {
	ParticipantID string
	Metric        string
	Want          *float64
	Got           *float64
	Reason        string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s/%s: want %s, got %s (%s)", m.ParticipantID, m.Metric, show(m.Want), show(m.Got), m.Reason)
}

// #endregion fixture-types

// #region fixture-io

// Load reads and parses a JSON fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Save writes the fixture as indented JSON.
func Save(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// Modes returns the fixture's conditions as record modes.
func (f *Fixture) Modes() []records.Mode {
	out := make([]records.Mode, len(f.Conditions))
	for i, c := range f.Conditions {
		out[i] = records.Mode(c)
	}
	return out
}

// #endregion fixture-io

// #region check

// Check compares computed scores against the fixture's expectations. Values
// match when they differ by at most tol.
func (f *Fixture) Check(scores []records.ComputedScore, tol float64) []Mismatch {
	byID := make(map[string]records.ComputedScore, len(scores))
	for _, sc := range scores {
		byID[sc.ParticipantID] = sc
	}

	var out []Mismatch
	for _, exp := range f.Expected {
		m := Mismatch{ParticipantID: exp.ParticipantID, Metric: exp.Metric, Want: exp.Value}
		sc, ok := byID[exp.ParticipantID]
		if !ok {
			m.Reason = "participant not scored"
			out = append(out, m)
			continue
		}
		got, known := Metric(sc, exp.Metric)
		if !known {
			m.Reason = "unknown metric"
			out = append(out, m)
			continue
		}
		m.Got = got
		switch {
		case exp.Value == nil && got == nil:
		case exp.Value == nil:
			m.Reason = "expected null"
			out = append(out, m)
		case got == nil:
			m.Reason = "unexpected null"
			out = append(out, m)
		case math.Abs(*exp.Value-*got) > tol:
			m.Reason = "value drift"
			out = append(out, m)
		}
	}
	return out
}

// Metric looks up a nullable score field by its column name.
func Metric(sc records.ComputedScore, name string) (*float64, bool) {
	switch name {
	case "vq_early":
		return sc.VQEarly, true
	case "vq_late":
		return sc.VQLate, true
	case "hq_late":
		return sc.HQLate, true
	case "reflexivity":
		return sc.Reflexivity, true
	case "short_circuit":
		return sc.ShortCircuit, true
	case "decision_latency_ms":
		return sc.DecisionLatencyMs, true
	case "similarity":
		return sc.Similarity, true
	case "unique_memo_words":
		return sc.UniqueMemoWords, true
	case "evidence_fact_mentions":
		return sc.EvidenceFactMentions, true
	}
	return nil, false
}

func show(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%g", *v)
}

// #endregion check
