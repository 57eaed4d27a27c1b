package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/analytics"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/regression"
)

func f(v float64) *float64 { return &v }

func sampleReport() *analytics.Report {
	return &analytics.Report{
		N:            2,
		ScoreVersion: "rs-1.2.0",
		Conditions:   []records.Mode{"control", "assist"},
		Reference:    "control",
		Controls:     []analytics.ControlDecl{{Name: "gender", Type: analytics.ControlCategorical}, {Name: "age", Type: analytics.ControlNumeric}},
		DroppedControls: []analytics.DroppedControl{
			{Name: "country", Reason: "constant value"},
		},
		Alpha:  0.05,
		Robust: true,
		Models: []analytics.Model{
			{Name: "H1a_vq_late", Equation: "vq_late ~ 1 + cond_assist + age", Testable: true, Status: analytics.StatusOK},
			{Name: "H2_vq_late", Equation: "vq_late ~ 1 + cond_assist + reflexivity", Testable: true, Status: analytics.StatusNotEstimable, Message: "model H2_vq_late not estimable: singular design"},
			{Name: "H4", Status: analytics.StatusNotTestable, Message: "not testable with the current dataset: no follow-up measures recorded"},
		},
		Mediation: &analytics.Mediation{
			Mediator: "short_circuit", Outcome: "vq_late", Level: 0.95, Resamples: 1000,
			Status:  analytics.StatusOK,
			Effects: []regression.IndirectEffect{{Treatment: "cond_assist", Seed: 42}},
		},
		Rows: []analytics.Row{
			{
				ParticipantID: "p1", Condition: "assist",
				Score:       records.ComputedScore{VQLate: f(3.5), QuestionCount: 2},
				Numeric:     map[string]float64{"age": 31},
				Categorical: map[string]string{"gender": "f"},
				FollowUp:    map[string]float64{"transfer": 4},
			},
			{
				ParticipantID: "p2", Condition: "control",
				Score: records.ComputedScore{VQLate: f(2.25), Similarity: f(0.5)},
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(recs))
	}

	header := recs[0]
	col := map[string]int{}
	for i, h := range header {
		col[h] = i
	}
	want := []string{"participant_id", "condition", "vq_late", "age", "gender", "followup_transfer"}
	for _, h := range want {
		if _, ok := col[h]; !ok {
			t.Fatalf("missing column %q in %v", h, header)
		}
	}
	if header[len(header)-1] != "followup_transfer" {
		t.Errorf("follow-up columns should come last, got %v", header)
	}

	p1, p2 := recs[1], recs[2]
	if p1[col["vq_late"]] != "3.5" || p1[col["age"]] != "31" || p1[col["gender"]] != "f" {
		t.Errorf("unexpected p1 row: %v", p1)
	}
	if p1[col["question_count"]] != "2" {
		t.Errorf("question_count: got %q", p1[col["question_count"]])
	}
	if p1[col["vq_early"]] != "" {
		t.Errorf("null must be an empty cell, got %q", p1[col["vq_early"]])
	}
	if p2[col["age"]] != "" || p2[col["followup_transfer"]] != "" || p2[col["similarity"]] != "0.5" {
		t.Errorf("unexpected p2 row: %v", p2)
	}
}

func TestMethods(t *testing.T) {
	text := Methods(sampleReport())
	for _, want := range []string{
		"Sample: 2 participants across conditions control, assist; control is the reference condition.",
		"algorithm version rs-1.2.0",
		"- cond_assist: 1 if the participant was assigned to assist, else 0.",
		"- country: declared control dropped (constant value).",
		"- H1a_vq_late: vq_late ~ 1 + cond_assist + age\n",
		"(model H2_vq_late not estimable: singular design)",
		"- H4: not testable with the current dataset",
		"HC3",
		"listwise deletion",
		"95% percentile bootstrap interval over 1000 resamples (seed 42)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("methods text missing %q:\n%s", want, text)
		}
	}
}
