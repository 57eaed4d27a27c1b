package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/analytics"
)

// #region csv
// scoreColumns are the fixed per-participant columns after participant_id and
// condition.
var scoreColumns = []string{
	"vq_early", "vq_late", "hq_late", "reflexivity", "short_circuit",
	"question_count", "challenge_count", "verification_count",
	"decision_latency_ms", "similarity", "unique_memo_words", "evidence_fact_mentions",
}

// WriteCSV writes one line per analysis row. Null values are empty cells.
// Control and follow-up columns are appended in sorted order.
func WriteCSV(w io.Writer, report *analytics.Report) error {
	numeric, categorical := controlNames(report.Controls)
	followUp := followUpNames(report.Rows)

	header := []string{"participant_id", "condition"}
	header = append(header, scoreColumns...)
	header = append(header, numeric...)
	header = append(header, categorical...)
	for _, f := range followUp {
		header = append(header, analytics.FollowUpColumn(f))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range report.Rows {
		s := r.Score
		rec := []string{
			r.ParticipantID, string(r.Condition),
			num(s.VQEarly), num(s.VQLate), num(s.HQLate), num(s.Reflexivity), num(s.ShortCircuit),
			strconv.Itoa(s.QuestionCount), strconv.Itoa(s.ChallengeCount), strconv.Itoa(s.VerificationCount),
			num(s.DecisionLatencyMs), num(s.Similarity), num(s.UniqueMemoWords), num(s.EvidenceFactMentions),
		}
		for _, n := range numeric {
			rec = append(rec, lookup(r.Numeric, n))
		}
		for _, c := range categorical {
			rec = append(rec, r.Categorical[c])
		}
		for _, f := range followUp {
			rec = append(rec, lookup(r.FollowUp, f))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %s: %w", r.ParticipantID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func num(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func lookup(m map[string]float64, k string) string {
	v, ok := m[k]
	if !ok {
		return ""
	}
	return num(&v)
}

func controlNames(controls []analytics.ControlDecl) (numeric, categorical []string) {
	for _, c := range controls {
		if c.Type == analytics.ControlNumeric {
			numeric = append(numeric, c.Name)
		} else {
			categorical = append(categorical, c.Name)
		}
	}
	sort.Strings(numeric)
	sort.Strings(categorical)
	return numeric, categorical
}

func followUpNames(rows []analytics.Row) []string {
	set := map[string]bool{}
	for _, r := range rows {
		for k := range r.FollowUp {
			set[k] = true
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// #endregion csv

// #region methods
// variables defines every composite that appears in the models.
var variables = []struct{ name, definition string }{
	{"vq_early", "vertical quality at the early checkpoint: mean of coherence, evidence, trade-offs, accuracy and implementability per rater, averaged across raters"},
	{"vq_late", "vertical quality at the late checkpoint, defined as vq_early"},
	{"hq_late", "horizontal quality at the late checkpoint: mean of novelty, differentiation and synthesis, averaged across raters"},
	{"reflexivity", "mean of population z-scores of question count, challenge count, verification count and negated decision latency"},
	{"short_circuit", "mean of population z-scores of memo/assistant cosine similarity and negated decision latency, unique memo words and evidence fact mentions"},
}

// Methods renders the methods narrative: variables, model equations,
// missing-data policy and inference settings.
func Methods(report *analytics.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Methods\n=======\n\n")
	fmt.Fprintf(&b, "Sample: %d participants across conditions %s; %s is the reference condition.\n",
		report.N, joinModes(report), report.Reference)
	if report.ScoreVersion != "" {
		fmt.Fprintf(&b, "Scores were computed with algorithm version %s.\n", report.ScoreVersion)
	}

	fmt.Fprintf(&b, "\nVariables\n---------\n")
	for _, v := range variables {
		fmt.Fprintf(&b, "- %s: %s.\n", v.name, v.definition)
	}
	for _, c := range report.Conditions[1:] {
		fmt.Fprintf(&b, "- %s: 1 if the participant was assigned to %s, else 0.\n", analytics.Indicator(c), c)
	}
	for _, c := range report.Controls {
		fmt.Fprintf(&b, "- %s: declared %s control.\n", c.Name, c.Type)
	}
	for _, d := range report.DroppedControls {
		fmt.Fprintf(&b, "- %s: declared control dropped (%s).\n", d.Name, d.Reason)
	}

	fmt.Fprintf(&b, "\nModels\n------\n")
	for _, m := range report.Models {
		if !m.Testable {
			fmt.Fprintf(&b, "- %s: %s.\n", m.Name, m.Message)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s", m.Name, m.Equation)
		if m.Status != analytics.StatusOK {
			fmt.Fprintf(&b, " (%s)", m.Message)
		}
		b.WriteString("\n")
	}

	se := "classical (homoskedastic) standard errors"
	if report.Robust {
		se = "HC3 heteroskedasticity-consistent standard errors"
	}
	fmt.Fprintf(&b, "\nEstimation\n----------\n")
	fmt.Fprintf(&b, "Ordinary least squares with %s. Significance is judged at α = %g.\n", se, report.Alpha)
	b.WriteString("Missing data: each model uses listwise deletion, so a participant missing the outcome or any predictor is excluded from that model only. Scores are never imputed.\n")
	b.WriteString("Numeric controls enter every regression; categorical controls are used in balance checks only.\n")

	if med := report.Mediation; med != nil {
		fmt.Fprintf(&b, "Mediation: indirect effect a*b of each condition on %s through %s, with a %g%% percentile bootstrap interval over %d resamples",
			med.Outcome, med.Mediator, med.Level*100, med.Resamples)
		if len(med.Effects) > 0 {
			fmt.Fprintf(&b, " (seed %d)", med.Effects[0].Seed)
		}
		b.WriteString(".\n")
	}
	return b.String()
}

func joinModes(report *analytics.Report) string {
	parts := make([]string, len(report.Conditions))
	for i, c := range report.Conditions {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// #endregion methods
