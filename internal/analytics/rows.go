package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/regression"
)

// #region rows
// BuildRows joins participants in an analysed condition with their scores.
// Participants outside Conditions (including unassigned ones) are excluded.
// A participant without a score gets an all-null row.
func BuildRows(participants []records.Participant, scores []records.ComputedScore, conditions []records.Mode) []Row {
	allowed := make(map[records.Mode]bool, len(conditions))
	for _, c := range conditions {
		allowed[c] = true
	}
	byID := make(map[string]records.ComputedScore, len(scores))
	for _, s := range scores {
		byID[s.ParticipantID] = s
	}

	rows := make([]Row, 0, len(participants))
	for _, p := range participants {
		if !allowed[p.Mode] {
			continue
		}
		score, ok := byID[p.ID]
		if !ok {
			score = records.ComputedScore{ParticipantID: p.ID}
		}
		rows = append(rows, Row{
			ParticipantID: p.ID,
			Condition:     p.Mode,
			Score:         score,
			Numeric:       map[string]float64{},
			Categorical:   map[string]string{},
			FollowUp:      p.FollowUp,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ParticipantID < rows[j].ParticipantID })
	return rows
}

// #endregion rows

// #region controls
// ResolveControls reads every declared control from the participants into
// rows and returns the usable declarations. A control is dropped when no
// participant has a usable value or all usable values are identical, since it
// could only make the designs singular. rows and participants are matched by
// ID.
func ResolveControls(rows []Row, participants []records.Participant, decls []ControlDecl) ([]ControlDecl, []DroppedControl) {
	byID := make(map[string]records.Participant, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}

	var kept []ControlDecl
	var dropped []DroppedControl
	for _, decl := range decls {
		distinct := map[string]bool{}
		for i := range rows {
			raw, ok := byID[rows[i].ParticipantID].Attribute(decl.Name)
			if !ok {
				continue
			}
			switch decl.Type {
			case ControlNumeric:
				if v, ok := toFloat(raw); ok {
					rows[i].Numeric[decl.Name] = v
					distinct[strconv.FormatFloat(v, 'g', -1, 64)] = true
				}
			case ControlCategorical:
				if s := strings.TrimSpace(fmt.Sprint(raw)); s != "" {
					rows[i].Categorical[decl.Name] = s
					distinct[s] = true
				}
			}
		}

		reason := ""
		switch {
		case decl.Type != ControlNumeric && decl.Type != ControlCategorical:
			reason = fmt.Sprintf("unknown control type %q", decl.Type)
		case ReservedName(decl.Name):
			reason = "name collides with a model variable"
		case len(distinct) == 0:
			reason = "no usable values"
		case len(distinct) == 1:
			reason = "constant value"
		}
		if reason == "" {
			kept = append(kept, decl)
			continue
		}
		for i := range rows {
			delete(rows[i].Numeric, decl.Name)
			delete(rows[i].Categorical, decl.Name)
		}
		dropped = append(dropped, DroppedControl{Name: decl.Name, Reason: reason})
	}
	return kept, dropped
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// #endregion controls

// #region regression-rows
// Indicator is the dummy column name for a non-reference condition.
func Indicator(mode records.Mode) string {
	return "cond_" + string(mode)
}

// FollowUpColumn is the regression column name of a follow-up measure.
func FollowUpColumn(name string) string {
	return "followup_" + name
}

// ReservedName reports whether a control name would collide with a model
// variable: a composite metric, a condition indicator or a follow-up column.
func ReservedName(name string) bool {
	for _, m := range Metrics {
		if name == m {
			return true
		}
	}
	return strings.HasPrefix(name, "cond_") || strings.HasPrefix(name, "followup_") || strings.Contains(name, ":")
}

// regressionRows flattens analysis rows into variable maps. Nil metrics are
// left out so listwise deletion sees them as missing.
func regressionRows(rows []Row, conditions []records.Mode) []regression.Row {
	out := make([]regression.Row, len(rows))
	for i, r := range rows {
		row := regression.Row{}
		for _, c := range conditions[1:] {
			row[Indicator(c)] = 0
			if r.Condition == c {
				row[Indicator(c)] = 1
			}
		}
		for _, m := range Metrics {
			if v := r.Metric(m); v != nil {
				row[m] = *v
			}
		}
		for k, v := range r.Numeric {
			row[k] = v
		}
		for k, v := range r.FollowUp {
			row[FollowUpColumn(k)] = v
		}
		out[i] = row
	}
	return out
}

// #endregion regression-rows
