package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/regression"
)

// #region hypotheses
// hypotheses fits the named models over one set of regression rows.
type hypotheses struct {
	cfg        Config
	data       []regression.Row
	indicators []string // condition dummies, reference omitted
	controls   []string // numeric controls
	followUp   []string
}

func (h hypotheses) base() []string {
	out := make([]string, 0, len(h.indicators)+len(h.controls))
	out = append(out, h.indicators...)
	return append(out, h.controls...)
}

// fit estimates one model and converts estimation failures into a status.
func (h hypotheses) fit(name, hypothesis string, rows []regression.Row, outcome string, predictors, primary []string) Model {
	m := Model{
		Name:       name,
		Hypothesis: hypothesis,
		Outcome:    outcome,
		Equation:   Equation(outcome, predictors),
		Testable:   true,
	}
	d := regression.BuildDesign(rows, outcome, predictors)
	m.Dropped = d.Dropped
	fit, err := regression.FitOLS(d, h.cfg.Robust)
	if err != nil {
		m.Status = statusOf(err)
		if errors.Is(err, regression.ErrSingular) {
			m.Message = fmt.Sprintf("model %s not estimable: singular design", name)
		} else {
			m.Message = fmt.Sprintf("model %s not estimable: %v", name, err)
		}
		return m
	}
	m.Status = StatusOK
	m.Fit = fit
	m.Interpretation = Interpret(fit, outcome, primary, h.cfg.Reference(), h.cfg.Alpha)
	return m
}

// #endregion hypotheses

// #region h1
// h1 regresses quality on condition: H1a for vertical quality at both
// checkpoints, H1b for horizontal quality at the late one.
func (h hypotheses) h1() []Model {
	preds := h.base()
	return []Model{
		h.fit("H1a_vq_early", "H1a", h.data, MetricVQEarly, preds, h.indicators),
		h.fit("H1a_vq_late", "H1a", h.data, MetricVQLate, preds, h.indicators),
		h.fit("H1b_hq_late", "H1b", h.data, MetricHQLate, preds, h.indicators),
	}
}

// #endregion h1

// #region h2
// h2 adds reflexivity and its interaction with each condition, then probes
// the interaction with simple slopes at ±1 SD of reflexivity.
func (h hypotheses) h2() ([]Model, []SimpleSlope) {
	var interactions []string
	for _, ind := range h.indicators {
		interactions = append(interactions, regression.InteractionName(ind, MetricReflexivity))
	}
	preds := append([]string{}, h.indicators...)
	preds = append(preds, MetricReflexivity)
	preds = append(preds, interactions...)
	preds = append(preds, h.controls...)

	var models []Model
	var slopes []SimpleSlope
	for _, outcome := range []string{MetricVQLate, MetricHQLate} {
		m := h.fit("H2_"+outcome, "H2", h.data, outcome, preds, interactions)
		models = append(models, m)
		if m.Status != StatusOK {
			continue
		}
		used := regression.CompleteRows(h.data, append([]string{outcome}, preds...))
		slopes = append(slopes, h.simpleSlopes(m, used)...)
	}
	return models, slopes
}

func (h hypotheses) simpleSlopes(m Model, used []regression.Row) []SimpleSlope {
	refl := column(used, MetricReflexivity)
	mean, sd := stat.MeanStdDev(refl, nil)
	levels := []float64{mean - sd, mean, mean + sd}

	base := make(map[string]float64, len(h.controls)+len(h.indicators))
	for _, c := range h.controls {
		base[c] = stat.Mean(column(used, c), nil)
	}

	bRefl, _ := m.Fit.Coefficient(MetricReflexivity)
	var out []SimpleSlope
	for _, cond := range h.cfg.Conditions {
		slope := bRefl.Estimate
		for _, ind := range h.indicators {
			base[ind] = 0
		}
		if cond != h.cfg.Reference() {
			ind := Indicator(cond)
			base[ind] = 1
			if bInt, ok := m.Fit.Coefficient(regression.InteractionName(ind, MetricReflexivity)); ok {
				slope += bInt.Estimate
			}
		}
		preds, err := regression.PredictInteraction(m.Fit, base, MetricReflexivity, levels)
		if err != nil {
			continue
		}
		out = append(out, SimpleSlope{
			Model:       m.Name,
			Condition:   cond,
			Moderator:   MetricReflexivity,
			Slope:       slope,
			Predictions: preds,
		})
	}
	return out
}

// #endregion h2

// #region h3
// h3 is the mediation of condition on vertical quality through
// short-circuiting. Both paths and the bootstrap use the same complete rows.
func (h hypotheses) h3(ctx context.Context) ([]Model, *Mediation, error) {
	preds := h.base()
	vars := append([]string{MetricShortCircuit, MetricVQLate}, preds...)
	rows := regression.CompleteRows(h.data, vars)

	pathA := h.fit("H3_path_a", "H3", rows, MetricShortCircuit, preds, h.indicators)
	pathB := h.fit("H3_path_b", "H3", rows, MetricVQLate,
		append([]string{MetricShortCircuit}, preds...), []string{MetricShortCircuit})
	models := []Model{pathA, pathB}

	med := &Mediation{
		Mediator:  MetricShortCircuit,
		Outcome:   MetricVQLate,
		Level:     h.cfg.Bootstrap.Level,
		Resamples: h.cfg.Bootstrap.Resamples,
	}
	for _, path := range models {
		if path.Status != StatusOK {
			med.Status = path.Status
			med.Message = fmt.Sprintf("indirect effect not estimable: %s", path.Message)
			return models, med, nil
		}
	}

	effects, err := regression.BootstrapIndirect(ctx, rows, preds, MetricShortCircuit, MetricVQLate, h.indicators, h.cfg.Bootstrap)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		med.Status = statusOf(err)
		med.Message = fmt.Sprintf("indirect effect not estimable: %v", err)
		return models, med, nil
	}
	med.Status = StatusOK
	med.Effects = effects
	return models, med, nil
}

// #endregion h3

// #region h4
// h4 relates the process composites to each follow-up measure. Without
// follow-up data the hypothesis is reported as not testable.
func (h hypotheses) h4() []Model {
	if len(h.followUp) == 0 {
		return []Model{{
			Name:       "H4",
			Hypothesis: "H4",
			Testable:   false,
			Status:     StatusNotTestable,
			Message:    "not testable with the current dataset: no follow-up measures recorded",
		}}
	}
	preds := append([]string{}, h.indicators...)
	preds = append(preds, MetricReflexivity, MetricShortCircuit)
	preds = append(preds, h.controls...)

	models := make([]Model, 0, len(h.followUp))
	for _, name := range h.followUp {
		models = append(models, h.fit("H4_"+name, "H4", h.data, FollowUpColumn(name), preds, h.indicators))
	}
	return models
}

// #endregion h4

// #region text
// Equation renders outcome ~ 1 + predictors.
func Equation(outcome string, predictors []string) string {
	if len(predictors) == 0 {
		return outcome + " ~ 1"
	}
	return outcome + " ~ 1 + " + strings.Join(predictors, " + ")
}

// Interpret states the direction and significance of each primary predictor.
// It is derived only from the coefficient sign and p-value.
func Interpret(fit *regression.Fit, outcome string, primary []string, reference records.Mode, alpha float64) string {
	var parts []string
	for _, name := range primary {
		c, ok := fit.Coefficient(name)
		if !ok {
			continue
		}
		sig := fmt.Sprintf("not significant at α = %g", alpha)
		if c.P < alpha {
			sig = fmt.Sprintf("significant at α = %g", alpha)
		}
		parts = append(parts, fmt.Sprintf("%s (b = %.3f, p = %.3f, %s)",
			phrase(name, outcome, c.Estimate, reference), c.Estimate, c.P, sig))
	}
	if len(parts) == 0 {
		return "no primary predictor was estimated"
	}
	return strings.Join(parts, "; ")
}

func phrase(name, outcome string, est float64, reference records.Mode) string {
	if a, b, ok := strings.Cut(name, ":"); ok {
		cond := strings.TrimPrefix(a, "cond_")
		switch {
		case est > 0:
			return fmt.Sprintf("the %s slope on %s is more positive in %s than in %s", b, outcome, cond, reference)
		case est < 0:
			return fmt.Sprintf("the %s slope on %s is more negative in %s than in %s", b, outcome, cond, reference)
		}
		return fmt.Sprintf("the %s slope on %s does not differ between %s and %s", b, outcome, cond, reference)
	}
	if cond, ok := strings.CutPrefix(name, "cond_"); ok {
		switch {
		case est > 0:
			return fmt.Sprintf("%s scored higher on %s than %s", cond, outcome, reference)
		case est < 0:
			return fmt.Sprintf("%s scored lower on %s than %s", cond, outcome, reference)
		}
		return fmt.Sprintf("%s did not differ from %s on %s", cond, reference, outcome)
	}
	switch {
	case est > 0:
		return fmt.Sprintf("higher %s goes with higher %s", name, outcome)
	case est < 0:
		return fmt.Sprintf("higher %s goes with lower %s", name, outcome)
	}
	return fmt.Sprintf("%s is unrelated to %s", name, outcome)
}

func column(rows []regression.Row, name string) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v, ok := regression.Value(r, name); ok {
			out = append(out, v)
		}
	}
	return out
}

// #endregion text
