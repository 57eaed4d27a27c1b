package analytics

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/regression"
)

// #region descriptives
// Descriptives returns mean, sample SD and n of every metric per condition,
// excluding nulls.
func Descriptives(rows []Row, conditions []records.Mode) []Descriptive {
	out := make([]Descriptive, 0, len(conditions)*len(Metrics))
	for _, c := range conditions {
		for _, m := range Metrics {
			var vals []float64
			for _, r := range rows {
				if r.Condition != c {
					continue
				}
				if v := r.Metric(m); v != nil {
					vals = append(vals, *v)
				}
			}
			d := Descriptive{Condition: c, Metric: m, N: len(vals)}
			if len(vals) > 0 {
				d.Mean = ptr(stat.Mean(vals, nil))
			}
			if len(vals) > 1 {
				d.SD = ptr(stat.StdDev(vals, nil))
			}
			out = append(out, d)
		}
	}
	return out
}

// #endregion descriptives

// #region correlations
// Correlate builds the pairwise-complete Pearson matrix over Metrics.
func Correlate(rows []Row) Correlations {
	k := len(Metrics)
	c := Correlations{Metrics: Metrics, R: make([][]*float64, k), N: make([][]int, k)}
	for i := range Metrics {
		c.R[i] = make([]*float64, k)
		c.N[i] = make([]int, k)
	}
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			var xs, ys []float64
			for _, r := range rows {
				x, y := r.Metric(Metrics[i]), r.Metric(Metrics[j])
				if x == nil || y == nil {
					continue
				}
				xs = append(xs, *x)
				ys = append(ys, *y)
			}
			c.N[i][j], c.N[j][i] = len(xs), len(xs)
			if len(xs) < 3 {
				continue
			}
			rho := stat.Correlation(xs, ys, nil)
			if math.IsNaN(rho) || math.IsInf(rho, 0) {
				continue
			}
			c.R[i][j], c.R[j][i] = ptr(rho), ptr(rho)
		}
	}
	return c
}

// #endregion correlations

// #region balance
// Balance tests whether the conditions differ on each control: one-way ANOVA
// for numeric controls, chi-square on the condition × category table for
// categorical ones.
func Balance(rows []Row, conditions []records.Mode, controls []ControlDecl) []Check {
	out := make([]Check, 0, len(controls))
	for _, decl := range controls {
		if decl.Type == ControlCategorical {
			out = append(out, categoricalCheck(rows, conditions, decl.Name))
			continue
		}
		groups := make(map[string][]float64, len(conditions))
		for _, r := range rows {
			if v, ok := r.Numeric[decl.Name]; ok {
				groups[string(r.Condition)] = append(groups[string(r.Condition)], v)
			}
		}
		out = append(out, anovaCheck(decl.Name, groups))
	}
	return out
}

// Manipulation tests whether the process composites differ by condition,
// confirming that the conditions changed how participants worked.
func Manipulation(rows []Row) []Check {
	var out []Check
	for _, m := range []string{MetricReflexivity, MetricShortCircuit} {
		groups := map[string][]float64{}
		for _, r := range rows {
			if v := r.Metric(m); v != nil {
				groups[string(r.Condition)] = append(groups[string(r.Condition)], *v)
			}
		}
		out = append(out, anovaCheck(m, groups))
	}
	return out
}

func anovaCheck(name string, groups map[string][]float64) Check {
	c := Check{Variable: name, Test: "anova"}
	res, err := regression.OneWayANOVA(groups)
	if err != nil {
		c.Status, c.Message = statusOf(err), err.Error()
		return c
	}
	c.Statistic, c.P = res.F, res.P
	c.DF = []int{res.DFBetween, res.DFWithin}
	c.Status = StatusOK
	return c
}

func categoricalCheck(rows []Row, conditions []records.Mode, name string) Check {
	c := Check{Variable: name, Test: "chi_square"}
	catSet := map[string]bool{}
	for _, r := range rows {
		if v, ok := r.Categorical[name]; ok {
			catSet[v] = true
		}
	}
	cats := make([]string, 0, len(catSet))
	for v := range catSet {
		cats = append(cats, v)
	}
	sort.Strings(cats)
	col := make(map[string]int, len(cats))
	for j, v := range cats {
		col[v] = j
	}

	table := make([][]float64, len(conditions))
	rowOf := make(map[records.Mode]int, len(conditions))
	for i, cond := range conditions {
		table[i] = make([]float64, len(cats))
		rowOf[cond] = i
	}
	for _, r := range rows {
		v, ok := r.Categorical[name]
		if !ok {
			continue
		}
		table[rowOf[r.Condition]][col[v]]++
	}

	res, err := regression.ChiSquareTest(table)
	if err != nil {
		c.Status, c.Message = statusOf(err), err.Error()
		return c
	}
	c.Statistic, c.P = res.Statistic, res.P
	c.DF = []int{res.DF}
	c.Status = StatusOK
	return c
}

// #endregion balance

// #region helpers
func statusOf(err error) Status {
	switch {
	case errors.Is(err, regression.ErrSingular):
		return StatusNotEstimable
	case errors.Is(err, regression.ErrZeroVariance):
		return StatusNotEstimable
	default:
		return StatusInsufficientData
	}
}

func ptr(v float64) *float64 { return &v }

// #endregion helpers
