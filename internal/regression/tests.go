package regression

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// #region chi-square
// ChiSquareTest runs Pearson's test of independence on a contingency table of
// counts. Rows and columns that sum to zero are dropped first; if fewer than
// two of either remain the test is undefined.
func ChiSquareTest(table [][]float64) (ChiSquareResult, error) {
	var rowSums []float64
	var kept [][]float64
	width := 0
	for _, row := range table {
		if len(row) > width {
			width = len(row)
		}
	}
	colSums := make([]float64, width)
	for _, row := range table {
		var sum float64
		for j, v := range row {
			if v < 0 {
				return ChiSquareResult{}, fmt.Errorf("chi-square: negative count %v", v)
			}
			sum += v
			colSums[j] += v
		}
		if sum > 0 {
			kept = append(kept, row)
			rowSums = append(rowSums, sum)
		}
	}

	var cols []int
	var total float64
	for j, s := range colSums {
		if s > 0 {
			cols = append(cols, j)
			total += s
		}
	}
	if len(kept) < 2 || len(cols) < 2 {
		return ChiSquareResult{}, fmt.Errorf("%w: chi-square needs a 2x2 table with non-empty margins", ErrInsufficientData)
	}

	var chi float64
	for i, row := range kept {
		for _, j := range cols {
			var obs float64
			if j < len(row) {
				obs = row[j]
			}
			exp := rowSums[i] * colSums[j] / total
			d := obs - exp
			chi += d * d / exp
		}
	}
	df := (len(kept) - 1) * (len(cols) - 1)
	return ChiSquareResult{
		Statistic: chi,
		DF:        df,
		P:         distuv.ChiSquared{K: float64(df)}.Survival(chi),
	}, nil
}

// #endregion chi-square

// #region anova
// OneWayANOVA tests whether group means differ. Empty groups are ignored.
func OneWayANOVA(groups map[string][]float64) (ANOVAResult, error) {
	keys := make([]string, 0, len(groups))
	for k, vs := range groups {
		if len(vs) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var all []float64
	for _, k := range keys {
		all = append(all, groups[k]...)
	}
	k, n := len(keys), len(all)
	if k < 2 || n-k < 1 {
		return ANOVAResult{}, fmt.Errorf("%w: anova needs two groups and more observations than groups", ErrInsufficientData)
	}

	grand := stat.Mean(all, nil)
	var ssb, ssw float64
	for _, key := range keys {
		vs := groups[key]
		m := stat.Mean(vs, nil)
		ssb += float64(len(vs)) * (m - grand) * (m - grand)
		for _, v := range vs {
			ssw += (v - m) * (v - m)
		}
	}
	if ssw == 0 {
		return ANOVAResult{}, fmt.Errorf("%w: no variance within groups", ErrZeroVariance)
	}

	res := ANOVAResult{DFBetween: k - 1, DFWithin: n - k}
	res.F = (ssb / float64(res.DFBetween)) / (ssw / float64(res.DFWithin))
	res.P = distuv.F{D1: float64(res.DFBetween), D2: float64(res.DFWithin)}.Survival(res.F)
	return res, nil
}

// #endregion anova
