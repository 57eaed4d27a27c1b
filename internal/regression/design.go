package regression

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// #region build-design
// BuildDesign assembles y and X for outcome ~ 1 + predictors.
//
// Missing-data policy is listwise deletion: a row is dropped when the outcome
// or any predictor is absent, NaN or infinite. This changes the effective
// sample size, so Design.N reports the rows actually used and Design.Dropped
// the rows removed. A predictor named "a:b" is the product of a and b when the
// row does not carry it directly.
func BuildDesign(rows []Row, outcome string, predictors []string) Design {
	names := make([]string, 0, len(predictors)+1)
	names = append(names, Intercept)
	names = append(names, predictors...)
	p := len(names)

	var y []float64
	var data []float64
	for _, row := range rows {
		yv, ok := Value(row, outcome)
		if !ok {
			continue
		}
		xs := make([]float64, p)
		xs[0] = 1
		complete := true
		for j, name := range predictors {
			v, ok := Value(row, name)
			if !ok {
				complete = false
				break
			}
			xs[j+1] = v
		}
		if !complete {
			continue
		}
		y = append(y, yv)
		data = append(data, xs...)
	}

	d := Design{Y: y, Names: names, N: len(y), Dropped: len(rows) - len(y)}
	if len(y) > 0 {
		d.X = mat.NewDense(len(y), p, data)
	}
	return d
}

// #endregion build-design

// #region values
// InteractionName is the column name of the a × b product term.
func InteractionName(a, b string) string {
	return a + ":" + b
}

// Value reads a finite value from the row, expanding interaction names into
// products of their parts.
func Value(row Row, name string) (float64, bool) {
	if v, ok := row[name]; ok {
		return v, finite(v)
	}
	if !strings.Contains(name, ":") {
		return 0, false
	}
	prod := 1.0
	for _, part := range strings.Split(name, ":") {
		v, ok := row[part]
		if !ok || !finite(v) {
			return 0, false
		}
		prod *= v
	}
	return prod, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CompleteRows keeps the rows where every variable has a finite value.
func CompleteRows(rows []Row, vars []string) []Row {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		ok := true
		for _, v := range vars {
			if _, has := Value(row, v); !has {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}

// #endregion values
