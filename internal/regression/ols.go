package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// maxCondition is the largest X'X condition number treated as invertible.
const maxCondition = 1e15

// #region fit-ols
// FitOLS estimates ordinary least squares on the design. With robust set the
// covariance is the HC3 sandwich estimator, which weights each squared
// residual by 1/(1-h)^2 where h is the observation's leverage; otherwise it
// is σ²(X'X)⁻¹ with σ² = SSE/df.
func FitOLS(d Design, robust bool) (*Fit, error) {
	if d.X == nil {
		return nil, fmt.Errorf("%w: no complete rows", ErrInsufficientData)
	}
	n, p := d.X.Dims()
	df := n - p
	if df < 1 {
		return nil, fmt.Errorf("%w: %d rows for %d parameters", ErrInsufficientData, n, p)
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, d.X.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, ErrSingular
	}
	if cond := chol.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > maxCondition {
		return nil, ErrSingular
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, ErrSingular
	}

	y := mat.NewVecDense(n, d.Y)
	var xty, beta mat.VecDense
	xty.MulVec(d.X.T(), y)
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, ErrSingular
	}

	var fitted mat.VecDense
	fitted.MulVec(d.X, &beta)
	resid := make([]float64, n)
	var meanY float64
	for i := 0; i < n; i++ {
		resid[i] = d.Y[i] - fitted.AtVec(i)
		meanY += d.Y[i]
	}
	meanY /= float64(n)

	var sse, sst float64
	for i := 0; i < n; i++ {
		sse += resid[i] * resid[i]
		dy := d.Y[i] - meanY
		sst += dy * dy
	}

	var cov mat.Dense
	if robust {
		cov = hc3(d.X, &inv, resid)
	} else {
		cov.Scale(sse/float64(df), &inv)
	}

	fit := &Fit{
		Coefficients: coefficientTable(d.Names, &beta, &cov, df),
		N:            n,
		DF:           df,
		Robust:       robust,
	}
	if sst > 0 {
		fit.RSquared = 1 - sse/sst
		fit.AdjRSquared = 1 - (1-fit.RSquared)*float64(n-1)/float64(df)
	}
	return fit, nil
}

// #endregion fit-ols

// #region hc3
// hc3 computes (X'X)⁻¹ X' diag(e²/(1-h)²) X (X'X)⁻¹.
func hc3(x *mat.Dense, inv *mat.SymDense, resid []float64) mat.Dense {
	n, p := x.Dims()
	scaled := mat.NewDense(n, p, nil)
	var xi, tmp mat.VecDense
	for i := 0; i < n; i++ {
		row := x.RowView(i)
		tmp.MulVec(inv, row)
		h := mat.Dot(row, &tmp)
		w := 0.0
		if denom := 1 - h; denom > 1e-12 {
			w = math.Abs(resid[i]) / denom
		}
		xi.ScaleVec(w, row)
		scaled.SetRow(i, xi.RawVector().Data)
	}

	var meat mat.SymDense
	meat.SymOuterK(1, scaled.T())

	var left, cov mat.Dense
	left.Mul(inv, &meat)
	cov.Mul(&left, inv)
	return cov
}

// #endregion hc3

// #region coefficient-table
func coefficientTable(names []string, beta *mat.VecDense, cov *mat.Dense, df int) []Coefficient {
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	crit := tdist.Quantile(0.975)

	out := make([]Coefficient, len(names))
	for j, name := range names {
		est := beta.AtVec(j)
		se := math.Sqrt(math.Max(cov.At(j, j), 0))
		c := Coefficient{
			Name:     name,
			Estimate: est,
			StdErr:   se,
			CILow:    est - crit*se,
			CIHigh:   est + crit*se,
		}
		switch {
		case se > 0:
			c.T = est / se
			c.P = math.Min(1, 2*tdist.Survival(math.Abs(c.T)))
		case est != 0:
			// exact fit: the estimate is infinitely many SEs from zero
			c.T = math.Copysign(math.MaxFloat64, est)
			c.P = 0
		default:
			c.P = 1
		}
		out[j] = c
	}
	return out
}

// #endregion coefficient-table
