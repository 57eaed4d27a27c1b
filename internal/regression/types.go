package regression

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// #region errors
var (
	// ErrSingular means X'X could not be inverted, usually because a
	// predictor is constant or collinear with others.
	ErrSingular = errors.New("singular design")

	// ErrInsufficientData means there are not enough complete rows or groups
	// to estimate the quantity.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrZeroVariance means a denominator variance was zero.
	ErrZeroVariance = errors.New("zero variance")
)

// #endregion errors

// #region design
// Row is one observation keyed by variable name. A missing key is a missing
// value.
type Row map[string]float64

// Design is a response vector and a design matrix whose first column is the
// intercept.
type Design struct {
	Y       []float64
	X       *mat.Dense
	Names   []string // column names of X, starting with Intercept
	N       int      // rows kept after listwise deletion
	Dropped int      // rows removed by listwise deletion
}

// Intercept is the name of the constant column.
const Intercept = "(Intercept)"

// #endregion design

// #region fit
// Coefficient is one row of a coefficient table.
type Coefficient struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	T        float64 `json:"t"`
	P        float64 `json:"p"`
	CILow    float64 `json:"ci_low"`
	CIHigh   float64 `json:"ci_high"`
}

// Fit is the result of an OLS estimation.
type Fit struct {
	Coefficients []Coefficient `json:"coefficients"`
	RSquared     float64       `json:"r_squared"`
	AdjRSquared  float64       `json:"adj_r_squared"`
	N            int           `json:"n"`
	DF           int           `json:"df"` // residual degrees of freedom
	Robust       bool          `json:"robust"`
}

// Coefficient returns the named coefficient.
func (f *Fit) Coefficient(name string) (Coefficient, bool) {
	for _, c := range f.Coefficients {
		if c.Name == name {
			return c, true
		}
	}
	return Coefficient{}, false
}

// #endregion fit

// #region tests
// ChiSquareResult is a chi-square test of independence.
type ChiSquareResult struct {
	Statistic float64 `json:"statistic"`
	DF        int     `json:"df"`
	P         float64 `json:"p"`
}

// ANOVAResult is a one-way analysis of variance.
type ANOVAResult struct {
	F         float64 `json:"f"`
	DFBetween int     `json:"df_between"`
	DFWithin  int     `json:"df_within"`
	P         float64 `json:"p"`
}

// #endregion tests

// #region bootstrap
// BootstrapConfig controls the percentile bootstrap of an indirect effect.
type BootstrapConfig struct {
	Resamples int
	Workers   int     // parallel resample workers; <= 0 means 1
	Seed      *uint64 // nil draws a fresh seed, so runs are not reproducible
	Level     float64 // confidence level, e.g. 0.95
}

// DefaultBootstrapConfig returns 1000 unseeded resamples at 95%.
func DefaultBootstrapConfig() BootstrapConfig {
	return BootstrapConfig{Resamples: 1000, Workers: 4, Level: 0.95}
}

// IndirectEffect is the a*b product for one treatment indicator. Seed is
// encoded as a JSON string so it survives float-only encoders.
type IndirectEffect struct {
	Treatment string    `json:"treatment"`
	Estimate  float64   `json:"estimate"` // from the full-sample fits
	CILow     float64   `json:"ci_low"`
	CIHigh    float64   `json:"ci_high"`
	Effects   []float64 `json:"-"` // sorted bootstrap distribution
	Resamples int       `json:"resamples"`
	Failed    int       `json:"failed"` // resamples whose fit was not estimable
	Seed      uint64    `json:"seed,string"`
}

// #endregion bootstrap

// #region prediction
// Prediction is the predicted outcome at one moderator level.
type Prediction struct {
	Level float64 `json:"level"`
	Value float64 `json:"value"`
}

// #endregion prediction
