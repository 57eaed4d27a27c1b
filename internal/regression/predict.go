package regression

import "fmt"

// Predict evaluates the fitted equation at the given predictor values.
// Interaction coefficients are evaluated as products of their parts.
func (f *Fit) Predict(values map[string]float64) (float64, error) {
	var y float64
	for _, c := range f.Coefficients {
		if c.Name == Intercept {
			y += c.Estimate
			continue
		}
		v, ok := Value(Row(values), c.Name)
		if !ok {
			return 0, fmt.Errorf("predict: no value for %q", c.Name)
		}
		y += c.Estimate * v
	}
	return y, nil
}

// PredictInteraction evaluates the fit at each moderator level, holding the
// other predictors at base. Used for simple slopes at mean ± 1 SD.
func PredictInteraction(f *Fit, base map[string]float64, moderator string, levels []float64) ([]Prediction, error) {
	values := make(map[string]float64, len(base)+1)
	for k, v := range base {
		values[k] = v
	}
	out := make([]Prediction, 0, len(levels))
	for _, level := range levels {
		values[moderator] = level
		y, err := f.Predict(values)
		if err != nil {
			return nil, err
		}
		out = append(out, Prediction{Level: level, Value: y})
	}
	return out, nil
}
