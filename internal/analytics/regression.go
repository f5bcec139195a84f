package analytics

import (
	"fmt"
	"math"
	"sort"
)

const minRegressionRows = 5

// CorrelationPrediction fits target on predictors by least squares and projects
// periods ahead, growing each predictor by its average historical change.
// Rows missing any variable are dropped first.
func CorrelationPrediction(rows []Row, target string, predictors []string, periods int) Result {
	if len(rows) < minRegressionRows {
		return errorResult("Insufficient data for correlation-based prediction")
	}
	vars := append([]string{target}, predictors...)
	if missing := missingColumns(rows, vars); len(missing) > 0 {
		return errorResult(fmt.Sprintf("Missing variables: %v", missing))
	}

	y, xs := completeCases(rows, target, predictors)
	if len(y) < minRegressionRows {
		return errorResult("Insufficient valid data after cleaning")
	}

	coef, ok := leastSquares(y, xs)
	if !ok {
		return errorResult("Predictors are collinear; no unique fit")
	}

	correlations := make(map[string]any, len(predictors))
	importance := make(map[string]any, len(predictors))
	strongest := make([]map[string]any, 0, len(predictors))
	for j, name := range predictors {
		r, _ := pearson(xs[j], y)
		correlations[name] = round2(r)
		// coefficient on the standardized predictor
		importance[name] = round2(coef[j+1] * populationStd(xs[j]))
		strongest = append(strongest, map[string]any{"variable": name, "correlation": round2(r)})
	}
	sort.SliceStable(strongest, func(a, b int) bool {
		return math.Abs(strongest[a]["correlation"].(float64)) > math.Abs(strongest[b]["correlation"].(float64))
	})
	if len(strongest) > 3 {
		strongest = strongest[:3]
	}

	last := make([]float64, len(predictors))
	growth := make([]float64, len(predictors))
	for j := range predictors {
		last[j] = xs[j][len(y)-1]
		growth[j] = mean(pctChange(xs[j]))
	}
	values := make([]float64, 0, periods)
	labels := make([]string, 0, periods)
	for i := 0; i < periods; i++ {
		values = append(values, round2(predict(coef, last)))
		labels = append(labels, fmt.Sprintf("Period %d", i+1))
		for j := range last {
			last[j] *= 1 + growth[j]
		}
	}

	var sse, sst float64
	my := mean(y)
	for i := range y {
		row := make([]float64, len(predictors))
		for j := range predictors {
			row[j] = xs[j][i]
		}
		diff := y[i] - predict(coef, row)
		sse += diff * diff
		sst += (y[i] - my) * (y[i] - my)
	}
	r2 := 0.0
	if sst > 0 {
		r2 = 1 - sse/sst
	}

	return Result{
		"predictions": map[string]any{
			"values":  values,
			"periods": labels,
		},
		"correlations": correlations,
		"model_performance": map[string]any{
			"r_squared":          round2(r2),
			"mean_squared_error": round2(sse / float64(len(y))),
			"feature_importance": importance,
		},
		"strongest_predictors": strongest,
	}
}

func missingColumns(rows []Row, vars []string) []string {
	var missing []string
	for _, v := range vars {
		found := false
		for _, r := range rows {
			if _, ok := r[v]; ok {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, v)
		}
	}
	return missing
}

// completeCases returns the target values and one column per predictor, keeping only
// rows where every variable is numeric
func completeCases(rows []Row, target string, predictors []string) ([]float64, [][]float64) {
	var y []float64
	xs := make([][]float64, len(predictors))
	for _, r := range rows {
		ty, ok := Number(r[target])
		if !ok {
			continue
		}
		vals := make([]float64, len(predictors))
		for j, p := range predictors {
			if vals[j], ok = Number(r[p]); !ok {
				break
			}
		}
		if !ok {
			continue
		}
		y = append(y, ty)
		for j := range predictors {
			xs[j] = append(xs[j], vals[j])
		}
	}
	return y, xs
}

// leastSquares fits an intercept plus one coefficient per column. Columns are
// standardized before solving the normal equations; the returned coefficients
// are on the original scale.
func leastSquares(y []float64, xs [][]float64) ([]float64, bool) {
	means := make([]float64, len(xs))
	stds := make([]float64, len(xs))
	for j, col := range xs {
		means[j], stds[j] = mean(col), populationStd(col)
		if stds[j] == 0 {
			return nil, false
		}
	}

	k := len(xs) + 1
	design := func(i, j int) float64 {
		if j == 0 {
			return 1
		}
		return (xs[j-1][i] - means[j-1]) / stds[j-1]
	}

	// augmented matrix [X'X | X'y]
	m := make([][]float64, k)
	for a := 0; a < k; a++ {
		m[a] = make([]float64, k+1)
		for i := range y {
			for b := 0; b < k; b++ {
				m[a][b] += design(i, a) * design(i, b)
			}
			m[a][k] += design(i, a) * y[i]
		}
	}

	for col := 0; col < k; col++ {
		pivot := col
		for r := col + 1; r < k; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-9 {
			return nil, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := 0; r < k; r++ {
			if r == col {
				continue
			}
			f := m[r][col] / m[col][col]
			for c := col; c <= k; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}

	coef := make([]float64, k)
	coef[0] = m[0][k] / m[0][0]
	for j := range xs {
		scaled := m[j+1][k] / m[j+1][j+1]
		coef[j+1] = scaled / stds[j]
		coef[0] -= scaled * means[j] / stds[j]
	}
	return coef, true
}

func predict(coef, features []float64) float64 {
	out := coef[0]
	for j, f := range features {
		out += coef[j+1] * f
	}
	return out
}

func populationStd(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}
