// Package analytics holds the statistical, forecasting and custom algorithm
// routines run over tabular market rows. Every function is pure and reports
// problems in the returned map under an "error" key instead of failing.
package analytics

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// Row is one record of tabular input, typically a market quote
type Row = map[string]any

// Result is the JSON-shaped output of an analytics routine
type Result = map[string]any

func errorResult(msg string) Result {
	return Result{"error": msg}
}

// Number coerces JSON-ish numeric values. Strings are parsed; anything else is not numeric.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case *float64:
		if n == nil {
			return 0, false
		}
		f = *n
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// column extracts the numeric values of key, skipping rows where it is missing or not numeric
func column(rows []Row, key string) []float64 {
	var out []float64
	for _, r := range rows {
		if v, ok := Number(r[key]); ok {
			out = append(out, v)
		}
	}
	return out
}

// isNumericColumn reports whether every present value of key is a native number.
// Strings do not count even when parseable, so "N/A" style columns drop out.
func isNumericColumn(rows []Row, key string) bool {
	seen := false
	for _, r := range rows {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		if _, isString := v.(string); isString {
			return false
		}
		if _, numeric := Number(v); !numeric {
			return false
		}
		seen = true
	}
	return seen
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation; fewer than two values yield 0
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// quantile uses linear interpolation between closest ranks
func quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func minMax(xs []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

// pctChange returns successive relative changes, skipping zero bases
func pctChange(xs []float64) []float64 {
	var out []float64
	for i := 1; i < len(xs); i++ {
		if xs[i-1] == 0 {
			continue
		}
		out = append(out, (xs[i]-xs[i-1])/xs[i-1])
	}
	return out
}

// pearson computes the correlation of x and y over indices where both are present
func pearson(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}
	mx, my := mean(x), mean(y)
	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	return sxy / math.Sqrt(sxx*syy), true
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
