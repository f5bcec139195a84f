package analytics

import (
	"fmt"
	"math"
	"sort"
)

// MarketColumns are the quote fields examined by the statistical step
var MarketColumns = []string{"current_price", "price_change_30d", "market_cap"}

// DescriptiveStatistics summarises each requested column. With no variables every
// numeric column is used.
func DescriptiveStatistics(rows []Row, variables []string) Result {
	if len(rows) == 0 {
		return errorResult("No data provided for descriptive statistics")
	}

	cols := variables
	if len(cols) == 0 {
		cols = numericColumns(rows)
	}

	stats := make(map[string]any)
	for _, col := range cols {
		values := column(rows, col)
		if len(values) == 0 {
			continue
		}
		lo, hi := minMax(values)
		stats[col] = map[string]any{
			"count":  len(values),
			"mean":   mean(values),
			"median": quantile(values, 0.5),
			"std":    stddev(values),
			"min":    lo,
			"max":    hi,
			"q25":    quantile(values, 0.25),
			"q75":    quantile(values, 0.75),
		}
	}
	if len(stats) == 0 {
		return errorResult("No numeric variables found")
	}
	return Result{"descriptive_stats": stats}
}

// Correlations computes the Pearson matrix over the numeric columns and lists pairs with |r| > 0.7
func Correlations(rows []Row, variables []string) Result {
	if len(rows) == 0 {
		return errorResult("No data provided for correlation analysis")
	}

	cols := numericColumns(rows)
	if len(variables) > 0 {
		allowed := make(map[string]bool, len(variables))
		for _, v := range variables {
			allowed[v] = true
		}
		filtered := cols[:0]
		for _, c := range cols {
			if allowed[c] {
				filtered = append(filtered, c)
			}
		}
		cols = filtered
	}
	if len(cols) < 2 {
		return errorResult("Need at least 2 numeric variables for correlation")
	}

	matrix := make(map[string]map[string]any, len(cols))
	for _, c := range cols {
		matrix[c] = make(map[string]any, len(cols))
	}
	var strong []map[string]any
	for i, a := range cols {
		matrix[a][a] = 1.0
		for _, b := range cols[i+1:] {
			x, y := pairedColumns(rows, a, b)
			r, ok := pearson(x, y)
			if !ok {
				matrix[a][b], matrix[b][a] = nil, nil
				continue
			}
			matrix[a][b], matrix[b][a] = r, r
			if math.Abs(r) > 0.7 {
				strength := "moderate"
				if math.Abs(r) > 0.8 {
					strength = "strong"
				}
				strong = append(strong, map[string]any{
					"variable1":   a,
					"variable2":   b,
					"correlation": r,
					"strength":    strength,
				})
			}
		}
	}

	return Result{
		"correlation_matrix":  matrix,
		"strong_correlations": strong,
		"variables_analyzed":  cols,
	}
}

// MarketAnalysis summarises sentiment, top movers and volatility across quotes
func MarketAnalysis(rows []Row) Result {
	if len(rows) == 0 {
		return errorResult("No market data provided")
	}

	type stock struct {
		name   any
		change float64
	}
	var stocks []stock
	for _, r := range rows {
		if _, ok := Number(r["current_price"]); !ok {
			continue
		}
		change, _ := Number(r["price_change_30d"])
		stocks = append(stocks, stock{name: r["company_name"], change: change})
	}
	if len(stocks) == 0 {
		return errorResult("No valid market data found")
	}

	changes := make([]float64, len(stocks))
	positive, negative := 0, 0
	for i, s := range stocks {
		changes[i] = s.change
		if s.change > 0 {
			positive++
		} else if s.change < 0 {
			negative++
		}
	}
	avg := mean(changes)
	sentiment := "bearish"
	if avg > 0 {
		sentiment = "bullish"
	}

	sorted := append([]stock(nil), stocks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].change > sorted[j].change })
	top := func(list []stock) []map[string]any {
		var out []map[string]any
		for i := 0; i < len(list) && i < 3; i++ {
			out = append(out, map[string]any{"company_name": list[i].name, "change_30d": list[i].change})
		}
		return out
	}
	gainers := top(sorted)
	reversed := make([]stock, len(sorted))
	for i := range sorted {
		reversed[i] = sorted[len(sorted)-1-i]
	}
	losers := top(reversed)

	sd := stddev(changes)
	level := "low"
	switch {
	case sd > 10:
		level = "high"
	case sd > 5:
		level = "medium"
	}

	return Result{
		"market_overview": map[string]any{
			"total_stocks_analyzed": len(stocks),
			"average_change_30d":    avg,
			"positive_stocks":       positive,
			"negative_stocks":       negative,
			"market_sentiment":      sentiment,
		},
		"top_performers": map[string]any{
			"gainers": gainers,
			"losers":  losers,
		},
		"volatility": map[string]any{
			"standard_deviation": sd,
			"volatility_level":   level,
		},
	}
}

// StatisticalInsights turns correlation and market results into sentences
func StatisticalInsights(results Result) []string {
	insights := []string{}

	if corr, ok := results["correlation_analysis"].(Result); ok {
		if strong, ok := corr["strong_correlations"].([]map[string]any); ok {
			for i := 0; i < len(strong) && i < 3; i++ {
				c := strong[i]
				r, _ := Number(c["correlation"])
				insights = append(insights, fmt.Sprintf("Strong %v correlation between %v and %v (r=%.2f)",
					c["strength"], c["variable1"], c["variable2"], r))
			}
		}
	}

	if market, ok := results["market_analysis"].(Result); ok {
		if overview, ok := market["market_overview"].(map[string]any); ok {
			avg, _ := Number(overview["average_change_30d"])
			insights = append(insights, fmt.Sprintf("Market sentiment is %v with average %.1f%% change",
				overview["market_sentiment"], avg))
		}
	}
	return insights
}

// StatisticalAnalysis runs the full statistical step over market rows
func StatisticalAnalysis(rows []Row) Result {
	if len(rows) == 0 {
		return errorResult("No market data available for statistical analysis")
	}

	results := Result{}
	if len(rows) > 1 {
		results["correlation_analysis"] = Correlations(rows, MarketColumns)
	}
	results["descriptive_statistics"] = DescriptiveStatistics(rows, MarketColumns)
	results["market_analysis"] = MarketAnalysis(rows)
	results["insights"] = StatisticalInsights(results)
	return results
}

func numericColumns(rows []Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	out := cols[:0]
	for _, c := range cols {
		if isNumericColumn(rows, c) {
			out = append(out, c)
		}
	}
	return out
}

func pairedColumns(rows []Row, a, b string) ([]float64, []float64) {
	var x, y []float64
	for _, r := range rows {
		va, okA := Number(r[a])
		vb, okB := Number(r[b])
		if okA && okB {
			x = append(x, va)
			y = append(y, vb)
		}
	}
	return x, y
}
