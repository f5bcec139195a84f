package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quotes() []Row {
	return []Row{
		{"symbol": "TSLA", "company_name": "Tesla, Inc.", "current_price": 250.0, "price_change_30d": 12.0, "market_cap": "N/A", "sector": "Auto"},
		{"symbol": "AAPL", "company_name": "Apple Inc.", "current_price": 190.0, "price_change_30d": -3.0, "market_cap": "N/A", "sector": "Tech"},
		{"symbol": "MSFT", "company_name": "Microsoft", "current_price": 410.0, "price_change_30d": 6.0, "market_cap": "N/A", "sector": "Tech"},
	}
}

func TestNumber(t *testing.T) {
	v, ok := Number(3)
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = Number("2.5")
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)

	_, ok = Number("N/A")
	assert.False(t, ok)
	_, ok = Number(nil)
	assert.False(t, ok)
}

func TestDescriptiveStatistics(t *testing.T) {
	res := DescriptiveStatistics(quotes(), MarketColumns)
	stats := res["descriptive_stats"].(map[string]any)

	price := stats["current_price"].(map[string]any)
	assert.Equal(t, 3, price["count"])
	assert.InDelta(t, 283.333, price["mean"].(float64), 0.001)
	assert.Equal(t, 250.0, price["median"])
	assert.Equal(t, 190.0, price["min"])
	assert.Equal(t, 410.0, price["max"])
	assert.Equal(t, 220.0, price["q25"])
	assert.Equal(t, 330.0, price["q75"])

	_, hasCap := stats["market_cap"]
	assert.False(t, hasCap, "non-numeric column is skipped")

	assert.Contains(t, DescriptiveStatistics(nil, nil), "error")
}

func TestCorrelations(t *testing.T) {
	rows := []Row{
		{"a": 1.0, "b": 2.0, "c": 5.0, "name": "x"},
		{"a": 2.0, "b": 4.1, "c": 1.0, "name": "y"},
		{"a": 3.0, "b": 6.0, "c": 4.0, "name": "z"},
	}
	res := Correlations(rows, nil)
	assert.Equal(t, []string{"a", "b", "c"}, res["variables_analyzed"])

	strong := res["strong_correlations"].([]map[string]any)
	require.Len(t, strong, 1)
	assert.Equal(t, "a", strong[0]["variable1"])
	assert.Equal(t, "b", strong[0]["variable2"])
	assert.Equal(t, "strong", strong[0]["strength"])

	res = Correlations(quotes(), MarketColumns)
	assert.Equal(t, []string{"current_price", "price_change_30d"}, res["variables_analyzed"])

	assert.Equal(t, "Need at least 2 numeric variables for correlation",
		Correlations([]Row{{"a": 1.0}}, nil)["error"])
}

func TestMarketAnalysis(t *testing.T) {
	res := MarketAnalysis(quotes())

	overview := res["market_overview"].(map[string]any)
	assert.Equal(t, 3, overview["total_stocks_analyzed"])
	assert.InDelta(t, 5.0, overview["average_change_30d"].(float64), 1e-9)
	assert.Equal(t, 2, overview["positive_stocks"])
	assert.Equal(t, 1, overview["negative_stocks"])
	assert.Equal(t, "bullish", overview["market_sentiment"])

	top := res["top_performers"].(map[string]any)
	gainers := top["gainers"].([]map[string]any)
	losers := top["losers"].([]map[string]any)
	assert.Equal(t, "Tesla, Inc.", gainers[0]["company_name"])
	assert.Equal(t, "Apple Inc.", losers[0]["company_name"])

	vol := res["volatility"].(map[string]any)
	assert.Equal(t, "medium", vol["volatility_level"])

	assert.Equal(t, "No valid market data found", MarketAnalysis([]Row{{"symbol": "X"}})["error"])
}

func TestStatisticalAnalysisInsights(t *testing.T) {
	res := StatisticalAnalysis(quotes())
	insights := res["insights"].([]string)
	assert.Contains(t, insights, "Market sentiment is bullish with average 5.0% change")
	assert.Contains(t, res, "correlation_analysis")
	assert.Contains(t, res, "descriptive_statistics")

	assert.Contains(t, StatisticalAnalysis(nil), "error")
}

func TestMarketForecast(t *testing.T) {
	res := MarketForecast(quotes(), 3)
	f := res["market_forecast"].(map[string]any)
	prices := f["forecasted_prices"].([]float64)
	require.Len(t, prices, 3)

	avg := (250.0 + 190.0 + 410.0) / 3
	assert.InDelta(t, avg*1.05, prices[0], 1e-9)
	assert.InDelta(t, avg*1.05*1.05*1.05, prices[2], 1e-9)
	assert.Equal(t, []string{"Month 1", "Month 2", "Month 3"}, f["periods"])

	indicators := res["market_indicators"].(map[string]any)
	assert.Equal(t, "volatile", indicators["market_stability"])
	assert.InDelta(t, 2.0/3.0, indicators["positive_sentiment_ratio"].(float64), 1e-9)

	confidence := res["confidence"].(map[string]any)
	assert.Equal(t, "low", confidence["data_quality"])
	assert.Equal(t, "high", confidence["forecast_reliability"])

	assert.Equal(t, []string{"Market expected to grow at 5.0% rate"}, ForecastInsights(res))

	short := MarketForecast(quotes()[:2], 3)
	assert.Equal(t, "Insufficient market data for forecasting", short["error"])
	assert.Empty(t, ForecastInsights(short))
}

func TestForecastInsightsDeclineAndVolatility(t *testing.T) {
	res := Result{
		"market_forecast":   map[string]any{"expected_change_rate": -4.25},
		"market_indicators": map[string]any{"volatility": 15.0},
	}
	assert.Equal(t, []string{
		"Market expected to decline at 4.2% rate",
		"High market volatility detected - forecasts have higher uncertainty",
	}, ForecastInsights(res))
}

func TestMovingAverage(t *testing.T) {
	var rows []Row
	for _, v := range []float64{1, 2, 3, 4, 5, 6} {
		rows = append(rows, Row{"current_price": v})
	}
	res, err := MovingAverage(rows, Params{})
	require.NoError(t, err)
	avg := res["moving_average"].([]any)
	assert.Equal(t, []any{nil, nil, nil, nil, 3.0, 4.0}, avg)
	assert.Equal(t, 5, res["window"])

	_, err = MovingAverage(rows, Params{ValueColumn: "value"})
	assert.EqualError(t, err, "Column 'value' not found")
}

func TestVolatility(t *testing.T) {
	rows := []Row{{"current_price": 100.0}, {"current_price": 110.0}, {"current_price": 99.0}}
	res, err := Volatility(rows, Params{})
	require.NoError(t, err)
	assert.Equal(t, 2, res["data_points"])
	assert.InDelta(t, 0.0, res["mean_return"].(float64), 1e-9)
	assert.Greater(t, res["volatility"].(float64), 0.0)
}

func TestMomentum(t *testing.T) {
	var rows []Row
	for i := 1; i <= 20; i++ {
		rows = append(rows, Row{"current_price": float64(i)})
	}
	res, err := Momentum(rows, Params{})
	require.NoError(t, err)
	assert.InDelta(t, (20.0-16.0)/16.0*100, res["momentum_5d"].(float64), 1e-9)
	assert.InDelta(t, (20.0-1.0)/1.0*100, res["momentum_20d"].(float64), 1e-9)
	assert.Equal(t, 100.0, res["rsi"], "only gains")

	res, err = Momentum(rows[:3], Params{})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSectorAnalysis(t *testing.T) {
	res, err := SectorAnalysis(quotes(), Params{})
	require.NoError(t, err)
	assert.Equal(t, 2, res["total_sectors"])

	stats := res["sector_statistics"].(map[string]any)
	tech := stats["Tech"].(map[string]any)
	assert.Equal(t, 2, tech["count"])
	assert.Equal(t, 300.0, tech["mean"])

	perf := res["sector_performance"].(map[string]any)
	assert.InDelta(t, (410.0-190.0)/190.0*100, perf["Tech"].(float64), 1e-9)
	assert.NotContains(t, perf, "Auto")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Len(t, r.List(), 4)
	assert.Equal(t, "momentum_analysis", r.List()[0].Name)

	res := r.Execute("moving_average", quotes(), Params{Window: 2})
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "moving_average", res["algorithm_name"])
	assert.NotEmpty(t, res["execution_time"])

	missing := r.Execute("nope", quotes(), Params{})
	assert.Equal(t, false, missing["success"])
	assert.Equal(t, "Algorithm 'nope' not found", missing["error"])

	r.Register("boom", "panics", func([]Row, Params) (Result, error) { panic("bad input") })
	boom := r.Execute("boom", quotes(), Params{})
	assert.Equal(t, false, boom["success"])
}

func TestRunAlgorithms(t *testing.T) {
	r := NewRegistry()

	res := r.RunAlgorithms(quotes(), nil)
	assert.Len(t, res, 3)
	for _, name := range DefaultAlgorithms {
		assert.Equal(t, true, res[name].(Result)["success"], name)
	}

	res = r.RunAlgorithms(quotes(), []string{"sector_analysis", "unknown"})
	assert.Equal(t, Result{"error": "Algorithm 'unknown' not found"}, res["unknown"])

	assert.Equal(t, Result{"error": "No data available for custom algorithms"}, r.RunAlgorithms(nil, nil))
}

func regressionRows() []Row {
	// current_price = 100 + 2*price_change_30d + market_cap/1e9
	changes := []float64{1, 2, 3, 4, 5, 6}
	caps := []float64{10e9, 8e9, 15e9, 12e9, 20e9, 18e9}
	rows := make([]Row, len(changes))
	for i := range changes {
		rows[i] = Row{
			"current_price":    100 + 2*changes[i] + caps[i]/1e9,
			"price_change_30d": changes[i],
			"market_cap":       caps[i],
		}
	}
	return rows
}

func TestCorrelationPrediction(t *testing.T) {
	res := CorrelationPrediction(regressionRows(), "current_price", []string{"price_change_30d", "market_cap"}, 3)
	require.NotContains(t, res, "error")

	perf := res["model_performance"].(map[string]any)
	assert.InDelta(t, 1.0, perf["r_squared"], 1e-9)
	assert.InDelta(t, 0.0, perf["mean_squared_error"], 1e-9)

	preds := res["predictions"].(map[string]any)
	values := preds["values"].([]float64)
	require.Len(t, values, 3)
	assert.InDelta(t, 130.0, values[0], 0.01, "first period uses the last observed predictors")
	assert.Greater(t, values[1], values[0])
	assert.Equal(t, []string{"Period 1", "Period 2", "Period 3"}, preds["periods"])

	strongest := res["strongest_predictors"].([]map[string]any)
	require.Len(t, strongest, 2)
	assert.GreaterOrEqual(t,
		math.Abs(strongest[0]["correlation"].(float64)),
		math.Abs(strongest[1]["correlation"].(float64)))
}

func TestCorrelationPredictionErrors(t *testing.T) {
	preds := []string{"price_change_30d", "market_cap"}

	assert.Equal(t, "Insufficient data for correlation-based prediction",
		CorrelationPrediction(regressionRows()[:4], "current_price", preds, 3)["error"])
	assert.Equal(t, "Missing variables: [volume]",
		CorrelationPrediction(regressionRows(), "current_price", []string{"volume"}, 3)["error"])

	// market_cap is "N/A" in every quote
	assert.Equal(t, "Insufficient valid data after cleaning",
		CorrelationPrediction(append(quotes(), quotes()...), "current_price", preds, 3)["error"])
}

func TestPredictiveAnalysisAddsCorrelationPrediction(t *testing.T) {
	assert.NotContains(t, PredictiveAnalysis(quotes()), "correlation_prediction")

	res := PredictiveAnalysis(regressionRows())
	require.Contains(t, res, "correlation_prediction")
	assert.NotContains(t, res["correlation_prediction"], "error")
}
