package analytics

import (
	"fmt"
	"math"
)

// MarketForecast compounds the average 30 day change over the given number of periods
func MarketForecast(rows []Row, periods int) Result {
	if len(rows) == 0 {
		return errorResult("No market data provided")
	}
	if periods <= 0 {
		periods = 3
	}

	var prices, changes []float64
	for _, r := range rows {
		p, ok := Number(r["current_price"])
		if !ok {
			continue
		}
		c, _ := Number(r["price_change_30d"])
		prices = append(prices, p)
		changes = append(changes, c)
	}
	if len(prices) < 3 {
		return errorResult("Insufficient market data for forecasting")
	}

	avgPrice := mean(prices)
	avgChange := mean(changes)

	forecast := make([]float64, periods)
	labels := make([]string, periods)
	current := avgPrice
	for i := 0; i < periods; i++ {
		current *= 1 + avgChange/100
		forecast[i] = current
		labels[i] = fmt.Sprintf("Month %d", i+1)
	}

	volatility := stddev(changes)
	positive := 0
	for _, c := range changes {
		if c > 0 {
			positive++
		}
	}

	stability := "volatile"
	if volatility < 5 {
		stability = "stable"
	}
	quality := "low"
	switch {
	case len(prices) > 10:
		quality = "high"
	case len(prices) > 5:
		quality = "medium"
	}
	reliability := "medium"
	if volatility < 10 {
		reliability = "high"
	}

	return Result{
		"market_forecast": map[string]any{
			"forecasted_prices":     forecast,
			"periods":               labels,
			"current_average_price": avgPrice,
			"expected_change_rate":  avgChange,
		},
		"market_indicators": map[string]any{
			"volatility":               volatility,
			"positive_sentiment_ratio": float64(positive) / float64(len(prices)),
			"market_stability":         stability,
		},
		"confidence": map[string]any{
			"data_quality":         quality,
			"forecast_reliability": reliability,
		},
	}
}

// ForecastInsights describes a MarketForecast result
func ForecastInsights(forecast Result) []string {
	insights := []string{}
	market, ok := forecast["market_forecast"].(map[string]any)
	if !ok {
		return insights
	}
	rate, _ := Number(market["expected_change_rate"])
	if rate > 0 {
		insights = append(insights, fmt.Sprintf("Market expected to grow at %.1f%% rate", rate))
	} else {
		insights = append(insights, fmt.Sprintf("Market expected to decline at %.1f%% rate", math.Abs(rate)))
	}
	if indicators, ok := forecast["market_indicators"].(map[string]any); ok {
		if vol, _ := Number(indicators["volatility"]); vol > 10 {
			insights = append(insights, "High market volatility detected - forecasts have higher uncertainty")
		}
	}
	return insights
}

// PredictiveAnalysis runs the forecasting step over market rows
func PredictiveAnalysis(rows []Row) Result {
	if len(rows) == 0 {
		return errorResult("No market data available for predictive analysis")
	}
	forecast := MarketForecast(rows, 3)
	out := Result{
		"market_forecast": forecast,
		"insights":        ForecastInsights(forecast),
	}
	if len(rows) > minRegressionRows {
		out["correlation_prediction"] = CorrelationPrediction(rows, "current_price",
			[]string{"price_change_30d", "market_cap"}, 3)
	}
	return out
}
