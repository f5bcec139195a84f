package agents

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/analytics"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/collector"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/llm"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/templates"
)

func marketFindings() map[string]any {
	return asMap(NormalizeFindings(&collector.Research{
		TotalSources: 1,
		SourcesUsed:  []string{"market_data"},
		Findings:     collector.Findings{MarketData: marketSample()},
	}))
}

func fallbackPhrases() templates.AnalysisFallback {
	return templates.Default().Fallback().Analysis
}

func decodeDoc(t *testing.T, s string) analysisDoc {
	t.Helper()
	var doc analysisDoc
	require.NoError(t, json.Unmarshal([]byte(s), &doc))
	return doc
}

func TestAnalysisAgentUsesLLMJSON(t *testing.T) {
	client := replyLLM(`Sure! {"patterns": ["p1"], "insights": ["i1", "i2"], "key_findings": "growth"} hope this helps`)
	a := NewAnalysisAgent(client, nil, nil, zaptest.NewLogger(t), nil)

	res := a.Execute(context.Background(), Input{"research_findings": marketFindings()})

	require.Equal(t, StatusSuccess, res["status"])
	analysis := res["analysis_results"].(map[string]any)
	assert.Equal(t, []any{"p1"}, analysis["patterns"])
	assert.Equal(t, GenerationLLM, res["generation"])

	insights := res["insights"].([]Insight)
	require.Len(t, insights, 2)
	assert.Equal(t, Insight{Type: "insights", Description: `["i1","i2"]`, Importance: "high"}, insights[0])
	assert.Equal(t, Insight{Type: "key_findings", Description: "growth", Importance: "high"}, insights[1])
	assert.Equal(t, []string{
		`Based on insights: Consider ["i1","i2"]`,
		"Based on key_findings: Consider growth",
	}, res["recommendations"])

	require.Len(t, client.opts, 1)
	assert.Equal(t, 750, client.opts[0].MaxTokens)
	assert.Contains(t, client.prompts[0], "Analyze this research data and provide real insights:")
	assert.Contains(t, client.prompts[0], "You are an expert data analyst.")
}

func TestAnalysisAgentFallsBackWhenLLMFails(t *testing.T) {
	a := NewAnalysisAgent(failingLLM(), nil, nil, zaptest.NewLogger(t), nil)

	res := a.Execute(context.Background(), Input{"research_findings": marketFindings()})

	require.Equal(t, StatusSuccess, res["status"])
	analysis := res["analysis_results"].(map[string]any)
	patterns := analysis["patterns"].([]any)
	require.NotEmpty(t, patterns)
	assert.Contains(t, patterns[0], "Stock price analysis: Current price $250.0")
	assert.Equal(t, GenerationFallback, res["generation"])

	for _, key := range []string{"statistical_analysis", "predictive_analysis", "custom_algorithm_results"} {
		assert.NotContains(t, res[key], "error", key)
	}
	custom := res["custom_algorithm_results"].(analytics.Result)
	assert.Contains(t, custom, "moving_average")
}

func TestAnalysisAgentWithoutLLM(t *testing.T) {
	a := NewAnalysisAgent(nil, nil, nil, zaptest.NewLogger(t), nil)
	res := a.Execute(context.Background(), Input{})

	require.Equal(t, StatusSuccess, res["status"])
	analysis := res["analysis_results"].(map[string]any)
	assert.Equal(t, []any{"Real data analysis completed"}, analysis["patterns"])
	assert.Equal(t, GenerationFallback, res["generation"])
	assert.Equal(t, map[string]any{"error": "No data available for custom algorithms"}, res["custom_algorithm_results"])
}

func TestAnalysisAgentIsolatesSubSteps(t *testing.T) {
	a := NewAnalysisAgent(failingLLM(), nil, nil, zaptest.NewLogger(t), nil)
	a.statistical = func([]analytics.Row) analytics.Result { panic("singular matrix") }

	res := a.Execute(context.Background(), Input{
		"research_findings": marketFindings(),
		"custom_algorithms": []any{"volatility_calculation", "unknown_algo"},
	})

	require.Equal(t, StatusSuccess, res["status"])
	stat := res["statistical_analysis"].(analytics.Result)
	assert.Equal(t, "Statistical analysis failed: singular matrix", stat["error"])

	pred := res["predictive_analysis"].(analytics.Result)
	assert.NotContains(t, pred, "error")
	assert.Contains(t, pred, "market_forecast")

	custom := res["custom_algorithm_results"].(analytics.Result)
	assert.NotContains(t, custom, "error")
	assert.Equal(t, true, custom["volatility_calculation"].(analytics.Result)["success"])
	assert.Equal(t, "Algorithm 'unknown_algo' not found", custom["unknown_algo"].(analytics.Result)["error"])
}

func TestAnalysisAgentMemoryFeedsNextPrompt(t *testing.T) {
	client := replyLLM(`{"insights": ["first"]}`)
	a := NewAnalysisAgent(client, nil, nil, zaptest.NewLogger(t), nil)

	a.Execute(context.Background(), Input{"analysis_type": "trend"})
	assert.Contains(t, a.Context(), `"analysis_type": "trend"`)

	trail := a.AuditTrail()
	require.Len(t, trail, 2)
	assert.Equal(t, "Analyzing data with trend approach", trail[0].Reasoning)
	assert.Equal(t, "Generated 1 key insights", trail[1].Reasoning)
}

func TestExtractAnalysisJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, extractAnalysisJSON("text {\"a\": 1} more"))

	text := ""
	for i := 0; i < 60; i++ {
		text += "abcdefghij"
	}
	doc := decodeDoc(t, extractAnalysisJSON(text))
	assert.Equal(t, "Analysis pattern: "+text[:100]+"...", doc.Patterns[0])
	assert.Equal(t, "Key insight: "+text[100:300]+"...", doc.Insights[0])
	assert.Equal(t, "Recommendation: "+text[300:500]+"...", doc.Recommendations[0])

	doc = decodeDoc(t, extractAnalysisJSON("{not json}"))
	assert.Equal(t, "Analysis pattern: {not json}...", doc.Patterns[0])
	assert.Equal(t, "Key insight: ...", doc.Insights[0])
}

func TestFallbackAnalysis(t *testing.T) {
	phrases := fallbackPhrases()

	t.Run("positive trend", func(t *testing.T) {
		doc := decodeDoc(t, FallbackAnalysis(`"current_price": 250 Market: Tesla 📈 $1,250.5 (+5.0% 30d) market_cap`, phrases))
		assert.Equal(t, []string{
			"Stock price analysis: Current price $1,250.5",
			"Positive trend: +5.0% price increase",
		}, doc.Patterns)
		assert.Equal(t, []string{
			"Strong bullish momentum with +5.0% gains",
			"Tesla showing significant market activity and investor interest",
			"Large market capitalization indicates established market position",
		}, doc.Insights)
		assert.Len(t, doc.Recommendations, 3)
	})

	t.Run("negative trend", func(t *testing.T) {
		doc := decodeDoc(t, FallbackAnalysis("current_price $10 -3.2%", phrases))
		assert.Equal(t, "Negative trend: -3.2% price decline", doc.Patterns[1])
		assert.Equal(t, []string{"Bearish pressure with -3.2% losses"}, doc.Insights)
		assert.Equal(t, []string{"Watch for potential support levels"}, doc.Recommendations)
	})

	t.Run("price text ignored without current_price", func(t *testing.T) {
		doc := decodeDoc(t, FallbackAnalysis("$100 +4%", phrases))
		assert.Equal(t, []string{"Real data analysis completed"}, doc.Patterns)
		assert.Equal(t, []string{"Analysis based on available market data and web research"}, doc.Insights)
		assert.Equal(t, []string{"Continue monitoring real-time data for investment decisions"}, doc.Recommendations)
	})

	t.Run("never fails on empty input", func(t *testing.T) {
		out := FallbackAnalysis("", templates.AnalysisFallback{})
		assert.True(t, json.Valid([]byte(out)))
	})
}

func TestParseAnalysis(t *testing.T) {
	assert.Equal(t, map[string]any{"x": 1.0}, ParseAnalysis(`{"x": 1}`))
	assert.Equal(t, map[string]any{
		"raw_analysis": "plain text",
		"patterns":     []any{},
		"insights":     []any{},
	}, ParseAnalysis("plain text"))
	assert.Equal(t, "[1,2]", ParseAnalysis("[1,2]")["raw_analysis"])
}

func TestExtractInsightsAndRecommendations(t *testing.T) {
	analysis := map[string]any{
		"Insights":       []any{"a"},
		"findings_extra": "b",
		"patterns":       []any{"ignored"},
	}
	insights := ExtractInsights(analysis)
	require.Len(t, insights, 2)
	assert.Equal(t, "Insights", insights[0].Type)
	assert.Equal(t, "findings_extra", insights[1].Type)

	many := make([]Insight, 8)
	for i := range many {
		many[i] = Insight{Type: "t", Description: "d"}
	}
	recs := Recommendations(many)
	assert.Len(t, recs, 5)
	assert.Equal(t, "Based on t: Consider d", recs[0])
	assert.Empty(t, Recommendations(nil))
}

func TestMarketRows(t *testing.T) {
	rows := marketRows([]collector.Quote{teslaQuote()})
	require.Len(t, rows, 1)
	assert.Equal(t, "TSLA", rows[0]["symbol"])
	v, ok := analytics.Number(rows[0]["current_price"])
	assert.True(t, ok)
	assert.Equal(t, 250.0, v)

	assert.Nil(t, marketRows(nil))
	assert.Len(t, marketRows([]any{map[string]any{"symbol": "X"}, "junk"}), 1)
}

var _ llm.Client = (*fakeLLM)(nil)
