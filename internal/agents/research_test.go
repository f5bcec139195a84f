package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/collector"
)

func sampleResearch() *collector.Research {
	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &collector.Research{
		Topic:        "Tesla stock performance",
		SourcesUsed:  []string{"web_search", "wikipedia", "news", "market_data", "detailed_content"},
		TotalSources: 5,
		CompletedAt:  completed,
		Findings: collector.Findings{
			WebSearch: []collector.WebResult{
				{Title: "Tesla Q3", URL: "https://example.com/q3", Snippet: "Deliveries rose"},
				{Title: "", URL: "https://example.com/x", Snippet: "No title here"},
			},
			Wikipedia: &collector.WikiSummary{Title: "Tesla, Inc.", Summary: "Tesla is an American electric vehicle company."},
			News: []collector.NewsArticle{
				{Title: "Tesla rallies", Summary: "Shares up"},
				{Title: "Tesla recall", Summary: "Software fix"},
				{Title: "Tesla robotaxi", Summary: "Event"},
				{Title: "Tesla fourth", Summary: "Ignored"},
			},
			MarketData: []collector.Quote{
				teslaQuote(),
				{Symbol: "AAPL", CurrentPrice: price(190.25), PriceChange30d: -2.34, CompanyName: "Apple Inc."},
				{Symbol: "BAD", Error: "no data"},
			},
			DetailedContent: []collector.PageContent{
				{URL: "https://example.com/q3", Title: "Q3 letter", Content: "Full text"},
				{URL: "https://example.com/x", Error: "timeout"},
			},
		},
	}
}

func TestNormalizeFindings(t *testing.T) {
	f := NormalizeFindings(sampleResearch())

	assert.Equal(t, "Wikipedia Overview: Tesla is an American electric vehicle company....", f.Overview)
	assert.Equal(t, []string{
		"Web: Tesla Q3 - Deliveries rose...",
		"Web: Unknown - No title here...",
		"Wikipedia: Tesla, Inc. - Tesla is an American electric vehicle company....",
		"News: Tesla rallies - Shares up...",
		"News: Tesla recall - Software fix...",
		"News: Tesla robotaxi - Event...",
		"Market: TSLA 📈 $250.0 (+5.0% 30d)",
		"Market: Apple Inc. 📉 $190.25 (-2.3% 30d)",
		"Content: Q3 letter - Full text...",
	}, f.KeyFindings)

	require.NotNil(t, f.NewsSummary)
	assert.Equal(t, "Recent news: Tesla rallies, Tesla recall, Tesla robotaxi", *f.NewsSummary)
	require.Len(t, f.MarketData, 3)
	assert.Equal(t, "TSLA", f.MarketData[0].Symbol)
	assert.Len(t, f.WebInsights, 2)
	assert.Equal(t, "https://example.com/q3", f.WebInsights[0].URL)
	assert.Contains(t, f.DetailedSources, "scraped_content")
	assert.Contains(t, f.DetailedSources, "market_data")
	assert.Equal(t, "2026-03-01T12:00:00Z", f.ResearchTimestamp)
	assert.Equal(t, []string{"web_search", "wikipedia", "news", "market_data", "detailed_content"}, f.DataSources)
}

func TestNormalizeFindingsIsDeterministic(t *testing.T) {
	r := sampleResearch()
	assert.Equal(t, NormalizeFindings(r), NormalizeFindings(r))
	assert.Equal(t, asMap(NormalizeFindings(r)), asMap(NormalizeFindings(r)))
}

func TestNormalizeFindingsEmpty(t *testing.T) {
	f := NormalizeFindings(&collector.Research{TotalSources: 0})
	assert.Equal(t, "Research completed using 0 real data sources", f.Overview)
	assert.Empty(t, f.KeyFindings)
	assert.Nil(t, f.MarketData)
	assert.Nil(t, f.NewsSummary)

	m := asMap(f)
	assert.Nil(t, m["market_data"])
	assert.Nil(t, m["news_summary"])
	assert.Equal(t, []any{}, m["key_findings"])

	assert.NotPanics(t, func() { NormalizeFindings(nil) })
}

func TestMarketFindingFlatChange(t *testing.T) {
	assert.Equal(t, "Market: IBM ➡️ $N/A (+0.0% 30d)", marketFinding(collector.Quote{Symbol: "IBM"}))
}

func TestResearchAgentExecute(t *testing.T) {
	sink := &recordingSink{}
	c := &collector.StaticCollector{Findings: collector.Findings{MarketData: []collector.Quote{teslaQuote()}}}
	a := NewResearchAgent(c, zaptest.NewLogger(t), sink)
	a.SetTaskID("t-1")

	res := a.Execute(context.Background(), Input{
		"topic":     "Tesla stock performance",
		"questions": []string{"What is Tesla's current stock price?"},
	})

	require.Equal(t, StatusSuccess, res["status"])
	assert.Equal(t, ResearchAgentName, res["agent"])
	assert.Equal(t, "Tesla stock performance", res["topic"])

	findings := res["research_findings"].(map[string]any)
	market := findings["market_data"].([]any)
	require.Len(t, market, 1)
	assert.Equal(t, "TSLA", market[0].(map[string]any)["symbol"])

	var hasSymbol bool
	for _, kf := range findings["key_findings"].([]any) {
		if strings.Contains(kf.(string), "TSLA") {
			hasSymbol = true
		}
	}
	assert.True(t, hasSymbol)

	require.Len(t, sink.entries, 2)
	assert.Equal(t, "Starting research", sink.entries[0].Action)
	assert.Equal(t, "Research completed", sink.entries[1].Action)
	assert.Equal(t, "t-1", sink.entries[1].TaskID)
	assert.Contains(t, a.Context(), "Tesla stock performance")
}

func TestResearchAgentCollectorError(t *testing.T) {
	a := NewResearchAgent(&collector.StaticCollector{Err: errors.New("all sources unreachable")}, zaptest.NewLogger(t), nil)
	res := a.Execute(context.Background(), Input{"topic": "x"})

	assert.Equal(t, StatusError, res["status"])
	assert.Equal(t, "all sources unreachable", res["error"])
	assert.Equal(t, ResearchAgentName, res["agent"])

	trail := a.AuditTrail()
	require.Len(t, trail, 2)
	assert.Equal(t, "Research failed", trail[1].Action)
}

func TestResearchAgentWithoutCollector(t *testing.T) {
	a := NewResearchAgent(nil, zaptest.NewLogger(t), nil)
	res := a.Execute(context.Background(), Input{"topic": "x"})
	assert.Equal(t, StatusError, res["status"])
}

type emptyCollector struct{}

func (emptyCollector) ComprehensiveResearch(context.Context, string, []string) (*collector.Research, error) {
	return nil, nil
}

func TestResearchAgentNilResearch(t *testing.T) {
	a := NewResearchAgent(emptyCollector{}, zaptest.NewLogger(t), nil)

	var res Result
	require.NotPanics(t, func() { res = a.Execute(context.Background(), Input{"topic": "x"}) })
	assert.Equal(t, StatusError, res["status"])
	assert.Equal(t, "collector returned no research", res["error"])
}
