package agents

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/collector"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/util"
)

const (
	ResearchAgentName        = "ResearchAgent"
	researchAgentDescription = "Specializes in researching topics and gathering information from web sources, news, and market data."
)

// ResearchAgent collects multi-source data for a topic and normalizes it into findings
type ResearchAgent struct {
	*Base
	collector collector.Collector
}

func NewResearchAgent(c collector.Collector, logger *zap.Logger, sink AuditSink) *ResearchAgent {
	return &ResearchAgent{
		Base:      NewBase(ResearchAgentName, researchAgentDescription, logger, sink),
		collector: c,
	}
}

func (a *ResearchAgent) Execute(ctx context.Context, in Input) Result {
	topic := stringValue(in, "topic", "")
	questions := stringSlice(in, "questions")

	a.LogAction(ctx, "Starting research", "Researching topic: "+topic, map[string]any{
		"topic":     topic,
		"questions": questions,
	})

	if a.collector == nil {
		return a.fail(ctx, errors.New("no data collector configured"))
	}

	research, err := a.collector.ComprehensiveResearch(ctx, topic, questions)
	if err != nil {
		return a.fail(ctx, err)
	}
	if research == nil {
		return a.fail(ctx, errors.New("collector returned no research"))
	}

	findings := NormalizeFindings(research)

	a.LogAction(ctx, "Research completed",
		fmt.Sprintf("Gathered information from %d sources on %s", len(research.SourcesUsed), topic),
		map[string]any{
			"sources_used":   research.SourcesUsed,
			"total_sources":  research.TotalSources,
			"findings_count": len(findings.KeyFindings),
		})

	a.Remember(map[string]any{
		"topic":    topic,
		"overview": findings.Overview,
	})

	return Result{
		"status":            StatusSuccess,
		"topic":             topic,
		"research_findings": asMap(findings),
		"agent":             a.Name(),
	}
}

func (a *ResearchAgent) fail(ctx context.Context, err error) Result {
	a.logger.Error("Research failed", zap.String("task_id", a.TaskID()), zap.Error(err))
	a.LogAction(ctx, "Research failed", "Error occurred: "+err.Error(), map[string]any{"error": err.Error()})
	return a.errorResult(err)
}

// Findings is the normalized research output consumed by the later stages
type Findings struct {
	Overview          string            `json:"overview"`
	KeyFindings       []string          `json:"key_findings"`
	DetailedSources   map[string]any    `json:"detailed_sources"`
	MarketData        []collector.Quote `json:"market_data"`
	NewsSummary       *string           `json:"news_summary"`
	WebInsights       []WebInsight      `json:"web_insights"`
	DataSources       []string          `json:"data_sources"`
	ResearchTimestamp string            `json:"research_timestamp"`
}

type WebInsight struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

const (
	maxWebFindings     = 5
	maxNewsFindings    = 3
	maxContentFindings = 2
)

// NormalizeFindings turns raw collector output into Findings. It is pure: the
// same research always yields the same findings.
func NormalizeFindings(research *collector.Research) Findings {
	if research == nil {
		research = &collector.Research{}
	}
	f := Findings{
		Overview:        fmt.Sprintf("Research completed using %d real data sources", research.TotalSources),
		KeyFindings:     []string{},
		DetailedSources: map[string]any{},
		WebInsights:     []WebInsight{},
		DataSources:     append([]string{}, research.SourcesUsed...),
	}
	if !research.CompletedAt.IsZero() {
		f.ResearchTimestamp = research.CompletedAt.UTC().Format(time.RFC3339)
	}

	raw := research.Findings

	if len(raw.WebSearch) > 0 {
		f.DetailedSources[collector.SourceWebSearch] = raw.WebSearch
		for _, r := range head(raw.WebSearch, maxWebFindings) {
			f.KeyFindings = append(f.KeyFindings,
				fmt.Sprintf("Web: %s - %s...", orUnknown(r.Title), util.Head(r.Snippet, 100)))
			f.WebInsights = append(f.WebInsights, WebInsight{Title: r.Title, URL: r.URL, Summary: r.Snippet})
		}
	}

	if w := raw.Wikipedia; w != nil {
		f.DetailedSources[collector.SourceWikipedia] = w
		if w.Summary != "" {
			f.KeyFindings = append(f.KeyFindings,
				fmt.Sprintf("Wikipedia: %s - %s...", w.Title, util.Head(w.Summary, 150)))
			f.Overview = fmt.Sprintf("Wikipedia Overview: %s...", util.Head(w.Summary, 300))
		}
	}

	if len(raw.News) > 0 {
		f.DetailedSources[collector.SourceNews] = raw.News
		top := head(raw.News, maxNewsFindings)
		titles := make([]string, 0, len(top))
		for _, n := range top {
			titles = append(titles, n.Title)
			f.KeyFindings = append(f.KeyFindings,
				fmt.Sprintf("News: %s - %s...", n.Title, util.Head(n.Summary, 100)))
		}
		summary := "Recent news: " + strings.Join(titles, ", ")
		f.NewsSummary = &summary
	}

	if len(raw.MarketData) > 0 {
		f.DetailedSources[collector.SourceMarketData] = raw.MarketData
		f.MarketData = raw.MarketData
		for _, q := range raw.MarketData {
			if q.Error != "" {
				continue
			}
			f.KeyFindings = append(f.KeyFindings, marketFinding(q))
		}
	}

	if len(raw.DetailedContent) > 0 {
		f.DetailedSources["scraped_content"] = raw.DetailedContent
		for _, c := range head(raw.DetailedContent, maxContentFindings) {
			if c.Error != "" {
				continue
			}
			f.KeyFindings = append(f.KeyFindings,
				fmt.Sprintf("Content: %s - %s...", orUnknown(c.Title), util.Head(c.Content, 150)))
		}
	}

	return f
}

func marketFinding(q collector.Quote) string {
	name := q.CompanyName
	if name == "" {
		name = q.Symbol
	}
	arrow := "➡️"
	switch {
	case q.PriceChange30d > 0:
		arrow = "📈"
	case q.PriceChange30d < 0:
		arrow = "📉"
	}
	price := "N/A"
	if q.CurrentPrice != nil {
		price = formatPrice(*q.CurrentPrice)
	}
	return fmt.Sprintf("Market: %s %s $%s (%+.1f%% 30d)", name, arrow, price, q.PriceChange30d)
}

// formatPrice keeps at least one decimal so whole prices read as 250.0
func formatPrice(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
