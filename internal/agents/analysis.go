package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/analytics"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/llm"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/metrics"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/templates"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/util"
)

const (
	AnalysisAgentName        = "AnalysisAgent"
	analysisAgentDescription = "Specializes in analyzing information and extracting actionable insights."

	defaultAnalysisType = "comprehensive"
	analysisMaxTokens   = 750
	analysisPromptHead  = 1000
	maxRecommendations  = 5
)

// AnalysisAgent extracts insights from research findings via the LLM, with a
// deterministic fallback, and runs the analytics sub-steps over market rows.
type AnalysisAgent struct {
	*Base
	llm        llm.Client
	templates  *templates.Templates
	algorithms *analytics.Registry

	statistical func([]analytics.Row) analytics.Result
	predictive  func([]analytics.Row) analytics.Result
}

func NewAnalysisAgent(client llm.Client, tpl *templates.Templates, algorithms *analytics.Registry, logger *zap.Logger, sink AuditSink) *AnalysisAgent {
	if tpl == nil {
		tpl = templates.Default()
	}
	if algorithms == nil {
		algorithms = analytics.NewRegistry()
	}
	return &AnalysisAgent{
		Base:        NewBase(AnalysisAgentName, analysisAgentDescription, logger, sink),
		llm:         client,
		templates:   tpl,
		algorithms:  algorithms,
		statistical: analytics.StatisticalAnalysis,
		predictive:  analytics.PredictiveAnalysis,
	}
}

func (a *AnalysisAgent) Execute(ctx context.Context, in Input) Result {
	findings := asMap(in["research_findings"])
	analysisType := stringValue(in, "analysis_type", defaultAnalysisType)
	data := indentJSON(findings)

	a.LogAction(ctx, "Starting analysis", fmt.Sprintf("Analyzing data with %s approach", analysisType),
		map[string]any{"data_size": len(data)})

	prompt, err := a.templates.Render(templates.AnalysisPrompt, templates.AnalysisData{
		Data:         data,
		AnalysisType: analysisType,
		Context:      a.Context(),
	})
	if err != nil {
		a.logger.Error("Analysis failed", zap.String("task_id", a.TaskID()), zap.Error(err))
		return a.errorResult(err)
	}

	raw, generation := a.generate(ctx, prompt)
	analysis := ParseAnalysis(raw)
	insights := ExtractInsights(analysis)

	a.LogAction(ctx, "Analysis completed", fmt.Sprintf("Generated %d key insights", len(insights)),
		map[string]any{"insights_count": len(insights), "generation": generation})

	a.Remember(map[string]any{
		"analysis_type": analysisType,
		"insights":      insights,
	})

	rows := marketRows(findings["market_data"])
	names := stringSlice(in, "custom_algorithms")
	statistical := a.isolate("statistical", func() analytics.Result { return a.statistical(rows) })
	predictive := a.isolate("predictive", func() analytics.Result { return a.predictive(rows) })
	custom := a.isolate("custom algorithm", func() analytics.Result { return a.algorithms.RunAlgorithms(rows, names) })

	return Result{
		"status":                   StatusSuccess,
		"analysis_results":         analysis,
		"statistical_analysis":     statistical,
		"predictive_analysis":      predictive,
		"custom_algorithm_results": custom,
		"insights":                 insights,
		"recommendations":          Recommendations(insights),
		"generation":               generation,
		"agent":                    a.Name(),
	}
}

// isolate runs one analytics sub-step so that a panic only affects its own key
func (a *AnalysisAgent) isolate(step string, fn func() analytics.Result) (res analytics.Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("Analysis sub-step failed",
				zap.String("task_id", a.TaskID()),
				zap.String("step", step),
				zap.Any("panic", r),
			)
			res = analytics.Result{"error": fmt.Sprintf("%s analysis failed: %v", util.TitleCase(step), r)}
		}
	}()
	res = fn()
	if res == nil {
		res = analytics.Result{}
	}
	return res
}

// generate asks the LLM for a JSON analysis and falls back to pattern matching
// over the prompt when every backend fails. The second value is GenerationLLM or GenerationFallback.
func (a *AnalysisAgent) generate(ctx context.Context, prompt string) (string, string) {
	focused, err := a.templates.Render(templates.AnalysisFocusedPrompt, templates.AnalysisData{
		Prompt: util.Head(prompt, analysisPromptHead),
	})
	if err == nil && a.llm != nil {
		var response string
		response, err = a.llm.Generate(ctx, focused, llm.Options{MaxTokens: analysisMaxTokens})
		if err == nil {
			return extractAnalysisJSON(response), GenerationLLM
		}
	}
	if a.llm == nil && err == nil {
		err = llm.ErrNoBackends
	}

	a.logger.Warn("LLM analysis failed, using fallback analysis",
		zap.String("task_id", a.TaskID()),
		zap.Error(err),
	)
	metrics.FallbackContent.WithLabelValues(a.Name(), "analysis").Inc()
	return FallbackAnalysis(prompt, a.templates.Fallback().Analysis), GenerationFallback
}

// extractAnalysisJSON keeps the outermost JSON object of an LLM response, or
// wraps free text into the patterns/insights/recommendations shape.
func extractAnalysisJSON(response string) string {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		candidate := response[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate
		}
	}
	return mustJSON(analysisDoc{
		Patterns:        []string{"Analysis pattern: " + util.Slice(response, 0, 100) + "..."},
		Insights:        []string{"Key insight: " + util.Slice(response, 100, 300) + "..."},
		Recommendations: []string{"Recommendation: " + util.Slice(response, 300, 500) + "..."},
	})
}

type analysisDoc struct {
	Patterns        []string `json:"patterns"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

var (
	priceRe  = regexp.MustCompile(`\$([0-9,]+\.?[0-9]*)`)
	changeRe = regexp.MustCompile(`([+-]?[0-9]+\.?[0-9]*%)`)
)

// FallbackAnalysis derives a JSON analysis from the prompt text alone. It never fails.
func FallbackAnalysis(prompt string, phrases templates.AnalysisFallback) string {
	var doc analysisDoc

	if strings.Contains(prompt, "current_price") {
		if m := priceRe.FindStringSubmatch(prompt); m != nil {
			doc.Patterns = append(doc.Patterns, fmt.Sprintf(phrases.Price, m[1]))
		}
		if m := changeRe.FindStringSubmatch(prompt); m != nil {
			change := m[1]
			trend := phrases.NegativeTrend
			if strings.Contains(change, "+") {
				trend = phrases.PositiveTrend
			}
			doc.Patterns = append(doc.Patterns, fmt.Sprintf(trend.Pattern, change))
			doc.Insights = append(doc.Insights, fmt.Sprintf(trend.Insight, change))
			doc.Recommendations = append(doc.Recommendations, trend.Recommendation)
		}
	}

	for _, e := range phrases.Entities {
		if strings.Contains(prompt, e.Match) {
			doc.Insights = append(doc.Insights, e.Insight)
			doc.Recommendations = append(doc.Recommendations, e.Recommendation)
		}
	}

	if len(doc.Insights) == 0 {
		doc.Insights = []string{phrases.DefaultInsight}
		doc.Recommendations = append(doc.Recommendations, phrases.DefaultRecommendation)
	}
	if len(doc.Patterns) == 0 {
		doc.Patterns = []string{phrases.DefaultPattern}
	}
	if doc.Recommendations == nil {
		doc.Recommendations = []string{}
	}
	return mustJSON(doc)
}

// ParseAnalysis decodes a JSON object, degrading to a raw wrapper otherwise
func ParseAnalysis(response string) map[string]any {
	var out map[string]any
	if err := json.Unmarshal([]byte(response), &out); err != nil || out == nil {
		return map[string]any{
			"raw_analysis": response,
			"patterns":     []any{},
			"insights":     []any{},
		}
	}
	return out
}

type Insight struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Importance  string `json:"importance"`
}

// ExtractInsights is a best-effort heuristic: every top-level key whose name
// mentions "insight" or "finding" becomes one high-importance insight holding
// the stringified value. Nested structures are not inspected and list values
// are not split into separate insights.
func ExtractInsights(analysis map[string]any) []Insight {
	keys := make([]string, 0, len(analysis))
	for k := range analysis {
		lower := strings.ToLower(k)
		if strings.Contains(lower, "insight") || strings.Contains(lower, "finding") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	insights := make([]Insight, 0, len(keys))
	for _, k := range keys {
		insights = append(insights, Insight{
			Type:        k,
			Description: describe(analysis[k]),
			Importance:  "high",
		})
	}
	return insights
}

// Recommendations formats one recommendation per insight, at most five
func Recommendations(insights []Insight) []string {
	recs := make([]string, 0, maxRecommendations)
	for _, in := range head(insights, maxRecommendations) {
		recs = append(recs, fmt.Sprintf("Based on %s: Consider %s", in.Type, in.Description))
	}
	return recs
}

func describe(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// marketRows converts a findings market_data payload into analytics rows
func marketRows(v any) []analytics.Row {
	if v == nil {
		return nil
	}
	if items, ok := v.([]any); ok {
		rows := make([]analytics.Row, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
		return rows
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var rows []analytics.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil
	}
	return rows
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
