package agents

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/formatting"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/llm"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/metrics"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/templates"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/util"
)

const (
	ReportAgentName        = "ReportWriterAgent"
	reportAgentDescription = "Specializes in creating well-structured, professional reports."

	defaultReportType     = "executive_summary"
	defaultTargetAudience = "general"

	reportMaxTokens   = 900
	summaryMaxTokens  = 220
	reportPromptHead  = 800
	summaryReportHead = 1000

	GenerationLLM      = "llm"
	GenerationFallback = "fallback"
)

// Quality holds the minimum trimmed lengths an LLM response must exceed to be used
type Quality struct {
	MinReportChars  int
	MinSummaryChars int
}

// DefaultQuality returns the standard length gates
func DefaultQuality() Quality {
	return Quality{MinReportChars: 120, MinSummaryChars: 40}
}

// ReportAgent writes a formatted report and executive summary from research and analysis
type ReportAgent struct {
	*Base
	llm       llm.Client
	templates *templates.Templates
	quality   Quality
	now       func() time.Time
}

func NewReportAgent(client llm.Client, tpl *templates.Templates, quality Quality, logger *zap.Logger, sink AuditSink) *ReportAgent {
	if tpl == nil {
		tpl = templates.Default()
	}
	def := DefaultQuality()
	if quality.MinReportChars <= 0 {
		quality.MinReportChars = def.MinReportChars
	}
	if quality.MinSummaryChars <= 0 {
		quality.MinSummaryChars = def.MinSummaryChars
	}
	return &ReportAgent{
		Base:      NewBase(ReportAgentName, reportAgentDescription, logger, sink),
		llm:       client,
		templates: tpl,
		quality:   quality,
		now:       time.Now,
	}
}

func (a *ReportAgent) Execute(ctx context.Context, in Input) Result {
	research := asMap(in["research_findings"])
	analysis := asMap(in["analysis_results"])
	reportType := stringValue(in, "report_type", defaultReportType)
	audience := stringValue(in, "target_audience", defaultTargetAudience)

	a.LogAction(ctx, "Creating report", fmt.Sprintf("Generating %s for %s audience", reportType, audience),
		map[string]any{"report_type": reportType, "target_audience": audience})

	now := a.now().UTC()
	prompt, err := a.templates.Render(templates.ReportPrompt, templates.ReportData{
		Date:       now.Format("2006-01-02"),
		Research:   indentJSON(research),
		Analysis:   indentJSON(analysis),
		Audience:   audience,
		ReportType: reportType,
		Context:    a.Context(),
	})
	if err != nil {
		a.logger.Error("Report generation failed", zap.String("task_id", a.TaskID()), zap.Error(err))
		return a.errorResult(err)
	}

	content, generation := a.writeReport(ctx, prompt)
	report := formatting.FormatReport(content, reportType, audience, now)
	summary, summaryGeneration := a.summarize(ctx, report)
	words := util.WordCount(report)

	a.LogAction(ctx, "Report completed", fmt.Sprintf("Generated %s report", reportType),
		map[string]any{"word_count": words, "generation": generation})

	a.Remember(map[string]any{
		"report_type": reportType,
		"summary":     summary,
	})

	return Result{
		"status":            StatusSuccess,
		"report":            report,
		"executive_summary": summary,
		"metadata": map[string]any{
			"created_at":         now.Format(time.RFC3339),
			"report_type":        reportType,
			"target_audience":    audience,
			"word_count":         words,
			"generation":         generation,
			"summary_generation": summaryGeneration,
		},
		"agent": a.Name(),
	}
}

// writeReport returns the report body and whether it came from the LLM or the fallback template
func (a *ReportAgent) writeReport(ctx context.Context, prompt string) (string, string) {
	focused, err := a.templates.Render(templates.ReportFocusedPrompt, templates.ReportData{
		Prompt: util.Head(prompt, reportPromptHead),
	})
	if err == nil {
		var response string
		response, err = a.call(ctx, focused, reportMaxTokens)
		if err == nil {
			length := trimmedLen(response)
			if length > a.quality.MinReportChars {
				return response, GenerationLLM
			}
			a.logger.Info("Report response below quality threshold, using fallback template",
				zap.String("task_id", a.TaskID()),
				zap.Int("length", length),
			)
		}
	}
	if err != nil {
		a.logger.Warn("LLM report generation failed, using fallback template",
			zap.String("task_id", a.TaskID()),
			zap.Error(err),
		)
	}
	metrics.FallbackContent.WithLabelValues(a.Name(), "report").Inc()
	return a.templates.Fallback().Report, GenerationFallback
}

// summarize returns the executive summary and how it was produced
func (a *ReportAgent) summarize(ctx context.Context, report string) (string, string) {
	prompt, err := a.templates.Render(templates.SummaryPrompt, templates.SummaryData{
		Report: util.Head(report, summaryReportHead),
	})
	if err == nil {
		var response string
		response, err = a.call(ctx, prompt, summaryMaxTokens)
		if err == nil && trimmedLen(response) > a.quality.MinSummaryChars {
			return response, GenerationLLM
		}
	}
	if err != nil {
		a.logger.Warn("Executive summary generation failed, using fallback",
			zap.String("task_id", a.TaskID()),
			zap.Error(err),
		)
	}
	metrics.FallbackContent.WithLabelValues(a.Name(), "summary").Inc()
	return a.templates.Fallback().Summary, GenerationFallback
}

// trimmedLen counts characters, not bytes, so the gates treat non-ASCII replies alike
func trimmedLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

func (a *ReportAgent) call(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if a.llm == nil {
		return "", llm.ErrNoBackends
	}
	return a.llm.Generate(ctx, prompt, llm.Options{MaxTokens: maxTokens})
}
