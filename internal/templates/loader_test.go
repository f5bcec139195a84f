package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplatesAreValid(t *testing.T) {
	tpl := Default()
	assert.Equal(t, "1", tpl.Version())

	fb := tpl.Fallback()
	assert.True(t, strings.HasPrefix(fb.Report, "# Market Analysis Report\n\n## Executive Summary"))
	assert.True(t, strings.HasSuffix(fb.Report, "*Report generated from real data sources*"))
	assert.Equal(t, "Executive Summary: Real-time market analysis completed with data from multiple sources.", fb.Summary)
	require.Len(t, fb.Analysis.Entities, 2)
	assert.Equal(t, "Tesla", fb.Analysis.Entities[0].Match)
}

func TestRenderPrompts(t *testing.T) {
	tpl := Default()

	out, err := tpl.Render(ReportPrompt, ReportData{
		Date:       "2026-10-16",
		Research:   `{"topic": "x"}`,
		Analysis:   "{}",
		Audience:   "general",
		ReportType: "executive_summary",
		Context:    "No previous context.",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Today's date is 2026-10-16.")
	assert.Contains(t, out, "Create a executive_summary report.")
	assert.Contains(t, out, "Appropriate for the general audience")

	out, err = tpl.Render(SummaryPrompt, SummaryData{Report: "body"})
	require.NoError(t, err)
	assert.Equal(t, "Create a concise executive summary (max 100 words) for this report: body", out)

	out, err = tpl.Render(AnalysisFocusedPrompt, AnalysisData{Prompt: "DATA"})
	require.NoError(t, err)
	assert.Contains(t, out, "DATA")
	assert.Contains(t, out, `"patterns": ["list of patterns found"]`)

	_, err = tpl.Render("unknown", nil)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	_, err := Load(strings.NewReader("version: 1\nunexpected: true\n"))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Load(strings.NewReader("version: \"1\"\nprompts:\n  analysis: \"{{.Data\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt \"analysis\"")
	assert.Contains(t, err.Error(), "fallback.report is empty")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/nonexistent/templates.yaml")
	assert.Error(t, err)
}
