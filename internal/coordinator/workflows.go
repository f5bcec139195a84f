package coordinator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/agents"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/util"
)

var (
	ErrResearchFailed = errors.New("Research phase failed")
	ErrAnalysisFailed = errors.New("Analysis phase failed")
)

// fullAnalysis runs research, analysis and report. A failed research or
// analysis stage stops the workflow; the report stage result is kept as is.
func (c *Coordinator) fullAnalysis(ctx context.Context, in Input, results map[string]any) error {
	c.LogAction(ctx, "Workflow step 1/3", "Initiating research phase", map[string]any{"step": agents.TagResearch})
	research := c.runStage(ctx, agents.TagResearch, agents.Input{
		"topic":     in["topic"],
		"questions": in["questions"],
	})
	results[agents.TagResearch] = research
	if research["status"] != agents.StatusSuccess {
		return ErrResearchFailed
	}

	c.LogAction(ctx, "Workflow step 2/3", "Initiating analysis phase", map[string]any{"step": agents.TagAnalysis})
	analysis := c.runStage(ctx, agents.TagAnalysis, agents.Input{
		"research_findings": research["research_findings"],
		"analysis_type":     stringValue(in, "analysis_type", "comprehensive"),
		"custom_algorithms": in["custom_algorithms"],
	})
	results[agents.TagAnalysis] = analysis
	if analysis["status"] != agents.StatusSuccess {
		return ErrAnalysisFailed
	}

	c.LogAction(ctx, "Workflow step 3/3", "Initiating report generation", map[string]any{"step": agents.TagReport})
	report := c.runStage(ctx, agents.TagReport, agents.Input{
		"research_findings": research["research_findings"],
		"analysis_results":  analysis["analysis_results"],
		"report_type":       stringValue(in, "report_type", "executive_summary"),
		"target_audience":   stringValue(in, "target_audience", "general"),
	})
	results[agents.TagReport] = report

	finalOutput, _ := report["executive_summary"].(string)
	results["summary"] = map[string]any{
		"total_agents_used": 3,
		"workflow_complete": true,
		"final_output":      finalOutput,
	}
	return nil
}

// custom runs the requested agents in order, each with the raw input. Unknown
// names are skipped.
func (c *Coordinator) custom(ctx context.Context, in Input, results map[string]any) error {
	for _, tag := range requestedAgents(in) {
		if _, ok := c.agents[tag]; !ok {
			c.logger.Warn("Skipping unknown agent", zap.String("task_id", c.TaskID()), zap.String("agent", tag))
			continue
		}
		results[tag] = c.runStage(ctx, tag, in)
	}
	return nil
}

// requestedAgents returns the distinct agent tags of a custom task, in request order
func requestedAgents(in Input) []string {
	var raw []string
	switch v := in["agents"].(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		if tag != "" && !util.ContainsString(out, tag) {
			out = append(out, tag)
		}
	}
	if len(out) == 0 {
		return []string{agents.TagResearch}
	}
	return out
}
