package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/agents"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/analytics"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/app"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/collector"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/config"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/coordinator"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/llm"
)

type runOptions struct {
	taskType       string
	topic          string
	questions      []string
	agents         []string
	analysisType   string
	reportType     string
	targetAudience string
	timeout        time.Duration
	offline        bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one task and print the result envelope",
		Example: `  agentctl run --topic "Tesla stock performance" --question "How did TSLA trade this month?"
  agentctl run --type custom --agents research,analysis --topic "EV market"
  agentctl run --offline --type quick_research --topic "solar energy"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.topic == "" {
				return fmt.Errorf("--topic is required")
			}
			cfg, err := root.load()
			if err != nil {
				return err
			}
			logger, err := root.logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, opts.timeout)
			defer cancel()

			coord, err := opts.coordinator(cfg, logger)
			if err != nil {
				return err
			}
			env := coord.Execute(ctx, opts.input())
			if err := printJSON(cmd.OutOrStdout(), env); err != nil {
				return err
			}
			if env.Status != "success" {
				return fmt.Errorf("task %s failed: %s", env.TaskID, env.Error)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.taskType, "type", "t", coordinator.TaskTypeFullAnalysis, "task type: full_analysis, quick_research, report_only or custom")
	f.StringVar(&opts.topic, "topic", "", "subject to research")
	f.StringArrayVarP(&opts.questions, "question", "q", nil, "research question (repeatable)")
	f.StringSliceVar(&opts.agents, "agents", nil, "agents to run for the custom workflow")
	f.StringVar(&opts.analysisType, "analysis-type", "comprehensive", "analysis type")
	f.StringVar(&opts.reportType, "report-type", "executive_summary", "report type")
	f.StringVar(&opts.targetAudience, "audience", "general", "report audience")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall task deadline")
	f.BoolVar(&opts.offline, "offline", false, "skip network sources and LLM backends")
	return cmd
}

func (o *runOptions) input() coordinator.Input {
	in := coordinator.Input{
		"task_type":       o.taskType,
		"topic":           o.topic,
		"analysis_type":   o.analysisType,
		"report_type":     o.reportType,
		"target_audience": o.targetAudience,
	}
	if len(o.questions) > 0 {
		in["questions"] = o.questions
	}
	if len(o.agents) > 0 {
		in["agents"] = o.agents
	}
	return in
}

func (o *runOptions) coordinator(cfg *config.Config, logger *zap.Logger) (*coordinator.Coordinator, error) {
	tpl, err := app.LoadTemplates(cfg.TemplatesPath)
	if err != nil {
		return nil, err
	}
	deps := agents.Deps{
		Logger:     logger,
		Templates:  tpl,
		Algorithms: analytics.NewRegistry(),
		Quality:    app.Quality(cfg),
	}
	if o.offline {
		deps.Collector = &collector.StaticCollector{}
		deps.LLM = llm.NewChain(logger)
	} else {
		deps.Collector = app.NewCollector(cfg, logger)
		deps.LLM = app.BuildLLM(cfg, logger)
	}
	return coordinator.New(agents.DefaultRegistry(), deps), nil
}
