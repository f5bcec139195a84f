// Package coordinator sequences agents into workflows and owns the task lifecycle.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/agents"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/events"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/metrics"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/taskstore"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/tracing"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/util"
)

// Workflow selectors
const (
	TaskTypeFullAnalysis  = "full_analysis"
	TaskTypeQuickResearch = "quick_research"
	TaskTypeReportOnly    = "report_only"
	TaskTypeCustom        = "custom"
)

// Task statuses
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	coordinatorName        = "TaskCoordinator"
	coordinatorDescription = "Coordinates and manages task execution across multiple specialized agents."

	maxEventErrorLen = 500
)

// Input is the coordinator request. Recognised keys: task_type, topic, questions,
// analysis_type, report_type, target_audience, agents, custom_algorithms,
// research_findings, analysis_results.
type Input = map[string]any

// TaskRecord is the coordinator's view of a task
type TaskRecord = taskstore.Record

// Envelope is the uniform coordinator response
type Envelope struct {
	Status        string         `json:"status"`
	TaskID        string         `json:"task_id"`
	TaskType      string         `json:"task_type,omitempty"`
	Results       map[string]any `json:"results,omitempty"`
	ExecutionTime string         `json:"execution_time,omitempty"`
	DurationMs    int64          `json:"duration_ms"`
	Error         string         `json:"error,omitempty"`
}

// Recorder persists task records. Every call is best-effort.
type Recorder interface {
	CreateTask(ctx context.Context, taskID, taskType string, input map[string]any, agentsInvolved []string) error
	UpdateTask(ctx context.Context, taskID, status string, output map[string]any) error
}

// Coordinator runs one task at a time. Build one per request: agents carry
// per-task state and memory.
type Coordinator struct {
	*agents.Base
	agents   map[string]agents.Agent
	tags     []string
	store    taskstore.Store
	recorder Recorder
	notifier events.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Coordinator)

func WithTaskStore(s taskstore.Store) Option { return func(c *Coordinator) { c.store = s } }
func WithRecorder(r Recorder) Option         { return func(c *Coordinator) { c.recorder = r } }
func WithNotifier(n events.Notifier) Option  { return func(c *Coordinator) { c.notifier = n } }

// New builds a coordinator with a fresh instance of every registered agent
func New(registry *agents.Registry, deps agents.Deps, opts ...Option) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		Base:     agents.NewBase(coordinatorName, coordinatorDescription, logger, deps.Audit),
		agents:   registry.Build(deps),
		tags:     registry.Tags(),
		notifier: events.NopNotifier{},
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs the workflow selected by task_type. It never panics and always
// returns a well-formed envelope.
func (c *Coordinator) Execute(ctx context.Context, in Input) Envelope {
	taskType := stringValue(in, "task_type", TaskTypeFullAnalysis)
	taskID := uuid.New().String()
	start := c.now()

	for _, a := range c.agents {
		a.SetTaskID(taskID)
	}
	c.SetTaskID(taskID)

	ctx, span := tracing.StartWorkflowSpan(ctx, taskID, taskType)
	defer span.End()

	rec := TaskRecord{
		TaskID:         taskID,
		TaskType:       taskType,
		Status:         StatusInProgress,
		Input:          copyMap(in),
		AgentsInvolved: append([]string{}, c.tags...),
		CreatedAt:      start.UTC(),
	}
	c.createRecord(ctx, rec)

	c.LogAction(ctx, "Starting task coordination", fmt.Sprintf("Executing %s workflow", taskType),
		map[string]any{"task_id": taskID, "input": in})

	results := map[string]any{}
	err := c.runWorkflow(ctx, taskType, in, results)

	finished := c.now()
	duration := finished.Sub(start)
	metrics.WorkflowDuration.WithLabelValues(metricTaskType(taskType)).Observe(duration.Seconds())

	completedAt := finished.UTC()
	rec.CompletedAt = &completedAt

	if err != nil {
		tracing.RecordError(span, err)
		metrics.WorkflowsTotal.WithLabelValues(metricTaskType(taskType), StatusFailed).Inc()
		c.logger.Error("Task coordination failed",
			zap.String("task_id", taskID),
			zap.String("task_type", taskType),
			zap.Error(err),
		)

		output := copyMap(results)
		output["error"] = err.Error()
		rec.Status = StatusFailed
		rec.Output = output
		rec.ErrorMessage = err.Error()
		c.finishRecord(ctx, rec)

		return Envelope{
			Status:     "error",
			TaskID:     taskID,
			TaskType:   taskType,
			DurationMs: duration.Milliseconds(),
			Error:      err.Error(),
		}
	}

	metrics.WorkflowsTotal.WithLabelValues(metricTaskType(taskType), StatusCompleted).Inc()
	c.logger.Info("Task coordination completed",
		zap.String("task_id", taskID),
		zap.String("task_type", taskType),
		zap.Duration("duration", duration),
	)

	rec.Status = StatusCompleted
	rec.Output = results
	c.finishRecord(ctx, rec)

	return Envelope{
		Status:        "success",
		TaskID:        taskID,
		TaskType:      taskType,
		Results:       results,
		ExecutionTime: completedAt.Format(time.RFC3339Nano),
		DurationMs:    duration.Milliseconds(),
	}
}

// runWorkflow dispatches to the workflow and converts a panic into an error.
// Stage results written to results before a failure are kept.
func (c *Coordinator) runWorkflow(ctx context.Context, taskType string, in Input, results map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Workflow panicked",
				zap.String("task_id", c.TaskID()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("workflow panicked: %v", r)
		}
	}()

	switch taskType {
	case TaskTypeFullAnalysis:
		return c.fullAnalysis(ctx, in, results)
	case TaskTypeQuickResearch:
		results[agents.TagResearch] = c.runStage(ctx, agents.TagResearch, in)
		return nil
	case TaskTypeReportOnly:
		results[agents.TagReport] = c.runStage(ctx, agents.TagReport, in)
		return nil
	default:
		return c.custom(ctx, in, results)
	}
}

// runStage executes one agent. A panicking agent yields an error-status result.
func (c *Coordinator) runStage(ctx context.Context, tag string, in agents.Input) (res agents.Result) {
	a, ok := c.agents[tag]
	if !ok {
		return agents.Result{"status": agents.StatusError, "agent": tag, "error": fmt.Sprintf("agent %q is not registered", tag)}
	}

	ctx, span := tracing.StartStageSpan(ctx, a.Name())
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Agent panicked",
				zap.String("task_id", c.TaskID()),
				zap.String("agent", a.Name()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			res = agents.Result{
				"status": agents.StatusError,
				"agent":  a.Name(),
				"error":  fmt.Sprintf("agent panicked: %v", r),
			}
		}
		status, _ := res["status"].(string)
		if status != agents.StatusSuccess {
			msg, _ := res["error"].(string)
			tracing.RecordError(span, errors.New(msg))
		}
		metrics.AgentExecutions.WithLabelValues(a.Name(), status).Inc()
		metrics.AgentDuration.WithLabelValues(a.Name()).Observe(time.Since(start).Seconds())
		span.End()
	}()

	return a.Execute(ctx, in)
}

func (c *Coordinator) createRecord(ctx context.Context, rec TaskRecord) {
	if c.store != nil {
		if err := c.store.Put(ctx, rec); err != nil {
			c.persistWarn("task_store_create", rec.TaskID, err)
		}
	}
	if c.recorder != nil {
		if err := c.recorder.CreateTask(ctx, rec.TaskID, rec.TaskType, rec.Input, rec.AgentsInvolved); err != nil {
			c.persistWarn("task_record_create", rec.TaskID, err)
		}
	}
}

func (c *Coordinator) finishRecord(ctx context.Context, rec TaskRecord) {
	if c.store != nil {
		if err := c.store.Put(ctx, rec); err != nil {
			c.persistWarn("task_store_update", rec.TaskID, err)
		}
	}
	if c.recorder != nil {
		if err := c.recorder.UpdateTask(ctx, rec.TaskID, rec.Status, rec.Output); err != nil {
			c.persistWarn("task_record_update", rec.TaskID, err)
		}
	}

	event := events.TaskEvent{
		TaskID:     rec.TaskID,
		TaskType:   rec.TaskType,
		Status:     rec.Status,
		Error:      util.TruncateString(rec.ErrorMessage, maxEventErrorLen, true),
		FinishedAt: *rec.CompletedAt,
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.notifier.Publish(pubCtx, event); err != nil {
		c.logger.Warn("Failed to publish task event (continuing)", zap.String("task_id", rec.TaskID), zap.Error(err))
	}
}

func (c *Coordinator) persistWarn(op, taskID string, err error) {
	metrics.PersistenceErrors.WithLabelValues(op).Inc()
	c.logger.Warn("Failed to persist task record (continuing)",
		zap.String("operation", op),
		zap.String("task_id", taskID),
		zap.Error(err),
	)
}

func metricTaskType(t string) string {
	switch t {
	case TaskTypeFullAnalysis, TaskTypeQuickResearch, TaskTypeReportOnly:
		return t
	default:
		return TaskTypeCustom
	}
}

func stringValue(in Input, key, def string) string {
	if s, ok := in[key].(string); ok && s != "" {
		return s
	}
	return def
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
