package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/agents"
)

// ErrNotFound is returned when a task execution does not exist
var ErrNotFound = errors.New("task execution not found")

var schemas = map[string][]string{
	"postgres": {
		`CREATE TABLE IF NOT EXISTS task_executions (
			task_id TEXT PRIMARY KEY,
			task_type TEXT NOT NULL,
			status TEXT NOT NULL,
			input_data JSONB,
			output_data JSONB,
			agents_involved JSONB,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS agent_logs (
			id TEXT PRIMARY KEY,
			task_id TEXT,
			agent_name TEXT NOT NULL,
			action TEXT NOT NULL,
			reasoning TEXT,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_logs_task_id ON agent_logs (task_id)`,
	},
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS task_executions (
			task_id TEXT PRIMARY KEY,
			task_type TEXT NOT NULL,
			status TEXT NOT NULL,
			input_data TEXT,
			output_data TEXT,
			agents_involved TEXT,
			error_message TEXT,
			created_at DATETIME NOT NULL,
			completed_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS agent_logs (
			id TEXT PRIMARY KEY,
			task_id TEXT,
			agent_name TEXT NOT NULL,
			action TEXT NOT NULL,
			reasoning TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_logs_task_id ON agent_logs (task_id)`,
	},
}

// EnsureSchema creates the task_executions and agent_logs tables if missing
func (c *Client) EnsureSchema(ctx context.Context) error {
	stmts, ok := schemas[c.db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", c.db.DriverName())
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SaveTaskExecution inserts a task record. An existing record is left untouched,
// so a late create can never overwrite a terminal state.
func (c *Client) SaveTaskExecution(ctx context.Context, task *TaskExecution) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	query := c.db.Rebind(`
		INSERT INTO task_executions (
			task_id, task_type, status, input_data, output_data,
			agents_involved, error_message, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_id) DO NOTHING`)

	_, err := c.db.ExecContext(ctx, query,
		task.TaskID, task.TaskType, task.Status, task.InputData, task.OutputData,
		task.AgentsInvolved, task.ErrorMessage, task.CreatedAt, task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task execution: %w", err)
	}

	c.logger.Debug("Task execution saved",
		zap.String("task_id", task.TaskID),
		zap.String("status", task.Status),
	)
	return nil
}

// updateTaskExecution applies a terminal state. Only in-progress tasks move, so
// status never regresses and completed_at is set once.
func (c *Client) updateTaskExecution(ctx context.Context, u *taskUpdate) error {
	query := c.db.Rebind(`
		UPDATE task_executions
		SET status = ?, output_data = ?, error_message = ?, completed_at = ?
		WHERE task_id = ? AND status = ?`)

	res, err := c.db.ExecContext(ctx, query,
		u.Status, u.OutputData, u.ErrorMessage, u.CompletedAt, u.TaskID, StatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("failed to update task execution: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		c.logger.Warn("Task execution not updated, record missing or already terminal",
			zap.String("task_id", u.TaskID),
			zap.String("status", u.Status),
		)
	}
	return nil
}

// SaveAgentLog appends one audit entry
func (c *Client) SaveAgentLog(ctx context.Context, entry *AgentLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := c.db.Rebind(`
		INSERT INTO agent_logs (id, task_id, agent_name, action, reasoning, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := c.db.ExecContext(ctx, query,
		entry.ID, entry.TaskID, entry.AgentName, entry.Action, entry.Reasoning, entry.Metadata, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save agent log: %w", err)
	}
	return nil
}

// GetTaskExecution retrieves a task execution by task id
func (c *Client) GetTaskExecution(ctx context.Context, taskID string) (*TaskExecution, error) {
	var task TaskExecution
	query := c.db.Rebind(`
		SELECT task_id, task_type, status, input_data, output_data,
			agents_involved, error_message, created_at, completed_at
		FROM task_executions WHERE task_id = ?`)

	if err := c.db.GetContext(ctx, &task, query, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task execution: %w", err)
	}
	return &task, nil
}

// ListTaskExecutions returns the most recent task executions first
func (c *Client) ListTaskExecutions(ctx context.Context, limit int) ([]TaskExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	var tasks []TaskExecution
	query := c.db.Rebind(`
		SELECT task_id, task_type, status, input_data, output_data,
			agents_involved, error_message, created_at, completed_at
		FROM task_executions ORDER BY created_at DESC LIMIT ?`)

	if err := c.db.SelectContext(ctx, &tasks, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list task executions: %w", err)
	}
	return tasks, nil
}

// ListAgentLogs returns the audit trail of a task in insertion order
func (c *Client) ListAgentLogs(ctx context.Context, taskID string) ([]AgentLog, error) {
	var logs []AgentLog
	query := c.db.Rebind(`
		SELECT id, task_id, agent_name, action, reasoning, metadata, created_at
		FROM agent_logs WHERE task_id = ? ORDER BY created_at ASC`)

	if err := c.db.SelectContext(ctx, &logs, query, taskID); err != nil {
		return nil, fmt.Errorf("failed to list agent logs: %w", err)
	}
	return logs, nil
}

// CreateTask queues the in-progress record of a new task
func (c *Client) CreateTask(ctx context.Context, taskID, taskType string, input map[string]any, agentsInvolved []string) error {
	return c.QueueWrite(WriteTypeTaskExecution, taskID, &TaskExecution{
		TaskID:         taskID,
		TaskType:       taskType,
		Status:         StatusInProgress,
		InputData:      JSONB(input),
		AgentsInvolved: StringList(agentsInvolved),
		CreatedAt:      time.Now().UTC(),
	}, nil)
}

// UpdateTask queues the terminal state of a task. A failed task records the
// "error" entry of its output as the error message.
func (c *Client) UpdateTask(ctx context.Context, taskID, status string, output map[string]any) error {
	u := &taskUpdate{
		TaskID:      taskID,
		Status:      status,
		OutputData:  JSONB(output),
		CompletedAt: time.Now().UTC(),
	}
	if msg, ok := output["error"].(string); ok && status == StatusFailed {
		u.ErrorMessage = &msg
	}
	return c.QueueWrite(WriteTypeTaskUpdate, taskID, u, nil)
}

// LogAgentAction queues an agent audit entry
func (c *Client) LogAgentAction(ctx context.Context, entry agents.LogEntry) error {
	return c.QueueWrite(WriteTypeAgentLog, entry.TaskID, &AgentLog{
		TaskID:    entry.TaskID,
		AgentName: entry.AgentName,
		Action:    entry.Action,
		Reasoning: entry.Reasoning,
		Metadata:  JSONB(entry.Metadata),
		CreatedAt: entry.Timestamp,
	}, nil)
}
