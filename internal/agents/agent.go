// Package agents implements the research, analysis and report agents the
// coordinator sequences into workflows.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/metrics"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// memorySize bounds the short-term memory rendered into prompts
const memorySize = 3

// Input is the loosely typed agent input, decoded from JSON or built by the coordinator
type Input = map[string]any

// Result is the agent output. Every result carries "status" and "agent"; error
// results also carry "error".
type Result = map[string]any

// Agent is a single-responsibility unit of a workflow
type Agent interface {
	Name() string
	Description() string
	SetTaskID(taskID string)
	// Execute never panics on expected failures; they are reported as an
	// error-status result.
	Execute(ctx context.Context, in Input) Result
}

// LogEntry is one audit record of an agent action
type LogEntry struct {
	TaskID    string         `json:"task_id"`
	AgentName string         `json:"agent_name"`
	Action    string         `json:"action"`
	Reasoning string         `json:"reasoning"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// AuditSink persists agent actions. Failures are logged and swallowed.
type AuditSink interface {
	LogAgentAction(ctx context.Context, entry LogEntry) error
}

// Base carries the identity, audit trail and memory shared by all agents
type Base struct {
	name        string
	description string
	logger      *zap.Logger
	sink        AuditSink

	mu     sync.Mutex
	taskID string
	memory []map[string]any
	trail  []LogEntry
}

// NewBase creates the shared agent state. sink may be nil.
func NewBase(name, description string, logger *zap.Logger, sink AuditSink) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Base{
		name:        name,
		description: description,
		logger:      logger.With(zap.String("agent", name)),
		sink:        sink,
	}
}

func (b *Base) Name() string        { return b.name }
func (b *Base) Description() string { return b.description }

// SetTaskID tags subsequent audit entries with taskID
func (b *Base) SetTaskID(taskID string) {
	b.mu.Lock()
	b.taskID = taskID
	b.mu.Unlock()
}

// TaskID returns the task the agent is currently working for
func (b *Base) TaskID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.taskID
}

// LogAction records an agent action: zap, the in-process trail and the audit sink
func (b *Base) LogAction(ctx context.Context, action, reasoning string, metadata map[string]any) {
	entry := LogEntry{
		AgentName: b.name,
		Action:    action,
		Reasoning: reasoning,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}

	b.mu.Lock()
	entry.TaskID = b.taskID
	b.trail = append(b.trail, entry)
	b.mu.Unlock()

	b.logger.Info("Agent action",
		zap.String("task_id", entry.TaskID),
		zap.String("action", action),
		zap.String("reasoning", reasoning),
	)

	if b.sink == nil {
		return
	}
	if err := b.sink.LogAgentAction(ctx, entry); err != nil {
		metrics.PersistenceErrors.WithLabelValues("agent_log").Inc()
		b.logger.Warn("Failed to persist agent log (continuing)",
			zap.String("task_id", entry.TaskID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

// AuditTrail returns a copy of every action this agent logged
func (b *Base) AuditTrail() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]LogEntry, len(b.trail))
	copy(out, b.trail)
	return out
}

// Remember appends content to the bounded memory, evicting the oldest entry
func (b *Base) Remember(content map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.memory = append(b.memory, content)
	if len(b.memory) > memorySize {
		b.memory = b.memory[len(b.memory)-memorySize:]
	}
}

// Context renders memory for prompt injection
func (b *Base) Context() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.memory) == 0 {
		return "No previous context."
	}
	out := "Previous context:\n"
	for _, m := range b.memory {
		out += "- " + indentJSON(m) + "\n"
	}
	return out
}

func (b *Base) errorResult(err error) Result {
	return Result{
		"status": StatusError,
		"error":  err.Error(),
		"agent":  b.name,
	}
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func stringValue(in Input, key, def string) string {
	if s, ok := in[key].(string); ok && s != "" {
		return s
	}
	return def
}

func stringSlice(in Input, key string) []string {
	switch v := in[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// asMap converts typed payloads to the JSON-shaped map the prompts and
// analytics read. nil yields an empty map.
func asMap(v any) map[string]any {
	switch m := v.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return m
	}
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
