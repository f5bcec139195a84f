// Package httpapi exposes the coordinator, task queries and analytics over REST.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/agents"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/analytics"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/coordinator"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/db"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/taskstore"
)

const Version = "1.0.0"

// Executor runs one task. A fresh executor is requested per task.
type Executor interface {
	Execute(ctx context.Context, in coordinator.Input) coordinator.Envelope
}

// ExecutorFactory builds the executor for one request
type ExecutorFactory func() Executor

// TaskReader is the read side of task persistence
type TaskReader interface {
	GetTaskExecution(ctx context.Context, taskID string) (*db.TaskExecution, error)
	ListTaskExecutions(ctx context.Context, limit int) ([]db.TaskExecution, error)
	ListAgentLogs(ctx context.Context, taskID string) ([]db.AgentLog, error)
}

// Options configure a Handler
type Options struct {
	NewExecutor ExecutorFactory
	Store       taskstore.Store
	// DB is nil when persistence is disabled
	DB         TaskReader
	Registry   *agents.Registry
	Algorithms *analytics.Registry
	// TaskTimeout bounds a synchronous task execution
	TaskTimeout time.Duration
	// AuthToken, when set, is required as a bearer token on every non-health route
	AuthToken string
	// StoreKind names the task store backend in the service info
	StoreKind string
}

// Handler serves the REST API
type Handler struct {
	opts     Options
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

func NewHandler(opts Options, logger *zap.Logger) *Handler {
	if opts.Registry == nil {
		opts.Registry = agents.DefaultRegistry()
	}
	if opts.Algorithms == nil {
		opts.Algorithms = analytics.NewRegistry()
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 5 * time.Minute
	}
	if opts.StoreKind == "" {
		opts.StoreKind = "memory"
	}
	return &Handler{
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRoutes mounts the API on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.Handle("GET /agents", h.protect(h.handleAgents))

	mux.Handle("POST /tasks/execute", h.protect(h.handleExecute))
	mux.Handle("GET /tasks", h.protect(h.handleListTasks))
	mux.Handle("GET /tasks/{id}", h.protect(h.handleGetTask))
	mux.Handle("GET /tasks/{id}/logs", h.protect(h.handleTaskLogs))
	mux.Handle("DELETE /tasks/{id}", h.protect(h.handleCancelTask))

	mux.Handle("GET /analytics/algorithms", h.protect(h.handleListAlgorithms))
	mux.Handle("POST /analytics/statistical", h.protect(h.handleStatistical))
	mux.Handle("POST /analytics/predictive", h.protect(h.handlePredictive))
	mux.Handle("POST /analytics/custom-algorithms", h.protect(h.handleCustomAlgorithms))
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	database := "disabled"
	if h.opts.DB != nil {
		database = "connected"
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   Version,
		"services": map[string]string{
			"database":   database,
			"agents":     "ready",
			"task_store": h.opts.StoreKind,
		},
	})
}

func (h *Handler) handleAgents(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.opts.Registry.Describe())
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) sendError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
