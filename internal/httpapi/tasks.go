package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/coordinator"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/db"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/taskstore"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
	maxBodyBytes     = 1 << 20
)

// TaskRequest is the body of POST /tasks/execute
type TaskRequest struct {
	TaskType         string         `json:"task_type" validate:"required,max=64"`
	Topic            string         `json:"topic" validate:"required,max=500"`
	Questions        []string       `json:"questions" validate:"max=20,dive,required,max=500"`
	AnalysisType     string         `json:"analysis_type" validate:"max=64"`
	ReportType       string         `json:"report_type" validate:"max=64"`
	TargetAudience   string         `json:"target_audience" validate:"max=64"`
	Agents           []string       `json:"agents" validate:"max=10,dive,required"`
	Priority         string         `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	CustomAlgorithms []string       `json:"custom_algorithms" validate:"dive,required"`
	ResearchFindings map[string]any `json:"research_findings,omitempty"`
	AnalysisResults  map[string]any `json:"analysis_results,omitempty"`
}

func (req TaskRequest) input() coordinator.Input {
	in := coordinator.Input{
		"task_type":       req.TaskType,
		"topic":           req.Topic,
		"questions":       nonNil(req.Questions),
		"analysis_type":   orDefault(req.AnalysisType, "comprehensive"),
		"report_type":     orDefault(req.ReportType, "executive_summary"),
		"target_audience": orDefault(req.TargetAudience, "general"),
		"agents":          nonNil(req.Agents),
		"priority":        orDefault(req.Priority, "normal"),
	}
	if len(req.CustomAlgorithms) > 0 {
		in["custom_algorithms"] = req.CustomAlgorithms
	}
	if req.ResearchFindings != nil {
		in["research_findings"] = req.ResearchFindings
	}
	if req.AnalysisResults != nil {
		in["analysis_results"] = req.AnalysisResults
	}
	return in
}

// TaskStatus is the query view of a task
type TaskStatus struct {
	TaskID       string         `json:"task_id"`
	TaskType     string         `json:"task_type,omitempty"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	InputData    map[string]any `json:"input_data"`
	OutputData   map[string]any `json:"output_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

func statusFromRecord(rec taskstore.Record) TaskStatus {
	return TaskStatus{
		TaskID:       rec.TaskID,
		TaskType:     rec.TaskType,
		Status:       rec.Status,
		CreatedAt:    rec.CreatedAt,
		CompletedAt:  rec.CompletedAt,
		InputData:    rec.Input,
		OutputData:   rec.Output,
		ErrorMessage: rec.ErrorMessage,
	}
}

func statusFromExecution(t *db.TaskExecution) TaskStatus {
	s := TaskStatus{
		TaskID:      t.TaskID,
		TaskType:    t.TaskType,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
		InputData:   map[string]any(t.InputData),
		OutputData:  map[string]any(t.OutputData),
	}
	if t.ErrorMessage != nil {
		s.ErrorMessage = *t.ErrorMessage
	}
	return s
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.sendError(w, validationMessage(err), http.StatusUnprocessableEntity)
		return
	}
	if h.opts.NewExecutor == nil {
		h.sendError(w, "Task execution is not configured", http.StatusServiceUnavailable)
		return
	}

	h.logger.Info("Received task request", zap.String("task_type", req.TaskType), zap.String("priority", orDefault(req.Priority, "normal")))

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.TaskTimeout)
	defer cancel()

	env := h.opts.NewExecutor().Execute(ctx, req.input())
	h.logger.Info("Task finished",
		zap.String("task_id", env.TaskID),
		zap.String("status", env.Status),
		zap.Int64("duration_ms", env.DurationMs),
	)
	h.writeJSON(w, http.StatusOK, env)
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if h.opts.Store != nil {
		rec, err := h.opts.Store.Get(r.Context(), id)
		if err == nil {
			h.writeJSON(w, http.StatusOK, statusFromRecord(rec))
			return
		}
		if !errors.Is(err, taskstore.ErrNotFound) {
			h.logger.Warn("Task store lookup failed, trying database", zap.String("task_id", id), zap.Error(err))
		}
	}

	if h.opts.DB != nil {
		t, err := h.opts.DB.GetTaskExecution(r.Context(), id)
		switch {
		case err == nil:
			h.writeJSON(w, http.StatusOK, statusFromExecution(t))
			return
		case !errors.Is(err, db.ErrNotFound):
			h.logger.Error("Failed to load task", zap.String("task_id", id), zap.Error(err))
			h.sendError(w, "Failed to load task", http.StatusInternalServerError)
			return
		}
	}

	h.sendError(w, "Task not found", http.StatusNotFound)
}

// handleListTasks serves ?skip=&limit=, newest first. The database is the
// source of truth when enabled.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r)
	if err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var out []TaskStatus
	if h.opts.DB != nil {
		rows, err := h.opts.DB.ListTaskExecutions(r.Context(), skip+limit)
		if err != nil {
			h.logger.Error("Failed to list tasks", zap.Error(err))
			h.sendError(w, "Failed to list tasks", http.StatusInternalServerError)
			return
		}
		for i := range rows {
			out = append(out, statusFromExecution(&rows[i]))
		}
	} else if h.opts.Store != nil {
		recs, err := h.opts.Store.List(r.Context())
		if err != nil {
			h.logger.Error("Failed to list tasks", zap.Error(err))
			h.sendError(w, "Failed to list tasks", http.StatusInternalServerError)
			return
		}
		for _, rec := range recs {
			out = append(out, statusFromRecord(rec))
		}
	}

	h.writeJSON(w, http.StatusOK, page(out, skip, limit))
}

func (h *Handler) handleTaskLogs(w http.ResponseWriter, r *http.Request) {
	if h.opts.DB == nil {
		h.sendError(w, "Database is disabled", http.StatusServiceUnavailable)
		return
	}
	id := r.PathValue("id")
	logs, err := h.opts.DB.ListAgentLogs(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to list agent logs", zap.String("task_id", id), zap.Error(err))
		h.sendError(w, "Failed to list agent logs", http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []db.AgentLog{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"task_id": id, "logs": logs})
}

// handleCancelTask stops tracking a task. A running workflow is not interrupted.
func (h *Handler) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.opts.Store == nil {
		h.sendError(w, "Task not found", http.StatusNotFound)
		return
	}
	err := h.opts.Store.Delete(r.Context(), id)
	switch {
	case errors.Is(err, taskstore.ErrNotFound):
		h.sendError(w, "Task not found", http.StatusNotFound)
	case err != nil:
		h.logger.Error("Failed to cancel task", zap.String("task_id", id), zap.Error(err))
		h.sendError(w, "Failed to cancel task", http.StatusInternalServerError)
	default:
		h.writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Task %s cancelled", id)})
	}
}

func pagination(r *http.Request) (skip, limit int, err error) {
	q := r.URL.Query()
	skip, limit = 0, defaultListLimit
	if v := q.Get("skip"); v != "" {
		if skip, err = strconv.Atoi(v); err != nil || skip < 0 {
			return 0, 0, fmt.Errorf("invalid skip %q", v)
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", v)
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return skip, limit, nil
}

func page(items []TaskStatus, skip, limit int) []TaskStatus {
	if skip >= len(items) {
		return []TaskStatus{}
	}
	end := skip + limit
	if end > len(items) {
		end = len(items)
	}
	return items[skip:end]
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	return fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", fe.Namespace(), fe.Tag())
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
