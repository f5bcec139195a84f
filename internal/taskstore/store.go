// Package taskstore caches task records for the query endpoints. The memory
// store serves a single process; the redis store is shared between replicas.
package taskstore

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned when a task id is not tracked
var ErrNotFound = errors.New("task not found")

// Record is the queryable state of one task
type Record struct {
	TaskID         string         `json:"task_id"`
	TaskType       string         `json:"task_type"`
	Status         string         `json:"status"`
	Input          map[string]any `json:"input"`
	Output         map[string]any `json:"output,omitempty"`
	AgentsInvolved []string       `json:"agents_involved"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// Store is safe for concurrent use
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, taskID string) (Record, error)
	// List returns records newest first
	List(ctx context.Context) ([]Record, error)
	// Delete stops tracking a task. It does not interrupt a running workflow.
	Delete(ctx context.Context, taskID string) error
	Clear(ctx context.Context) error
}

func sortNewestFirst(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].TaskID < recs[j].TaskID
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}
