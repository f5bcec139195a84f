package taskstore

import (
	"context"
	"sync"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/metrics"
)

// Memory is the process-wide task cache. Create it at service start and Clear it at shutdown.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]Record
}

func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]Record)}
}

func (m *Memory) Put(ctx context.Context, rec Record) error {
	m.mu.Lock()
	m.tasks[rec.TaskID] = rec
	n := len(m.tasks)
	m.mu.Unlock()
	metrics.TasksCached.Set(float64(n))
	return nil
}

func (m *Memory) Get(ctx context.Context, taskID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.tasks[taskID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) List(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	out := make([]Record, 0, len(m.tasks))
	for _, rec := range m.tasks {
		out = append(out, rec)
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, taskID string) error {
	m.mu.Lock()
	_, ok := m.tasks[taskID]
	delete(m.tasks, taskID)
	n := len(m.tasks)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	metrics.TasksCached.Set(float64(n))
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.tasks = make(map[string]Record)
	m.mu.Unlock()
	metrics.TasksCached.Set(0)
	return nil
}
