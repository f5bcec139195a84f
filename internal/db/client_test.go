package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/agents"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/circuitbreaker"
)

func newMockClient(t *testing.T, driver string) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	wrapper := circuitbreaker.NewDatabaseWrapper(sqlx.NewDb(raw, driver), logger)
	return newClient(wrapper, &Config{Workers: 2, QueueSize: 8}, logger), mock
}

func TestParseURL(t *testing.T) {
	driver, dsn, err := ParseURL("sqlite:///./data/multiagent.db")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", driver)
	assert.Equal(t, "./data/multiagent.db", dsn)

	driver, dsn, err = ParseURL("postgres://user:pw@localhost:5432/agents?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "postgres://user:pw@localhost:5432/agents?sslmode=disable", dsn)

	_, _, err = ParseURL("mysql://localhost")
	assert.Error(t, err)
}

func TestEnsureSchema(t *testing.T) {
	c, mock := newMockClient(t, "postgres")
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS task_executions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS agent_logs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_agent_logs_task_id").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	require.NoError(t, c.EnsureSchema(context.Background()))
	require.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskLifecycleWritesInOrder(t *testing.T) {
	c, mock := newMockClient(t, "postgres")
	mock.ExpectExec(`INSERT INTO task_executions .* ON CONFLICT \(task_id\) DO NOTHING`).
		WithArgs("task-1", "quick_research", StatusInProgress, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE task_executions\s+SET status = \$1`).
		WithArgs(StatusFailed, sqlmock.AnyArg(), "Research phase failed", sqlmock.AnyArg(), "task-1", StatusInProgress).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	ctx := context.Background()
	require.NoError(t, c.CreateTask(ctx, "task-1", "quick_research", map[string]any{"topic": "AI"}, []string{"research"}))
	require.NoError(t, c.UpdateTask(ctx, "task-1", StatusFailed, map[string]any{"error": "Research phase failed"}))

	require.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogAgentActionFailureIsSwallowed(t *testing.T) {
	c, mock := newMockClient(t, "sqlite3")
	mock.ExpectExec("INSERT INTO agent_logs").
		WithArgs(sqlmock.AnyArg(), "task-1", "ResearchAgent", "Starting research", "Researching topic: AI", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectClose()

	err := c.LogAgentAction(context.Background(), agents.LogEntry{
		TaskID:    "task-1",
		AgentName: "ResearchAgent",
		Action:    "Starting research",
		Reasoning: "Researching topic: AI",
		Timestamp: time.Now(),
	})
	assert.NoError(t, err, "queued writes report failures asynchronously")

	require.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueWriteCallbackAndClosedClient(t *testing.T) {
	c, mock := newMockClient(t, "sqlite3")
	mock.ExpectExec("INSERT INTO agent_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	done := make(chan error, 1)
	require.NoError(t, c.QueueWrite(WriteTypeAgentLog, "k", &AgentLog{TaskID: "k"}, func(err error) { done <- err }))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("write was not processed")
	}

	require.NoError(t, c.Close())
	assert.Error(t, c.QueueWrite(WriteTypeAgentLog, "k", &AgentLog{}, nil))
	assert.NoError(t, c.Close(), "close is idempotent")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// idleClient has one queue and no workers, so the test controls draining
func idleClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	return &Client{
		db:          circuitbreaker.NewDatabaseWrapper(sqlx.NewDb(raw, "postgres"), logger),
		logger:      logger,
		queues:      []chan WriteRequest{make(chan WriteRequest, 1)},
		stopCh:      make(chan struct{}),
		enqueueWait: 5 * time.Second,
	}, mock
}

func TestFullQueueKeepsTaskWritesInOrder(t *testing.T) {
	c, mock := idleClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateTask(ctx, "task-1", "quick_research", nil, nil))

	returned := make(chan error, 1)
	go func() { returned <- c.UpdateTask(ctx, "task-1", StatusCompleted, nil) }()

	select {
	case <-returned:
		t.Fatal("update must wait behind the queued insert")
	case <-time.After(100 * time.Millisecond):
	}

	first := <-c.queues[0]
	assert.Equal(t, WriteTypeTaskExecution, first.Type)
	require.NoError(t, <-returned)

	second := <-c.queues[0]
	assert.Equal(t, WriteTypeTaskUpdate, second.Type)
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing may be written synchronously")
}

func TestFullQueueWritesAgentLogsSynchronously(t *testing.T) {
	c, mock := idleClient(t)
	mock.ExpectExec("INSERT INTO agent_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	c.queues[0] <- WriteRequest{Type: WriteTypeTaskExecution, Key: "task-1"}
	require.NoError(t, c.QueueWrite(WriteTypeAgentLog, "task-1", &AgentLog{TaskID: "task-1"}, nil))

	assert.Len(t, c.queues[0], 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFullQueueStopsWaitingOnClose(t *testing.T) {
	c, mock := idleClient(t)
	c.queues[0] <- WriteRequest{Type: WriteTypeTaskExecution, Key: "task-1"}

	returned := make(chan error, 1)
	go func() { returned <- c.UpdateTask(context.Background(), "task-1", StatusFailed, nil) }()
	close(c.stopCh)

	select {
	case err := <-returned:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("queued task write did not give up after close")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTaskExecution(t *testing.T) {
	c, mock := newMockClient(t, "postgres")
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"task_id", "task_type", "status", "input_data", "output_data",
		"agents_involved", "error_message", "created_at", "completed_at"}).
		AddRow("task-1", "full_analysis", StatusCompleted, []byte(`{"topic":"AI"}`), `{"research":{"status":"success"}}`,
			[]byte(`["research","analysis","report"]`), nil, created, created)
	mock.ExpectQuery(`SELECT .* FROM task_executions WHERE task_id = \$1`).WithArgs("task-1").WillReturnRows(rows)
	mock.ExpectQuery(`SELECT .* FROM task_executions WHERE task_id = \$1`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"task_id"}))
	mock.ExpectClose()

	task, err := c.GetTaskExecution(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, "full_analysis", task.TaskType)
	assert.Equal(t, "AI", task.InputData["topic"])
	assert.Equal(t, StringList{"research", "analysis", "report"}, task.AgentsInvolved)
	assert.Nil(t, task.ErrorMessage)
	require.NotNil(t, task.CompletedAt)

	_, err = c.GetTaskExecution(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTaskExecutionsAndLogs(t *testing.T) {
	c, mock := newMockClient(t, "postgres")
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM task_executions ORDER BY created_at DESC LIMIT \$1`).WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"task_id", "task_type", "status", "input_data", "output_data",
			"agents_involved", "error_message", "created_at", "completed_at"}).
			AddRow("a", "custom", StatusInProgress, nil, nil, nil, nil, now, nil).
			AddRow("b", "custom", StatusFailed, nil, nil, nil, "boom", now, now))
	mock.ExpectQuery(`FROM agent_logs WHERE task_id = \$1 ORDER BY created_at ASC`).WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_id", "agent_name", "action", "reasoning", "metadata", "created_at"}).
			AddRow("1", "a", "ResearchAgent", "Starting research", "r", `{"topic":"x"}`, now))
	mock.ExpectClose()

	tasks, err := c.ListTaskExecutions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.NotNil(t, tasks[1].ErrorMessage)
	assert.Equal(t, "boom", *tasks[1].ErrorMessage)
	assert.Nil(t, tasks[0].InputData)

	logs, err := c.ListAgentLogs(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "x", logs[0].Metadata["topic"])

	require.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJSONColumns(t *testing.T) {
	var j JSONB
	require.NoError(t, j.Scan(`{"a":1}`))
	assert.Equal(t, 1.0, j["a"])
	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)
	assert.Error(t, j.Scan(42))

	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	v, err = JSONB(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
