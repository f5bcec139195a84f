package db

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/circuitbreaker"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/metrics"
)

// Config holds database configuration
type Config struct {
	// URL is either sqlite:///path/to/file.db or a postgres:// connection string
	URL             string
	MaxConnections  int
	IdleConnections int
	MaxLifetime     time.Duration
	Workers         int
	QueueSize       int
}

// Client manages database connections and operations
type Client struct {
	db     *circuitbreaker.DatabaseWrapper
	logger *zap.Logger

	// Write queues for async operations, one per worker. Writes for the same
	// task always land on the same queue so they apply in order.
	queues   []chan WriteRequest
	stopCh   chan struct{}
	workerWg sync.WaitGroup
	closed   sync.Once

	// enqueueWait bounds how long a task write waits for room on a full queue
	enqueueWait time.Duration
}

// WriteRequest represents an async write operation
type WriteRequest struct {
	Type     WriteType
	Key      string
	Data     interface{}
	Callback func(error)
}

type WriteType int

const (
	WriteTypeTaskExecution WriteType = iota
	WriteTypeTaskUpdate
	WriteTypeAgentLog
)

// String returns the string representation of WriteType
func (wt WriteType) String() string {
	switch wt {
	case WriteTypeTaskExecution:
		return "TaskExecution"
	case WriteTypeTaskUpdate:
		return "TaskUpdate"
	case WriteTypeAgentLog:
		return "AgentLog"
	default:
		return "Unknown"
	}
}

// ordered reports whether writes of this type must apply in queue order for their key
func (wt WriteType) ordered() bool {
	return wt == WriteTypeTaskExecution || wt == WriteTypeTaskUpdate
}

// ParseURL maps a DATABASE_URL to a driver name and DSN
func ParseURL(raw string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(raw, "sqlite:///"):
		return "sqlite3", strings.TrimPrefix(raw, "sqlite:///"), nil
	case strings.HasPrefix(raw, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(raw, "sqlite://"), nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return "postgres", raw, nil
	default:
		return "", "", fmt.Errorf("unsupported database url %q", raw)
	}
}

// NewClient opens the database, creates the schema and starts the write workers
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	driver, dsn, err := ParseURL(config.URL)
	if err != nil {
		return nil, err
	}
	if config.MaxConnections == 0 {
		config.MaxConnections = 25
	}
	if config.IdleConnections == 0 {
		config.IdleConnections = 5
	}
	if config.MaxLifetime == 0 {
		config.MaxLifetime = 5 * time.Minute
	}

	if driver == "sqlite3" {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		// sqlite serialises writers; one connection avoids "database is locked"
		config.MaxConnections = 1
		config.IdleConnections = 1
	}

	rawDB, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	rawDB.SetMaxOpenConns(config.MaxConnections)
	rawDB.SetMaxIdleConns(config.IdleConnections)
	rawDB.SetConnMaxLifetime(config.MaxLifetime)

	db := circuitbreaker.NewDatabaseWrapper(rawDB, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	client := newClient(db, config, logger)
	if err := client.EnsureSchema(ctx); err != nil {
		client.Close()
		return nil, err
	}

	go client.healthCheck()

	logger.Info("Database client initialized",
		zap.String("driver", driver),
		zap.Int("max_connections", config.MaxConnections),
		zap.Int("workers", len(client.queues)),
	)
	return client, nil
}

func newClient(db *circuitbreaker.DatabaseWrapper, config *Config, logger *zap.Logger) *Client {
	workers := config.Workers
	if workers <= 0 {
		workers = 4
	}
	size := config.QueueSize
	if size <= 0 {
		size = 256
	}
	c := &Client{
		db:     db,
		logger: logger,
		queues: make([]chan WriteRequest, workers),
		stopCh: make(chan struct{}),

		enqueueWait: 5 * time.Second,
	}
	for i := range c.queues {
		c.queues[i] = make(chan WriteRequest, size)
		c.workerWg.Add(1)
		go c.writeWorker(i)
	}
	return c
}

// writeWorker processes write requests from its queue
func (c *Client) writeWorker(id int) {
	defer c.workerWg.Done()
	c.logger.Debug("Write worker started", zap.Int("worker_id", id))

	queue := c.queues[id]
	for {
		select {
		case <-c.stopCh:
			c.drainQueue(queue)
			c.logger.Debug("Write worker stopped", zap.Int("worker_id", id))
			return
		case req := <-queue:
			c.processWrite(req)
		}
	}
}

// processWrite handles a single write request
func (c *Client) processWrite(req WriteRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	switch req.Type {
	case WriteTypeTaskExecution:
		if task, ok := req.Data.(*TaskExecution); ok {
			err = c.SaveTaskExecution(ctx, task)
		}
	case WriteTypeTaskUpdate:
		if update, ok := req.Data.(*taskUpdate); ok {
			err = c.updateTaskExecution(ctx, update)
		}
	case WriteTypeAgentLog:
		if entry, ok := req.Data.(*AgentLog); ok {
			err = c.SaveAgentLog(ctx, entry)
		}
	}

	if req.Callback != nil {
		req.Callback(err)
	}

	if err != nil {
		metrics.PersistenceErrors.WithLabelValues(req.Type.String()).Inc()
		c.logger.Warn("Failed to process write request (continuing)",
			zap.String("type", req.Type.String()),
			zap.String("key", req.Key),
			zap.Error(err),
		)
	}
}

// drainQueue processes remaining requests during shutdown
func (c *Client) drainQueue(queue chan WriteRequest) {
	timeout := time.After(10 * time.Second)
	for {
		select {
		case req := <-queue:
			c.processWrite(req)
		case <-timeout:
			c.logger.Warn("Timeout draining write queue")
			return
		default:
			return
		}
	}
}

func (c *Client) queueFor(key string) chan WriteRequest {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.queues[h.Sum32()%uint32(len(c.queues))]
}

// QueueWrite adds a write request to the async queue of its key
func (c *Client) QueueWrite(writeType WriteType, key string, data interface{}, callback func(error)) error {
	req := WriteRequest{Type: writeType, Key: key, Data: data, Callback: callback}
	select {
	case <-c.stopCh:
		return fmt.Errorf("database client is closed")
	default:
	}

	queue := c.queueFor(key)
	select {
	case queue <- req:
		return nil
	default:
	}

	// Task rows are created then updated on the same queue. Skipping ahead of a
	// queued insert would leave the update matching no row, so wait for room.
	if writeType.ordered() {
		timer := time.NewTimer(c.enqueueWait)
		defer timer.Stop()
		select {
		case queue <- req:
			return nil
		case <-c.stopCh:
			return fmt.Errorf("database client is closed")
		case <-timer.C:
		}
	}

	// Queue is full - use synchronous fallback to avoid dropping writes
	c.logger.Warn("Write queue is full, falling back to synchronous write",
		zap.String("type", writeType.String()),
		zap.String("key", key))
	c.processWrite(req)
	return nil
}

// healthCheck periodically checks database connectivity
func (c *Client) healthCheck() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.db.PingContext(ctx); err != nil {
				c.logger.Error("Database health check failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Close drains pending writes and closes the connection
func (c *Client) Close() error {
	var err error
	c.closed.Do(func() {
		c.logger.Info("Shutting down database client")
		close(c.stopCh)
		c.workerWg.Wait()

		if cerr := c.db.Close(); cerr != nil {
			err = fmt.Errorf("failed to close database: %w", cerr)
			return
		}
		c.logger.Info("Database client closed")
	})
	return err
}

// Wrapper returns the underlying DatabaseWrapper for health checks and monitoring
func (c *Client) Wrapper() *circuitbreaker.DatabaseWrapper {
	return c.db
}
