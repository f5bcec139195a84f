package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const databaseService = "database-client"

// DatabaseWrapper wraps sqlx database operations with circuit breaker
type DatabaseWrapper struct {
	db     *sqlx.DB
	cb     *CircuitBreaker
	logger *zap.Logger
}

// NewDatabaseWrapper creates a database wrapper with circuit breaker
func NewDatabaseWrapper(db *sqlx.DB, logger *zap.Logger) *DatabaseWrapper {
	config := GetDatabaseConfig().ToConfig()
	// sql.ErrNoRows is a lookup miss, not an unhealthy database.
	config.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, sql.ErrNoRows)
	}
	name := db.DriverName()
	cb := NewCircuitBreaker(name, config, logger)
	GlobalMetricsCollector.RegisterCircuitBreaker(name, databaseService, cb)

	return &DatabaseWrapper{
		db:     db,
		cb:     cb,
		logger: logger,
	}
}

func (dw *DatabaseWrapper) run(ctx context.Context, fn func() error) error {
	err := dw.cb.Execute(ctx, fn)
	success := err == nil || errors.Is(err, sql.ErrNoRows)
	GlobalMetricsCollector.RecordRequest(dw.cb.Name(), databaseService, dw.cb.State(), success)
	return err
}

// PingContext wraps database ping with circuit breaker
func (dw *DatabaseWrapper) PingContext(ctx context.Context) error {
	return dw.run(ctx, func() error {
		return dw.db.PingContext(ctx)
	})
}

// ExecContext wraps database exec with circuit breaker
func (dw *DatabaseWrapper) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := dw.run(ctx, func() error {
		var err error
		result, err = dw.db.ExecContext(ctx, query, args...)
		return err
	})
	return result, err
}

// GetContext scans a single row into dest; a missing row returns sql.ErrNoRows
func (dw *DatabaseWrapper) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return dw.run(ctx, func() error {
		return dw.db.GetContext(ctx, dest, query, args...)
	})
}

// SelectContext scans all rows into dest
func (dw *DatabaseWrapper) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return dw.run(ctx, func() error {
		return dw.db.SelectContext(ctx, dest, query, args...)
	})
}

// Rebind converts ? placeholders to the driver's bindvar style
func (dw *DatabaseWrapper) Rebind(query string) string {
	return dw.db.Rebind(query)
}

// DriverName returns the driver the database was opened with
func (dw *DatabaseWrapper) DriverName() string {
	return dw.db.DriverName()
}

// Close closes the database connection
func (dw *DatabaseWrapper) Close() error {
	return dw.db.Close()
}

// GetDB returns the underlying database connection
func (dw *DatabaseWrapper) GetDB() *sqlx.DB {
	return dw.db
}

// IsCircuitBreakerOpen reports whether database calls are currently short-circuited
func (dw *DatabaseWrapper) IsCircuitBreakerOpen() bool {
	return dw.cb.IsOpen()
}
