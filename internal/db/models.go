package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Task statuses
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// JSONB is a JSON object column (jsonb on postgres, text on sqlite)
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	data, err := scanBytes(value)
	if err != nil || data == nil {
		*j = nil
		return err
	}
	return json.Unmarshal(data, j)
}

// StringList is a JSON array column
type StringList []string

// Value implements the driver.Valuer interface
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface
func (s *StringList) Scan(value interface{}) error {
	data, err := scanBytes(value)
	if err != nil || data == nil {
		*s = nil
		return err
	}
	return json.Unmarshal(data, s)
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot scan %T into JSON column", value)
	}
}

// TaskExecution is the persisted record of one coordinator invocation
type TaskExecution struct {
	TaskID         string     `db:"task_id" json:"task_id"`
	TaskType       string     `db:"task_type" json:"task_type"`
	Status         string     `db:"status" json:"status"`
	InputData      JSONB      `db:"input_data" json:"input_data"`
	OutputData     JSONB      `db:"output_data" json:"output_data,omitempty"`
	AgentsInvolved StringList `db:"agents_involved" json:"agents_involved"`
	ErrorMessage   *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// AgentLog is one append-only audit entry
type AgentLog struct {
	ID        string    `db:"id" json:"id"`
	TaskID    string    `db:"task_id" json:"task_id"`
	AgentName string    `db:"agent_name" json:"agent_name"`
	Action    string    `db:"action" json:"action"`
	Reasoning string    `db:"reasoning" json:"reasoning"`
	Metadata  JSONB     `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}

// taskUpdate moves an in-progress task to a terminal state
type taskUpdate struct {
	TaskID       string
	Status       string
	OutputData   JSONB
	ErrorMessage *string
	CompletedAt  time.Time
}
