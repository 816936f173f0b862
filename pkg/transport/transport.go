package transport

import (
	"context"
	"time"

	"github.com/gridmesh/gridmesh/pkg/types"
)

// CommandType tags a node command
type CommandType string

const (
	CommandExecuteTask CommandType = "execute_task"
	CommandCancelTask  CommandType = "cancel_task"
)

// Command is an instruction sent to a node agent
type Command struct {
	Type         CommandType             `json:"type"`
	TaskID       string                  `json:"task_id"`
	TaskType     types.TaskType          `json:"task_type,omitempty"`
	Payload      []byte                  `json:"payload,omitempty"`
	Requirements *types.TaskRequirements `json:"requirements,omitempty"`
	Constraints  *types.TaskConstraints  `json:"constraints,omitempty"`
}

// Outcome is the terminal result a node reports for a task
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Result is an asynchronous execution outcome arriving out-of-band
type Result struct {
	TaskID        string        `json:"task_id"`
	NodeID        string        `json:"node_id"`
	Outcome       Outcome       `json:"outcome"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	CPUPercent    float64       `json:"cpu_percent,omitempty"`
	MemoryPercent float64       `json:"memory_percent,omitempty"`
}

// Transport is the abstract, asynchronous channel to node agents.
//
// Send must not block longer than the context allows; a send error is
// treated by the dispatcher exactly like an execution failure. Execution
// outcomes arrive later on Results, at arbitrary times relative to any
// other coordinator activity.
type Transport interface {
	Send(ctx context.Context, nodeID, addr string, cmd Command) error
	Results() <-chan Result
	Close() error
}
