package dispatch

import (
	"context"
	"time"

	"github.com/gridmesh/gridmesh/pkg/log"
	"github.com/gridmesh/gridmesh/pkg/transport"
	"github.com/gridmesh/gridmesh/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultSendTimeout bounds one command send to a node
const DefaultSendTimeout = 10 * time.Second

// Sink receives dispatch outcomes. The coordinator implements it and
// serializes the calls against all other state mutation; it also enforces
// the no-resurrection rule (outcomes for tasks no longer assigned/running
// are dropped there, never here).
type Sink interface {
	TaskRunning(taskID, nodeID string)
	TaskOutcome(res transport.Result)
	DispatchFailed(taskID, nodeID string, err error)
}

// Dispatcher sends assignment and cancel commands to nodes via the
// abstract transport and reconciles asynchronous outcomes into the sink.
type Dispatcher struct {
	transport   transport.Transport
	sink        Sink
	sendTimeout time.Duration
	logger      zerolog.Logger
	stopCh      chan struct{}
}

// New creates a dispatcher. sendTimeout <= 0 selects the default.
func New(tr transport.Transport, sink Sink, sendTimeout time.Duration) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Dispatcher{
		transport:   tr,
		sink:        sink,
		sendTimeout: sendTimeout,
		logger:      log.WithComponent("dispatcher"),
		stopCh:      make(chan struct{}),
	}
}

// Start begins consuming transport results
func (d *Dispatcher) Start() {
	go d.run()
}

// Stop stops the result loop
func (d *Dispatcher) Stop() {
	close(d.stopCh)
}

// Assign sends an executeTask command asynchronously. The command is built
// while the caller still holds the coordinator lock, so the task fields are
// stable; the network round trip happens off the scheduling path. A send
// failure is reported as a dispatch failure; an ack moves the task to
// running.
func (d *Dispatcher) Assign(task *types.ComputeTask, node *types.ComputeNode) {
	cmd := transport.Command{
		Type:         transport.CommandExecuteTask,
		TaskID:       task.ID,
		TaskType:     task.Type,
		Payload:      task.Payload,
		Requirements: &task.Requirements,
		Constraints:  &task.Constraints,
	}
	nodeID, addr := node.ID, node.Address

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		defer cancel()

		if err := d.transport.Send(ctx, nodeID, addr, cmd); err != nil {
			d.logger.Warn().Err(err).Str("task_id", cmd.TaskID).
				Str("node_id", nodeID).Msg("dispatch failed")
			d.sink.DispatchFailed(cmd.TaskID, nodeID, err)
			return
		}
		d.sink.TaskRunning(cmd.TaskID, nodeID)
	}()
}

// Cancel sends a best-effort cancelTask command. It does not guarantee the
// remote stops; stale completions are dropped by the sink.
func (d *Dispatcher) Cancel(taskID string, node *types.ComputeNode) {
	if node == nil {
		return
	}
	cmd := transport.Command{
		Type:   transport.CommandCancelTask,
		TaskID: taskID,
	}
	nodeID, addr := node.ID, node.Address

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		defer cancel()

		if err := d.transport.Send(ctx, nodeID, addr, cmd); err != nil {
			d.logger.Debug().Err(err).Str("task_id", taskID).
				Str("node_id", nodeID).Msg("cancel send failed")
		}
	}()
}

func (d *Dispatcher) run() {
	for {
		select {
		case res, ok := <-d.transport.Results():
			if !ok {
				return
			}
			d.sink.TaskOutcome(res)
		case <-d.stopCh:
			return
		}
	}
}
