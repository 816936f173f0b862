package queue

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gridmesh/gridmesh/pkg/log"
	"github.com/gridmesh/gridmesh/pkg/types"
	"github.com/rs/zerolog"
)

// Store holds all task records plus the ordered backlog of schedulable
// tasks. Like the registry it has no locking of its own; the coordinator
// serializes every access.
type Store struct {
	tasks     map[string]*types.ComputeTask
	pending   map[string]bool
	notBefore map[string]time.Time
	logger    zerolog.Logger
}

// New creates an empty task store
func New() *Store {
	return &Store{
		tasks:     make(map[string]*types.ComputeTask),
		pending:   make(map[string]bool),
		notBefore: make(map[string]time.Time),
		logger:    log.WithComponent("taskstore"),
	}
}

// Submit validates a task spec, fills defaults, and enqueues it pending
func (s *Store) Submit(spec *types.ComputeTask) (*types.ComputeTask, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: nil task spec", types.ErrInvalidSpec)
	}
	if err := validate(spec); err != nil {
		return nil, err
	}

	task := *spec
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if _, exists := s.tasks[task.ID]; exists {
		return nil, fmt.Errorf("%w: task %s already exists", types.ErrInvalidSpec, task.ID)
	}
	for _, dep := range task.DependsOn {
		if _, ok := s.tasks[dep]; !ok {
			return nil, fmt.Errorf("%w: unknown dependency %s", types.ErrInvalidSpec, dep)
		}
	}

	types.ApplyTaskDefaults(&task)
	task.Status = types.TaskStatusPending
	task.AssignedNode = ""
	task.CreatedAt = time.Now()

	s.tasks[task.ID] = &task
	s.pending[task.ID] = true
	return &task, nil
}

func validate(spec *types.ComputeTask) error {
	req := spec.Requirements
	if req.MinCPUCores < 0 || req.MinMemoryBytes < 0 || req.MinGPUMemoryBytes < 0 {
		return fmt.Errorf("%w: negative resource requirement", types.ErrInvalidSpec)
	}
	if req.MaxLatencyMs < 0 {
		return fmt.Errorf("%w: negative latency ceiling", types.ErrInvalidSpec)
	}
	if spec.Constraints.MaxRetries < 0 {
		return fmt.Errorf("%w: negative max retries", types.ErrInvalidSpec)
	}
	return nil
}

// Get returns a task by id
func (s *Store) Get(id string) (*types.ComputeTask, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTaskNotFound, id)
	}
	return task, nil
}

// List returns all tasks sorted by creation time, then id
func (s *Store) List() []*types.ComputeTask {
	out := make([]*types.ComputeTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListByNode returns the tasks currently assigned to or running on a node
func (s *Store) ListByNode(nodeID string) []*types.ComputeTask {
	var out []*types.ComputeTask
	for _, t := range s.List() {
		if t.AssignedNode == nodeID && t.Status.Active() {
			out = append(out, t)
		}
	}
	return out
}

// NextBatch returns the schedulable backlog: pending tasks whose every
// dependency is completed, ordered by priority descending then creation
// time ascending then id. The ordering is stable and deterministic.
func (s *Store) NextBatch() []*types.ComputeTask {
	now := time.Now()
	var out []*types.ComputeTask
	for id := range s.pending {
		if nb, ok := s.notBefore[id]; ok && now.Before(nb) {
			continue
		}
		task := s.tasks[id]
		if s.dependenciesCompleted(task) {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) dependenciesCompleted(task *types.ComputeTask) bool {
	for _, dep := range task.DependsOn {
		d, ok := s.tasks[dep]
		if !ok || d.Status != types.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// PendingTasks returns every queued task, ready or blocked, for sweeps
func (s *Store) PendingTasks() []*types.ComputeTask {
	var out []*types.ComputeTask
	for id := range s.pending {
		out = append(out, s.tasks[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Dequeue removes a task from the pending backlog (it stays in the store)
func (s *Store) Dequeue(id string) {
	delete(s.pending, id)
	delete(s.notBefore, id)
}

// Requeue puts a task back into the backlog at its original priority,
// clearing any node assignment.
func (s *Store) Requeue(task *types.ComputeTask) {
	s.RequeueAfter(task, 0)
}

// RequeueAfter requeues a task that becomes schedulable only after the
// given delay (retry backoff).
func (s *Store) RequeueAfter(task *types.ComputeTask, delay time.Duration) {
	task.Status = types.TaskStatusPending
	task.AssignedNode = ""
	task.StartedAt = time.Time{}
	s.pending[task.ID] = true
	if delay > 0 {
		s.notBefore[task.ID] = time.Now().Add(delay)
	}
}

// QueueLength returns the number of queued tasks
func (s *Store) QueueLength() int {
	return len(s.pending)
}

// Queued reports whether a task is in the pending backlog
func (s *Store) Queued(id string) bool {
	return s.pending[id]
}

// CountByStatus returns the number of tasks in the given status
func (s *Store) CountByStatus(status types.TaskStatus) int {
	n := 0
	for _, t := range s.tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

// Dependents returns ids of tasks that directly depend on the given task
func (s *Store) Dependents(id string) []string {
	var out []string
	for _, t := range s.List() {
		for _, dep := range t.DependsOn {
			if dep == id {
				out = append(out, t.ID)
				break
			}
		}
	}
	return out
}
