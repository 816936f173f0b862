package coordinator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gridmesh/gridmesh/pkg/events"
	"github.com/gridmesh/gridmesh/pkg/types"
)

// JobSpec is a job submission: inline task specs plus the dependency edges
// between them. Edges reference the inline task ids.
type JobSpec struct {
	ID               string               `json:"id,omitempty"`
	Name             string               `json:"name"`
	Priority         int                  `json:"priority"`
	FailureThreshold float64              `json:"failure_threshold,omitempty"`
	Tasks            []*types.ComputeTask `json:"tasks"`
	Edges            []types.JobEdge      `json:"edges,omitempty"`
}

// SubmitJob validates a job spec, expands its edges into task dependencies,
// and submits the member tasks in dependency order. Sequential and
// conditional edges gate scheduling; parallel edges only group tasks.
func (c *Coordinator) SubmitJob(spec *JobSpec) (*types.DistributedJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if spec == nil || len(spec.Tasks) == 0 {
		return nil, fmt.Errorf("%w: job needs at least one task", types.ErrInvalidSpec)
	}
	if spec.ID == "" {
		spec.ID = uuid.New().String()
	}

	byID := make(map[string]*types.ComputeTask, len(spec.Tasks))
	for _, t := range spec.Tasks {
		if t == nil {
			return nil, fmt.Errorf("%w: nil task in job", types.ErrInvalidSpec)
		}
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate task id %s", types.ErrInvalidSpec, t.ID)
		}
		if t.Priority == 0 {
			t.Priority = spec.Priority
		}
		byID[t.ID] = t
	}

	for _, edge := range spec.Edges {
		from, okFrom := byID[edge.From]
		to, okTo := byID[edge.To]
		if !okFrom || !okTo {
			return nil, fmt.Errorf("%w: edge %s->%s references unknown task",
				types.ErrInvalidSpec, edge.From, edge.To)
		}
		if from == to {
			return nil, fmt.Errorf("%w: self edge on task %s", types.ErrInvalidSpec, edge.From)
		}
		switch edge.Kind {
		case types.EdgeSequential, types.EdgeConditional:
			to.DependsOn = append(to.DependsOn, edge.From)
		case types.EdgeParallel:
			// Grouping only, no scheduling constraint
		default:
			return nil, fmt.Errorf("%w: unknown edge kind %q", types.ErrInvalidSpec, edge.Kind)
		}
	}

	order, err := topoOrder(spec.Tasks)
	if err != nil {
		return nil, err
	}

	taskIDs := make([]string, 0, len(spec.Tasks))
	submitted := make([]string, 0, len(spec.Tasks))
	for _, task := range order {
		if _, err := c.tasks.Submit(task); err != nil {
			// Roll back tasks already accepted so a bad job leaves no trace
			for _, id := range submitted {
				if t, getErr := c.tasks.Get(id); getErr == nil {
					c.tasks.Dequeue(t.ID)
					t.Status = types.TaskStatusCancelled
				}
			}
			return nil, fmt.Errorf("job task %s: %w", task.ID, err)
		}
		submitted = append(submitted, task.ID)
	}
	for _, t := range spec.Tasks {
		taskIDs = append(taskIDs, t.ID)
	}

	dj := &types.DistributedJob{
		ID:               spec.ID,
		Name:             spec.Name,
		TaskIDs:          taskIDs,
		Edges:            spec.Edges,
		Priority:         spec.Priority,
		FailureThreshold: spec.FailureThreshold,
	}
	if dj.FailureThreshold <= 0 {
		dj.FailureThreshold = c.cfg.Jobs.FailureThreshold
	}
	if err := c.jobs.Add(dj); err != nil {
		return nil, err
	}

	c.publish(&events.Event{
		Type:    events.EventJobSubmitted,
		JobID:   dj.ID,
		Message: fmt.Sprintf("job %s with %d tasks", dj.Name, len(taskIDs)),
	})
	cp := *dj
	return &cp, nil
}

// GetJob returns a copy of a job
func (c *Coordinator) GetJob(id string) (*types.DistributedJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	j, err := c.jobs.Get(id)
	if err != nil {
		return nil, err
	}
	cp := *j
	return &cp, nil
}

// ListJobs returns copies of all jobs
func (c *Coordinator) ListJobs() []*types.DistributedJob {
	c.mu.Lock()
	defer c.mu.Unlock()

	jobs := c.jobs.List()
	out := make([]*types.DistributedJob, len(jobs))
	for i, j := range jobs {
		cp := *j
		out[i] = &cp
	}
	return out
}

// topoOrder sorts tasks so every dependency precedes its dependents.
// Dependencies on tasks outside the job (pre-existing store tasks) don't
// constrain the ordering. A cycle in the edges is a validation error.
func topoOrder(tasks []*types.ComputeTask) ([]*types.ComputeTask, error) {
	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string)
	byID := make(map[string]*types.ComputeTask, len(tasks))

	for _, t := range tasks {
		byID[t.ID] = t
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, member := byID[dep]; !member {
				continue
			}
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var ready []string
	for _, t := range tasks {
		if indegree[t.ID] == 0 {
			ready = append(ready, t.ID)
		}
	}

	out := make([]*types.ComputeTask, 0, len(tasks))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, byID[id])
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if len(out) != len(tasks) {
		return nil, fmt.Errorf("%w: dependency cycle in job edges", types.ErrInvalidSpec)
	}
	return out, nil
}
