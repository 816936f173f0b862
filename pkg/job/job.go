package job

import (
	"fmt"
	"time"

	"github.com/gridmesh/gridmesh/pkg/log"
	"github.com/gridmesh/gridmesh/pkg/types"
	"github.com/rs/zerolog"
)

// ConditionEvaluator gates conditional dependency edges. It is consulted
// when the upstream task of a conditional edge reaches a terminal state;
// returning false cancels the downstream task. The evaluator is an external
// collaborator; the default considers the condition met iff the upstream
// task completed.
type ConditionEvaluator interface {
	Evaluate(job *types.DistributedJob, edge types.JobEdge, upstream *types.ComputeTask) bool
}

type completedUpstream struct{}

func (completedUpstream) Evaluate(_ *types.DistributedJob, _ types.JobEdge, upstream *types.ComputeTask) bool {
	return upstream.Status == types.TaskStatusCompleted
}

// Orchestrator groups tasks into jobs and derives job-level status and
// progress. It observes task state through a lookup callback and never
// mutates task state itself; the coordinator serializes all access.
type Orchestrator struct {
	jobs      map[string]*types.DistributedJob
	taskToJob map[string]string
	evaluator ConditionEvaluator
	logger    zerolog.Logger
}

// New creates an orchestrator. A nil evaluator selects the default
// (conditional edges fire iff the upstream task completed).
func New(evaluator ConditionEvaluator) *Orchestrator {
	if evaluator == nil {
		evaluator = completedUpstream{}
	}
	return &Orchestrator{
		jobs:      make(map[string]*types.DistributedJob),
		taskToJob: make(map[string]string),
		evaluator: evaluator,
		logger:    log.WithComponent("jobs"),
	}
}

// Add registers a job whose tasks already exist in the task store
func (o *Orchestrator) Add(job *types.DistributedJob) error {
	if job == nil || len(job.TaskIDs) == 0 {
		return fmt.Errorf("%w: job needs at least one task", types.ErrInvalidSpec)
	}
	if _, exists := o.jobs[job.ID]; exists {
		return fmt.Errorf("%w: job %s already exists", types.ErrInvalidSpec, job.ID)
	}
	if job.FailureThreshold <= 0 {
		job.FailureThreshold = types.DefaultFailureThreshold
	}
	job.Status = types.JobStatusPending
	job.Progress = 0
	job.CreatedAt = time.Now()

	o.jobs[job.ID] = job
	for _, taskID := range job.TaskIDs {
		o.taskToJob[taskID] = job.ID
	}
	return nil
}

// Get returns a job by id
func (o *Orchestrator) Get(id string) (*types.DistributedJob, error) {
	job, ok := o.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrJobNotFound, id)
	}
	return job, nil
}

// List returns all jobs
func (o *Orchestrator) List() []*types.DistributedJob {
	out := make([]*types.DistributedJob, 0, len(o.jobs))
	for _, j := range o.jobs {
		out = append(out, j)
	}
	return out
}

// JobFor returns the job owning the given task, if any
func (o *Orchestrator) JobFor(taskID string) (*types.DistributedJob, bool) {
	jobID, ok := o.taskToJob[taskID]
	if !ok {
		return nil, false
	}
	return o.jobs[jobID], true
}

// Recompute re-derives a job's status and progress from its member tasks.
// Terminal job states are final: once completed/failed/cancelled the job
// never changes again. Returns true when status or progress changed.
func (o *Orchestrator) Recompute(jobID string, lookup func(string) (*types.ComputeTask, error)) bool {
	job, ok := o.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return false
	}

	total := len(job.TaskIDs)
	var completed, failed, cancelled, terminal, active int
	for _, taskID := range job.TaskIDs {
		task, err := lookup(taskID)
		if err != nil {
			continue
		}
		switch task.Status {
		case types.TaskStatusCompleted:
			completed++
			terminal++
		case types.TaskStatusFailed:
			failed++
			terminal++
		case types.TaskStatusCancelled:
			cancelled++
			terminal++
		case types.TaskStatusAssigned, types.TaskStatusRunning:
			active++
		}
	}

	prevStatus, prevProgress := job.Status, job.Progress
	job.Progress = float64(completed) / float64(total) * 100

	switch {
	case completed == total:
		job.Status = types.JobStatusCompleted
	case float64(failed)/float64(total) > job.FailureThreshold:
		job.Status = types.JobStatusFailed
	case terminal == total && cancelled > 0 && failed == 0:
		job.Status = types.JobStatusCancelled
	case terminal == total:
		// Every member is terminal but not all completed: the job can
		// never reach 100%, so it is failed regardless of the threshold.
		job.Status = types.JobStatusFailed
	case active > 0 || terminal > 0:
		job.Status = types.JobStatusRunning
	default:
		job.Status = types.JobStatusPending
	}

	if job.Status.Terminal() {
		job.CompletedAt = time.Now()
		o.logger.Info().Str("job_id", job.ID).Str("status", string(job.Status)).
			Float64("progress", job.Progress).Msg("job reached terminal state")
	}

	return job.Status != prevStatus || job.Progress != prevProgress
}

// ConditionalCancellations returns the downstream task ids whose conditional
// edge condition failed, given that the upstream task reached a terminal
// state. The caller cancels them.
func (o *Orchestrator) ConditionalCancellations(upstream *types.ComputeTask) []string {
	job, ok := o.JobFor(upstream.ID)
	if !ok {
		return nil
	}
	var out []string
	for _, edge := range job.Edges {
		if edge.Kind != types.EdgeConditional || edge.From != upstream.ID {
			continue
		}
		if !o.evaluator.Evaluate(job, edge, upstream) {
			out = append(out, edge.To)
		}
	}
	return out
}
