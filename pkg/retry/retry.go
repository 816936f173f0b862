package retry

import "time"

// Policy is the shared retry decision logic applied to every task failure:
// dispatch errors, remote execution errors, and node loss all flow through
// the same path.
type Policy struct {
	// Backoff delays a requeued task from becoming schedulable again.
	// Zero requeues immediately.
	Backoff time.Duration
}

// Decision is the outcome of a retry evaluation
type Decision struct {
	Requeue bool
	Delay   time.Duration
}

// Decide consumes one retry. retriesLeft is the task's counter before this
// failure: a positive value buys a requeue, zero or less is terminal.
func (p Policy) Decide(retriesLeft int) Decision {
	if retriesLeft > 0 {
		return Decision{Requeue: true, Delay: p.Backoff}
	}
	return Decision{}
}
