package transport

import (
	"context"
	"sync"
)

// SentCommand records one Send call made through the fake
type SentCommand struct {
	NodeID string
	Addr   string
	Cmd    Command
}

// Fake is a deterministic in-memory transport for tests and local runs.
// Tests script send failures per task and push outcomes with Deliver.
type Fake struct {
	mu       sync.Mutex
	sent     []SentCommand
	sendErrs map[string][]error
	results  chan Result
}

// NewFake creates a fake transport
func NewFake() *Fake {
	return &Fake{
		sendErrs: make(map[string][]error),
		results:  make(chan Result, 256),
	}
}

// FailSendOnce makes the next Send for the given task fail with err.
// Queued errors are consumed in order; later sends succeed.
func (f *Fake) FailSendOnce(taskID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErrs[taskID] = append(f.sendErrs[taskID], err)
}

// Send records the command and returns any scripted error
func (f *Fake) Send(_ context.Context, nodeID, addr string, cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, SentCommand{NodeID: nodeID, Addr: addr, Cmd: cmd})
	if errs := f.sendErrs[cmd.TaskID]; len(errs) > 0 {
		f.sendErrs[cmd.TaskID] = errs[1:]
		return errs[0]
	}
	return nil
}

// Results returns the outcome stream
func (f *Fake) Results() <-chan Result {
	return f.results
}

// Deliver pushes an execution outcome to the dispatcher
func (f *Fake) Deliver(res Result) {
	f.results <- res
}

// Sent returns a copy of all commands sent so far
func (f *Fake) Sent() []SentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentCommand, len(f.sent))
	copy(out, f.sent)
	return out
}

// SentFor returns the commands sent for one task
func (f *Fake) SentFor(taskID string) []SentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentCommand
	for _, s := range f.sent {
		if s.Cmd.TaskID == taskID {
			out = append(out, s)
		}
	}
	return out
}

// Close shuts the fake down
func (f *Fake) Close() error {
	close(f.results)
	return nil
}
