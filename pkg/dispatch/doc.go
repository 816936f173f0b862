/*
Package dispatch sends task commands to nodes and reconciles outcomes.

The dispatcher never blocks the scheduler tick on a network round trip:
Assign builds the command synchronously and performs the send on its own
goroutine with a per-task timeout. Send failures and remote execution
results are funneled into a Sink implemented by the coordinator, which
applies them through its single-writer path.
*/
package dispatch
