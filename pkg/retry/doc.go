// Package retry holds the shared retry decision logic for task failures.
// Retries only ever decrease; once exhausted, the next failure is terminal.
package retry
