// Package agent is the node-side daemon. It registers the host with the
// coordinator using detected hardware capabilities, reports utilization on
// an interval (which doubles as the heartbeat), accepts execute and cancel
// commands over HTTP, and pushes execution results back to the coordinator.
package agent
