// Package client is the Go client for the coordinator's control API,
// shared by the CLI and by node agents.
package client
