package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gridmesh/gridmesh/pkg/log"
	"github.com/gridmesh/gridmesh/pkg/types"
	"github.com/rs/zerolog"
)

// HTTPTransport posts commands to node agents over HTTP. A 2xx response
// acknowledges acceptance only; execution results are pushed back by the
// agent to the coordinator's result endpoint, which feeds Deliver.
type HTTPTransport struct {
	client  *http.Client
	results chan Result
	logger  zerolog.Logger
}

// NewHTTP creates an HTTP transport
func NewHTTP() *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		results: make(chan Result, 256),
		logger:  log.WithComponent("transport"),
	}
}

// Send posts a command to the agent at addr
func (t *HTTPTransport) Send(ctx context.Context, nodeID, addr string, cmd Command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("%w: encode command: %v", types.ErrDispatchFailure, err)
	}

	url := fmt.Sprintf("http://%s/v1/commands", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrDispatchFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: node %s: %v", types.ErrDispatchFailure, nodeID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: node %s returned %d", types.ErrDispatchFailure, nodeID, resp.StatusCode)
	}
	return nil
}

// Results returns the stream of execution outcomes
func (t *HTTPTransport) Results() <-chan Result {
	return t.results
}

// Deliver injects a result reported by a node agent (called by the
// coordinator's result endpoint).
func (t *HTTPTransport) Deliver(res Result) {
	select {
	case t.results <- res:
	default:
		t.logger.Warn().Str("task_id", res.TaskID).Msg("result buffer full, dropping")
	}
}

// Close shuts the transport down
func (t *HTTPTransport) Close() error {
	close(t.results)
	return nil
}
