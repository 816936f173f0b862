package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gridmesh/gridmesh/pkg/coordinator"
	"github.com/gridmesh/gridmesh/pkg/history"
	"github.com/gridmesh/gridmesh/pkg/registry"
	"github.com/gridmesh/gridmesh/pkg/transport"
	"github.com/gridmesh/gridmesh/pkg/types"
)

// Client talks to the coordinator's control API. It is used by the CLI and
// by node agents (registration, heartbeats, result reporting).
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the coordinator at baseURL (e.g. http://host:9400)
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// --- Nodes ---

// RegisterNode registers a node and returns the stored record
func (c *Client) RegisterNode(ctx context.Context, spec *types.ComputeNode) (*types.ComputeNode, error) {
	var node types.ComputeNode
	if err := c.do(ctx, http.MethodPost, "/v1/nodes", spec, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// UnregisterNode removes a node
func (c *Client) UnregisterNode(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/nodes/"+id, nil, nil)
}

// GetNode fetches one node
func (c *Client) GetNode(ctx context.Context, id string) (*types.ComputeNode, error) {
	var node types.ComputeNode
	if err := c.do(ctx, http.MethodGet, "/v1/nodes/"+id, nil, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// ListNodes fetches all nodes
func (c *Client) ListNodes(ctx context.Context) ([]*types.ComputeNode, error) {
	var nodes []*types.ComputeNode
	if err := c.do(ctx, http.MethodGet, "/v1/nodes", nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Heartbeat refreshes a node's liveness
func (c *Client) Heartbeat(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/v1/nodes/"+id+"/heartbeat", nil, nil)
}

// UpdateResources pushes a live resource report
func (c *Client) UpdateResources(ctx context.Context, id string, update registry.ResourceUpdate) error {
	return c.do(ctx, http.MethodPut, "/v1/nodes/"+id+"/resources", update, nil)
}

// --- Tasks ---

// SubmitTask enqueues a task
func (c *Client) SubmitTask(ctx context.Context, spec *types.ComputeTask) (*types.ComputeTask, error) {
	var task types.ComputeTask
	if err := c.do(ctx, http.MethodPost, "/v1/tasks", spec, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask fetches one task
func (c *Client) GetTask(ctx context.Context, id string) (*types.ComputeTask, error) {
	var task types.ComputeTask
	if err := c.do(ctx, http.MethodGet, "/v1/tasks/"+id, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks fetches all tasks
func (c *Client) ListTasks(ctx context.Context) ([]*types.ComputeTask, error) {
	var tasks []*types.ComputeTask
	if err := c.do(ctx, http.MethodGet, "/v1/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CancelTask cancels a task
func (c *Client) CancelTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/tasks/"+id, nil, nil)
}

// ReportResult pushes an execution outcome back to the coordinator
func (c *Client) ReportResult(ctx context.Context, res transport.Result) error {
	return c.do(ctx, http.MethodPost, "/v1/tasks/"+res.TaskID+"/result", res, nil)
}

// --- Jobs ---

// SubmitJob submits a job with inline tasks and edges
func (c *Client) SubmitJob(ctx context.Context, spec *coordinator.JobSpec) (*types.DistributedJob, error) {
	var job types.DistributedJob
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", spec, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob fetches one job
func (c *Client) GetJob(ctx context.Context, id string) (*types.DistributedJob, error) {
	var job types.DistributedJob
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+id, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs fetches all jobs
func (c *Client) ListJobs(ctx context.Context) ([]*types.DistributedJob, error) {
	var jobs []*types.DistributedJob
	if err := c.do(ctx, http.MethodGet, "/v1/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// --- Clusters ---

// CreateCluster registers an edge cluster
func (c *Client) CreateCluster(ctx context.Context, spec *types.EdgeCluster) (*types.EdgeCluster, error) {
	var cl types.EdgeCluster
	if err := c.do(ctx, http.MethodPost, "/v1/clusters", spec, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

// GetCluster fetches one cluster
func (c *Client) GetCluster(ctx context.Context, id string) (*types.EdgeCluster, error) {
	var cl types.EdgeCluster
	if err := c.do(ctx, http.MethodGet, "/v1/clusters/"+id, nil, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

// ListClusters fetches all clusters
func (c *Client) ListClusters(ctx context.Context) ([]*types.EdgeCluster, error) {
	var clusters []*types.EdgeCluster
	if err := c.do(ctx, http.MethodGet, "/v1/clusters", nil, &clusters); err != nil {
		return nil, err
	}
	return clusters, nil
}

// AddNodeToCluster places a node into a cluster
func (c *Client) AddNodeToCluster(ctx context.Context, clusterID, nodeID string) error {
	return c.do(ctx, http.MethodPut, "/v1/clusters/"+clusterID+"/nodes/"+nodeID, nil, nil)
}

// RemoveNodeFromCluster detaches a node from a cluster
func (c *Client) RemoveNodeFromCluster(ctx context.Context, clusterID, nodeID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/clusters/"+clusterID+"/nodes/"+nodeID, nil, nil)
}

// ScaleCluster adjusts a cluster toward a target member count
func (c *Client) ScaleCluster(ctx context.Context, clusterID string, target int) error {
	body := struct {
		Target int `json:"target"`
	}{Target: target}
	return c.do(ctx, http.MethodPost, "/v1/clusters/"+clusterID+"/scale", body, nil)
}

// --- Observability ---

// Status fetches the cluster-wide rollup
func (c *Client) Status(ctx context.Context) (*types.ClusterSnapshot, error) {
	var snap types.ClusterSnapshot
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// History fetches the most recent archived terminal tasks
func (c *Client) History(ctx context.Context, limit int) ([]*history.Record, error) {
	var records []*history.Record
	path := fmt.Sprintf("/v1/history?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}
