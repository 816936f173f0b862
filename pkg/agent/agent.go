package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/gridmesh/gridmesh/pkg/client"
	"github.com/gridmesh/gridmesh/pkg/log"
	"github.com/gridmesh/gridmesh/pkg/registry"
	"github.com/gridmesh/gridmesh/pkg/transport"
	"github.com/gridmesh/gridmesh/pkg/types"
)

// DefaultReportInterval paces heartbeat and resource reports
const DefaultReportInterval = 15 * time.Second

// Config configures a node agent
type Config struct {
	NodeID         string
	Coordinator    string // control API base URL
	ListenAddr     string // where the command server binds
	AdvertiseAddr  string // host:port the coordinator dials, defaults to ListenAddr
	Region         string
	Zone           string
	Type           types.NodeType
	Tags           []types.Capability
	ReportInterval time.Duration
}

// Agent runs on a compute node: it registers with the coordinator, reports
// liveness and resource usage, executes dispatched commands, and pushes
// results back. Execution is simulated: a task occupies the agent for its
// estimated duration, and a payload beginning with "error:" fails with the
// rest of the payload as the message.
type Agent struct {
	cfg    Config
	client *client.Client
	srv    *http.Server
	logger zerolog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
	active  int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates an agent
func New(cfg Config) *Agent {
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = DefaultReportInterval
	}
	if cfg.AdvertiseAddr == "" {
		cfg.AdvertiseAddr = cfg.ListenAddr
	}
	a := &Agent{
		cfg:     cfg,
		client:  client.New(cfg.Coordinator),
		running: make(map[string]context.CancelFunc),
		logger:  log.WithComponent("agent"),
		stopCh:  make(chan struct{}),
	}
	a.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

// Start registers the node and begins serving commands and reporting
func (a *Agent) Start(ctx context.Context) error {
	caps, err := a.detectCapabilities()
	if err != nil {
		return fmt.Errorf("detect capabilities: %w", err)
	}

	node, err := a.client.RegisterNode(ctx, &types.ComputeNode{
		ID:           a.cfg.NodeID,
		Address:      a.cfg.AdvertiseAddr,
		Region:       a.cfg.Region,
		Zone:         a.cfg.Zone,
		Type:         a.cfg.Type,
		Capabilities: caps,
	})
	if err != nil {
		return fmt.Errorf("register node: %w", err)
	}
	a.cfg.NodeID = node.ID

	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error().Err(err).Msg("command server failed")
		}
	}()

	a.wg.Add(1)
	go a.reportLoop()

	a.logger.Info().Str("node_id", a.cfg.NodeID).
		Str("coordinator", a.cfg.Coordinator).
		Str("listen", a.cfg.ListenAddr).Msg("agent started")
	return nil
}

// Stop halts reporting, the command server, and any running tasks
func (a *Agent) Stop(ctx context.Context) error {
	close(a.stopCh)
	a.wg.Wait()

	a.mu.Lock()
	for _, cancel := range a.running {
		cancel()
	}
	a.mu.Unlock()

	return a.srv.Shutdown(ctx)
}

// NodeID returns the agent's node id after registration
func (a *Agent) NodeID() string {
	return a.cfg.NodeID
}

func (a *Agent) detectCapabilities() (types.NodeCapabilities, error) {
	cores, err := cpu.Counts(true)
	if err != nil {
		return types.NodeCapabilities{}, err
	}
	vmem, err := mem.VirtualMemory()
	if err != nil {
		return types.NodeCapabilities{}, err
	}
	return types.NodeCapabilities{
		CPUCores:    cores,
		MemoryBytes: int64(vmem.Total),
		Tags:        types.NewCapabilitySet(a.cfg.Tags...),
	}, nil
}

func (a *Agent) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/commands", a.handleCommand).Methods("POST")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
	return r
}

func (a *Agent) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd transport.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "invalid command body", http.StatusBadRequest)
		return
	}

	switch cmd.Type {
	case transport.CommandExecuteTask:
		a.startTask(cmd)
		w.WriteHeader(http.StatusAccepted)
	case transport.CommandCancelTask:
		a.cancelTask(cmd.TaskID)
		w.WriteHeader(http.StatusAccepted)
	default:
		http.Error(w, fmt.Sprintf("unknown command type %q", cmd.Type), http.StatusBadRequest)
	}
}

func (a *Agent) startTask(cmd transport.Command) {
	ctx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	if prev, exists := a.running[cmd.TaskID]; exists {
		prev()
	}
	a.running[cmd.TaskID] = cancel
	a.active++
	a.mu.Unlock()

	a.wg.Add(1)
	go a.execute(ctx, cmd)
}

func (a *Agent) cancelTask(taskID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cancel, ok := a.running[taskID]; ok {
		cancel()
	}
}

func (a *Agent) execute(ctx context.Context, cmd transport.Command) {
	defer a.wg.Done()
	defer func() {
		a.mu.Lock()
		delete(a.running, cmd.TaskID)
		a.active--
		a.mu.Unlock()
	}()

	duration := 100 * time.Millisecond
	if cmd.Requirements != nil && cmd.Requirements.EstimatedDuration > 0 {
		duration = cmd.Requirements.EstimatedDuration
	}

	start := time.Now()
	select {
	case <-time.After(duration):
	case <-ctx.Done():
		a.logger.Info().Str("task_id", cmd.TaskID).Msg("task cancelled")
		return
	case <-a.stopCh:
		return
	}

	res := transport.Result{
		TaskID:        cmd.TaskID,
		NodeID:        a.cfg.NodeID,
		Outcome:       transport.OutcomeCompleted,
		ExecutionTime: time.Since(start),
	}
	if msg, failed := strings.CutPrefix(string(cmd.Payload), "error:"); failed {
		res.Outcome = transport.OutcomeFailed
		res.Error = msg
	}
	if usage, err := a.usage(); err == nil {
		res.CPUPercent = usage.CPUPercent
		res.MemoryPercent = usage.MemoryPercent
	}

	reportCtx, cancelReport := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelReport()
	if err := a.client.ReportResult(reportCtx, res); err != nil {
		a.logger.Warn().Err(err).Str("task_id", cmd.TaskID).Msg("result report failed")
	}
}

func (a *Agent) usage() (types.ResourceUsage, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return types.ResourceUsage{}, fmt.Errorf("cpu sample unavailable: %v", err)
	}
	vmem, err := mem.VirtualMemory()
	if err != nil {
		return types.ResourceUsage{}, err
	}
	return types.ResourceUsage{
		CPUPercent:    percents[0],
		MemoryPercent: vmem.UsedPercent,
	}, nil
}

func (a *Agent) reportLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.report()
		case <-a.stopCh:
			return
		}
	}
}

// report pushes a resource update, which doubles as a heartbeat
func (a *Agent) report() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	usage, err := a.usage()
	if err != nil {
		if hbErr := a.client.Heartbeat(ctx, a.cfg.NodeID); hbErr != nil {
			a.logger.Warn().Err(hbErr).Msg("heartbeat failed")
		}
		return
	}

	a.mu.Lock()
	queued := a.active
	a.mu.Unlock()

	update := registry.ResourceUpdate{Usage: &usage, QueuedTasks: &queued}
	if err := a.client.UpdateResources(ctx, a.cfg.NodeID, update); err != nil {
		a.logger.Warn().Err(err).Msg("resource report failed")
	}
}
