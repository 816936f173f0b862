package metrics

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/gridmesh/gridmesh/pkg/log"
	"github.com/gridmesh/gridmesh/pkg/types"
)

// Source provides the aggregate state the collector publishes
type Source interface {
	Snapshot() types.ClusterSnapshot
	TaskCounts() map[types.TaskStatus]int
	NodeCounts() map[types.NodeType]map[types.NodeStatus]int
	JobCounts() map[types.JobStatus]int
}

// Collector periodically republishes coordinator state as gauges
type Collector struct {
	source   Source
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector creates a collector polling the source at the given interval
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		logger:   log.WithComponent("metrics"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins periodic collection
func (c *Collector) Start() {
	go c.run()
	c.logger.Info().
		Dur("interval", c.interval).
		Msg("Metrics collector started")
}

// Stop halts collection and waits for the loop to exit
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.doneCh
	c.logger.Info().Msg("Metrics collector stopped")
}

func (c *Collector) run() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect()
	for {
		select {
		case <-ticker.C:
			c.Collect()
		case <-c.stopCh:
			return
		}
	}
}

// Collect publishes one reading from the source
func (c *Collector) Collect() {
	snap := c.source.Snapshot()

	QueueLength.Set(float64(snap.QueueLength))
	ClusterUtilization.Set(snap.ClusterUtilization)
	AverageTaskTime.Set(snap.AverageTaskTime.Seconds())
	Throughput.Set(snap.Throughput)
	ErrorRate.Set(snap.ErrorRate)

	TasksTotal.Reset()
	for status, n := range c.source.TaskCounts() {
		TasksTotal.WithLabelValues(string(status)).Set(float64(n))
	}

	NodesTotal.Reset()
	for nodeType, byStatus := range c.source.NodeCounts() {
		for status, n := range byStatus {
			NodesTotal.WithLabelValues(string(nodeType), string(status)).Set(float64(n))
		}
	}

	JobsTotal.Reset()
	for status, n := range c.source.JobCounts() {
		JobsTotal.WithLabelValues(string(status)).Set(float64(n))
	}
}
