package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridmesh/gridmesh/pkg/agent"
	"github.com/gridmesh/gridmesh/pkg/api"
	"github.com/gridmesh/gridmesh/pkg/client"
	"github.com/gridmesh/gridmesh/pkg/config"
	"github.com/gridmesh/gridmesh/pkg/coordinator"
	"github.com/gridmesh/gridmesh/pkg/history"
	"github.com/gridmesh/gridmesh/pkg/log"
	"github.com/gridmesh/gridmesh/pkg/metrics"
	"github.com/gridmesh/gridmesh/pkg/transport"
	"github.com/gridmesh/gridmesh/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// coordinatorAddr is the --coordinator flag shared by all client commands
var coordinatorAddr string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gridmesh",
	Short: "GridMesh - distributed task scheduling across edge and cloud nodes",
	Long: `GridMesh schedules compute tasks across a heterogeneous pool of edge,
cloud, mobile and hybrid nodes. A single coordinator owns placement,
retries, job orchestration and cluster rollups; node agents execute
dispatched work and stream results back.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"GridMesh version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&coordinatorAddr, "coordinator",
		"http://127.0.0.1:9400", "coordinator control API base URL")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(statusCmd)
}

func apiClient() *client.Client {
	return client.New(coordinatorAddr)
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator",
	Long: `Run the GridMesh coordinator: the scheduler loop, heartbeat monitor,
control API, event stream and metrics endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})

		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data dir: %v", err)
		}
		archive, err := history.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open history archive: %v", err)
		}
		defer archive.Close()

		tr := transport.NewHTTP()
		coord := coordinator.New(cfg, tr, archive)
		if err := coord.Start(); err != nil {
			return err
		}
		fmt.Println("✓ Coordinator started")

		collector := metrics.NewCollector(coord, cfg.Metrics.CollectInterval.D())
		collector.Start()

		server := api.NewServer(cfg.API.ListenAddr, coord, tr)
		server.Start()
		fmt.Printf("✓ Control API listening on %s\n", cfg.API.ListenAddr)
		fmt.Println()
		fmt.Println("Coordinator is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "API shutdown: %v\n", err)
		}
		collector.Stop()
		coord.Stop()

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a node agent",
	Long: `Run the node-side agent: registers this host with the coordinator,
reports utilization, and executes dispatched tasks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		listen, _ := cmd.Flags().GetString("listen")
		advertise, _ := cmd.Flags().GetString("advertise")
		region, _ := cmd.Flags().GetString("region")
		zone, _ := cmd.Flags().GetString("zone")
		nodeType, _ := cmd.Flags().GetString("type")
		tags, _ := cmd.Flags().GetStringSlice("tags")
		interval, _ := cmd.Flags().GetDuration("report-interval")
		logLevel, _ := cmd.Flags().GetString("log-level")

		log.Init(log.Config{Level: log.Level(logLevel)})

		caps := make([]types.Capability, len(tags))
		for i, tag := range tags {
			caps[i] = types.Capability(tag)
		}

		a := agent.New(agent.Config{
			NodeID:         nodeID,
			Coordinator:    coordinatorAddr,
			ListenAddr:     listen,
			AdvertiseAddr:  advertise,
			Region:         region,
			Zone:           zone,
			Type:           types.NodeType(nodeType),
			Tags:           caps,
			ReportInterval: interval,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := a.Start(ctx)
		cancel()
		if err != nil {
			return err
		}
		fmt.Printf("✓ Agent registered as %s\n", a.NodeID())
		fmt.Println("Agent is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down...")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := a.Stop(shutdownCtx); err != nil {
			return err
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("config", "", "path to YAML config file")

	agentCmd.Flags().String("node-id", "", "node id (generated when empty)")
	agentCmd.Flags().String("listen", ":9401", "command server listen address")
	agentCmd.Flags().String("advertise", "", "host:port the coordinator dials (defaults to listen)")
	agentCmd.Flags().String("region", "", "node region")
	agentCmd.Flags().String("zone", "", "node zone")
	agentCmd.Flags().String("type", "cloud", "node type: edge, cloud, hybrid, mobile")
	agentCmd.Flags().StringSlice("tags", nil, "capability tags (e.g. gpu,ml,inference)")
	agentCmd.Flags().Duration("report-interval", 15*time.Second, "heartbeat/resource report interval")
	agentCmd.Flags().String("log-level", "info", "log level")
}
