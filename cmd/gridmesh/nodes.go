package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage compute nodes",
}

var nodeLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List registered nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		nodes, err := apiClient().ListNodes(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tREGION/ZONE\tSTATUS\tCPU%\tMEM%\tACTIVE\tLAST HEARTBEAT")
		for _, n := range nodes {
			fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%.1f\t%.1f\t%d\t%s\n",
				n.ID, n.Type, n.Region, n.Zone, n.Status,
				n.Usage.CPUPercent, n.Usage.MemoryPercent,
				n.Workload.ActiveTasks,
				n.LastHeartbeat.Format(time.RFC3339),
			)
		}
		return w.Flush()
	},
}

var nodeInspectCmd = &cobra.Command{
	Use:   "inspect <node-id>",
	Short: "Show one node in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		n, err := apiClient().GetNode(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:            %s\n", n.ID)
		fmt.Printf("Address:       %s\n", n.Address)
		fmt.Printf("Type:          %s\n", n.Type)
		fmt.Printf("Region/Zone:   %s/%s\n", n.Region, n.Zone)
		fmt.Printf("Status:        %s\n", n.Status)
		fmt.Printf("Overloaded:    %v\n", n.Overloaded)
		fmt.Printf("CPU Cores:     %d\n", n.Capabilities.CPUCores)
		fmt.Printf("Memory:        %d bytes\n", n.Capabilities.MemoryBytes)
		fmt.Printf("GPUs:          %d\n", n.Capabilities.GPUCount)
		fmt.Printf("Tags:          %v\n", n.Capabilities.Tags.Slice())
		fmt.Printf("Active Tasks:  %d\n", n.Workload.ActiveTasks)
		fmt.Printf("Completed:     %d\n", n.Workload.CompletedTasks)
		fmt.Printf("Failed:        %d\n", n.Workload.FailedTasks)
		fmt.Printf("Avg Task Time: %s\n", n.Workload.AvgTaskTime)
		return nil
	},
}

var nodeRmCmd = &cobra.Command{
	Use:   "rm <node-id>",
	Short: "Unregister a node (in-flight tasks are requeued)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		if err := apiClient().UnregisterNode(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Node %s removed\n", args[0])
		return nil
	},
}

func init() {
	nodeCmd.AddCommand(nodeLsCmd)
	nodeCmd.AddCommand(nodeInspectCmd)
	nodeCmd.AddCommand(nodeRmCmd)
}
