package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cluster-wide rollup",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		snap, err := apiClient().Status(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Nodes:           %d total, %d active\n", snap.TotalNodes, snap.ActiveNodes)
		fmt.Printf("Running Tasks:   %d\n", snap.RunningTasks)
		fmt.Printf("Queue Length:    %d\n", snap.QueueLength)
		fmt.Printf("Utilization:     %.1f%%\n", snap.ClusterUtilization)
		fmt.Printf("Avg Task Time:   %s\n", snap.AverageTaskTime)
		fmt.Printf("Throughput:      %.1f tasks/min\n", snap.Throughput)
		fmt.Printf("Error Rate:      %.1f%%\n", snap.ErrorRate*100)
		return nil
	},
}
