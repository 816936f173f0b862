package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridmesh/gridmesh/pkg/types"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage compute tasks",
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a task",
	RunE: func(cmd *cobra.Command, args []string) error {
		taskType, _ := cmd.Flags().GetString("type")
		priority, _ := cmd.Flags().GetInt("priority")
		payload, _ := cmd.Flags().GetString("payload")
		cpuCores, _ := cmd.Flags().GetInt("min-cpu")
		memory, _ := cmd.Flags().GetInt64("min-memory")
		gpuMemory, _ := cmd.Flags().GetInt64("min-gpu-memory")
		maxLatency, _ := cmd.Flags().GetFloat64("max-latency")
		caps, _ := cmd.Flags().GetStringSlice("require")
		region, _ := cmd.Flags().GetString("region")
		zone, _ := cmd.Flags().GetString("zone")
		exclusive, _ := cmd.Flags().GetBool("exclusive")
		duration, _ := cmd.Flags().GetDuration("estimated-duration")
		retries, _ := cmd.Flags().GetInt("max-retries")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		deadline, _ := cmd.Flags().GetDuration("deadline-in")
		locality, _ := cmd.Flags().GetBool("data-locality")

		required := types.NewCapabilitySet()
		for _, c := range caps {
			required.Add(types.Capability(c))
		}

		spec := &types.ComputeTask{
			Type:     types.TaskType(taskType),
			Priority: priority,
			Payload:  []byte(payload),
			Requirements: types.TaskRequirements{
				MinCPUCores:          cpuCores,
				MinMemoryBytes:       memory,
				MinGPUMemoryBytes:    gpuMemory,
				MaxLatencyMs:         maxLatency,
				RequiredCapabilities: required,
				PreferredRegion:      region,
				PreferredZone:        zone,
				Exclusive:            exclusive,
				EstimatedDuration:    duration,
			},
			Constraints: types.TaskConstraints{
				MaxRetries:   retries,
				Timeout:      timeout,
				DataLocality: locality,
			},
		}
		if deadline > 0 {
			dl := time.Now().Add(deadline)
			spec.Constraints.Deadline = &dl
		}

		ctx, cancel := commandContext()
		defer cancel()

		task, err := apiClient().SubmitTask(ctx, spec)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Task %s submitted (priority %d)\n", task.ID, task.Priority)
		return nil
	},
}

var taskLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		tasks, err := apiClient().ListTasks(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tPRIORITY\tSTATUS\tNODE\tRETRIES LEFT")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\n",
				t.ID, t.Type, t.Priority, t.Status, t.AssignedNode, t.RetriesLeft)
		}
		return w.Flush()
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show one task in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		t, err := apiClient().GetTask(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:           %s\n", t.ID)
		fmt.Printf("Type:         %s\n", t.Type)
		fmt.Printf("Status:       %s\n", t.Status)
		fmt.Printf("Priority:     %d\n", t.Priority)
		fmt.Printf("Node:         %s\n", t.AssignedNode)
		fmt.Printf("Retries Left: %d\n", t.RetriesLeft)
		if len(t.DependsOn) > 0 {
			fmt.Printf("Depends On:   %v\n", t.DependsOn)
		}
		if !t.StartedAt.IsZero() {
			fmt.Printf("Started:      %s\n", t.StartedAt.Format(time.RFC3339))
		}
		if t.Status.Terminal() {
			fmt.Printf("Finished:     %s\n", t.CompletedAt.Format(time.RFC3339))
			fmt.Printf("Exec Time:    %s\n", t.Metrics.ExecutionTime)
			if t.Metrics.Error != "" {
				fmt.Printf("Error:        %s\n", t.Metrics.Error)
			}
		}
		return nil
	},
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		if err := apiClient().CancelTask(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Task %s cancelled\n", args[0])
		return nil
	},
}

func init() {
	taskSubmitCmd.Flags().String("type", "generic", "task type")
	taskSubmitCmd.Flags().Int("priority", 0, "scheduling priority (higher first)")
	taskSubmitCmd.Flags().String("payload", "", "opaque task payload")
	taskSubmitCmd.Flags().Int("min-cpu", 0, "minimum CPU cores")
	taskSubmitCmd.Flags().Int64("min-memory", 0, "minimum memory bytes")
	taskSubmitCmd.Flags().Int64("min-gpu-memory", 0, "minimum GPU memory bytes")
	taskSubmitCmd.Flags().Float64("max-latency", 0, "maximum node latency in ms")
	taskSubmitCmd.Flags().StringSlice("require", nil, "required capability tags")
	taskSubmitCmd.Flags().String("region", "", "preferred region")
	taskSubmitCmd.Flags().String("zone", "", "preferred zone")
	taskSubmitCmd.Flags().Bool("exclusive", false, "require exclusive node access")
	taskSubmitCmd.Flags().Duration("estimated-duration", 0, "estimated execution duration")
	taskSubmitCmd.Flags().Int("max-retries", 0, "retry budget (0 selects the default)")
	taskSubmitCmd.Flags().Duration("timeout", 0, "per-attempt execution timeout")
	taskSubmitCmd.Flags().Duration("deadline-in", 0, "absolute deadline relative to now")
	taskSubmitCmd.Flags().Bool("data-locality", false, "prefer placement near cluster data")

	taskCmd.AddCommand(taskSubmitCmd)
	taskCmd.AddCommand(taskLsCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskCancelCmd)
}
