package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gridmesh/gridmesh/pkg/coordinator"
	"github.com/gridmesh/gridmesh/pkg/types"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage distributed jobs",
}

// jobManifest mirrors coordinator.JobSpec for YAML files
type jobManifest struct {
	Name             string          `yaml:"name"`
	Priority         int             `yaml:"priority"`
	FailureThreshold float64         `yaml:"failure_threshold"`
	Tasks            []taskManifest  `yaml:"tasks"`
	Edges            []types.JobEdge `yaml:"edges"`
}

type taskManifest struct {
	ID           string                 `yaml:"id"`
	Type         string                 `yaml:"type"`
	Priority     int                    `yaml:"priority"`
	Payload      string                 `yaml:"payload"`
	Requirements types.TaskRequirements `yaml:"requirements"`
	Constraints  types.TaskConstraints  `yaml:"constraints"`
}

var jobSubmitCmd = &cobra.Command{
	Use:   "submit -f <manifest.yaml>",
	Short: "Submit a job from a YAML manifest",
	Long: `Submit a job described by a YAML manifest, for example:

  name: video-pipeline
  priority: 5
  tasks:
    - id: extract
      type: batch
    - id: infer
      type: ml_inference
      requirements:
        required_capabilities: [ml, inference]
  edges:
    - from: extract
      to: infer
      kind: sequential`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			return fmt.Errorf("--file is required")
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var manifest jobManifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return fmt.Errorf("parse manifest: %v", err)
		}

		spec := &coordinator.JobSpec{
			Name:             manifest.Name,
			Priority:         manifest.Priority,
			FailureThreshold: manifest.FailureThreshold,
			Edges:            manifest.Edges,
		}
		for _, tm := range manifest.Tasks {
			spec.Tasks = append(spec.Tasks, &types.ComputeTask{
				ID:           tm.ID,
				Type:         types.TaskType(tm.Type),
				Priority:     tm.Priority,
				Payload:      []byte(tm.Payload),
				Requirements: tm.Requirements,
				Constraints:  tm.Constraints,
			})
		}

		ctx, cancel := commandContext()
		defer cancel()

		job, err := apiClient().SubmitJob(ctx, spec)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Job %s submitted with %d tasks\n", job.ID, len(job.TaskIDs))
		return nil
	},
}

var jobLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		jobs, err := apiClient().ListJobs(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPROGRESS\tTASKS")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%d\n",
				j.ID, j.Name, j.Status, j.Progress, len(j.TaskIDs))
		}
		return w.Flush()
	},
}

var jobStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show one job in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		c := apiClient()
		j, err := c.GetJob(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:       %s\n", j.ID)
		fmt.Printf("Name:     %s\n", j.Name)
		fmt.Printf("Status:   %s\n", j.Status)
		fmt.Printf("Progress: %.0f%%\n", j.Progress)
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TASK\tSTATUS\tNODE")
		for _, taskID := range j.TaskIDs {
			t, err := c.GetTask(ctx, taskID)
			if err != nil {
				fmt.Fprintf(w, "%s\t?\t?\n", taskID)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Status, t.AssignedNode)
		}
		return w.Flush()
	},
}

func init() {
	jobSubmitCmd.Flags().StringP("file", "f", "", "path to job manifest YAML")

	jobCmd.AddCommand(jobSubmitCmd)
	jobCmd.AddCommand(jobLsCmd)
	jobCmd.AddCommand(jobStatusCmd)
}
