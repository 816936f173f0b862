package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gridmesh/gridmesh/pkg/types"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage edge clusters",
}

var clusterCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an edge cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		region, _ := cmd.Flags().GetString("region")
		zone, _ := cmd.Flags().GetString("zone")
		policy, _ := cmd.Flags().GetString("policy")

		ctx, cancel := commandContext()
		defer cancel()

		cl, err := apiClient().CreateCluster(ctx, &types.EdgeCluster{
			Name:   args[0],
			Region: region,
			Zone:   zone,
			Policy: types.LoadBalancingPolicy(policy),
		})
		if err != nil {
			return err
		}
		fmt.Printf("✓ Cluster %s created (%s)\n", cl.ID, cl.Name)
		return nil
	},
}

var clusterLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List clusters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		clusters, err := apiClient().ListClusters(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tREGION/ZONE\tNODES\tCPU CORES\tMEAN CPU%")
		for _, c := range clusters {
			fmt.Fprintf(w, "%s\t%s\t%s/%s\t%d\t%d\t%.1f\n",
				c.ID, c.Name, c.Region, c.Zone, len(c.NodeIDs),
				c.Rollup.TotalCPUCores, c.Rollup.MeanCPUPercent)
		}
		return w.Flush()
	},
}

var clusterAddNodeCmd = &cobra.Command{
	Use:   "add-node <cluster-id> <node-id>",
	Short: "Place a node into a cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		if err := apiClient().AddNodeToCluster(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ Node %s added to cluster %s\n", args[1], args[0])
		return nil
	},
}

var clusterRemoveNodeCmd = &cobra.Command{
	Use:   "remove-node <cluster-id> <node-id>",
	Short: "Detach a node from a cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		if err := apiClient().RemoveNodeFromCluster(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ Node %s removed from cluster %s\n", args[1], args[0])
		return nil
	},
}

var clusterScaleCmd = &cobra.Command{
	Use:   "scale <cluster-id> <target>",
	Short: "Scale a cluster toward a target member count",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad target %q: %v", args[1], err)
		}

		ctx, cancel := commandContext()
		defer cancel()

		if err := apiClient().ScaleCluster(ctx, args[0], target); err != nil {
			return err
		}
		fmt.Printf("✓ Cluster %s scaling toward %d nodes\n", args[0], target)
		return nil
	},
}

func init() {
	clusterCreateCmd.Flags().String("region", "", "cluster region")
	clusterCreateCmd.Flags().String("zone", "", "cluster zone")
	clusterCreateCmd.Flags().String("policy", "least_loaded", "load balancing policy")

	clusterCmd.AddCommand(clusterCreateCmd)
	clusterCmd.AddCommand(clusterLsCmd)
	clusterCmd.AddCommand(clusterAddNodeCmd)
	clusterCmd.AddCommand(clusterRemoveNodeCmd)
	clusterCmd.AddCommand(clusterScaleCmd)
}
