package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/embcluster/am"
	"github.com/teranos/embcluster/cmd/embcluster/commands"
	"github.com/teranos/embcluster/logger"
)

var rootCmd = &cobra.Command{
	Use:   "embcluster",
	Short: "embcluster - batch re-clustering of stored embeddings",
	Long: `embcluster - batch re-clustering of stored embeddings.

Reads every reduced embedding of a table, clusters them with a density-based
algorithm, writes each row's cluster id and each cluster's centroid back to
the same table. Every run is a full recompute.

Available commands:
  run     - Re-cluster the configured table
  stats   - Show cluster sizes currently stored in the table
  am      - Manage embcluster configuration ("I am")
  version - Show version information

Examples:
  embcluster run                          # Cluster with configured settings
  embcluster run --dry-run -v             # Cluster and report without writing
  embcluster run --algorithm dbscan       # Use DBSCAN instead of HDBSCAN
  embcluster stats                        # Show stored cluster sizes
  embcluster am show                      # Show current configuration`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		// Config can raise the defaults; flags only ever add
		if cfg, err := am.Load(); err == nil {
			jsonOutput = jsonOutput || cfg.Log.JSON
			if !cmd.Flags().Changed("verbose") {
				verbosity = cfg.Log.Verbosity
			}
		}

		if err := logger.InitializeWithVerbosity(jsonOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json", false, "Emit JSON logs and JSON command output")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.StatsCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
