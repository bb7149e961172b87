package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/embcluster/am"
	"github.com/teranos/embcluster/cluster"
	"github.com/teranos/embcluster/display"
	"github.com/teranos/embcluster/logger"
	"github.com/teranos/embcluster/pipeline"
)

// RunCmd re-clusters the configured embeddings table
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Re-cluster every embedding in the table",
	Long: `Run one full re-clustering pass:

  1. add cluster_id / cluster_centroid columns if missing
  2. fetch every (id, vector) row ordered by id
  3. cluster the vectors (-1 marks noise)
  4. write all cluster ids in one bulk UPDATE
  5. recompute each cluster's centroid and write it to its members

If every embedding is noise the table is left unchanged and the run ends
with a warning. --dry-run stops after step 3 and touches nothing.`,
	RunE: runRun,
}

var (
	runTable          tableFlags
	runMinClusterSize int
	runAlgorithm      string
	runDryRun         bool
)

func init() {
	runTable.register(RunCmd)
	RunCmd.Flags().IntVar(&runMinClusterSize, "min-cluster-size", am.DefaultMinClusterSize, "Smallest group reported as a cluster")
	RunCmd.Flags().StringVar(&runAlgorithm, "algorithm", am.DefaultAlgorithm, "Clustering algorithm: hdbscan, dbscan")
	RunCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Fetch and cluster, but write nothing")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(func(c *am.Config) {
		runTable.apply(cmd, c)
		if cmd.Flags().Changed("min-cluster-size") {
			c.Clustering.MinClusterSize = runMinClusterSize
		}
		if cmd.Flags().Changed("algorithm") {
			c.Clustering.Algorithm = runAlgorithm
		}
	})
	if err != nil {
		return err
	}

	log := logger.Named("run")
	engine, err := cluster.New(clusterConfig(cfg))
	if err != nil {
		return err
	}

	rc, table, err := openTable(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rc.Close()

	rc.Logger.Infow("Starting clustering run",
		logger.FieldTable, cfg.Table.Name,
		logger.FieldDimensions, cfg.Table.Dimensions,
		logger.FieldAlgorithm, cfg.Clustering.Algorithm,
		logger.FieldMinClusterSize, cfg.Clustering.MinClusterSize,
		logger.FieldDryRun, runDryRun,
	)

	report, err := pipeline.New(table, engine, pipeline.Options{DryRun: runDryRun}).Run(ctx, rc)
	if err != nil {
		rc.Logger.Errorw("Clustering run failed",
			logger.FieldState, report.State,
			logger.FieldError, err,
		)
		return err
	}

	rc.Logger.Infow("Clustering run finished",
		logger.FieldState, report.State,
		logger.FieldDurationMS, report.Duration().Milliseconds(),
	)

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), report)
	}
	return printReport(report, cfg.Table.Name)
}

func printReport(r *pipeline.Report, table string) error {
	pterm.DefaultSection.Printf("Clustering %s", table)

	switch r.State {
	case pipeline.StateCentroidsWritten:
		pterm.Success.Printf("%d rows clustered into %d clusters (%d noise)\n", r.Rows, r.Clusters, r.Noise)
	case pipeline.StateNoValidClusters:
		pterm.Warning.Printf("No valid clusters: all %d rows are noise, table unchanged\n", r.Rows)
	case pipeline.StateEmpty:
		pterm.Warning.Println("Table is empty, nothing to cluster")
	case pipeline.StateClustered:
		pterm.Info.Printf("Dry run: %d rows would form %d clusters (%d noise)\n", r.Rows, r.Clusters, r.Noise)
	}

	if len(r.Sizes) > 0 {
		if err := renderSizes(r.Sizes, r.Noise); err != nil {
			return err
		}
	}

	data := pterm.TableData{{"Stage", "Duration"}}
	for _, t := range r.Timings {
		data = append(data, []string{t.Stage, t.Duration.Round(time.Millisecond).String()})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// renderSizes prints one row per cluster in ascending id order, then noise
func renderSizes(sizes map[int]int, noise int) error {
	ids := make([]int, 0, len(sizes))
	for id := range sizes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	data := pterm.TableData{{"Cluster", "Members"}}
	for _, id := range ids {
		data = append(data, []string{fmt.Sprint(id), fmt.Sprint(sizes[id])})
	}
	data = append(data, []string{pterm.Gray("noise"), fmt.Sprint(noise)})
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
