package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/embcluster/am"
	"github.com/teranos/embcluster/display"
	"github.com/teranos/embcluster/logger"
)

// StatsCmd shows the cluster sizes currently stored in the table
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored cluster sizes",
	Long:  "Count the rows per cluster id currently stored in the embeddings table. Requires a previous run.",
	RunE:  runStats,
}

var statsTable tableFlags

func init() {
	statsTable.register(StatsCmd)
}

type statsOutput struct {
	Table    string      `json:"table"`
	Clusters int         `json:"clusters"`
	Noise    int         `json:"noise"`
	Sizes    map[int]int `json:"sizes"`
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(func(c *am.Config) { statsTable.apply(cmd, c) })
	if err != nil {
		return err
	}

	rc, table, err := openTable(ctx, cfg, logger.Named("stats"))
	if err != nil {
		return err
	}
	defer rc.Close()

	sizes, noise, err := table.ClusterSizes(ctx)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), statsOutput{
			Table:    cfg.Table.Name,
			Clusters: len(sizes),
			Noise:    noise,
			Sizes:    sizes,
		})
	}

	pterm.DefaultSection.Printf("Clusters in %s", cfg.Table.Name)
	if len(sizes) == 0 {
		pterm.Warning.Printf("No clusters stored (%d noise rows)\n", noise)
		return nil
	}
	pterm.Info.Printf("%d clusters, %d noise rows\n", len(sizes), noise)
	return renderSizes(sizes, noise)
}
