package commands

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/embcluster/am"
	"github.com/teranos/embcluster/cluster"
	"github.com/teranos/embcluster/db"
	"github.com/teranos/embcluster/errors"
	"github.com/teranos/embcluster/pipeline"
	"github.com/teranos/embcluster/storage"
)

// tableFlags are shared by every command that touches the embeddings table
type tableFlags struct {
	table      string
	dimensions int
}

func (f *tableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.table, "table", "", "Embeddings table (default from config: table.name)")
	cmd.Flags().IntVar(&f.dimensions, "dimensions", 0, "Vector width D (default from config: table.dimensions)")
}

// apply overrides cfg with the flags the user actually set
func (f *tableFlags) apply(cmd *cobra.Command, cfg *am.Config) {
	if cmd.Flags().Changed("table") {
		cfg.Table.Name = f.table
	}
	if cmd.Flags().Changed("dimensions") {
		cfg.Table.Dimensions = f.dimensions
	}
}

// loadConfig loads configuration, applies overrides and validates the result.
// The cached config is copied so overrides never leak between commands.
func loadConfig(overrides ...func(*am.Config)) (*am.Config, error) {
	loaded, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	cfg := *loaded
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return &cfg, nil
}

// tableSpec converts table configuration to a storage.TableSpec
func tableSpec(cfg *am.Config) storage.TableSpec {
	return storage.TableSpec{
		Name: cfg.Table.Name,
		Columns: storage.Columns{
			ID:       cfg.Table.IDColumn,
			Vector:   cfg.Table.VectorColumn,
			Cluster:  cfg.Table.ClusterColumn,
			Centroid: cfg.Table.CentroidColumn,
		},
		Dimensions: cfg.Table.Dimensions,
	}
}

// clusterConfig converts clustering configuration to a cluster.Config
func clusterConfig(cfg *am.Config) cluster.Config {
	return cluster.Config{
		Algorithm:      cfg.Clustering.Algorithm,
		Metric:         cfg.Clustering.Metric,
		MinClusterSize: cfg.Clustering.MinClusterSize,
		MinSamples:     cfg.Clustering.MinSamples,
		Epsilon:        cfg.Clustering.Epsilon,
		MinPoints:      cfg.Clustering.MinPoints,
	}
}

// openTable opens the configured database and binds the embeddings table.
// The returned RunContext owns the connection; callers must Close it.
func openTable(ctx context.Context, cfg *am.Config, log *zap.SugaredLogger) (*pipeline.RunContext, *storage.Table, error) {
	driver, dsn, err := db.DSNFromConfig(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Open(ctx, driver, dsn, log)
	if err != nil {
		return nil, nil, err
	}
	rc := pipeline.NewRunContext(database, log)

	dialect, err := storage.DialectFor(driver)
	if err != nil {
		rc.Close()
		return nil, nil, err
	}

	table, err := storage.NewTable(rc.DB, dialect, tableSpec(cfg), rc.Logger)
	if err != nil {
		rc.Close()
		return nil, nil, err
	}
	return rc, table, nil
}
