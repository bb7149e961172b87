package am

import (
	"strings"

	"github.com/teranos/embcluster/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite3", "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path cannot be empty for sqlite3")
		}
	case "postgres", "postgresql":
		if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Name == "") {
			return errors.WithHint(
				errors.New("postgres needs database.dsn or database.host and database.name"),
				"set HOST_NAME and DATABASE_NAME, or EMBCLUSTER_DATABASE_DSN")
		}
		if c.Database.Port < 0 || c.Database.Port > 65535 {
			return errors.Newf("database.port out of range: %d", c.Database.Port)
		}
	default:
		return errors.Newf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}

	// Identifiers are quoted, never interpolated raw, but must not be empty
	for key, val := range map[string]string{
		"table.name":            c.Table.Name,
		"table.id_column":       c.Table.IDColumn,
		"table.vector_column":   c.Table.VectorColumn,
		"table.cluster_column":  c.Table.ClusterColumn,
		"table.centroid_column": c.Table.CentroidColumn,
	} {
		if strings.TrimSpace(val) == "" {
			return errors.Newf("%s cannot be empty", key)
		}
	}
	if c.Table.Dimensions <= 0 {
		return errors.Newf("table.dimensions must be > 0, got %d", c.Table.Dimensions)
	}

	switch strings.ToLower(c.Clustering.Algorithm) {
	case "hdbscan":
		if c.Clustering.MinClusterSize < 2 {
			return errors.Newf("clustering.min_cluster_size must be >= 2, got %d", c.Clustering.MinClusterSize)
		}
	case "dbscan":
		if c.Clustering.Epsilon <= 0 {
			return errors.Newf("clustering.epsilon must be > 0, got %f", c.Clustering.Epsilon)
		}
	default:
		return errors.Newf("clustering.algorithm must be hdbscan or dbscan, got %q", c.Clustering.Algorithm)
	}

	// 0 = derive from min_cluster_size, negative = invalid
	if c.Clustering.MinSamples < 0 {
		return errors.Newf("clustering.min_samples must be >= 0, got %d", c.Clustering.MinSamples)
	}
	if c.Clustering.MinPoints < 0 {
		return errors.Newf("clustering.min_points must be >= 0, got %d", c.Clustering.MinPoints)
	}
	switch strings.ToLower(c.Clustering.Metric) {
	case "", "euclidean", "l2", "cosine":
	default:
		return errors.Newf("clustering.metric must be euclidean or cosine, got %q", c.Clustering.Metric)
	}

	if c.Log.Verbosity < 0 {
		return errors.Newf("log.verbosity must be >= 0, got %d", c.Log.Verbosity)
	}
	return nil
}
