package am

import (
	"fmt"

	"github.com/spf13/viper"
)

// Default values shared with the CLI flag definitions
const (
	DefaultTable          = "embeddings"
	DefaultDimensions     = 256
	DefaultAlgorithm      = "hdbscan"
	DefaultMinClusterSize = 5
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "embeddings.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")

	// Table defaults
	v.SetDefault("table.name", DefaultTable)
	v.SetDefault("table.id_column", "id")
	v.SetDefault("table.vector_column", "reduced_vector")
	v.SetDefault("table.cluster_column", "cluster_id")
	v.SetDefault("table.centroid_column", "cluster_centroid")
	v.SetDefault("table.dimensions", DefaultDimensions)

	// Clustering defaults
	v.SetDefault("clustering.algorithm", DefaultAlgorithm)
	v.SetDefault("clustering.metric", "euclidean")
	v.SetDefault("clustering.min_cluster_size", DefaultMinClusterSize)
	v.SetDefault("clustering.min_samples", 0)
	v.SetDefault("clustering.epsilon", 0.5)
	v.SetDefault("clustering.min_points", 0)

	// Log defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 1)
}

// envBindings maps config keys to the environment variables that set them,
// in lookup order. The unprefixed names are the connection variables
// deployments already export for the embeddings database.
var envBindings = map[string][]string{
	"database.driver":   {"EMBCLUSTER_DATABASE_DRIVER"},
	"database.path":     {"EMBCLUSTER_DATABASE_PATH", "DB_PATH"},
	"database.dsn":      {"EMBCLUSTER_DATABASE_DSN", "DATABASE_URL"},
	"database.host":     {"EMBCLUSTER_DATABASE_HOST", "HOST_NAME"},
	"database.port":     {"EMBCLUSTER_DATABASE_PORT", "PORT"},
	"database.name":     {"EMBCLUSTER_DATABASE_NAME", "DATABASE_NAME"},
	"database.user":     {"EMBCLUSTER_DATABASE_USER", "USER_NAME"},
	"database.password": {"EMBCLUSTER_DATABASE_PASSWORD", "PASSWORD"},
}

// BindSensitiveEnvVars explicitly binds connection settings to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	for key, envs := range envBindings {
		v.BindEnv(append([]string{key}, envs...)...)
	}
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Table: %s(%d), Clustering: %s/%d}",
		c.Database.Driver, c.Table.Name, c.Table.Dimensions, c.Clustering.Algorithm, c.Clustering.MinClusterSize)
}
