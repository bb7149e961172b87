package am

// Config represents the embcluster configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" json:"database" toml:"database" yaml:"database"`
	Table      TableConfig      `mapstructure:"table" json:"table" toml:"table" yaml:"table"`
	Clustering ClusteringConfig `mapstructure:"clustering" json:"clustering" toml:"clustering" yaml:"clustering"`
	Log        LogConfig        `mapstructure:"log" json:"log" toml:"log" yaml:"log"`
}

// DatabaseConfig selects the store. Driver "sqlite3" uses Path; driver
// "postgres" uses DSN when set, otherwise the individual connection fields.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" json:"driver" toml:"driver" yaml:"driver"` // sqlite3 or postgres
	Path     string `mapstructure:"path" json:"path" toml:"path" yaml:"path"`         // SQLite database file
	DSN      string `mapstructure:"dsn" json:"dsn,omitempty" toml:"dsn,omitempty" yaml:"dsn,omitempty"`
	Host     string `mapstructure:"host" json:"host" toml:"host" yaml:"host"`
	Port     int    `mapstructure:"port" json:"port" toml:"port" yaml:"port"`
	Name     string `mapstructure:"name" json:"name" toml:"name" yaml:"name"`
	User     string `mapstructure:"user" json:"user" toml:"user" yaml:"user"`
	Password string `mapstructure:"password" json:"-" toml:"-" yaml:"-"` // never rendered by am show
	SSLMode  string `mapstructure:"sslmode" json:"sslmode" toml:"sslmode" yaml:"sslmode"`
}

// TableConfig names the embeddings table and its columns
type TableConfig struct {
	Name           string `mapstructure:"name" json:"name" toml:"name" yaml:"name"`
	IDColumn       string `mapstructure:"id_column" json:"id_column" toml:"id_column" yaml:"id_column"`
	VectorColumn   string `mapstructure:"vector_column" json:"vector_column" toml:"vector_column" yaml:"vector_column"`
	ClusterColumn  string `mapstructure:"cluster_column" json:"cluster_column" toml:"cluster_column" yaml:"cluster_column"`
	CentroidColumn string `mapstructure:"centroid_column" json:"centroid_column" toml:"centroid_column" yaml:"centroid_column"`
	Dimensions     int    `mapstructure:"dimensions" json:"dimensions" toml:"dimensions" yaml:"dimensions"` // width of every stored vector
}

// ClusteringConfig selects and tunes the clustering engine
type ClusteringConfig struct {
	Algorithm      string  `mapstructure:"algorithm" json:"algorithm" toml:"algorithm" yaml:"algorithm"` // hdbscan or dbscan
	Metric         string  `mapstructure:"metric" json:"metric" toml:"metric" yaml:"metric"`             // euclidean or cosine
	MinClusterSize int     `mapstructure:"min_cluster_size" json:"min_cluster_size" toml:"min_cluster_size" yaml:"min_cluster_size"`
	MinSamples     int     `mapstructure:"min_samples" json:"min_samples" toml:"min_samples" yaml:"min_samples"` // 0 = min_cluster_size
	Epsilon        float64 `mapstructure:"epsilon" json:"epsilon" toml:"epsilon" yaml:"epsilon"`                 // dbscan only
	MinPoints      int     `mapstructure:"min_points" json:"min_points" toml:"min_points" yaml:"min_points"`     // dbscan only, 0 = min_cluster_size
}

// LogConfig configures logging output
type LogConfig struct {
	JSON      bool `mapstructure:"json" json:"json" toml:"json" yaml:"json"`
	Verbosity int  `mapstructure:"verbosity" json:"verbosity" toml:"verbosity" yaml:"verbosity"` // same scale as -v count
}

// File system constants
const (
	DefaultDirPermissions = 0755 // Standard directory permissions (rwxr-xr-x)
)
