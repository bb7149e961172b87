package logger

// Standard field names for consistent structured logging.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldRunID     = "run_id"
	FieldTable     = "table"
	FieldComponent = "component"
	FieldDriver    = "driver"

	// Pipeline
	FieldState     = "state"
	FieldStage     = "stage"
	FieldAlgorithm = "algorithm"
	FieldDryRun    = "dry_run"

	// Vectors and clusters
	FieldRows           = "rows"
	FieldDimensions     = "dimensions"
	FieldClusters       = "clusters"
	FieldNoise          = "noise"
	FieldClusterID      = "cluster_id"
	FieldMembers        = "members"
	FieldMinClusterSize = "min_cluster_size"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"
)
