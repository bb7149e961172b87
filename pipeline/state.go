package pipeline

// State is a pipeline stage boundary. A run moves forward through the states
// in declaration order and stops at the first terminal one it reaches.
type State string

const (
	StateStart              State = "start"
	StateSchemaReady        State = "schema_ready"
	StateFetched            State = "fetched"
	StateEmpty              State = "empty"
	StateClustered          State = "clustered"
	StateNoValidClusters    State = "no_valid_clusters"
	StateAssignmentsWritten State = "assignments_written"
	StateCentroidsWritten   State = "centroids_written"
)

// Terminal reports whether a successful run can end in s.
// StateClustered is terminal only for dry runs.
func (s State) Terminal() bool {
	switch s {
	case StateEmpty, StateNoValidClusters, StateCentroidsWritten:
		return true
	}
	return false
}

func (s State) String() string { return string(s) }
