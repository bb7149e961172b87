// Package storage reads and rewrites the clustering columns of an embeddings
// table over database/sql.
//
// SQL differences between Postgres (pgvector) and SQLite are isolated in a
// Dialect; Table holds the statements shared by both.
package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/teranos/embcluster/errors"
	"github.com/teranos/embcluster/vector"
)

// Dialect captures what differs between supported SQL engines.
type Dialect interface {
	// Name is the database/sql driver name.
	Name() string

	// QuoteIdent quotes a table or column name.
	QuoteIdent(name string) string

	// QuoteLiteral renders an id or label as an SQL literal for a VALUES list.
	QuoteLiteral(v any) (string, error)

	// Placeholder returns the n-th (1-based) bind parameter marker.
	Placeholder(n int) string

	// VectorPlaceholder is Placeholder for a parameter produced by VectorArg.
	VectorPlaceholder(n int) string

	// VectorArg encodes vec as a bind argument for the centroid column.
	VectorArg(vec []float32) (any, error)

	// CentroidType is the column type holding a dim-wide vector.
	CentroidType(dim int) string

	// EnsureColumn adds column with the given type unless it already exists.
	EnsureColumn(ctx context.Context, tx *sql.Tx, table, column, typ string) error

	// AssignmentSQL builds the bulk UPDATE joining table to rows, a
	// pre-rendered list of "(id, cluster)" tuples.
	AssignmentSQL(table, idCol, clusterCol string, rows []string) string

	// RawVector classifies a scanned vector column value. dbType is the
	// driver-reported column type name, empty when the driver has none.
	RawVector(src any, dbType string) (vector.Raw, error)
}

// DialectFor returns the Dialect registered for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgvector":
		return Postgres{}, nil
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	default:
		return nil, errors.WithHint(
			errors.Newf("unsupported database driver %q", driver),
			"supported drivers: postgres, sqlite3")
	}
}

// normalizeID turns driver-specific id representations into int64 or string.
func normalizeID(src any) (any, error) {
	switch v := src.(type) {
	case int64, string:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case []byte:
		return string(v), nil
	case nil:
		return nil, errors.New("row id is NULL")
	default:
		return nil, errors.Newf("unsupported row id type %T", src)
	}
}
