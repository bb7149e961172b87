package testing

import (
	"database/sql"
	"fmt"
	"testing"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// CreateTestDB creates an in-memory SQLite test database.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	sqlite_vec.Auto()

	// Create in-memory SQLite database
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	// Register cleanup
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// EmbeddingRow is a fixture row. ID is an int64 or string; Vector is bound
// as-is, so pass JSON text or a packed BLOB from PackVector.
type EmbeddingRow struct {
	ID     any
	Vector any
}

// CreateEmbeddingsTable creates table with an id column of idType and a
// reduced_vector column, without any clustering columns.
func CreateEmbeddingsTable(t *testing.T, db *sql.DB, table, idType string) {
	t.Helper()

	stmt := fmt.Sprintf(`CREATE TABLE %q (id %s PRIMARY KEY, reduced_vector)`, table, idType)
	if _, err := db.Exec(stmt); err != nil {
		t.Fatalf("Failed to create table %s: %v", table, err)
	}
}

// SeedEmbeddings inserts rows into a table made by CreateEmbeddingsTable.
func SeedEmbeddings(t *testing.T, db *sql.DB, table string, rows ...EmbeddingRow) {
	t.Helper()

	stmt := fmt.Sprintf(`INSERT INTO %q (id, reduced_vector) VALUES (?, ?)`, table)
	for _, r := range rows {
		if _, err := db.Exec(stmt, r.ID, r.Vector); err != nil {
			t.Fatalf("Failed to seed row %v: %v", r.ID, err)
		}
	}
}

// PackVector encodes vec in the sqlite-vec float32 BLOB layout.
func PackVector(t *testing.T, vec []float32) []byte {
	t.Helper()

	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		t.Fatalf("Failed to pack vector: %v", err)
	}
	return blob
}
