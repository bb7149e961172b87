package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/embcluster/errors"
	testdb "github.com/teranos/embcluster/internal/testing"
)

func newSQLiteTable(t *testing.T, idType string, dim int, rows ...testdb.EmbeddingRow) (*Table, *sql.DB) {
	t.Helper()

	db := testdb.CreateTestDB(t)
	testdb.CreateEmbeddingsTable(t, db, "embeddings", idType)
	testdb.SeedEmbeddings(t, db, "embeddings", rows...)

	spec := TableSpec{Name: "embeddings", Columns: DefaultColumns(), Dimensions: dim}
	table, err := NewTable(db, SQLite{}, spec, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return table, db
}

func columnNames(t *testing.T, db *sql.DB) []string {
	t.Helper()

	rows, err := db.Query(`SELECT name FROM pragma_table_info('embeddings') ORDER BY cid`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestSQLite_EnsureSchemaIdempotent(t *testing.T) {
	ctx := context.Background()
	table, db := newSQLiteTable(t, "INTEGER", 2,
		testdb.EmbeddingRow{ID: int64(1), Vector: "[1,2]"})

	require.NoError(t, table.EnsureSchema(ctx))
	require.NoError(t, table.EnsureSchema(ctx))

	assert.Equal(t, []string{"id", "reduced_vector", "cluster_id", "cluster_centroid"}, columnNames(t, db))

	var clusterID int
	require.NoError(t, db.QueryRow(`SELECT cluster_id FROM embeddings WHERE id = 1`).Scan(&clusterID))
	assert.Equal(t, -1, clusterID)
}

func TestSQLite_FetchEmbeddingsMixedEncodings(t *testing.T) {
	table, _ := newSQLiteTable(t, "INTEGER", 3,
		testdb.EmbeddingRow{ID: int64(2), Vector: testdb.PackVector(t, []float32{4, 5, 6})},
		testdb.EmbeddingRow{ID: int64(1), Vector: "[1, 2, 3]"},
	)

	batch, err := table.FetchEmbeddings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, batch.IDs)
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, batch.Vectors)
}

func TestSQLite_FetchEmbeddingsRejectsMalformed(t *testing.T) {
	table, _ := newSQLiteTable(t, "INTEGER", 3,
		testdb.EmbeddingRow{ID: int64(1), Vector: "[1, 2, 3]"},
		testdb.EmbeddingRow{ID: int64(2), Vector: []byte{1, 2, 3}},
	)

	_, err := table.FetchEmbeddings(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsDecodeError(err))
}

func TestSQLite_WriteAssignmentsAndCentroids(t *testing.T) {
	ctx := context.Background()
	table, db := newSQLiteTable(t, "TEXT", 2,
		testdb.EmbeddingRow{ID: "a", Vector: "[0,0]"},
		testdb.EmbeddingRow{ID: "b'quote", Vector: "[2,2]"},
		testdb.EmbeddingRow{ID: "c", Vector: "[9,9]"},
	)
	require.NoError(t, table.EnsureSchema(ctx))

	n, err := table.WriteAssignments(ctx, []any{"a", "b'quote", "c"}, []int{0, 0, -1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	members, err := table.FetchAssigned(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, Member{ID: "a", ClusterID: 0, Vector: []float32{0, 0}}, members[0])
	assert.Equal(t, Member{ID: "b'quote", ClusterID: 0, Vector: []float32{2, 2}}, members[1])

	require.NoError(t, table.WriteCentroids(ctx, map[int][]float32{0: {1, 1}}))

	var blob []byte
	require.NoError(t, db.QueryRow(`SELECT cluster_centroid FROM embeddings WHERE id = 'a'`).Scan(&blob))
	assert.Equal(t, testdb.PackVector(t, []float32{1, 1}), blob)

	var noiseCentroid sql.NullString
	require.NoError(t, db.QueryRow(`SELECT cluster_centroid FROM embeddings WHERE id = 'c'`).Scan(&noiseCentroid))
	assert.False(t, noiseCentroid.Valid)

	sizes, noise, err := table.ClusterSizes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 2}, sizes)
	assert.Equal(t, 1, noise)
}

func TestSQLite_WriteAssignmentsFailureLeavesTableUntouched(t *testing.T) {
	ctx := context.Background()
	table, db := newSQLiteTable(t, "INTEGER", 1,
		testdb.EmbeddingRow{ID: int64(1), Vector: "[1]"})
	require.NoError(t, table.EnsureSchema(ctx))

	// Unrenderable id fails before the transaction opens
	_, err := table.WriteAssignments(ctx, []any{3.5}, []int{0})
	require.Error(t, err)

	broken, err := NewTable(db, SQLite{}, TableSpec{
		Name:       "embeddings",
		Columns:    Columns{ID: "id", Vector: "reduced_vector", Cluster: "missing_column", Centroid: "cluster_centroid"},
		Dimensions: 1,
	}, nil)
	require.NoError(t, err)
	_, err = broken.WriteAssignments(ctx, []any{int64(1)}, []int{4})
	require.Error(t, err)
	assert.True(t, errors.IsStoreError(err))

	var clusterID int
	require.NoError(t, db.QueryRow(`SELECT cluster_id FROM embeddings WHERE id = 1`).Scan(&clusterID))
	assert.Equal(t, -1, clusterID)
}

func TestSQLite_WriteCentroidsRejectsWrongWidth(t *testing.T) {
	ctx := context.Background()
	table, _ := newSQLiteTable(t, "INTEGER", 2,
		testdb.EmbeddingRow{ID: int64(1), Vector: "[1,1]"})
	require.NoError(t, table.EnsureSchema(ctx))

	err := table.WriteCentroids(ctx, map[int][]float32{0: {1, 2, 3}})
	assert.True(t, errors.IsDimensionMismatch(err))

	err = table.WriteCentroids(ctx, map[int][]float32{-1: {1, 2}})
	assert.True(t, errors.IsAssertionFailure(err))
}

func TestSQLiteQuoting(t *testing.T) {
	s := SQLite{}
	assert.Equal(t, `"a""b"`, s.QuoteIdent(`a"b`))

	lit, err := s.QuoteLiteral("x'y")
	require.NoError(t, err)
	assert.Equal(t, `'x''y'`, lit)

	lit, err = s.QuoteLiteral(7)
	require.NoError(t, err)
	assert.Equal(t, "7", lit)

	assert.Equal(t, "BLOB", s.CentroidType(256))
}
