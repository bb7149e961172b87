package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/embcluster/errors"
	"github.com/teranos/embcluster/vector"
)

func newMockTable(t *testing.T, dim int) (*Table, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	spec := TableSpec{Name: "embeddings", Columns: DefaultColumns(), Dimensions: dim}
	table, err := NewTable(db, Postgres{}, spec, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return table, mock
}

func TestPostgres_EnsureSchema(t *testing.T) {
	table, mock := newMockTable(t, 256)

	mock.ExpectBegin()
	mock.ExpectExec(`ALTER TABLE "embeddings" ADD COLUMN IF NOT EXISTS "cluster_id" INTEGER DEFAULT -1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE "embeddings" ADD COLUMN IF NOT EXISTS "cluster_centroid" VECTOR(256)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, table.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_EnsureSchemaFailureRollsBack(t *testing.T) {
	table, mock := newMockTable(t, 3)

	mock.ExpectBegin()
	mock.ExpectExec(`ALTER TABLE "embeddings" ADD COLUMN IF NOT EXISTS "cluster_id" INTEGER DEFAULT -1`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := table.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsStoreError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FetchEmbeddings(t *testing.T) {
	table, mock := newMockTable(t, 3)

	mock.ExpectQuery(`SELECT "id", "reduced_vector" FROM "embeddings" ORDER BY "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reduced_vector"}).
			AddRow(int64(1), []byte("[1,2,3]")).
			AddRow(int64(2), "{4,5,6}"))

	batch, err := table.FetchEmbeddings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, batch.IDs)
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, batch.Vectors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FetchEmbeddingsDimensionMismatch(t *testing.T) {
	table, mock := newMockTable(t, 3)

	mock.ExpectQuery(`SELECT "id", "reduced_vector" FROM "embeddings" ORDER BY "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reduced_vector"}).
			AddRow(int64(1), []byte("[1,2,3]")).
			AddRow(int64(7), []byte("[1,2]")))

	_, err := table.FetchEmbeddings(context.Background())
	require.Error(t, err)

	var dm *errors.DimensionMismatchError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, int64(7), dm.ID)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
}

func packFloat32(t *testing.T, vec []float32) []byte {
	t.Helper()
	b, err := sqlite_vec.SerializeFloat32(vec)
	require.NoError(t, err)
	return b
}

// typedRows builds rows whose vector column reports dbType, the way lib/pq
// names result columns.
func typedRows(mock sqlmock.Sqlmock, dbType string, cols ...string) *sqlmock.Rows {
	defs := make([]*sqlmock.Column, len(cols))
	for i, name := range cols {
		defs[i] = mock.NewColumn(name).OfType("INT8", int64(0))
	}
	defs[len(cols)-1] = mock.NewColumn(cols[len(cols)-1]).OfType(dbType, []byte(nil))
	return mock.NewRowsWithColumnDefinition(defs...)
}

func TestPostgres_FetchEmbeddingsByColumnType(t *testing.T) {
	want := []float32{1, 2.5, -3}

	tests := []struct {
		name   string
		dbType string
		value  any
	}{
		{name: "bytea packed float32", dbType: "BYTEA", value: packFloat32(t, want)},
		{name: "pgvector via lib/pq (unnamed oid)", dbType: "", value: []byte("[1,2.5,-3]")},
		{name: "pgvector named", dbType: "VECTOR", value: []byte("[1,2.5,-3]")},
		{name: "float4 array", dbType: "_FLOAT4", value: []byte("{1,2.5,-3}")},
		{name: "json text", dbType: "TEXT", value: "[1, 2.5, -3]"},
		{name: "json with spaces under unnamed oid", dbType: "", value: []byte("[1, 2.5, -3]")},
		{name: "jsonb", dbType: "JSONB", value: []byte("[1,2.5,-3]")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, mock := newMockTable(t, 3)

			mock.ExpectQuery(`SELECT "id", "reduced_vector" FROM "embeddings" ORDER BY "id"`).
				WillReturnRows(typedRows(mock, tt.dbType, "id", "reduced_vector").
					AddRow(int64(1), tt.value))

			batch, err := table.FetchEmbeddings(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []any{int64(1)}, batch.IDs)
			assert.Equal(t, [][]float32{want}, batch.Vectors)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgres_FetchEmbeddingsBadBytea(t *testing.T) {
	table, mock := newMockTable(t, 2)

	mock.ExpectQuery(`SELECT "id", "reduced_vector" FROM "embeddings" ORDER BY "id"`).
		WillReturnRows(typedRows(mock, "BYTEA", "id", "reduced_vector").
			AddRow(int64(1), []byte{0, 0, 128}))

	_, err := table.FetchEmbeddings(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsDecodeError(err), "got %v", err)
}

func TestPostgres_FetchAssignedBytea(t *testing.T) {
	table, mock := newMockTable(t, 2)

	mock.ExpectQuery(`SELECT "id", "cluster_id", "reduced_vector" FROM "embeddings" ` +
		`WHERE "cluster_id" >= 0 ORDER BY "cluster_id", "id"`).
		WillReturnRows(typedRows(mock, "BYTEA", "id", "cluster_id", "reduced_vector").
			AddRow(int64(1), int64(0), packFloat32(t, []float32{0.5, -0.5})).
			AddRow(int64(4), int64(1), packFloat32(t, []float32{10, 10})))

	members, err := table.FetchAssigned(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Member{
		{ID: int64(1), ClusterID: 0, Vector: []float32{0.5, -0.5}},
		{ID: int64(4), ClusterID: 1, Vector: []float32{10, 10}},
	}, members)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FetchAssignedPGVector(t *testing.T) {
	table, mock := newMockTable(t, 2)

	mock.ExpectQuery(`SELECT "id", "cluster_id", "reduced_vector" FROM "embeddings" ` +
		`WHERE "cluster_id" >= 0 ORDER BY "cluster_id", "id"`).
		WillReturnRows(typedRows(mock, "", "id", "cluster_id", "reduced_vector").
			AddRow("doc-1", int64(2), []byte("[3,4]")))

	members, err := table.FetchAssigned(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "doc-1", members[0].ID)
	assert.Equal(t, []float32{3, 4}, members[0].Vector)
}

func TestPostgres_RawVector(t *testing.T) {
	p := Postgres{}

	raw, err := p.RawVector([]byte("[1,2]"), "VECTOR")
	require.NoError(t, err)
	assert.Equal(t, vector.KindSequence, raw.Kind)

	raw, err = p.RawVector([]byte{0, 0, 128, 63}, "bytea")
	require.NoError(t, err)
	assert.Equal(t, vector.KindPacked, raw.Kind)

	raw, err = p.RawVector([]byte("{1,2}"), "_FLOAT4")
	require.NoError(t, err)
	assert.Equal(t, vector.KindText, raw.Kind)

	for _, bad := range []string{"[1,x]", "[", "1,2", "x1,2]"} {
		_, err = p.RawVector([]byte(bad), "VECTOR")
		assert.True(t, errors.IsDecodeError(err), "%q: got %v", bad, err)
	}

	raw, err = p.RawVector("[NaN,1]", "VECTOR")
	require.NoError(t, err)
	_, err = vector.Decode(1, raw, 2)
	assert.True(t, errors.IsDecodeError(err), "got %v", err)
}

func TestPostgres_VectorArg(t *testing.T) {
	arg, err := Postgres{}.VectorArg([]float32{10, 10.5, -0.25})
	require.NoError(t, err)

	valuer, ok := arg.(driver.Valuer)
	require.True(t, ok, "got %T", arg)
	v, err := valuer.Value()
	require.NoError(t, err)
	assert.Equal(t, "[10,10.5,-0.25]", v)
}

func TestPostgres_WriteAssignments(t *testing.T) {
	table, mock := newMockTable(t, 3)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "embeddings" AS t SET "cluster_id" = v.cluster_id ` +
		`FROM (VALUES (1, 0), ('a''b', -1), (3, 2)) AS v(id, cluster_id) WHERE t."id" = v.id`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := table.WriteAssignments(context.Background(), []any{int64(1), "a'b", int64(3)}, []int{0, -1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_WriteAssignmentsRollsBack(t *testing.T) {
	table, mock := newMockTable(t, 3)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "embeddings" AS t SET "cluster_id" = v.cluster_id ` +
		`FROM (VALUES (1, 0)) AS v(id, cluster_id) WHERE t."id" = v.id`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := table.WriteAssignments(context.Background(), []any{int64(1)}, []int{0})
	require.Error(t, err)
	assert.True(t, errors.IsStoreError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_WriteAssignmentsMisaligned(t *testing.T) {
	table, mock := newMockTable(t, 3)

	_, err := table.WriteAssignments(context.Background(), []any{int64(1), int64(2)}, []int{0})
	require.Error(t, err)
	assert.True(t, errors.IsAssertionFailure(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_WriteCentroids(t *testing.T) {
	table, mock := newMockTable(t, 2)

	const stmt = `UPDATE "embeddings" SET "cluster_centroid" = $1::vector WHERE "cluster_id" = $2`
	mock.ExpectBegin()
	mock.ExpectExec(stmt).WithArgs("[0,0]", 0).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(stmt).WithArgs("[10,10.5]", 4).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := table.WriteCentroids(context.Background(), map[int][]float32{
		4: {10, 10.5},
		0: {0, 0},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_WriteCentroidsFailureDoesNotCommit(t *testing.T) {
	table, mock := newMockTable(t, 1)

	const stmt = `UPDATE "embeddings" SET "cluster_centroid" = $1::vector WHERE "cluster_id" = $2`
	mock.ExpectBegin()
	mock.ExpectExec(stmt).WithArgs("[1]", 0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(stmt).WithArgs("[2]", 1).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := table.WriteCentroids(context.Background(), map[int][]float32{0: {1}, 1: {2}})
	require.Error(t, err)
	assert.True(t, errors.IsStoreError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ClusterSizes(t *testing.T) {
	table, mock := newMockTable(t, 3)

	mock.ExpectQuery(`SELECT "cluster_id", COUNT(*) FROM "embeddings" GROUP BY "cluster_id" ORDER BY "cluster_id"`).
		WillReturnRows(sqlmock.NewRows([]string{"cluster_id", "count"}).
			AddRow(nil, 2).
			AddRow(int64(-1), 3).
			AddRow(int64(0), 4).
			AddRow(int64(1), 5))

	sizes, noise, err := table.ClusterSizes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, noise)
	assert.Equal(t, map[int]int{0: 4, 1: 5}, sizes)
}

func TestPostgresQuoting(t *testing.T) {
	p := Postgres{}
	assert.Equal(t, `"my ""table"""`, p.QuoteIdent(`my "table"`))

	lit, err := p.QuoteLiteral(int64(42))
	require.NoError(t, err)
	assert.Equal(t, "42", lit)

	lit, err = p.QuoteLiteral("it's")
	require.NoError(t, err)
	assert.Equal(t, `'it''s'`, lit)

	_, err = p.QuoteLiteral(3.5)
	assert.Error(t, err)
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", d.Name())

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}

func TestTableSpecValidate(t *testing.T) {
	spec := TableSpec{Name: "embeddings", Columns: DefaultColumns(), Dimensions: 8}
	assert.NoError(t, spec.Validate())

	bad := spec
	bad.Dimensions = 0
	assert.Error(t, bad.Validate())

	bad = spec
	bad.Columns.Centroid = ""
	assert.Error(t, bad.Validate())

	bad = spec
	bad.Name = ""
	assert.Error(t, bad.Validate())
}
