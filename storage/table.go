package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/embcluster/db"
	"github.com/teranos/embcluster/errors"
	"github.com/teranos/embcluster/logger"
	"github.com/teranos/embcluster/vector"
)

// Columns names the columns Table reads and writes.
type Columns struct {
	ID       string
	Vector   string
	Cluster  string
	Centroid string
}

// DefaultColumns returns the conventional column names.
func DefaultColumns() Columns {
	return Columns{
		ID:       "id",
		Vector:   "reduced_vector",
		Cluster:  "cluster_id",
		Centroid: "cluster_centroid",
	}
}

// TableSpec identifies an embeddings table and its vector width.
type TableSpec struct {
	Name       string
	Columns    Columns
	Dimensions int
}

// Validate rejects empty identifiers and non-positive dimensions.
func (s TableSpec) Validate() error {
	if s.Name == "" {
		return errors.New("table name is required")
	}
	if s.Dimensions <= 0 {
		return errors.Newf("dimensions must be positive, got %d", s.Dimensions)
	}
	for _, c := range []string{s.Columns.ID, s.Columns.Vector, s.Columns.Cluster, s.Columns.Centroid} {
		if c == "" {
			return errors.Newf("table %s: every column name is required", s.Name)
		}
	}
	return nil
}

// Batch is the full set of stored vectors, IDs[i] aligned with Vectors[i].
type Batch struct {
	IDs     []any
	Vectors [][]float32
}

// Len returns the number of rows.
func (b *Batch) Len() int { return len(b.IDs) }

// Member is a row assigned to a cluster.
type Member struct {
	ID        any
	ClusterID int
	Vector    []float32
}

// Table runs the clustering statements against one embeddings table.
type Table struct {
	db      *sql.DB
	dialect Dialect
	spec    TableSpec
	logger  *zap.SugaredLogger
}

// NewTable validates spec and binds it to db.
func NewTable(db *sql.DB, dialect Dialect, spec TableSpec, log *zap.SugaredLogger) (*Table, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if dialect == nil {
		return nil, errors.New("dialect is required")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Table{
		db:      db,
		dialect: dialect,
		spec:    spec,
		logger:  log.With(logger.FieldTable, spec.Name, logger.FieldDriver, dialect.Name()),
	}, nil
}

// Spec returns the table description.
func (t *Table) Spec() TableSpec { return t.spec }

func (t *Table) ident(name string) string { return t.dialect.QuoteIdent(name) }

// EnsureSchema adds the cluster and centroid columns when missing, in a
// transaction of its own. Running it again is a no-op.
func (t *Table) EnsureSchema(ctx context.Context) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStore(err, "begin schema transaction")
	}
	defer t.rollback(tx)

	if err := t.dialect.EnsureColumn(ctx, tx, t.spec.Name, t.spec.Columns.Cluster, "INTEGER DEFAULT -1"); err != nil {
		return err
	}
	if err := t.dialect.EnsureColumn(ctx, tx, t.spec.Name, t.spec.Columns.Centroid, t.dialect.CentroidType(t.spec.Dimensions)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapStore(err, "commit schema changes")
	}
	t.logger.Debugw("Schema ensured",
		"cluster_column", t.spec.Columns.Cluster,
		"centroid_column", t.spec.Columns.Centroid,
		logger.FieldDimensions, t.spec.Dimensions,
	)
	return nil
}

// FetchEmbeddings reads every row ordered by id and decodes each vector.
// The first malformed row aborts the fetch.
func (t *Table) FetchEmbeddings(ctx context.Context) (*Batch, error) {
	start := time.Now()
	query := fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s",
		t.ident(t.spec.Columns.ID), t.ident(t.spec.Columns.Vector),
		t.ident(t.spec.Name), t.ident(t.spec.Columns.ID))

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.WrapStore(err, "query embeddings from %s", t.spec.Name)
	}
	defer rows.Close()

	vecType, err := columnType(rows, 1)
	if err != nil {
		return nil, err
	}

	batch := &Batch{}
	for rows.Next() {
		var rawID, rawVec any
		if err := rows.Scan(&rawID, &rawVec); err != nil {
			return nil, errors.WrapStore(err, "scan embedding row")
		}

		id, err := normalizeID(rawID)
		if err != nil {
			return nil, errors.WrapDecode(err, "read id column %s", t.spec.Columns.ID)
		}
		vec, err := t.decode(id, rawVec, vecType)
		if err != nil {
			return nil, err
		}

		batch.IDs = append(batch.IDs, id)
		batch.Vectors = append(batch.Vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore(err, "iterate embeddings")
	}

	t.logger.Debugw("Fetched embeddings",
		logger.FieldRows, batch.Len(),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return batch, nil
}

func (t *Table) decode(id, rawVec any, dbType string) ([]float32, error) {
	raw, err := t.dialect.RawVector(rawVec, dbType)
	if err != nil {
		return nil, errors.WrapDecode(err, "classify vector for id=%v", id)
	}
	return vector.Decode(id, raw, t.spec.Dimensions)
}

// columnType returns the database type name of result column index.
func columnType(rows *sql.Rows, index int) (string, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return "", errors.WrapStore(err, "read column types")
	}
	if index >= len(types) {
		return "", errors.AssertionFailedf("result has %d columns, want index %d", len(types), index)
	}
	return types[index].DatabaseTypeName(), nil
}

// WriteAssignments sets the cluster column of every row in ids to the label
// at the same index with one bulk UPDATE in one transaction. On any failure
// the transaction is rolled back and the table keeps its previous state.
// It returns the number of rows the statement updated.
func (t *Table) WriteAssignments(ctx context.Context, ids []any, labels []int) (int64, error) {
	if len(ids) != len(labels) {
		return 0, errors.AssertionFailedf("%d ids but %d labels", len(ids), len(labels))
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tuples := make([]string, len(ids))
	for i, id := range ids {
		lit, err := t.dialect.QuoteLiteral(id)
		if err != nil {
			return 0, errors.Wrapf(err, "render id at index %d", i)
		}
		tuples[i] = fmt.Sprintf("(%s, %d)", lit, labels[i])
	}
	stmt := t.dialect.AssignmentSQL(t.spec.Name, t.spec.Columns.ID, t.spec.Columns.Cluster, tuples)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.WrapStore(err, "begin assignment transaction")
	}
	defer t.rollback(tx)

	res, err := tx.ExecContext(ctx, stmt)
	if err != nil {
		return 0, errors.WrapStore(err, "bulk update %s", t.spec.Columns.Cluster)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = -1
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.WrapStore(err, "commit cluster assignments")
	}

	t.logger.Debugw("Cluster assignments written",
		logger.FieldRows, len(ids),
		"rows_affected", affected,
	)
	return affected, nil
}

// FetchAssigned reads every row with a non-noise cluster id, ordered by
// cluster id then row id.
func (t *Table) FetchAssigned(ctx context.Context) ([]Member, error) {
	query := fmt.Sprintf("SELECT %[1]s, %[2]s, %[3]s FROM %[4]s WHERE %[2]s >= 0 ORDER BY %[2]s, %[1]s",
		t.ident(t.spec.Columns.ID), t.ident(t.spec.Columns.Cluster),
		t.ident(t.spec.Columns.Vector), t.ident(t.spec.Name))

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.WrapStore(err, "query assigned rows from %s", t.spec.Name)
	}
	defer rows.Close()

	vecType, err := columnType(rows, 2)
	if err != nil {
		return nil, err
	}

	var members []Member
	for rows.Next() {
		var (
			rawID, rawVec any
			clusterID     int
		)
		if err := rows.Scan(&rawID, &clusterID, &rawVec); err != nil {
			return nil, errors.WrapStore(err, "scan assigned row")
		}

		id, err := normalizeID(rawID)
		if err != nil {
			return nil, errors.WrapDecode(err, "read id column %s", t.spec.Columns.ID)
		}
		vec, err := t.decode(id, rawVec, vecType)
		if err != nil {
			return nil, err
		}
		members = append(members, Member{ID: id, ClusterID: clusterID, Vector: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore(err, "iterate assigned rows")
	}
	return members, nil
}

// WriteCentroids stores each cluster's centroid on all of its member rows:
// one UPDATE per cluster in ascending cluster order, a single commit at the end.
func (t *Table) WriteCentroids(ctx context.Context, centroids map[int][]float32) error {
	if len(centroids) == 0 {
		return nil
	}

	clusterIDs := make([]int, 0, len(centroids))
	for id := range centroids {
		if id < 0 {
			return errors.AssertionFailedf("centroid for reserved cluster id %d", id)
		}
		clusterIDs = append(clusterIDs, id)
	}
	sort.Ints(clusterIDs)

	stmt := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		t.ident(t.spec.Name), t.ident(t.spec.Columns.Centroid), t.dialect.VectorPlaceholder(1),
		t.ident(t.spec.Columns.Cluster), t.dialect.Placeholder(2))

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStore(err, "begin centroid transaction")
	}
	defer t.rollback(tx)

	for _, id := range clusterIDs {
		centroid := centroids[id]
		if len(centroid) != t.spec.Dimensions {
			return errors.NewDimensionMismatch(fmt.Sprintf("cluster %d", id), t.spec.Dimensions, len(centroid))
		}
		arg, err := t.dialect.VectorArg(centroid)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, arg, id); err != nil {
			return errors.WrapStore(err, "update centroid of cluster %d", id)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapStore(err, "commit centroids")
	}
	t.logger.Debugw("Centroids written", logger.FieldClusters, len(clusterIDs))
	return nil
}

// ClusterSizes counts rows per cluster id. Noise rows are returned
// separately and excluded from sizes.
func (t *Table) ClusterSizes(ctx context.Context) (sizes map[int]int, noise int, err error) {
	query := fmt.Sprintf("SELECT %[1]s, COUNT(*) FROM %[2]s GROUP BY %[1]s ORDER BY %[1]s",
		t.ident(t.spec.Columns.Cluster), t.ident(t.spec.Name))

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, 0, errors.WrapStore(err, "count cluster members in %s", t.spec.Name)
	}
	defer rows.Close()

	sizes = make(map[int]int)
	for rows.Next() {
		var (
			id    sql.NullInt64
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, 0, errors.WrapStore(err, "scan cluster count")
		}
		if !id.Valid || id.Int64 < 0 {
			noise += count
			continue
		}
		sizes[int(id.Int64)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.WrapStore(err, "iterate cluster counts")
	}
	return sizes, noise, nil
}

// rollback undoes tx unless it was already committed.
func (t *Table) rollback(tx *sql.Tx) {
	err := tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) || db.IsDatabaseClosed(err) {
		return
	}
	t.logger.Warnw("Rollback failed", logger.FieldError, err)
}
