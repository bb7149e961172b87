package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/teranos/embcluster/errors"
	"github.com/teranos/embcluster/vector"
)

// SQLite stores centroids as sqlite-vec FLOAT32 BLOBs.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite3" }

func (SQLite) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLite) QuoteLiteral(v any) (string, error) {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	default:
		return "", errors.Newf("cannot render %T as a sqlite literal", v)
	}
}

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) VectorPlaceholder(int) string { return "?" }

func (SQLite) VectorArg(vec []float32) (any, error) {
	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return nil, errors.Wrap(err, "serialize centroid")
	}
	return blob, nil
}

func (SQLite) CentroidType(int) string { return "BLOB" }

// EnsureColumn consults pragma_table_info since SQLite has no
// ADD COLUMN IF NOT EXISTS.
func (s SQLite) EnsureColumn(ctx context.Context, tx *sql.Tx, table, column, typ string) error {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&n)
	if err != nil {
		return errors.WrapStore(err, "inspect columns of %s", table)
	}
	if n > 0 {
		return nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", s.QuoteIdent(table), s.QuoteIdent(column), typ)
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return errors.WrapStore(err, "add column %s.%s", table, column)
	}
	return nil
}

func (s SQLite) AssignmentSQL(table, idCol, clusterCol string, rows []string) string {
	t := s.QuoteIdent(table)
	return fmt.Sprintf(
		"WITH v(id, cluster_id) AS (VALUES %[4]s) UPDATE %[1]s SET %[3]s = v.cluster_id FROM v WHERE %[1]s.%[2]s = v.id",
		t, s.QuoteIdent(idCol), s.QuoteIdent(clusterCol), strings.Join(rows, ", "))
}

// RawVector reads []byte as a packed float32 BLOB. go-sqlite3 returns TEXT
// values as strings whatever the declared type, so dbType is not consulted.
func (SQLite) RawVector(src any, _ string) (vector.Raw, error) {
	return vector.Classify(src, false)
}
