package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/teranos/embcluster/errors"
	"github.com/teranos/embcluster/vector"
)

// Postgres is the pgvector dialect. Centroids are VECTOR(D) columns bound
// through pgvector.Vector.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) QuoteIdent(name string) string { return pq.QuoteIdentifier(name) }

func (Postgres) QuoteLiteral(v any) (string, error) {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case string:
		return pq.QuoteLiteral(x), nil
	default:
		return "", errors.Newf("cannot render %T as a postgres literal", v)
	}
}

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) VectorPlaceholder(n int) string { return "$" + strconv.Itoa(n) + "::vector" }

func (Postgres) VectorArg(vec []float32) (any, error) { return pgvector.NewVector(vec), nil }

func (Postgres) CentroidType(dim int) string { return fmt.Sprintf("VECTOR(%d)", dim) }

func (p Postgres) EnsureColumn(ctx context.Context, tx *sql.Tx, table, column, typ string) error {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
		p.QuoteIdent(table), p.QuoteIdent(column), typ)
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return errors.WrapStore(err, "add column %s.%s", table, column)
	}
	return nil
}

func (p Postgres) AssignmentSQL(table, idCol, clusterCol string, rows []string) string {
	return fmt.Sprintf(
		"UPDATE %[1]s AS t SET %[3]s = v.cluster_id FROM (VALUES %[4]s) AS v(id, cluster_id) WHERE t.%[2]s = v.id",
		p.QuoteIdent(table), p.QuoteIdent(idCol), p.QuoteIdent(clusterCol), strings.Join(rows, ", "))
}

// RawVector picks the encoding from the column type lib/pq reports.
// BYTEA holds packed little-endian float32. pgvector columns have an
// extension oid that lib/pq cannot name, so an empty type with "[...]" text
// is tried as a pgvector literal first. Everything else (float4[], text,
// json) is read as a numeric array.
func (Postgres) RawVector(src any, dbType string) (vector.Raw, error) {
	switch strings.ToUpper(dbType) {
	case "BYTEA":
		return vector.Classify(src, false)
	case "VECTOR":
		if text, ok := textValue(src); ok {
			return parsePGVector(text)
		}
	case "":
		// JSON arrays from unnamed types may carry spaces pgvector rejects
		if text, ok := textValue(src); ok && strings.HasPrefix(text, "[") {
			if raw, err := parsePGVector(text); err == nil {
				return raw, nil
			}
		}
	}
	return vector.Classify(src, true)
}

func textValue(src any) (string, bool) {
	switch v := src.(type) {
	case []byte:
		return strings.TrimSpace(string(v)), true
	case string:
		return strings.TrimSpace(v), true
	default:
		return "", false
	}
}

func parsePGVector(text string) (vector.Raw, error) {
	if len(text) < 2 || text[0] != '[' || !strings.HasSuffix(text, "]") {
		return vector.Raw{}, errors.NewDecodeError("malformed pgvector literal %q", text)
	}
	if text == "[]" {
		return vector.Sequence(nil), nil
	}
	var v pgvector.Vector
	if err := v.Scan(text); err != nil {
		return vector.Raw{}, errors.WrapDecode(err, "parse pgvector literal")
	}
	return vector.Classify(v.Slice(), false)
}
