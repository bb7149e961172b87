package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/embcluster/errors"
)

// SQLiteBusyTimeoutMS is how long SQLite waits on a locked database
const SQLiteBusyTimeoutMS = 5000

// Driver names accepted by Open
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// NormalizeDriver maps accepted driver aliases to a database/sql driver name
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "sqlite3", "sqlite":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pgvector":
		return DriverPostgres, nil
	default:
		return "", errors.Newf("unsupported database driver %q", driver)
	}
}

// Open connects to the embeddings database and verifies the connection.
// If logger is provided, logs database operations; otherwise operates silently.
func Open(ctx context.Context, driver, dsn string, logger *zap.SugaredLogger) (*sql.DB, error) {
	driver, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if driver == DriverSQLite {
		return openSQLite(ctx, dsn, logger)
	}
	return openPostgres(ctx, dsn, logger)
}

func openSQLite(ctx context.Context, path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	logger.Debugw("Opening database", "driver", DriverSQLite, "path", path)

	// Register sqlite-vec on every new connection
	sqlite_vec.Auto()

	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, errors.WrapStore(err, "failed to open database")
	}

	// Runs are single-threaded; one connection keeps per-connection PRAGMAs in effect
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads during writes
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, errors.WrapStore(err, "failed to enable WAL mode")
	}

	// Enable foreign key constraints
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.WrapStore(err, "failed to enable foreign keys")
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", SQLiteBusyTimeoutMS)); err != nil {
		db.Close()
		return nil, errors.WrapStore(err, "failed to set busy timeout")
	}

	var vecVersion string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, errors.WrapStore(err, "sqlite-vec extension not available")
	}

	logger.Infow("Database opened successfully",
		"driver", DriverSQLite,
		"path", path,
		"wal_mode", true,
		"foreign_keys", true,
		"sqlite_vec", vecVersion,
	)
	return db, nil
}

func openPostgres(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*sql.DB, error) {
	logger.Debugw("Opening database", "driver", DriverPostgres)

	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, errors.WrapStore(err, "failed to open database")
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.WrapStore(err, "failed to connect to postgres")
	}

	logger.Infow("Database opened successfully", "driver", DriverPostgres)
	return db, nil
}
