package pipeline

import (
	"database/sql"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/embcluster/errors"
	"github.com/teranos/embcluster/logger"
)

// RunContext carries what one run shares across stages: a run id, a logger
// tagged with it, and the database handle. It is created once per run and
// closed on exit whatever the outcome.
type RunContext struct {
	ID     string
	DB     *sql.DB
	Logger *zap.SugaredLogger
}

// NewRunContext assigns a fresh run id. A nil log discards output.
func NewRunContext(db *sql.DB, log *zap.SugaredLogger) *RunContext {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	id := uuid.NewString()
	return &RunContext{
		ID:     id,
		DB:     db,
		Logger: log.With(logger.FieldRunID, id),
	}
}

// Close flushes the logger and closes the database. It is safe to call more
// than once.
func (rc *RunContext) Close() error {
	// Sync fails on terminals (ENOTTY/EINVAL); nothing useful to report
	_ = rc.Logger.Sync()

	if rc.DB == nil {
		return nil
	}
	db := rc.DB
	rc.DB = nil
	if err := db.Close(); err != nil {
		return errors.WrapStore(err, "close database")
	}
	return nil
}
