package storage

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/prtimeline/internal/models"
)

// PostgresStore is a dataset warehouse shared across machines. driver is the
// database/sql driver name: "pgx" or "postgres" (lib/pq).
type PostgresStore struct {
	db     *sqlx.DB
	logger logrus.FieldLogger
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(driver, dsn string, logger logrus.FieldLogger) (*PostgresStore, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dataset (
		project TEXT NOT NULL,
		pull_number INTEGER NOT NULL,
		event_number INTEGER NOT NULL,
		event TEXT NOT NULL,
		actor TEXT NOT NULL,
		time TIMESTAMPTZ NOT NULL,
		state TEXT,
		commit_id TEXT,
		referenced BOOLEAN,
		sha TEXT,
		is_open BOOLEAN NOT NULL,
		is_closed BOOLEAN NOT NULL,
		is_merged BOOLEAN NOT NULL,
		opened_at TIMESTAMPTZ NOT NULL,
		closed_at TIMESTAMPTZ,
		closed_by TEXT,
		merged_at TIMESTAMPTZ,
		merged_by TEXT,
		resolved_at TIMESTAMPTZ,
		resolved_by TEXT,
		is_contributor BOOLEAN NOT NULL,
		is_maintainer BOOLEAN NOT NULL,
		is_bot BOOLEAN NOT NULL,
		is_maintainer_response BOOLEAN NOT NULL,
		maintainer_responded_at TIMESTAMPTZ,
		maintainer_responded_by TEXT,
		maintainer_responded_event TEXT,
		maintainer_latency DOUBLE PRECISION,
		is_contributor_response BOOLEAN NOT NULL,
		contributor_responded_at TIMESTAMPTZ,
		contributor_responded_event TEXT,
		contributor_latency DOUBLE PRECISION,
		PRIMARY KEY (project, pull_number, event_number)
	);

	CREATE TABLE IF NOT EXISTS derivation_runs (
		id UUID PRIMARY KEY,
		project TEXT NOT NULL,
		pulls INTEGER,
		events INTEGER,
		failures INTEGER,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_runs_project ON derivation_runs(project);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SaveDataset replaces a project's derived rows in one transaction
func (s *PostgresStore) SaveDataset(ctx context.Context, project string, rows []models.DatasetRow) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset WHERE project = $1`, project); err != nil {
		return fmt.Errorf("clear dataset: %w", err)
	}

	// batched to stay under the 65535 bind parameter limit
	const batchSize = 500
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		if _, err := tx.NamedExecContext(ctx, insertDataset, rows[start:end]); err != nil {
			return fmt.Errorf("save rows %d-%d: %w", start, end, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dataset: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"project": project,
		"rows":    len(rows),
	}).Debug("Saved dataset to postgres")
	return nil
}

// Dataset returns a project's derived rows ordered by pull and event number
func (s *PostgresStore) Dataset(ctx context.Context, project string) ([]models.DatasetRow, error) {
	var rows []models.DatasetRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+datasetColumns+` FROM dataset WHERE project = $1 ORDER BY pull_number, event_number`, project)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return rows, nil
}

// RecordRun stores a derivation run
func (s *PostgresStore) RecordRun(ctx context.Context, run *models.DerivationRun) error {
	if _, err := s.db.NamedExecContext(ctx, insertRun, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
