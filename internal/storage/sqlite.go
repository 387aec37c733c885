package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/prtimeline/internal/models"
)

// SQLiteStore keeps raw records and derived datasets in one local database
type SQLiteStore struct {
	db     *sqlx.DB
	logger logrus.FieldLogger
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(path string, logger logrus.FieldLogger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// one writer at a time; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.WithError(err).WithField("path", path).Debug("WAL mode unavailable, using default journal")
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raw_pulls (
		project TEXT NOT NULL,
		number INTEGER NOT NULL,
		pull TEXT,
		timeline TEXT,
		patch TEXT,
		PRIMARY KEY (project, number)
	);

	CREATE TABLE IF NOT EXISTS raw_commits (
		project TEXT NOT NULL,
		sha TEXT NOT NULL,
		record TEXT NOT NULL,
		PRIMARY KEY (project, sha)
	);

	CREATE TABLE IF NOT EXISTS dataset (
		project TEXT NOT NULL,
		pull_number INTEGER NOT NULL,
		event_number INTEGER NOT NULL,
		event TEXT NOT NULL,
		actor TEXT NOT NULL,
		time TIMESTAMP NOT NULL,
		state TEXT,
		commit_id TEXT,
		referenced BOOLEAN,
		sha TEXT,
		is_open BOOLEAN NOT NULL,
		is_closed BOOLEAN NOT NULL,
		is_merged BOOLEAN NOT NULL,
		opened_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP,
		closed_by TEXT,
		merged_at TIMESTAMP,
		merged_by TEXT,
		resolved_at TIMESTAMP,
		resolved_by TEXT,
		is_contributor BOOLEAN NOT NULL,
		is_maintainer BOOLEAN NOT NULL,
		is_bot BOOLEAN NOT NULL,
		is_maintainer_response BOOLEAN NOT NULL,
		maintainer_responded_at TIMESTAMP,
		maintainer_responded_by TEXT,
		maintainer_responded_event TEXT,
		maintainer_latency REAL,
		is_contributor_response BOOLEAN NOT NULL,
		contributor_responded_at TIMESTAMP,
		contributor_responded_event TEXT,
		contributor_latency REAL,
		PRIMARY KEY (project, pull_number, event_number)
	);

	CREATE TABLE IF NOT EXISTS derivation_runs (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		pulls INTEGER,
		events INTEGER,
		failures INTEGER,
		started_at TIMESTAMP,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_commits_project ON raw_commits(project);
	CREATE INDEX IF NOT EXISTS idx_runs_project ON derivation_runs(project);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SavePull upserts a pull's raw records
func (s *SQLiteStore) SavePull(ctx context.Context, project string, record *models.RawPullRecord) error {
	timeline, err := encodeTimeline(record.Timeline)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO raw_pulls (project, number, pull, timeline, patch)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (project, number) DO UPDATE SET
			pull = COALESCE(excluded.pull, raw_pulls.pull),
			timeline = COALESCE(excluded.timeline, raw_pulls.timeline),
			patch = COALESCE(excluded.patch, raw_pulls.patch)
	`
	if _, err := tx.ExecContext(ctx, query,
		project, record.Number, nullRaw(record.Pull), timeline, nullString(record.Patch)); err != nil {
		return fmt.Errorf("save pull: %w", err)
	}

	for sha, commit := range record.Commits {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO raw_commits (project, sha, record) VALUES (?, ?, ?)`,
			project, sha, string(commit))
		if err != nil {
			return fmt.Errorf("save commit %s: %w", sha, err)
		}
	}

	return tx.Commit()
}

// LoadProject loads everything stored for a project
func (s *SQLiteStore) LoadProject(ctx context.Context, project string) (*models.RawProject, error) {
	var pulls []rawPullRow
	err := s.db.SelectContext(ctx, &pulls,
		`SELECT number, pull, timeline, patch FROM raw_pulls WHERE project = ? ORDER BY number`, project)
	if err != nil {
		return nil, fmt.Errorf("load pulls: %w", err)
	}

	var commits []rawCommitRow
	err = s.db.SelectContext(ctx, &commits,
		`SELECT sha, record FROM raw_commits WHERE project = ?`, project)
	if err != nil {
		return nil, fmt.Errorf("load commits: %w", err)
	}

	if len(pulls) == 0 && len(commits) == 0 {
		return nil, fmt.Errorf("project %s: %w", project, ErrNotFound)
	}

	raw := models.NewRawProject(project)
	for _, row := range pulls {
		record, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("project %s pull %d: %w", project, row.Number, err)
		}
		raw.Add(record)
	}
	for _, c := range commits {
		raw.Commits[c.SHA] = json.RawMessage(c.Record)
	}

	s.logger.WithFields(logrus.Fields{
		"project": project,
		"pulls":   len(pulls),
		"commits": len(commits),
	}).Debug("Loaded raw project")

	return raw, nil
}

// Projects lists stored projects
func (s *SQLiteStore) Projects(ctx context.Context) ([]string, error) {
	var projects []string
	err := s.db.SelectContext(ctx, &projects, `
		SELECT project FROM raw_pulls
		UNION
		SELECT project FROM raw_commits
		ORDER BY project
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// SaveDataset replaces a project's derived rows
func (s *SQLiteStore) SaveDataset(ctx context.Context, project string, rows []models.DatasetRow) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset WHERE project = ?`, project); err != nil {
		return fmt.Errorf("clear dataset: %w", err)
	}
	for i := range rows {
		if _, err := tx.NamedExecContext(ctx, insertDataset, &rows[i]); err != nil {
			return fmt.Errorf("save row (%d, %d): %w", rows[i].PullNumber, rows[i].EventNumber, err)
		}
	}

	return tx.Commit()
}

// Dataset returns a project's derived rows ordered by pull and event number
func (s *SQLiteStore) Dataset(ctx context.Context, project string) ([]models.DatasetRow, error) {
	var rows []models.DatasetRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+datasetColumns+` FROM dataset WHERE project = ? ORDER BY pull_number, event_number`, project)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return rows, nil
}

// RecordRun stores a derivation run
func (s *SQLiteStore) RecordRun(ctx context.Context, run *models.DerivationRun) error {
	if _, err := s.db.NamedExecContext(ctx, insertRun, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns a project's recorded runs, oldest first
func (s *SQLiteStore) Runs(ctx context.Context, project string) ([]models.DerivationRun, error) {
	var runs []models.DerivationRun
	err := s.db.SelectContext(ctx, &runs,
		`SELECT * FROM derivation_runs WHERE project = ? ORDER BY started_at`, project)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}
	return runs, nil
}

type rawPullRow struct {
	Number   int            `db:"number"`
	Pull     sql.NullString `db:"pull"`
	Timeline sql.NullString `db:"timeline"`
	Patch    sql.NullString `db:"patch"`
}

type rawCommitRow struct {
	SHA    string `db:"sha"`
	Record string `db:"record"`
}

func (r rawPullRow) record() (*models.RawPullRecord, error) {
	record := &models.RawPullRecord{Number: r.Number, Patch: r.Patch.String}
	if r.Pull.Valid {
		record.Pull = json.RawMessage(r.Pull.String)
	}
	if r.Timeline.Valid {
		timeline, err := decodeTimeline([]byte(r.Timeline.String))
		if err != nil {
			return nil, err
		}
		record.Timeline = timeline
	}
	return record, nil
}

func encodeTimeline(timeline []json.RawMessage) (interface{}, error) {
	if timeline == nil {
		return nil, nil
	}
	data, err := json.Marshal(timeline)
	if err != nil {
		return nil, fmt.Errorf("encode timeline: %w", err)
	}
	return string(data), nil
}

func decodeTimeline(data []byte) ([]json.RawMessage, error) {
	timeline := []json.RawMessage{}
	if err := json.Unmarshal(data, &timeline); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	return timeline, nil
}

func nullRaw(raw json.RawMessage) interface{} {
	if raw == nil {
		return nil
	}
	return string(raw)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
