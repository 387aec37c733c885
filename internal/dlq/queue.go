// Package dlq keeps a dead letter queue of pull requests that could not be
// derived, so repeated failures are visible across runs.
package dlq

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	perrors "github.com/rohankatakam/prtimeline/internal/errors"
)

// MaxRetries is the retry count after which an entry is reported as exhausted
const MaxRetries = 5

// Entry represents a dead letter queue entry
type Entry struct {
	Project      string    `db:"project"`
	PullNumber   int       `db:"pull_number"`
	ErrorType    string    `db:"error_type"`
	ErrorMessage string    `db:"error_message"`
	RetryCount   int       `db:"retry_count"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Stats contains DLQ statistics for a project
type Stats struct {
	Project          string
	TotalEntries     int `db:"total"`
	RetryableEntries int `db:"retryable"`
	ExhaustedRetries int `db:"exhausted"`
}

// Queue manages failed pull derivations. The same queries run on SQLite and
// PostgreSQL; placeholders are rebound per driver.
type Queue struct {
	db     *sqlx.DB
	logger logrus.FieldLogger
}

// NewQueue creates the queue table if needed
func NewQueue(db *sqlx.DB, logger logrus.FieldLogger) (*Queue, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dead_letter_queue (
			project TEXT NOT NULL,
			pull_number INTEGER NOT NULL,
			error_type TEXT NOT NULL,
			error_message TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (project, pull_number)
		)
	`)
	if err != nil {
		return nil, perrors.DatabaseError(err, "failed to create dead letter queue")
	}
	return &Queue{
		db:     db,
		logger: logger.WithField("component", "dlq"),
	}, nil
}

// Enqueue adds a failed pull to the DLQ.
// If the pull is already queued, increments retry_count.
func (q *Queue) Enqueue(ctx context.Context, project string, pullNumber int, failure error) error {
	now := time.Now().UTC()
	_, err := q.db.ExecContext(ctx, q.db.Rebind(`
		INSERT INTO dead_letter_queue
			(project, pull_number, error_type, error_message, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (project, pull_number) DO UPDATE
		SET retry_count = dead_letter_queue.retry_count + 1,
		    error_type = excluded.error_type,
		    error_message = excluded.error_message,
		    updated_at = excluded.updated_at
	`), project, pullNumber, errorType(failure), failure.Error(), now, now)
	if err != nil {
		return perrors.DatabaseErrorf(err, "failed to enqueue pull %d", pullNumber)
	}

	q.logger.WithFields(logrus.Fields{
		"project":     project,
		"pull_number": pullNumber,
		"error":       failure.Error(),
	}).Debug("Pull enqueued to DLQ")
	return nil
}

// MarkResolved removes a pull from the DLQ after a successful derivation
func (q *Queue) MarkResolved(ctx context.Context, project string, pullNumber int) (bool, error) {
	result, err := q.db.ExecContext(ctx, q.db.Rebind(`
		DELETE FROM dead_letter_queue WHERE project = ? AND pull_number = ?
	`), project, pullNumber)
	if err != nil {
		return false, perrors.DatabaseErrorf(err, "failed to resolve pull %d", pullNumber)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Reconcile records one derivation pass: failed pulls are enqueued and derived
// pulls leave the queue.
func (q *Queue) Reconcile(ctx context.Context, project string, failed map[int]error, derived []int) error {
	numbers := make([]int, 0, len(failed))
	for n := range failed {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for _, n := range numbers {
		if err := q.Enqueue(ctx, project, n, failed[n]); err != nil {
			return err
		}
	}

	resolved := 0
	for _, n := range derived {
		ok, err := q.MarkResolved(ctx, project, n)
		if err != nil {
			return err
		}
		if ok {
			resolved++
		}
	}
	if resolved > 0 {
		q.logger.WithFields(logrus.Fields{
			"project":  project,
			"resolved": resolved,
		}).Info("Pulls resolved and removed from DLQ")
	}
	return nil
}

// Entries returns a project's queued pulls ordered by pull number
func (q *Queue) Entries(ctx context.Context, project string) ([]Entry, error) {
	var entries []Entry
	err := q.db.SelectContext(ctx, &entries, q.db.Rebind(`
		SELECT project, pull_number, error_type, error_message, retry_count, created_at, updated_at
		FROM dead_letter_queue
		WHERE project = ?
		ORDER BY pull_number
	`), project)
	if err != nil {
		return nil, perrors.DatabaseError(err, "failed to query DLQ")
	}
	return entries, nil
}

// GetStats returns DLQ statistics for a project
func (q *Queue) GetStats(ctx context.Context, project string) (*Stats, error) {
	stats := Stats{Project: project}
	err := q.db.GetContext(ctx, &stats, q.db.Rebind(fmt.Sprintf(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN retry_count >= %d THEN 1 ELSE 0 END), 0) AS exhausted,
			COALESCE(SUM(CASE WHEN retry_count < %d THEN 1 ELSE 0 END), 0) AS retryable
		FROM dead_letter_queue
		WHERE project = ?
	`, MaxRetries, MaxRetries)), project)
	if err != nil {
		return nil, perrors.DatabaseError(err, "failed to get DLQ stats")
	}
	return &stats, nil
}

// PurgeOld removes DLQ entries not updated within the given duration
func (q *Queue) PurgeOld(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := q.db.ExecContext(ctx, q.db.Rebind(`
		DELETE FROM dead_letter_queue WHERE updated_at < ?
	`), cutoff)
	if err != nil {
		return 0, perrors.DatabaseError(err, "failed to purge old DLQ entries")
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		q.logger.WithFields(logrus.Fields{
			"count":      rows,
			"older_than": olderThan.String(),
		}).Info("Purged old DLQ entries")
	}
	return int(rows), nil
}

func errorType(err error) string {
	switch perrors.GetType(err) {
	case perrors.ErrorTypeValidation:
		return "validation"
	case perrors.ErrorTypeDatabase:
		return "database"
	case perrors.ErrorTypeFileSystem:
		return "filesystem"
	case perrors.ErrorTypeConfig:
		return "config"
	default:
		return "internal"
	}
}
