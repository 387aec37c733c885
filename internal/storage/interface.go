package storage

import (
	"context"
	"errors"

	"github.com/rohankatakam/prtimeline/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// RawStore holds collected pull request records per project
type RawStore interface {
	// SavePull upserts one pull's records. Nil parts keep what is already stored.
	SavePull(ctx context.Context, project string, record *models.RawPullRecord) error

	// LoadProject returns everything stored for a project, or ErrNotFound
	LoadProject(ctx context.Context, project string) (*models.RawProject, error)

	// Projects lists stored project identifiers, sorted
	Projects(ctx context.Context) ([]string, error)

	Close() error
}

// DatasetSink receives derived datasets
type DatasetSink interface {
	// SaveDataset replaces all of a project's rows atomically
	SaveDataset(ctx context.Context, project string, rows []models.DatasetRow) error

	RecordRun(ctx context.Context, run *models.DerivationRun) error

	Close() error
}

// datasetColumns is the column list shared by the SQL sinks, in DatasetRow order
const datasetColumns = `project, pull_number, event_number, event, actor, time,
	state, commit_id, referenced, sha,
	is_open, is_closed, is_merged, opened_at, closed_at, closed_by, merged_at, merged_by,
	resolved_at, resolved_by,
	is_contributor, is_maintainer, is_bot,
	is_maintainer_response, maintainer_responded_at, maintainer_responded_by,
	maintainer_responded_event, maintainer_latency,
	is_contributor_response, contributor_responded_at, contributor_responded_event,
	contributor_latency`

const datasetValues = `:project, :pull_number, :event_number, :event, :actor, :time,
	:state, :commit_id, :referenced, :sha,
	:is_open, :is_closed, :is_merged, :opened_at, :closed_at, :closed_by, :merged_at, :merged_by,
	:resolved_at, :resolved_by,
	:is_contributor, :is_maintainer, :is_bot,
	:is_maintainer_response, :maintainer_responded_at, :maintainer_responded_by,
	:maintainer_responded_event, :maintainer_latency,
	:is_contributor_response, :contributor_responded_at, :contributor_responded_event,
	:contributor_latency`

const insertDataset = `INSERT INTO dataset (` + datasetColumns + `) VALUES (` + datasetValues + `)`

const insertRun = `
	INSERT INTO derivation_runs (id, project, pulls, events, failures, started_at, finished_at)
	VALUES (:id, :project, :pulls, :events, :failures, :started_at, :finished_at)
`
