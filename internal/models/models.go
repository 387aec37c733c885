package models

import (
	"encoding/json"
	"strings"
	"time"
)

// RawPullRecord is everything collected for one pull request before derivation.
// Payloads are kept exactly as the acquisition layer stored them.
type RawPullRecord struct {
	Number   int                        `json:"number"`
	Pull     json.RawMessage            `json:"pull"`
	Timeline []json.RawMessage          `json:"timeline"`
	Commits  map[string]json.RawMessage `json:"commits"` // SHA -> commit record
	Patch    string                     `json:"patch,omitempty"`
}

// RawProject is the raw input for one project, as loaded from a raw store
type RawProject struct {
	Name      string                     `json:"name"`
	Pulls     map[int]json.RawMessage    `json:"pulls"`
	Timelines map[int][]json.RawMessage  `json:"timelines"`
	Commits   map[string]json.RawMessage `json:"commits"`
	Patches   map[int]string             `json:"patches"`
}

// NewRawProject returns an empty project with all maps allocated
func NewRawProject(name string) *RawProject {
	return &RawProject{
		Name:      name,
		Pulls:     make(map[int]json.RawMessage),
		Timelines: make(map[int][]json.RawMessage),
		Commits:   make(map[string]json.RawMessage),
		Patches:   make(map[int]string),
	}
}

// Add merges one pull record into the project
func (p *RawProject) Add(record *RawPullRecord) {
	if record.Pull != nil {
		p.Pulls[record.Number] = record.Pull
	}
	if record.Timeline != nil {
		p.Timelines[record.Number] = record.Timeline
	}
	for sha, commit := range record.Commits {
		p.Commits[sha] = commit
	}
	if record.Patch != "" {
		p.Patches[record.Number] = record.Patch
	}
}

// Owner returns the owner segment of an "owner/name" project identifier
func Owner(project string) string {
	owner, _, _ := strings.Cut(project, "/")
	return strings.ToLower(owner)
}

// Slug returns the filesystem-safe form of a project identifier
func Slug(project string) string {
	return strings.ToLower(strings.ReplaceAll(project, "/", "_"))
}

// DatasetRow is one derived event, indexed by (pull_number, event_number).
// Pull-level annotations are repeated on every event of the pull.
type DatasetRow struct {
	Project     string    `json:"project" db:"project"`
	PullNumber  int       `json:"pull_number" db:"pull_number"`
	EventNumber int       `json:"event_number" db:"event_number"`
	Event       string    `json:"event" db:"event"`
	Actor       string    `json:"actor" db:"actor"`
	Time        time.Time `json:"time" db:"time"`
	State       *string   `json:"state" db:"state"`
	CommitID    *string   `json:"commit_id" db:"commit_id"`
	Referenced  *bool     `json:"referenced" db:"referenced"`
	SHA         *string   `json:"sha" db:"sha"`

	IsOpen     bool       `json:"is_open" db:"is_open"`
	IsClosed   bool       `json:"is_closed" db:"is_closed"`
	IsMerged   bool       `json:"is_merged" db:"is_merged"`
	OpenedAt   time.Time  `json:"opened_at" db:"opened_at"`
	ClosedAt   *time.Time `json:"closed_at" db:"closed_at"`
	ClosedBy   *string    `json:"closed_by" db:"closed_by"`
	MergedAt   *time.Time `json:"merged_at" db:"merged_at"`
	MergedBy   *string    `json:"merged_by" db:"merged_by"`
	ResolvedAt *time.Time `json:"resolved_at" db:"resolved_at"`
	ResolvedBy *string    `json:"resolved_by" db:"resolved_by"`

	IsContributor bool `json:"is_contributor" db:"is_contributor"`
	IsMaintainer  bool `json:"is_maintainer" db:"is_maintainer"`
	IsBot         bool `json:"is_bot" db:"is_bot"`

	IsMaintainerResponse     bool       `json:"is_maintainer_response" db:"is_maintainer_response"`
	MaintainerRespondedAt    *time.Time `json:"maintainer_responded_at" db:"maintainer_responded_at"`
	MaintainerRespondedBy    *string    `json:"maintainer_responded_by" db:"maintainer_responded_by"`
	MaintainerRespondedEvent *string    `json:"maintainer_responded_event" db:"maintainer_responded_event"`
	MaintainerLatency        *float64   `json:"maintainer_latency" db:"maintainer_latency"`

	IsContributorResponse     bool       `json:"is_contributor_response" db:"is_contributor_response"`
	ContributorRespondedAt    *time.Time `json:"contributor_responded_at" db:"contributor_responded_at"`
	ContributorRespondedEvent *string    `json:"contributor_responded_event" db:"contributor_responded_event"`
	ContributorLatency        *float64   `json:"contributor_latency" db:"contributor_latency"`
}

// PullSummary is the descriptive part of a pull request kept for export
type PullSummary struct {
	Number  int    `json:"number" db:"number"`
	HTMLURL string `json:"html_url" db:"html_url"`
	Title   string `json:"title" db:"title"`
	Body    string `json:"body" db:"body"`
}

// PatchChange is the diffstat of one commit in a pull request's patch
type PatchChange struct {
	PullNumber   int    `json:"pull_number" db:"pull_number"`
	SHA          string `json:"sha" db:"sha"`
	AddedLines   int    `json:"added_lines" db:"added_lines"`
	DeletedLines int    `json:"deleted_lines" db:"deleted_lines"`
	ChangedFiles int    `json:"changed_files" db:"changed_files"`
}

// DerivationRun records one engine pass over a project
type DerivationRun struct {
	ID         string    `json:"id" db:"id"`
	Project    string    `json:"project" db:"project"`
	Pulls      int       `json:"pulls" db:"pulls"`
	Events     int       `json:"events" db:"events"`
	Failures   int       `json:"failures" db:"failures"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
}
