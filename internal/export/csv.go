package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rohankatakam/prtimeline/internal/models"
)

var datasetHeader = []string{
	"project", "pull_number", "event_number", "event", "actor", "time",
	"state", "commit_id", "referenced", "sha",
	"is_open", "is_closed", "is_merged", "opened_at", "closed_at", "closed_by",
	"merged_at", "merged_by", "resolved_at", "resolved_by",
	"is_contributor", "is_maintainer", "is_bot",
	"is_maintainer_response", "maintainer_responded_at", "maintainer_responded_by",
	"maintainer_responded_event", "maintainer_latency",
	"is_contributor_response", "contributor_responded_at", "contributor_responded_event",
	"contributor_latency",
}

// WriteDatasetCSV writes dataset rows with a header. Unset values are empty cells.
func WriteDatasetCSV(w io.Writer, rows []models.DatasetRow) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(datasetHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writer.Write([]string{
			r.Project,
			strconv.Itoa(r.PullNumber),
			strconv.Itoa(r.EventNumber),
			r.Event,
			r.Actor,
			formatTime(r.Time),
			optString(r.State),
			optString(r.CommitID),
			optBool(r.Referenced),
			optString(r.SHA),
			strconv.FormatBool(r.IsOpen),
			strconv.FormatBool(r.IsClosed),
			strconv.FormatBool(r.IsMerged),
			formatTime(r.OpenedAt),
			optTime(r.ClosedAt),
			optString(r.ClosedBy),
			optTime(r.MergedAt),
			optString(r.MergedBy),
			optTime(r.ResolvedAt),
			optString(r.ResolvedBy),
			strconv.FormatBool(r.IsContributor),
			strconv.FormatBool(r.IsMaintainer),
			strconv.FormatBool(r.IsBot),
			strconv.FormatBool(r.IsMaintainerResponse),
			optTime(r.MaintainerRespondedAt),
			optString(r.MaintainerRespondedBy),
			optString(r.MaintainerRespondedEvent),
			optFloat(r.MaintainerLatency),
			strconv.FormatBool(r.IsContributorResponse),
			optTime(r.ContributorRespondedAt),
			optString(r.ContributorRespondedEvent),
			optFloat(r.ContributorLatency),
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WritePullsCSV writes pull summaries with a header
func WritePullsCSV(w io.Writer, pulls []models.PullSummary) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"number", "html_url", "title", "body"}); err != nil {
		return err
	}
	for _, p := range pulls {
		if err := writer.Write([]string{strconv.Itoa(p.Number), p.HTMLURL, p.Title, p.Body}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WritePatchesCSV writes patch statistics with a header
func WritePatchesCSV(w io.Writer, changes []models.PatchChange) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"pull_number", "sha", "added_lines", "deleted_lines", "changed_files"}); err != nil {
		return err
	}
	for _, c := range changes {
		if err := writer.Write([]string{
			strconv.Itoa(c.PullNumber),
			c.SHA,
			strconv.Itoa(c.AddedLines),
			strconv.Itoa(c.DeletedLines),
			strconv.Itoa(c.ChangedFiles),
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func optString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
