package timeline

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rohankatakam/prtimeline/internal/models"
)

// Rows flattens the result into one dataset row per event, ordered by
// (pull_number, event_number).
func (r *Result) Rows() []models.DatasetRow {
	rows := make([]models.DatasetRow, 0, r.Events())
	for _, p := range r.Pulls {
		rows = append(rows, p.Rows(r.Project)...)
	}
	return rows
}

// Rows flattens one pull
func (p *Pull) Rows(project string) []models.DatasetRow {
	res := p.Resolution
	m := p.Responses.Maintainer
	c := p.Responses.Contributor

	base := models.DatasetRow{
		Project:  project,
		IsOpen:   res.IsOpen(),
		IsClosed: res.IsClosed(),
		IsMerged: res.IsMerged(),
		OpenedAt: res.OpenedAt,
	}
	if res.IsMerged() {
		base.MergedAt = timePtr(res.MergedAt)
		base.MergedBy = stringPtr(res.MergedBy)
	}
	if res.HasClose() {
		base.ClosedAt = timePtr(res.ClosedAt)
		base.ClosedBy = stringPtr(res.ClosedBy)
	}
	if at, ok := res.ResolvedAt(); ok {
		base.ResolvedAt = timePtr(at)
	}
	if by, ok := res.ResolvedBy(); ok {
		base.ResolvedBy = stringPtr(by)
	}
	if m.Found {
		base.MaintainerRespondedAt = timePtr(m.At)
		base.MaintainerRespondedBy = stringPtr(m.By)
		base.MaintainerRespondedEvent = stringPtr(string(m.Event))
		base.MaintainerLatency = floatPtr(m.Latency)
	}
	if c.Found {
		base.ContributorRespondedAt = timePtr(c.At)
		base.ContributorRespondedEvent = stringPtr(string(c.Event))
		base.ContributorLatency = floatPtr(c.Latency)
	}

	rows := make([]models.DatasetRow, len(p.Events))
	for i, e := range p.Events {
		row := base
		row.PullNumber = e.PullNumber
		row.EventNumber = e.EventNumber
		row.Event = string(e.Kind)
		row.Actor = e.Actor
		row.Time = e.Time
		if s, ok := e.State(); ok {
			row.State = stringPtr(s)
		}
		if id, ok := e.CommitID(); ok {
			row.CommitID = stringPtr(id)
		}
		if ref, ok := e.Referenced(); ok {
			row.Referenced = &ref
		}
		if sha, ok := e.SHA(); ok {
			row.SHA = stringPtr(sha)
		}
		row.IsContributor = p.Roles[i].Contributor
		row.IsMaintainer = p.Roles[i].Maintainer
		row.IsBot = p.Roles[i].Bot
		row.IsMaintainerResponse = p.Responses.MaintainerFlags[i]
		row.IsContributorResponse = p.Responses.ContributorFlags[i]
		rows[i] = row
	}
	return rows
}

// SummarizePulls extracts the descriptive fields of each pull, ordered by number
func SummarizePulls(pulls map[int]json.RawMessage) []models.PullSummary {
	out := make([]models.PullSummary, 0, len(pulls))
	for n, raw := range pulls {
		data := gjson.ParseBytes(raw)
		out = append(out, models.PullSummary{
			Number:  n,
			HTMLURL: data.Get("html_url").String(),
			Title:   data.Get("title").String(),
			Body:    data.Get("body").String(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func timePtr(t time.Time) *time.Time { return &t }
func stringPtr(s string) *string      { return &s }
func floatPtr(f float64) *float64     { return &f }
