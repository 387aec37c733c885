package timeline

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	perrors "github.com/rohankatakam/prtimeline/internal/errors"
)

var (
	actorPaths = []string{"actor.login", "user.login", "author.login"}
	timePaths  = []string{"created_at", "committer.date", "submitted_at"}
)

// timeLayouts are tried in order; the API emits RFC 3339, older dumps drop the zone
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// record is a raw event while it moves through the repair steps
type record struct {
	kind Kind
	data gjson.Result

	// index of the raw event this record came from, -1 for the creation event
	index int

	// committed events take their author from the commit record instead of the feed
	authorFixed bool
	author      string

	referenced bool
}

// Normalize repairs one pull request's raw records and returns its events ordered
// by time with event numbers assigned. commits maps SHA to commit record.
func Normalize(number int, pull json.RawMessage, raw []json.RawMessage, commits map[string]json.RawMessage) ([]Event, error) {
	if !gjson.ValidBytes(pull) {
		return nil, perrors.ValidationError("pull metadata is not valid JSON").
			WithContext("pull_number", number)
	}

	records := make([]record, 0, len(raw)+1)
	for i, r := range raw {
		if !gjson.ValidBytes(r) {
			return nil, perrors.ValidationError("timeline event is not valid JSON").
				WithContext("pull_number", number).
				WithContext("event_index", i)
		}
		data := gjson.ParseBytes(r)
		records = append(records, record{
			kind:  Kind(data.Get("event").String()),
			data:  data,
			index: i,
		})
	}

	records = fixCommitted(records, commits)
	records = fixReferenced(records)
	records = unpackComments(records)
	records = insertPulled(records, gjson.ParseBytes(pull))

	events := make([]Event, 0, len(records))
	for _, r := range records {
		t, err := identifyTime(r)
		if err != nil {
			e := err.WithContext("pull_number", number).WithContext("event", string(r.kind))
			if r.index >= 0 {
				e.WithContext("event_index", r.index)
			}
			return nil, e
		}
		events = append(events, Event{
			Kind:       r.kind,
			Actor:      identifyActor(r),
			Time:       t,
			PullNumber: number,
			Detail:     detailOf(r),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})
	for i := range events {
		events[i].EventNumber = i
	}
	return events, nil
}

func fixCommitted(records []record, commits map[string]json.RawMessage) []record {
	for i := range records {
		if records[i].kind != KindCommitted {
			continue
		}
		records[i].authorFixed = true
		records[i].author = ""
		if commit, ok := commits[records[i].data.Get("sha").String()]; ok && gjson.ValidBytes(commit) {
			records[i].author = lookupKeys(gjson.ParseBytes(commit), "author.login")
		}
	}
	return records
}

func fixReferenced(records []record) []record {
	for i := range records {
		if records[i].kind != KindReferenced {
			continue
		}
		records[i].referenced = sameRepository(
			records[i].data.Get("url").String(),
			records[i].data.Get("commit_url").String(),
		)
	}
	return records
}

// sameRepository compares the owner and name segments of two API URLs
// (https://api.github.com/repos/<owner>/<name>/...).
func sameRepository(url, commitURL string) bool {
	a := strings.Split(url, "/")
	b := strings.Split(commitURL, "/")
	if len(a) < 6 || len(b) < 6 {
		return false
	}
	return a[4] == b[4] && a[5] == b[5]
}

func unpackComments(records []record) []record {
	unpacked := make([]record, 0, len(records))
	for _, r := range records {
		if !compositeKinds.has(r.kind) {
			unpacked = append(unpacked, r)
			continue
		}
		for _, comment := range r.data.Get("comments").Array() {
			unpacked = append(unpacked, record{kind: r.kind, data: comment, index: r.index})
		}
	}
	return unpacked
}

func insertPulled(records []record, pull gjson.Result) []record {
	return append([]record{{kind: KindPulled, data: pull, index: -1}}, records...)
}

func identifyActor(r record) string {
	actor := lookupKeys(r.data, actorPaths[:2]...)
	if actor == "" {
		if r.authorFixed {
			actor = r.author
		} else {
			actor = lookupKeys(r.data, actorPaths[2])
		}
	}
	if actor == "" {
		return Ghost
	}
	return strings.ToLower(actor)
}

func identifyTime(r record) (time.Time, *perrors.Error) {
	value := lookupKeys(r.data, timePaths...)
	if value == "" {
		return time.Time{}, perrors.ValidationError("event has no timestamp")
	}
	t, err := parseTime(value)
	if err != nil {
		return time.Time{}, perrors.InvalidInput(err, "event timestamp is not parsable").
			WithContext("value", value)
	}
	return t, nil
}

func parseTime(value string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

func detailOf(r record) Detail {
	switch r.kind {
	case KindPulled:
		return Opened{
			State:   r.data.Get("state").String(),
			Title:   r.data.Get("title").String(),
			Body:    r.data.Get("body").String(),
			HTMLURL: r.data.Get("html_url").String(),
		}
	case KindCommitted:
		return Commit{SHA: r.data.Get("sha").String()}
	case KindReferenced:
		return Reference{CommitID: r.data.Get("commit_id").String(), SameRepository: r.referenced}
	case KindClosed, KindMerged:
		return Closure{CommitID: r.data.Get("commit_id").String()}
	case KindCommented, KindLineCommented, KindCommitCommented:
		return Comment{Body: r.data.Get("body").String()}
	case KindReviewed:
		return Review{State: r.data.Get("state").String(), Body: r.data.Get("body").String()}
	}
	return nil
}

// lookupKeys returns the first non-empty value among the dotted paths
func lookupKeys(data gjson.Result, paths ...string) string {
	for _, path := range paths {
		v := data.Get(path)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if s := v.String(); s != "" {
			return s
		}
	}
	return ""
}
