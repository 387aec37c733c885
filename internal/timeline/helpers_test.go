package timeline

import (
	"encoding/json"
	"time"
)

var t0 = time.Date(2022, 3, 1, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func stamp(d time.Duration) string { return at(d).Format(time.RFC3339) }

type obj = map[string]any

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func pull(number int, login, state string, d time.Duration) json.RawMessage {
	return mustJSON(obj{
		"number":     number,
		"state":      state,
		"title":      "Fix things",
		"body":       "Please merge",
		"html_url":   "https://github.com/acme/widgets/pull/1",
		"user":       obj{"login": login},
		"created_at": stamp(d),
	})
}

func event(kind, login string, d time.Duration, extra ...any) json.RawMessage {
	v := obj{
		"event":      kind,
		"actor":      obj{"login": login},
		"created_at": stamp(d),
	}
	for i := 0; i+1 < len(extra); i += 2 {
		v[extra[i].(string)] = extra[i+1]
	}
	return mustJSON(v)
}

func committed(sha string, d time.Duration) json.RawMessage {
	return mustJSON(obj{
		"event":     "committed",
		"sha":       sha,
		"author":    obj{"name": "Someone", "date": stamp(d)},
		"committer": obj{"name": "Someone", "date": stamp(d)},
	})
}

func commitRecord(login string) json.RawMessage {
	return mustJSON(obj{"author": obj{"login": login}})
}

func reviewed(login string, d time.Duration) json.RawMessage {
	return mustJSON(obj{
		"event":        "reviewed",
		"user":         obj{"login": login},
		"state":        "approved",
		"submitted_at": stamp(d),
	})
}

func input(pulls map[int]json.RawMessage, timelines map[int][]json.RawMessage) *Input {
	return &Input{
		Project:   "acme/widgets",
		Pulls:     pulls,
		Timelines: timelines,
		Commits:   map[string]json.RawMessage{},
	}
}

func kinds(events []Event) []Kind {
	out := make([]Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}
