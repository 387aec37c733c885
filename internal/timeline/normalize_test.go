package timeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/rohankatakam/prtimeline/internal/errors"
)

func TestNormalize_SynthesizesCreationEvent(t *testing.T) {
	events, err := Normalize(7, pull(7, "Alice", "open", 0), []json.RawMessage{
		event("commented", "bob", time.Hour),
	}, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, KindPulled, first.Kind)
	assert.Equal(t, "alice", first.Actor)
	assert.Equal(t, 0, first.EventNumber)
	assert.Equal(t, 7, first.PullNumber)
	assert.Equal(t, t0, first.Time)

	opened, ok := first.Detail.(Opened)
	require.True(t, ok)
	assert.Equal(t, "open", opened.State)
	assert.Equal(t, "Fix things", opened.Title)
}

func TestNormalize_ActorPriority(t *testing.T) {
	tests := []struct {
		name string
		raw  json.RawMessage
		want string
	}{
		{
			name: "actor wins over user",
			raw: mustJSON(obj{"event": "commented", "created_at": stamp(time.Hour),
				"actor": obj{"login": "Carol"}, "user": obj{"login": "dave"}}),
			want: "carol",
		},
		{
			name: "user when actor missing",
			raw:  reviewed("Dave", time.Hour),
			want: "dave",
		},
		{
			name: "empty actor login falls through",
			raw: mustJSON(obj{"event": "commented", "created_at": stamp(time.Hour),
				"actor": obj{"login": ""}, "user": obj{"login": "erin"}}),
			want: "erin",
		},
		{
			name: "author login last",
			raw: mustJSON(obj{"event": "commented", "created_at": stamp(time.Hour),
				"author": obj{"login": "Frank"}}),
			want: "frank",
		},
		{
			name: "nobody is ghost",
			raw:  mustJSON(obj{"event": "labeled", "created_at": stamp(time.Hour), "actor": nil}),
			want: Ghost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Normalize(1, pull(1, "alice", "open", 0), []json.RawMessage{tt.raw}, nil)
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.Equal(t, tt.want, events[1].Actor)
		})
	}
}

func TestNormalize_TimeSources(t *testing.T) {
	events, err := Normalize(1, pull(1, "alice", "open", 0), []json.RawMessage{
		committed("abc", 3*time.Hour),
		reviewed("bob", 2*time.Hour),
		event("commented", "bob", time.Hour),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindPulled, KindCommented, KindReviewed, KindCommitted}, kinds(events))
	assert.Equal(t, at(time.Hour), events[1].Time)
	assert.Equal(t, at(2*time.Hour), events[2].Time)
	assert.Equal(t, at(3*time.Hour), events[3].Time)
}

func TestNormalize_FixesCommittedAuthor(t *testing.T) {
	commits := map[string]json.RawMessage{"abc": commitRecord("Alice")}

	stale := mustJSON(obj{
		"event":     "committed",
		"sha":       "zzz",
		"author":    obj{"login": "stale"},
		"committer": obj{"date": stamp(2 * time.Hour)},
	})

	events, err := Normalize(1, pull(1, "alice", "open", 0), []json.RawMessage{
		committed("abc", time.Hour),
		stale,
	}, commits)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "alice", events[1].Actor)
	sha, ok := events[1].SHA()
	assert.True(t, ok)
	assert.Equal(t, "abc", sha)

	// unknown commit: attribution stays unset
	assert.Equal(t, Ghost, events[2].Actor)
}

func TestNormalize_FlagsSameRepositoryReferences(t *testing.T) {
	same := event("referenced", "bob", time.Hour,
		"url", "https://api.github.com/repos/acme/widgets/issues/events/1",
		"commit_url", "https://api.github.com/repos/acme/widgets/commits/abc",
		"commit_id", "abc")
	fork := event("referenced", "bob", 2*time.Hour,
		"url", "https://api.github.com/repos/acme/widgets/issues/events/2",
		"commit_url", "https://api.github.com/repos/someone/widgets/commits/def",
		"commit_id", "def")
	missing := event("referenced", "bob", 3*time.Hour,
		"url", "https://api.github.com/repos/acme/widgets/issues/events/3",
		"commit_url", nil)

	events, err := Normalize(1, pull(1, "alice", "open", 0), []json.RawMessage{same, fork, missing}, nil)
	require.NoError(t, err)

	flags := []bool{}
	for _, e := range events[1:] {
		ref, ok := e.Referenced()
		require.True(t, ok)
		flags = append(flags, ref)
	}
	assert.Equal(t, []bool{true, false, false}, flags)

	_, ok := events[0].Referenced()
	assert.False(t, ok, "only referenced events carry the flag")
}

func TestNormalize_UnpacksCompositeComments(t *testing.T) {
	composite := mustJSON(obj{
		"event": "line-commented",
		"comments": []obj{
			{"user": obj{"login": "bob"}, "created_at": stamp(2 * time.Hour), "body": "nit"},
			{"user": obj{"login": "carol"}, "created_at": stamp(time.Hour), "body": "why?"},
		},
	})
	empty := mustJSON(obj{"event": "commit-commented", "comments": []obj{}})

	events, err := Normalize(1, pull(1, "alice", "open", 0), []json.RawMessage{composite, empty}, nil)
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, []Kind{KindPulled, KindLineCommented, KindLineCommented}, kinds(events))
	assert.Equal(t, "carol", events[1].Actor)
	assert.Equal(t, Comment{Body: "why?"}, events[1].Detail)
	assert.Equal(t, "bob", events[2].Actor)
}

func TestNormalize_StableTieBreak(t *testing.T) {
	events, err := Normalize(1, pull(1, "alice", "open", time.Hour), []json.RawMessage{
		event("labeled", "bob", time.Hour),
		event("assigned", "bob", 0),
		event("commented", "bob", time.Hour),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []Kind{"assigned", KindPulled, "labeled", KindCommented}, kinds(events))
	for i, e := range events {
		assert.Equal(t, i, e.EventNumber)
	}
}

func TestNormalize_MalformedTimestamps(t *testing.T) {
	tests := []struct {
		name string
		raw  json.RawMessage
	}{
		{"missing", mustJSON(obj{"event": "labeled", "actor": obj{"login": "bob"}})},
		{"unparsable", mustJSON(obj{"event": "labeled", "actor": obj{"login": "bob"}, "created_at": "yesterday"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(12, pull(12, "alice", "open", 0), []json.RawMessage{
				event("commented", "bob", time.Hour),
				tt.raw,
			}, nil)
			require.Error(t, err)
			assert.Equal(t, perrors.ErrorTypeValidation, perrors.GetType(err))

			n, ok := perrors.ContextValue(err, "pull_number")
			require.True(t, ok)
			assert.Equal(t, 12, n)
			idx, ok := perrors.ContextValue(err, "event_index")
			require.True(t, ok)
			assert.Equal(t, 1, idx)
		})
	}
}

func TestNormalize_InvalidJSON(t *testing.T) {
	_, err := Normalize(3, pull(3, "alice", "open", 0), []json.RawMessage{json.RawMessage(`{"event":`)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestNormalize_TimesAreUTC(t *testing.T) {
	raw := mustJSON(obj{"event": "commented", "actor": obj{"login": "bob"}, "created_at": "2022-03-01T11:00:00+02:00"})
	events, err := Normalize(1, pull(1, "alice", "open", 0), []json.RawMessage{raw}, nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, events[1].Time.Location())
	assert.Equal(t, t0, events[1].Time)
	assert.Equal(t, KindPulled, events[0].Kind, "creation wins the tie by arrival order")
}
