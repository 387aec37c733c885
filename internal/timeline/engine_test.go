package timeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/rohankatakam/prtimeline/internal/errors"
)

func projectInput() *Input {
	in := input(
		map[int]json.RawMessage{
			1: pull(1, "alice", "closed", 0),
			2: pull(2, "carol", "closed", time.Hour),
			3: pull(3, "dave", "open", 2*time.Hour),
		},
		map[int][]json.RawMessage{
			1: {
				committed("aaa111", 30*time.Minute),
				reviewed("bob", 2*time.Hour),
				event("merged", "bob", 3*time.Hour, "commit_id", "aaa111"),
				event("closed", "bob", 3*time.Hour),
			},
			2: {
				event("commented", "bob", 4*time.Hour),
				event("closed", "bob", 5*time.Hour),
			},
			3: {
				event("commented", "dependabot[bot]", 2*time.Hour+time.Minute),
				mustJSON(obj{"event": "line-commented", "comments": []obj{
					{"user": obj{"login": "bob"}, "created_at": stamp(6 * time.Hour), "body": "nit"},
					{"user": obj{"login": "dave"}, "created_at": stamp(7 * time.Hour), "body": "done"},
				}}),
			},
		},
	)
	in.Commits["aaa111"] = commitRecord("Alice")
	in.Bots = []string{"dependabot[bot]"}
	in.Owners = []string{"acme"}
	return in
}

func TestEngine_Derive(t *testing.T) {
	result := deriveAll(t, projectInput())

	require.Len(t, result.Pulls, 3)
	assert.Equal(t, 5+3+4, result.Events())

	p1, _ := result.Pull(1)
	assert.True(t, p1.Resolution.IsMerged())
	assert.Equal(t, "bob", p1.Resolution.MergedBy)
	assert.Equal(t, at(3*time.Hour), p1.Resolution.MergedAt)
	assert.Equal(t, "alice", p1.Events[1].Actor)
	assert.True(t, p1.Responses.Maintainer.Found)
	assert.Equal(t, KindMerged, p1.Responses.Maintainer.Event)

	p2, _ := result.Pull(2)
	assert.True(t, p2.Resolution.IsClosed())
	assert.Equal(t, "bob", p2.Resolution.ClosedBy)
	assert.Equal(t, at(5*time.Hour), p2.Resolution.ClosedAt)
	// bob became a maintainer at 3h, before commenting on #2
	assert.Equal(t, at(4*time.Hour), p2.Responses.Maintainer.At)
	assert.InDelta(t, 3.0, p2.Responses.Maintainer.Latency, 1e-9)

	p3, _ := result.Pull(3)
	assert.True(t, p3.Resolution.IsOpen())
	assert.True(t, p3.Roles[1].Bot)
	assert.Equal(t, "bob", p3.Responses.Maintainer.By)
	assert.Equal(t, KindLineCommented, p3.Responses.Maintainer.Event)
	assert.Equal(t, at(7*time.Hour), p3.Responses.Contributor.At)

	assert.Equal(t, []string{"bob"}, result.Roles.Maintainers())
	_, ok := result.Pull(99)
	assert.False(t, ok)
}

func TestEngine_Invariants(t *testing.T) {
	result := deriveAll(t, projectInput())

	for _, p := range result.Pulls {
		res := p.Resolution
		exclusive := 0
		for _, b := range []bool{res.IsOpen(), res.IsClosed(), res.IsMerged()} {
			if b {
				exclusive++
			}
		}
		assert.Equal(t, 1, exclusive, "pull %d", p.PullNumber)

		for i, e := range p.Events {
			assert.Equal(t, i, e.EventNumber)
			assert.Equal(t, p.PullNumber, e.PullNumber)
			if i > 0 {
				assert.False(t, e.Time.Before(p.Events[i-1].Time))
			}
			if p.Roles[i].Maintainer {
				since, ok := result.Roles.MaintainerSince(e.Actor)
				require.True(t, ok)
				assert.False(t, e.Time.Before(since))
			}
		}

		m, c := p.Responses.Maintainer, p.Responses.Contributor
		if m.Found {
			assert.True(t, m.At.After(res.OpenedAt))
			assert.GreaterOrEqual(t, m.Latency, 0.0)
		}
		if c.Found {
			require.True(t, m.Found)
			assert.True(t, c.At.After(m.At))
		}
	}
}

func TestEngine_Deterministic(t *testing.T) {
	first := deriveAll(t, projectInput()).Rows()
	for _, workers := range []int{1, 2, 8} {
		result, err := NewEngine(WithWorkers(workers)).Derive(projectInput())
		require.NoError(t, err)
		assert.Equal(t, first, result.Rows(), "workers=%d", workers)
	}
}

func TestEngine_FailureIsolation(t *testing.T) {
	in := projectInput()
	in.Timelines[2] = append(in.Timelines[2], mustJSON(obj{
		"event": "commented", "actor": obj{"login": "bob"}, "created_at": "yesterday",
	}))
	in.Pulls[4] = pull(4, "erin", "open", 0)
	in.Timelines[5] = []json.RawMessage{}

	result, err := NewEngine().Derive(in)
	require.NoError(t, err)

	require.Len(t, result.Failures, 3)
	for i, want := range []int{2, 4, 5} {
		assert.Equal(t, perrors.ErrorTypeValidation, perrors.GetType(result.Failures[i]))
		n, _ := perrors.ContextValue(result.Failures[i], "pull_number")
		assert.Equal(t, want, n)
		project, _ := perrors.ContextValue(result.Failures[i], "project")
		assert.Equal(t, "acme/widgets", project)
	}

	require.Len(t, result.Pulls, 2)
	_, ok := result.Pull(2)
	assert.False(t, ok)
	p1, _ := result.Pull(1)
	assert.True(t, p1.Resolution.IsMerged())
}

func TestEngine_EmptyTimeline(t *testing.T) {
	in := input(
		map[int]json.RawMessage{7: pull(7, "alice", "open", 0)},
		map[int][]json.RawMessage{7: {}},
	)
	result := deriveAll(t, in)

	p, ok := result.Pull(7)
	require.True(t, ok)
	assert.Equal(t, []Kind{KindPulled}, kinds(p.Events))
	assert.True(t, p.Resolution.IsOpen())
	assert.False(t, p.Responses.Maintainer.Found)
}

func TestEngine_NilInput(t *testing.T) {
	_, err := NewEngine().Derive(nil)
	require.Error(t, err)
	assert.Equal(t, perrors.ErrorTypeInternal, perrors.GetType(err))
}

func TestResult_Rows(t *testing.T) {
	result := deriveAll(t, projectInput())
	rows := result.Rows()
	require.Len(t, rows, result.Events())

	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		ordered := prev.PullNumber < cur.PullNumber ||
			(prev.PullNumber == cur.PullNumber && prev.EventNumber < cur.EventNumber)
		assert.True(t, ordered, "row %d", i)
	}

	merge := rows[3]
	assert.Equal(t, 1, merge.PullNumber)
	assert.Equal(t, "merged", merge.Event)
	require.NotNil(t, merge.CommitID)
	assert.Equal(t, "aaa111", *merge.CommitID)
	assert.True(t, merge.IsMerged)
	require.NotNil(t, merge.ResolvedBy)
	assert.Equal(t, "bob", *merge.ResolvedBy)
	assert.Nil(t, merge.ClosedAt)
	assert.True(t, merge.IsMaintainerResponse)

	commit := rows[1]
	require.NotNil(t, commit.SHA)
	assert.Equal(t, "aaa111", *commit.SHA)
	assert.Nil(t, commit.Referenced)
	assert.True(t, commit.IsContributor)

	opened := rows[0]
	require.NotNil(t, opened.State)
	assert.Equal(t, "closed", *opened.State)

	for _, row := range rows {
		if row.PullNumber == 3 {
			assert.True(t, row.IsOpen)
			assert.Nil(t, row.ResolvedAt)
			require.NotNil(t, row.ContributorLatency)
			assert.InDelta(t, 1.0, *row.ContributorLatency, 1e-9)
		}
	}
}

func TestSummarizePulls(t *testing.T) {
	got := SummarizePulls(map[int]json.RawMessage{
		3: pull(3, "dave", "open", 0),
		1: pull(1, "alice", "closed", 0),
	})

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, 3, got[1].Number)
	assert.Equal(t, "Fix things", got[0].Title)
	assert.Equal(t, "Please merge", got[0].Body)
	assert.Equal(t, "https://github.com/acme/widgets/pull/1", got[0].HTMLURL)
}
