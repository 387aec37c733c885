package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/rohankatakam/prtimeline/internal/errors"
	"github.com/rohankatakam/prtimeline/internal/export"
	"github.com/rohankatakam/prtimeline/internal/storage"
	"github.com/rohankatakam/prtimeline/internal/timeline"
)

const (
	pullsDump = `{
		"1": {"number": 1, "state": "closed", "title": "Add widget", "body": "",
		      "html_url": "https://github.com/acme/widgets/pull/1",
		      "user": {"login": "Alice"}, "created_at": "2022-03-01T09:00:00Z"},
		"2": {"number": 2, "state": "open", "title": "Docs", "body": "typo",
		      "html_url": "https://github.com/acme/widgets/pull/2",
		      "user": {"login": "carol"}, "created_at": "2022-03-02T09:00:00Z"}
	}`
	timelinesDump = `{
		"1": [
			{"event": "committed", "sha": "abc123",
			 "committer": {"date": "2022-03-01T09:30:00Z"}},
			{"event": "commented", "actor": {"login": "bob"}, "created_at": "2022-03-01T10:00:00Z"},
			{"event": "merged", "actor": {"login": "bob"}, "commit_id": "abc123",
			 "created_at": "2022-03-01T11:00:00Z"},
			{"event": "closed", "actor": {"login": "bob"}, "created_at": "2022-03-01T11:00:00Z"}
		],
		"2": []
	}`
	commitsDump = `{"1": {"abc123": {"author": {"login": "alice"}}}}`
	patchesDump = `{"1": "From abc123 Mon Sep 17 00:00:00 2001\nSubject: [PATCH] Add widget\n\n---\n 1 file changed, 3 insertions(+)\n"}`
)

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func writeDump(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func fullDump(t *testing.T) string {
	return writeDump(t, map[string]string{
		PullsFile:     pullsDump,
		TimelinesFile: timelinesDump,
		CommitsFile:   commitsDump,
		PatchesFile:   patchesDump,
	})
}

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "raw.db"), silentLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestImporter_ImportDir(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	stats, err := NewImporter(store, silentLogger()).ImportDir(ctx, "acme/widgets", fullDump(t))
	require.NoError(t, err)
	assert.Equal(t, &ImportStats{Pulls: 2, Timelines: 2, Commits: 1, Patches: 1}, stats)

	raw, err := store.LoadProject(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.Len(t, raw.Pulls, 2)
	assert.Len(t, raw.Timelines[1], 4)
	require.Contains(t, raw.Timelines, 2)
	assert.Empty(t, raw.Timelines[2])
	assert.Contains(t, raw.Commits, "abc123")
	assert.Contains(t, raw.Patches[1], "1 file changed")
}

func TestImporter_MissingFilesAreEmpty(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dir := writeDump(t, map[string]string{PullsFile: pullsDump})

	stats, err := NewImporter(store, silentLogger()).ImportDir(ctx, "acme/widgets", dir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pulls)
	assert.Zero(t, stats.Timelines)

	raw, err := store.LoadProject(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.Empty(t, raw.Timelines)
}

func TestImporter_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"malformed json", map[string]string{PullsFile: `{"1": `}},
		{"top level array", map[string]string{PullsFile: `[]`}},
		{"non numeric key", map[string]string{PullsFile: `{"one": {}}`}},
		{"timeline not array", map[string]string{TimelinesFile: `{"1": {}}`}},
		{"commits not object", map[string]string{CommitsFile: `{"1": []}`}},
		{"patch not string", map[string]string{PatchesFile: `{"1": 5}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			_, err := NewImporter(store, silentLogger()).
				ImportDir(context.Background(), "acme/widgets", writeDump(t, tt.files))
			require.Error(t, err)

			_, err = store.LoadProject(context.Background(), "acme/widgets")
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestImporter_NotADirectory(t *testing.T) {
	_, err := NewImporter(newStore(t), silentLogger()).
		ImportDir(context.Background(), "acme/widgets", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, perrors.ErrorTypeFileSystem, perrors.GetType(err))
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	_, err := NewImporter(store, silentLogger()).ImportDir(ctx, "acme/widgets", fullDump(t))
	require.NoError(t, err)

	outDir := t.TempDir()
	exporter, err := export.NewWriter(outDir, export.FormatCSV)
	require.NoError(t, err)

	orch := NewOrchestrator(store, store, exporter, timeline.NewEngine(), silentLogger(), Options{
		ProjectWorkers: 2,
	})

	results, err := orch.Run(ctx, []string{"acme/widgets", "acme/missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.Len(t, results, 2)

	ok := results[0]
	require.NoError(t, ok.Err)
	assert.Equal(t, "acme/widgets", ok.Project)
	assert.NotEmpty(t, ok.Run.ID)
	assert.Equal(t, 2, ok.Run.Pulls)
	assert.Equal(t, 6, ok.Run.Events) // pull 1: pulled, committed, commented, merged, closed; pull 2: pulled
	assert.Zero(t, ok.Run.Failures)
	assert.False(t, ok.Run.FinishedAt.Before(ok.Run.StartedAt))
	assert.Len(t, ok.Written, 3)
	for _, path := range ok.Written {
		assert.FileExists(t, path)
	}

	merged, found := ok.Result.Pull(1)
	require.True(t, found)
	assert.True(t, merged.Resolution.IsMerged())
	assert.Equal(t, "bob", merged.Resolution.MergedBy)

	assert.ErrorIs(t, results[1].Err, storage.ErrNotFound)
	assert.Nil(t, results[1].Result)

	rows, err := store.Dataset(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.Len(t, rows, 6)

	runs, err := store.Runs(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ok.Run.ID, runs[0].ID)
}

func TestOrchestrator_OwnersDefaultToProjectOwners(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dir := writeDump(t, map[string]string{
		PullsFile: `{"1": {"number": 1, "state": "open", "user": {"login": "alice"},
		                  "created_at": "2022-03-01T09:00:00Z"}}`,
		TimelinesFile: `{"1": [
			{"event": "commented", "actor": {"login": "acme"}, "created_at": "2022-03-01T10:00:00Z"}
		]}`,
	})
	_, err := NewImporter(store, silentLogger()).ImportDir(ctx, "acme/widgets", dir)
	require.NoError(t, err)

	orch := NewOrchestrator(store, nil, nil, timeline.NewEngine(), silentLogger(), Options{})
	result, _, err := orch.DeriveProject(ctx, "acme/widgets")
	require.NoError(t, err)

	rows := result.Rows()
	require.Len(t, rows, 2)
	assert.True(t, rows[1].IsBot)
	assert.Equal(t, "acme", rows[1].Actor)
}

func TestOrchestrator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := NewOrchestrator(newStore(t), nil, nil, timeline.NewEngine(), silentLogger(), Options{})
	results, err := orch.Run(ctx, []string{"acme/widgets"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, results, 1)
	assert.Equal(t, "acme/widgets", results[0].Project)
}

func TestProjectOwners(t *testing.T) {
	assert.Equal(t, []string{"acme", "other"},
		projectOwners([]string{"Acme/widgets", "acme/gadgets", "other/thing"}))
	assert.Empty(t, projectOwners(nil))
}

type recordingLog struct {
	project string
	failed  map[int]error
	derived []int
}

func (r *recordingLog) Reconcile(_ context.Context, project string, failed map[int]error, derived []int) error {
	r.project, r.failed, r.derived = project, failed, derived
	return nil
}

func TestOrchestrator_ReportsFailuresToLog(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dir := writeDump(t, map[string]string{
		PullsFile: `{
			"1": {"number": 1, "state": "open", "user": {"login": "alice"}, "created_at": "2022-03-01T09:00:00Z"},
			"2": {"number": 2, "state": "open", "user": {"login": "bob"}, "created_at": "2022-03-01T09:00:00Z"}
		}`,
		TimelinesFile: `{"1": [], "2": [{"event": "commented", "actor": {"login": "carol"}}]}`,
	})
	_, err := NewImporter(store, silentLogger()).ImportDir(ctx, "acme/widgets", dir)
	require.NoError(t, err)

	failures := &recordingLog{}
	orch := NewOrchestrator(store, nil, nil, timeline.NewEngine(), silentLogger(), Options{Failures: failures})
	results, err := orch.Run(ctx, []string{"acme/widgets"})
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Run.Failures)

	assert.Equal(t, "acme/widgets", failures.project)
	assert.Equal(t, []int{1}, failures.derived)
	require.Contains(t, failures.failed, 2)
	assert.Len(t, failures.failed, 1)
}
