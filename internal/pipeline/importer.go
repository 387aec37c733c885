package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	perrors "github.com/rohankatakam/prtimeline/internal/errors"
	"github.com/rohankatakam/prtimeline/internal/models"
	"github.com/rohankatakam/prtimeline/internal/storage"
)

// Dump files, each a JSON object keyed by pull number. Missing files are
// treated as empty.
const (
	PullsFile     = "pulls.json"     // number -> pull metadata
	TimelinesFile = "timelines.json" // number -> array of timeline events
	CommitsFile   = "commits.json"   // number -> {sha -> commit record}
	PatchesFile   = "patches.json"   // number -> mbox patch text
)

// ImportStats counts what an import wrote
type ImportStats struct {
	Pulls     int
	Timelines int
	Commits   int
	Patches   int
}

// Importer loads collected dumps into a raw store
type Importer struct {
	store  storage.RawStore
	logger logrus.FieldLogger
}

// NewImporter creates an importer writing to store
func NewImporter(store storage.RawStore, logger logrus.FieldLogger) *Importer {
	return &Importer{store: store, logger: logger}
}

// ImportDir reads a dump directory and upserts every pull it describes
func (im *Importer) ImportDir(ctx context.Context, project, dir string) (*ImportStats, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, perrors.FileSystemError(err, "dump directory not accessible").WithContext("dir", dir)
	}
	if !info.IsDir() {
		return nil, perrors.ValidationErrorf("%s is not a directory", dir)
	}

	records := make(map[int]*models.RawPullRecord)
	record := func(n int) *models.RawPullRecord {
		r, ok := records[n]
		if !ok {
			r = &models.RawPullRecord{Number: n}
			records[n] = r
		}
		return r
	}
	stats := &ImportStats{}

	err = readDump(dir, PullsFile, func(n int, v gjson.Result) error {
		if !v.IsObject() {
			return perrors.ValidationError("pull metadata must be an object")
		}
		record(n).Pull = json.RawMessage(v.Raw)
		stats.Pulls++
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readDump(dir, TimelinesFile, func(n int, v gjson.Result) error {
		if !v.IsArray() {
			return perrors.ValidationError("timeline must be an array")
		}
		events := make([]json.RawMessage, 0)
		for _, e := range v.Array() {
			events = append(events, json.RawMessage(e.Raw))
		}
		record(n).Timeline = events
		stats.Timelines++
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readDump(dir, CommitsFile, func(n int, v gjson.Result) error {
		if !v.IsObject() {
			return perrors.ValidationError("commits must be an object keyed by sha")
		}
		r := record(n)
		if r.Commits == nil {
			r.Commits = make(map[string]json.RawMessage)
		}
		v.ForEach(func(sha, commit gjson.Result) bool {
			r.Commits[sha.String()] = json.RawMessage(commit.Raw)
			stats.Commits++
			return true
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readDump(dir, PatchesFile, func(n int, v gjson.Result) error {
		if v.Type != gjson.String {
			return perrors.ValidationError("patch must be a string")
		}
		record(n).Patch = v.String()
		stats.Patches++
		return nil
	})
	if err != nil {
		return nil, err
	}

	numbers := make([]int, 0, len(records))
	for n := range records {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := im.store.SavePull(ctx, project, records[n]); err != nil {
			return stats, err
		}
	}

	im.logger.WithFields(logrus.Fields{
		"project":   project,
		"dir":       dir,
		"pulls":     stats.Pulls,
		"timelines": stats.Timelines,
		"commits":   stats.Commits,
		"patches":   stats.Patches,
	}).Info("Dump imported")

	return stats, nil
}

// readDump calls fn for every entry of a dump file. A missing file is skipped.
func readDump(dir, name string, fn func(n int, v gjson.Result) error) error {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return perrors.FileSystemError(err, "failed to read dump file").WithContext("path", path)
	}
	if !gjson.ValidBytes(data) {
		return perrors.ValidationError("dump file is not valid JSON").WithContext("path", path)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return perrors.ValidationError("dump file must hold an object keyed by pull number").
			WithContext("path", path)
	}

	var ferr error
	root.ForEach(func(key, value gjson.Result) bool {
		n, err := strconv.Atoi(key.String())
		if err != nil {
			ferr = perrors.InvalidInput(err, "dump key is not a pull number").
				WithContext("path", path).
				WithContext("key", key.String())
			return false
		}
		if err := fn(n, value); err != nil {
			var perr *perrors.Error
			if errors.As(err, &perr) {
				err = perr.WithContext("path", path).WithContext("pull_number", n)
			}
			ferr = err
			return false
		}
		return true
	})
	return ferr
}
