// Package pipeline drives derivation across projects: load raw records, derive,
// export and persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	perrors "github.com/rohankatakam/prtimeline/internal/errors"
	"github.com/rohankatakam/prtimeline/internal/export"
	"github.com/rohankatakam/prtimeline/internal/models"
	"github.com/rohankatakam/prtimeline/internal/patches"
	"github.com/rohankatakam/prtimeline/internal/storage"
	"github.com/rohankatakam/prtimeline/internal/timeline"
)

// Options configures an Orchestrator
type Options struct {
	Bots []string

	// Owners are treated as bots. When empty, the owners of the projects in a Run
	// are used.
	Owners []string

	ProjectWorkers int

	// Failures, when set, receives each run's failed and derived pulls
	Failures FailureLog
}

// FailureLog tracks pulls that could not be derived across runs
type FailureLog interface {
	Reconcile(ctx context.Context, project string, failed map[int]error, derived []int) error
}

// Orchestrator coordinates derivation of many projects
type Orchestrator struct {
	store    storage.RawStore
	sink     storage.DatasetSink // optional
	exporter *export.Writer      // optional
	engine   *timeline.Engine
	logger   logrus.FieldLogger
	opts     Options
}

// NewOrchestrator creates a new orchestrator. sink and exporter may be nil.
func NewOrchestrator(
	store storage.RawStore,
	sink storage.DatasetSink,
	exporter *export.Writer,
	engine *timeline.Engine,
	logger logrus.FieldLogger,
	opts Options,
) *Orchestrator {
	if opts.ProjectWorkers < 1 {
		opts.ProjectWorkers = 1
	}
	return &Orchestrator{
		store:    store,
		sink:     sink,
		exporter: exporter,
		engine:   engine,
		logger:   logger,
		opts:     opts,
	}
}

// ProjectResult is the outcome of deriving one project
type ProjectResult struct {
	Project string
	Run     models.DerivationRun
	Result  *timeline.Result
	Written []string
	Err     error
}

// Run derives every project concurrently. A failing project does not stop the
// others; all project errors are joined into the returned error.
func (o *Orchestrator) Run(ctx context.Context, projects []string) ([]*ProjectResult, error) {
	owners := o.opts.Owners
	if len(owners) == 0 {
		owners = projectOwners(projects)
	}

	results := make([]*ProjectResult, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.ProjectWorkers)
	for i, project := range projects {
		g.Go(func() error {
			// only cancellation of the parent stops the run
			if err := gctx.Err(); err != nil {
				results[i] = &ProjectResult{Project: project, Err: err}
				return nil
			}
			results[i] = o.deriveProject(gctx, project, owners)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Project, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// DeriveProject derives a single project without exporting or persisting
func (o *Orchestrator) DeriveProject(ctx context.Context, project string) (*timeline.Result, *models.RawProject, error) {
	raw, err := o.store.LoadProject(ctx, project)
	if err != nil {
		return nil, nil, err
	}
	owners := o.opts.Owners
	if len(owners) == 0 {
		owners = projectOwners([]string{project})
	}
	result, err := o.engine.Derive(o.input(raw, owners))
	if err != nil {
		return nil, nil, err
	}
	return result, raw, nil
}

func (o *Orchestrator) deriveProject(ctx context.Context, project string, owners []string) *ProjectResult {
	runID := uuid.NewString()
	log := o.logger.WithFields(logrus.Fields{
		"project": project,
		"run_id":  runID,
	})
	pr := &ProjectResult{
		Project: project,
		Run:     models.DerivationRun{ID: runID, Project: project, StartedAt: time.Now().UTC()},
	}

	raw, err := o.store.LoadProject(ctx, project)
	if err != nil {
		pr.Err = fmt.Errorf("load raw records: %w", err)
		log.WithError(err).Error("Failed to load project")
		return pr
	}

	result, err := o.engine.Derive(o.input(raw, owners))
	if err != nil {
		pr.Err = fmt.Errorf("derive: %w", err)
		log.WithError(err).Error("Derivation failed")
		return pr
	}
	pr.Result = result
	for _, failure := range result.Failures {
		log.WithError(failure).Warn("Skipped pull request")
	}
	if o.opts.Failures != nil {
		if err := o.opts.Failures.Reconcile(ctx, project, failedPulls(result), derivedPulls(result)); err != nil {
			log.WithError(err).Warn("Failed to update dead letter queue")
		}
	}

	rows := result.Rows()
	pr.Run.Pulls = len(result.Pulls)
	pr.Run.Events = len(rows)
	pr.Run.Failures = len(result.Failures)

	if o.exporter != nil {
		written, err := o.exporter.Export(&export.Bundle{
			Project: project,
			Rows:    rows,
			Pulls:   timeline.SummarizePulls(raw.Pulls),
			Patches: patches.Changes(raw.Patches),
		})
		pr.Written = written
		if err != nil {
			pr.Err = fmt.Errorf("export: %w", err)
			log.WithError(err).Error("Export failed")
			return pr
		}
	}

	if o.sink != nil {
		if err := o.sink.SaveDataset(ctx, project, rows); err != nil {
			pr.Err = fmt.Errorf("save dataset: %w", err)
			log.WithError(err).Error("Saving dataset failed")
			return pr
		}
	}

	pr.Run.FinishedAt = time.Now().UTC()
	if o.sink != nil {
		if err := o.sink.RecordRun(ctx, &pr.Run); err != nil {
			log.WithError(err).Warn("Failed to record run")
		}
	}

	log.WithFields(logrus.Fields{
		"pulls":    pr.Run.Pulls,
		"events":   pr.Run.Events,
		"failures": pr.Run.Failures,
		"duration": pr.Run.FinishedAt.Sub(pr.Run.StartedAt).String(),
	}).Info("Project derived")

	return pr
}

func (o *Orchestrator) input(raw *models.RawProject, owners []string) *timeline.Input {
	return &timeline.Input{
		Project:   raw.Name,
		Pulls:     raw.Pulls,
		Timelines: raw.Timelines,
		Commits:   raw.Commits,
		Bots:      o.opts.Bots,
		Owners:    owners,
	}
}

func failedPulls(result *timeline.Result) map[int]error {
	failed := make(map[int]error, len(result.Failures))
	for _, failure := range result.Failures {
		if n, ok := perrors.ContextValue(failure, "pull_number"); ok {
			if number, ok := n.(int); ok {
				failed[number] = failure
			}
		}
	}
	return failed
}

func derivedPulls(result *timeline.Result) []int {
	numbers := make([]int, len(result.Pulls))
	for i, p := range result.Pulls {
		numbers[i] = p.PullNumber
	}
	return numbers
}

func projectOwners(projects []string) []string {
	seen := make(map[string]struct{}, len(projects))
	var owners []string
	for _, p := range projects {
		owner := models.Owner(p)
		if _, ok := seen[owner]; ok || owner == "" {
			continue
		}
		seen[owner] = struct{}{}
		owners = append(owners, owner)
	}
	return owners
}
