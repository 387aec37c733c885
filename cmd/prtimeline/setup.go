package main

import (
	"fmt"

	"github.com/rohankatakam/prtimeline/internal/config"
	"github.com/rohankatakam/prtimeline/internal/dlq"
	"github.com/rohankatakam/prtimeline/internal/export"
	"github.com/rohankatakam/prtimeline/internal/pipeline"
	"github.com/rohankatakam/prtimeline/internal/registry"
	"github.com/rohankatakam/prtimeline/internal/storage"
	"github.com/rohankatakam/prtimeline/internal/timeline"
)

// session holds the stores and orchestrator shared by derive and inspect
type session struct {
	store    storage.RawStore
	sink     storage.DatasetSink
	orch     *pipeline.Orchestrator
	manifest *registry.Manifest
	failures *dlq.Queue // nil unless the sink is SQL-backed
}

func (s *session) Close() {
	if s.sink != nil {
		s.sink.Close()
	}
	s.store.Close()
}

// openSession validates the configuration, opens the stores and loads the
// registries. withOutputs controls whether export and the dataset sink are wired.
func openSession(withOutputs bool) (*session, error) {
	result := cfg.Validate(config.ValidationContextDerive)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	if result.HasErrors() {
		return nil, cfg.ValidateOrError(config.ValidationContextDerive)
	}

	var bots []string
	if cfg.Registry.BotsFile != "" {
		var err error
		if bots, err = registry.LoadBots(cfg.Registry.BotsFile); err != nil {
			return nil, err
		}
	}

	var manifest *registry.Manifest
	var owners []string
	if cfg.Registry.ProjectsFile != "" {
		var err error
		if manifest, err = registry.LoadProjects(cfg.Registry.ProjectsFile); err != nil {
			return nil, err
		}
		owners = manifest.Owners()
	}

	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open raw store: %w", err)
	}
	s := &session{store: store, manifest: manifest}

	var exporter *export.Writer
	if withOutputs {
		if exporter, err = export.NewWriter(cfg.Output.Directory, cfg.Output.Format); err != nil {
			s.Close()
			return nil, err
		}
		if s.sink, err = storage.OpenSink(cfg.Storage, store, logger); err != nil {
			s.Close()
			return nil, fmt.Errorf("open dataset sink: %w", err)
		}
		if db := storage.SQLDB(s.sink); db != nil {
			if s.failures, err = dlq.NewQueue(db, logger); err != nil {
				s.Close()
				return nil, err
			}
		}
	}

	engine := timeline.NewEngine(
		timeline.WithWorkers(cfg.Derive.Workers),
		timeline.WithLogger(logger),
	)
	opts := pipeline.Options{
		Bots:           bots,
		Owners:         owners,
		ProjectWorkers: cfg.Derive.ProjectWorkers,
	}
	if s.failures != nil {
		opts.Failures = s.failures
	}
	s.orch = pipeline.NewOrchestrator(store, s.sink, exporter, engine, logger, opts)

	logger.WithField("bots", len(bots)).WithField("owners", len(owners)).Debug("Registries loaded")
	return s, nil
}
