package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/prtimeline/internal/config"
	"github.com/rohankatakam/prtimeline/internal/pipeline"
	"github.com/rohankatakam/prtimeline/internal/storage"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load collected JSON dumps into the raw store",
	Long: `Load a project's collected records into the raw store.

The dump directory holds up to four JSON objects keyed by pull number:
  pulls.json      pull metadata
  timelines.json  array of timeline events
  commits.json    commit records keyed by sha
  patches.json    format-patch mailbox text

Missing files are skipped. Importing again upserts pull by pull.

Examples:
  prtimeline import --dir dumps/acme_widgets --project acme/widgets`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("dir", "", "dump directory (required)")
	importCmd.Flags().String("project", "", "project identifier owner/name (required)")
	importCmd.MarkFlagRequired("dir")
	importCmd.MarkFlagRequired("project")
}

func runImport(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	ctx := context.Background()

	dir, _ := cmd.Flags().GetString("dir")
	project, _ := cmd.Flags().GetString("project")

	if err := cfg.ValidateOrError(config.ValidationContextImport); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open raw store: %w", err)
	}
	defer store.Close()

	fmt.Printf("📥 Importing %s from %s\n", project, dir)
	stats, err := pipeline.NewImporter(store, logger).ImportDir(ctx, project, dir)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("  ✓ %d pulls, %d timelines, %d commits, %d patches\n",
		stats.Pulls, stats.Timelines, stats.Commits, stats.Patches)
	fmt.Printf("✅ Import complete in %v\n", time.Since(startTime).Round(time.Millisecond))
	return nil
}
