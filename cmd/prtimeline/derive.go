package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var deriveCmd = &cobra.Command{
	Use:   "derive [project...]",
	Short: "Derive the event dataset for one or more projects",
	Long: `Derive annotated timelines for the given projects and export the dataset,
pull summaries and patch statistics.

Projects come from the arguments, or with --all from the project manifest
(registry.projects_file) or, failing that, every project in the raw store.
When storage.postgres_dsn is set the dataset is also written to PostgreSQL.

Examples:
  prtimeline derive acme/widgets
  prtimeline derive --all`,
	RunE: runDerive,
}

func init() {
	deriveCmd.Flags().Bool("all", false, "derive every known project")
}

func runDerive(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	all, _ := cmd.Flags().GetBool("all")
	if all == (len(args) > 0) {
		return fmt.Errorf("pass project identifiers or --all, not both or neither")
	}

	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()

	projects := args
	if all {
		if s.manifest != nil {
			projects = s.manifest.Names()
		} else if projects, err = s.store.Projects(ctx); err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
	}
	if len(projects) == 0 {
		fmt.Println("No projects to derive")
		return nil
	}

	fmt.Printf("🔄 Deriving %d project(s)\n", len(projects))
	results, runErr := s.orch.Run(ctx, projects)

	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("  ✗ %s: %v\n", r.Project, r.Err)
			continue
		}
		fmt.Printf("  ✓ %s: %d pulls, %d events", r.Project, r.Run.Pulls, r.Run.Events)
		if r.Run.Failures > 0 {
			fmt.Printf(", %d skipped", r.Run.Failures)
		}
		fmt.Println()
		for _, path := range r.Written {
			fmt.Printf("    - %s\n", path)
		}
	}

	if runErr != nil {
		return fmt.Errorf("derivation incomplete: %w", runErr)
	}
	fmt.Printf("✅ Derivation complete in %v\n", time.Since(startTime).Round(time.Millisecond))
	return nil
}
