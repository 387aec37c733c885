package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var failuresCmd = &cobra.Command{
	Use:   "failures <project>",
	Short: "List pull requests that could not be derived",
	Long: `List the dead letter queue of a project: pulls whose records could not be
derived, with the last error and how many runs have failed on them.

The queue lives next to the dataset, so it is only available with a SQL sink
(SQLite raw store or storage.postgres_dsn).

Examples:
  prtimeline failures acme/widgets
  prtimeline failures acme/widgets --purge 720h`,
	Args: cobra.ExactArgs(1),
	RunE: runFailures,
}

func init() {
	failuresCmd.Flags().Duration("purge", 0, "first remove entries not updated within this duration")
}

func runFailures(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	project := args[0]
	purge, _ := cmd.Flags().GetDuration("purge")

	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()
	if s.failures == nil {
		return fmt.Errorf("no SQL dataset sink configured; the failure queue is unavailable")
	}

	if purge > 0 {
		n, err := s.failures.PurgeOld(ctx, purge)
		if err != nil {
			return err
		}
		fmt.Printf("🧹 Purged %d entries older than %v\n", n, purge)
	}

	stats, err := s.failures.GetStats(ctx, project)
	if err != nil {
		return err
	}
	entries, err := s.failures.Entries(ctx, project)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d queued (%d retryable, %d exhausted)\n",
		project, stats.TotalEntries, stats.RetryableEntries, stats.ExhaustedRetries)
	if len(entries) == 0 {
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Pull", "Type", "Retries", "Last failure", "Error"})
	for _, e := range entries {
		tw.AppendRow(table.Row{e.PullNumber, e.ErrorType, e.RetryCount, e.UpdatedAt.Format(time.RFC3339), e.ErrorMessage})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
	return nil
}
