package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/prtimeline/internal/models"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <project> <pull>",
	Short: "Show one pull request's annotated timeline",
	Long: `Derive a project without exporting and print the annotated events of one
pull request.

Examples:
  prtimeline inspect acme/widgets 42`,
	Args: cobra.ExactArgs(2),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	project := args[0]
	number, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid pull number %q", args[1])
	}

	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	result, _, err := s.orch.DeriveProject(context.Background(), project)
	if err != nil {
		return err
	}
	for _, failure := range result.Failures {
		logger.WithError(failure).Debug("Skipped pull request")
	}

	var rows []models.DatasetRow
	for _, row := range result.Rows() {
		if row.PullNumber == number {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return fmt.Errorf("pull %d not found in %s (or it could not be derived)", number, project)
	}

	first := rows[0]
	outcome := "open"
	switch {
	case first.IsMerged:
		outcome = "merged by " + deref(first.MergedBy)
	case first.IsClosed:
		outcome = "closed"
		if first.ClosedBy != nil {
			outcome += " by " + *first.ClosedBy
		}
	}
	fmt.Printf("%s #%d: %s, opened %s\n", project, number, outcome, first.OpenedAt.Format(time.RFC3339))
	if first.MaintainerLatency != nil {
		fmt.Printf("  maintainer response after %.2fh (%s by %s)\n",
			*first.MaintainerLatency, deref(first.MaintainerRespondedEvent), deref(first.MaintainerRespondedBy))
	}
	if first.ContributorLatency != nil {
		fmt.Printf("  contributor response after %.2fh (%s)\n",
			*first.ContributorLatency, deref(first.ContributorRespondedEvent))
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"#", "Time", "Event", "Actor", "Role", "Response"})
	for _, row := range rows {
		tw.AppendRow(table.Row{
			row.EventNumber,
			row.Time.Format(time.RFC3339),
			row.Event,
			row.Actor,
			role(row),
			response(row),
		})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
	return nil
}

func role(row models.DatasetRow) string {
	switch {
	case row.IsBot:
		return "bot"
	case row.IsContributor:
		return "contributor"
	case row.IsMaintainer:
		return "maintainer"
	}
	return ""
}

func response(row models.DatasetRow) string {
	switch {
	case row.IsMaintainerResponse:
		return "maintainer"
	case row.IsContributorResponse:
		return "contributor"
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
