package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/prtimeline/internal/storage"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects in the raw store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(cfg.Storage, logger)
		if err != nil {
			return fmt.Errorf("open raw store: %w", err)
		}
		defer store.Close()

		projects, err := store.Projects(context.Background())
		if err != nil {
			return err
		}
		for _, p := range projects {
			fmt.Println(p)
		}
		return nil
	},
}
