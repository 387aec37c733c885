package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/prtimeline/internal/config"
	perrors "github.com/rohankatakam/prtimeline/internal/errors"
	"github.com/rohankatakam/prtimeline/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logging.Logger
	cfg     *config.Config
)

func main() {
	err := rootCmd.Execute()
	if logger != nil {
		logger.Close()
	}
	if err != nil {
		var perr *perrors.Error
		if verbose && errors.As(err, &perr) {
			fmt.Fprint(os.Stderr, perr.DetailedString())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if perrors.GetType(err) == perrors.ErrorTypeConfig {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "prtimeline",
	Short: "Derive annotated pull request event timelines",
	Long: `prtimeline turns collected pull request records into an event-level dataset:
one row per timeline event, annotated with the pull's resolution, the actor's
role and first-response latencies.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config, using defaults: %v\n", err)
			cfg = config.Default()
		}

		logCfg := logging.Config{
			Level:      cfg.Log.Level,
			OutputFile: cfg.Log.File,
			JSONFormat: cfg.Log.JSON,
		}
		if verbose {
			logCfg.Level = logrus.DebugLevel.String()
		}
		logger, err = logging.NewLogger(logCfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger.WithField("config", cfgFile).Debug("Configuration loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .prtimeline/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`prtimeline {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(deriveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(failuresCmd)
}
