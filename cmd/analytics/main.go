package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/config"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/logging"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/pipeline"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/store"
)

// #region main
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region app
// app holds what every subcommand needs after flag parsing.
type app struct {
	configPath string
	envFile    string
	dbPath     string

	cfg    *config.Config
	logger *zap.Logger
}

// load reads the env file, the config file and builds the logger.
func (a *app) load() error {
	// a missing env file is not an error
	if err := godotenv.Load(a.envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", a.envFile, err)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database = a.dbPath
	}
	logger, err := logging.NewLogger(cfg.LoggerParams())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// open opens the store and wires a pipeline over it.
func (a *app) open() (*store.Store, *pipeline.Pipeline, error) {
	st, err := store.NewStore(a.cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open store %s: %w", a.cfg.Database, err)
	}
	p := pipeline.New(st, a.cfg.ScoringParams(), a.cfg.AnalyticsParams(), a.logger)
	return st, p, nil
}

// #endregion app

// #region root
func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "analytics",
		Short:         "Score decision-lab participants and test the study hypotheses",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "analytics.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "path to a .env file")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides config)")

	root.AddCommand(
		newImportCmd(a),
		newScoreCmd(a),
		newReportCmd(a),
		newInspectCmd(a),
		newExportCmd(a),
		newServeCmd(a),
	)
	return root
}

// #endregion root
