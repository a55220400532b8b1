// Package cmd implements the ecomon command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecomonitor/ecomonitor-stack/internal/config"
	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
)

// Version is overridden at build time with -ldflags "-X .../internal/cmd.Version=...".
var Version = "0.1.0-dev"

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
	logger   *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ecomon",
	Short: "EcoMonitor ingestion pipeline",
	Long: `ecomon runs the EcoMonitor sensor ingestion pipeline and its tooling.

Serve the pipeline over HTTP and JetStream, simulate sensor devices, bridge
device telemetry into the object store, manage the PostgreSQL schema and
replay single objects through the pipeline.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/ecomonitor/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger = logging.NewWithWriter(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).
		With(logging.Service("ecomon-" + cmd.Name()))
	logging.SetDefault(logger)
	return nil
}
