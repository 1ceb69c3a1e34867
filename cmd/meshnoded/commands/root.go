// Package commands implements the meshnoded CLI: a cobra root command
// plus the run, pair, and send subcommands, grounded on the same
// flag/config/logger wiring the daemon's configuration package exposes.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshwire/meshnode/internal/config"
)

var (
	configPath string

	cfg      *config.Config
	logger   *slog.Logger
	logLevel = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "meshnoded",
	Short: "meshnode mesh-chat daemon",
	Long:  "meshnoded runs the mesh-chat protocol core over a configured radio transport, exposing Prometheus metrics and a persistent pairing store.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		cfg, err = loadConfig(configPath)
		if err != nil {
			return err
		}
		logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
		logger = newLoggerWithLevel(cfg.Log, logLevel)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file (YAML); defaults are used if empty")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(pairCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command, returning the first error any command
// or subcommand reports.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads configPath if set, or falls back to DefaultConfig.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.DefaultConfig(), nil
}

// newLoggerWithLevel builds a structured logger using a shared LevelVar,
// so a later SIGHUP reload (wired in run.go, for the long-running `run`
// subcommand) can change the effective level without rebuilding the
// handler. Matches the teacher's own newLoggerWithLevel shape exactly.
func newLoggerWithLevel(lc config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch lc.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
