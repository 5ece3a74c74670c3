// Package cmd holds the dopplerindex command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camden-git/dopplerindex/config"
	"github.com/camden-git/dopplerindex/logging"
)

var (
	dbPath       string
	settingsPath string
	logLevel     string
	reportPath   string

	cfg    config.Config
	logger *logging.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite index path (overrides DATABASE_PATH)")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "settings file (overrides SETTINGS_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&reportPath, "report", "", "scan report path (overrides REPORT_PATH, \"-\" disables it)")
}

var rootCmd = &cobra.Command{
	Use:           "dopplerindex",
	Short:         "Index Doppler holography acquisitions and their renders into SQLite",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
		}
		// flags win over the environment
		if dbPath != "" {
			os.Setenv("DATABASE_PATH", dbPath)
		}
		if settingsPath != "" {
			os.Setenv("SETTINGS_PATH", settingsPath)
		}
		if logLevel != "" {
			os.Setenv("LOG_LEVEL", logLevel)
		}

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return err
		}
		switch reportPath {
		case "":
		case "-":
			cfg.ReportPath = ""
		default:
			cfg.ReportPath = reportPath
		}

		logger, err = logging.New(logging.LogConfig{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Output: cfg.LogOutput,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debug("configuration loaded",
			zap.String("database", cfg.DatabasePath),
			zap.String("settings", cfg.SettingsPath),
			zap.Strings("roots", cfg.RootDirectories),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error("command failed", zap.Error(err))
			logger.Sync()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}
