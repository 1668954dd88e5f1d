// Package commands implements the trainer CLI.
//
//	trainer fit      fit the six stages from a grade CSV and write a bundle
//	trainer inspect  show stages, schemas and holdout metrics of a bundle
//	trainer list     list bundles in an artifact directory
//	trainer publish  copy a bundle from an artifact directory into redis
package commands

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// options shared by every subcommand.
type rootOptions struct {
	artifactDir string
	logLevel    string
	logFormat   string

	logger *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "trainer",
		Short: "Fit and publish gradecast artifact bundles",
		Long: `Offline fitting for the gradecast predictor.

The trainer reads the cleaned historical grade table, fits the six cascade
stages (three next-quarter stages and three to-final stages), records the
class averages and holdout metrics, and writes everything as one artifact
bundle the predictor loads at startup.

Examples:
  trainer fit --data cleaned_grades.csv
  trainer inspect --name default
  trainer publish --name default --redis-addr localhost:6379`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.logFormat, opts.logLevel)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.artifactDir, "dir", envOr("ARTIFACT_DIR", "artifacts"), "artifact directory")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", envOr("LOG_FORMAT", "text"), "log format: text or json")

	cmd.AddCommand(
		newFitCmd(opts),
		newInspectCmd(opts),
		newListCmd(opts),
		newPublishCmd(opts),
	)
	return cmd
}

// Execute runs the trainer CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

func newLogger(w io.Writer, format, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	hopts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
