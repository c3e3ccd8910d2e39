// Package cli implements the sitelens command line tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitelens/backend/config"
	"github.com/sitelens/backend/internal/app"
	"github.com/sitelens/backend/internal/infrastructure/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// ConfigLoader produces the configuration commands run with
type ConfigLoader func() (*config.Config, error)

// RootOptions holds global CLI flags
type RootOptions struct {
	LogLevel    string
	DatasetFile string
	Timeout     time.Duration
	Compact     bool
}

// runner carries the loaded configuration and logger to subcommands
type runner struct {
	opts   *RootOptions
	load   ConfigLoader
	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand creates the root command with every subcommand registered.
// A nil loader reads configuration with config.Load.
func NewRootCommand(load ConfigLoader) *cobra.Command {
	if load == nil {
		load = config.Load
	}
	r := &runner{opts: &RootOptions{}, load: load}

	cmd := &cobra.Command{
		Use:   "sitelens",
		Short: "SiteLens business siting and customer insight tool",
		Long: "SiteLens scores candidate locations for a new business and profiles the\n" +
			"likely customers of a category at a location, using the same engine and\n" +
			"configuration as the HTTP server.",
		Version:           fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		PersistentPreRunE: r.init,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if r.logger != nil {
				_ = r.logger.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&r.opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVar(&r.opts.DatasetFile, "dataset-file", "", "use this JSON location fixture instead of the configured dataset")
	pf.DurationVar(&r.opts.Timeout, "timeout", 30*time.Second, "operation timeout")
	pf.BoolVar(&r.opts.Compact, "compact", false, "print JSON without indentation")

	cmd.AddCommand(
		newAnalyzeCmd(r),
		newRecommendCmd(r),
		newSeedCmd(r),
		newCategoriesCmd(r),
	)

	return cmd
}

// Execute runs the root command against the process arguments
func Execute() error {
	return NewRootCommand(nil).Execute()
}

func (r *runner) init(cmd *cobra.Command, args []string) error {
	cfg, err := r.load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if r.opts.LogLevel != "" {
		cfg.Log.Level = r.opts.LogLevel
	}
	if r.opts.DatasetFile != "" {
		cfg.Dataset.Type = config.DatasetFile
		cfg.Dataset.FilePath = r.opts.DatasetFile
	}

	// stdout is reserved for results
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stderr"})
	if err != nil {
		return err
	}

	r.cfg = cfg
	r.logger = logger
	return nil
}

// withApp builds the engine for one command run and releases it afterwards
func (r *runner) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), r.opts.Timeout)
	defer cancel()

	a, err := app.New(ctx, r.cfg, r.logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			r.logger.Warn("shutdown", zap.Error(err))
		}
	}()

	return fn(ctx, a)
}

func (r *runner) print(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	if !r.opts.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
