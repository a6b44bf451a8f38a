package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"ForumMirror/internal/app"
	"ForumMirror/internal/config"
	"ForumMirror/internal/logging"
)

// NewRootCommand builds the forummirror command tree.
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "forummirror",
		Short:   "Mirror a forum and its migrated copy into a database and broadcast changes",
		Version: version,
		Long: `forummirror polls the primary forum and its migrated copy, keeps posts,
comments and comment id links in SQL storage, and publishes every new or
edited comment on a Redis channel.

Configuration is read from the YAML file named by FORUM_MIRROR_CONFIG and
overridden by environment variables.`,
		SilenceUsage: true,
	}

	// Service Commands
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the post pipeline and both comment scanners",
		Args:  cobra.NoArgs,
		RunE:  RunServe,
	}

	scanCmd := &cobra.Command{
		Use:   "scan [primary|migrated...]",
		Short: "Run only the recent-comments scanners",
		RunE:  RunScan,
	}

	// Maintenance Commands
	fetchCmd := &cobra.Command{
		Use:   "fetch [post_id]",
		Short: "Run only the post pipeline, or update a single post and exit",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunFetch,
	}

	enqueueCmd := &cobra.Command{
		Use:   "enqueue <start> <end>",
		Short: "Mark a range of posts for refetch",
		Args:  cobra.ExactArgs(2),
		RunE:  RunEnqueue,
	}

	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Print the sync queue size as JSON",
		Args:  cobra.NoArgs,
		RunE:  RunState,
	}

	renormalizeCmd := &cobra.Command{
		Use:   "renormalize",
		Short: "Re-apply text normalization to stored comments",
		Args:  cobra.NoArgs,
		RunE:  RunRenormalize,
	}

	// Debug Commands
	parseCmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a saved page and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  RunParse,
	}
	parseCmd.Flags().String("kind", kindPost, "Page kind: post|sink|migrated")

	listenCmd := &cobra.Command{
		Use:   "listen",
		Short: "Print deltas broadcast on the updates channel",
		Args:  cobra.NoArgs,
		RunE:  RunListen,
	}

	rootCmd.AddCommand(runCmd, scanCmd, fetchCmd, enqueueCmd, stateCmd, renormalizeCmd, parseCmd, listenCmd)
	return rootCmd
}

func loadEnv() (config.Config, *slog.Logger) {
	cfg := config.Load()
	return cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format)
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, application *app.Application) error) error {
	cfg, logger := loadEnv()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()
	return fn(ctx, application)
}
