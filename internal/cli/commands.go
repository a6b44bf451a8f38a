package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"ForumMirror/internal/app"
	"ForumMirror/internal/infrastructure/parser"
)

const (
	kindPost     = "post"
	kindSink     = "sink"
	kindMigrated = "migrated"
)

func RunServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, application *app.Application) error {
		return application.Run(ctx)
	})
}

func RunScan(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, application *app.Application) error {
		return application.Scan(ctx, args...)
	})
}

func RunFetch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return withApp(cmd, func(ctx context.Context, application *app.Application) error {
			return application.RunPipeline(ctx)
		})
	}

	postID, err := parsePostID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, application *app.Application) error {
		outcome, err := application.Fetch(ctx, postID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "post %d: %s\n", postID, outcome)
		return nil
	})
}

func RunEnqueue(cmd *cobra.Command, args []string) error {
	start, err := parsePostID(args[0])
	if err != nil {
		return err
	}
	end, err := parsePostID(args[1])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, application *app.Application) error {
		n, err := application.Enqueue(ctx, start, end)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d posts\n", n)
		return nil
	})
}

func RunState(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, application *app.Application) error {
		stats, err := application.State(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd, stats)
	})
}

func RunRenormalize(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, application *app.Application) error {
		n, err := application.Renormalize(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "renormalized %d comments\n", n)
		return nil
	})
}

func RunListen(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, application *app.Application) error {
		out := cmd.OutOrStdout()
		return application.Listen(ctx, func(payload []byte) {
			fmt.Fprintf(out, "%s\n", payload)
		})
	})
}

func RunParse(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	var result any
	switch kind {
	case kindPost:
		result, err = parser.ParsePostPage(content)
	case kindSink:
		result, err = parser.ParseRecentComments(content)
	case kindMigrated:
		cfg, _ := loadEnv()
		result, err = parser.NewMigratedParser(cfg.Sites.Primary.Host(), cfg.Sites.Migrated.Host()).Parse(content)
	default:
		return fmt.Errorf("unknown page kind %q", kind)
	}
	if err != nil {
		return err
	}
	return writeJSON(cmd, result)
}

func parsePostID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q", value)
	}
	return id, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
