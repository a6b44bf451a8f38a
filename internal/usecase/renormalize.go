package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"ForumMirror/internal/infrastructure/parser"
	"ForumMirror/internal/ports"
)

const renormalizeBatch = 500

// Renormalize re-applies text normalization to every stored comment and returns how many changed.
func Renormalize(ctx context.Context, comments ports.CommentRepository, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		after   int64
		changed int
	)
	for {
		batch, err := comments.CommentsAfter(ctx, after, renormalizeBatch)
		if err != nil {
			return changed, fmt.Errorf("load comments after %d: %w", after, err)
		}
		if len(batch) == 0 {
			break
		}
		for _, c := range batch {
			text := parser.NormalizeText(c.Text)
			if text == c.Text {
				continue
			}
			if err := comments.UpdateCommentText(ctx, c.ID, text); err != nil {
				return changed, err
			}
			changed++
		}
		after = batch[len(batch)-1].ID
		logger.Debug("renormalized batch", "last_id", after, "changed", changed)
	}
	return changed, nil
}
