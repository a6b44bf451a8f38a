package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ForumMirror/internal/domain"
	"ForumMirror/internal/infrastructure/parser"
	"ForumMirror/internal/ports"
)

// Outcome classifies one pipeline step.
type Outcome int

const (
	// OutcomeIdle means no post was pending.
	OutcomeIdle Outcome = iota
	// OutcomeSynced means the post was stored and published.
	OutcomeSynced
	// OutcomeRaced means the post was stored but a newer comment was sighted meanwhile; it stays pending.
	OutcomeRaced
	// OutcomeHTTPError means the page could not be fetched.
	OutcomeHTTPError
	// OutcomeParseError means the page was fetched but not understood; nothing was stored.
	OutcomeParseError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeSynced:
		return "synced"
	case OutcomeRaced:
		return "raced"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeParseError:
		return "parse_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source       ports.PageSource
	Store        ports.Store
	Publisher    ports.Publisher
	Dumper       ports.Dumper
	Logger       *slog.Logger
	Now          func() time.Time
	SuccessDelay time.Duration
	ErrorDelay   time.Duration
}

// Pipeline implements the fetch-parse-persist workflow for pending posts.
type Pipeline struct {
	source       ports.PageSource
	store        ports.Store
	publisher    ports.Publisher
	dumper       ports.Dumper
	logger       *slog.Logger
	now          func() time.Time
	successDelay time.Duration
	errorDelay   time.Duration
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:       deps.Source,
		store:        deps.Store,
		publisher:    deps.Publisher,
		dumper:       deps.Dumper,
		logger:       deps.Logger,
		now:          deps.Now,
		successDelay: deps.SuccessDelay,
		errorDelay:   deps.ErrorDelay,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// ErrorDelay is the wait after a failed step.
func (p *Pipeline) ErrorDelay() time.Duration {
	return p.errorDelay
}

// Step runs UpdateNext and picks the delay before the next step.
func (p *Pipeline) Step(ctx context.Context) time.Duration {
	outcome, err := p.UpdateNext(ctx)
	if err != nil {
		level := slog.LevelError
		if outcome == OutcomeHTTPError {
			level = slog.LevelWarn
		}
		p.logger.Log(ctx, level, "pipeline step failed", "outcome", outcome.String(), "error", err)
		return p.errorDelay
	}
	return p.successDelay
}

// UpdateNext updates the highest-priority pending post, if any.
func (p *Pipeline) UpdateNext(ctx context.Context) (Outcome, error) {
	state, ok, err := p.store.NextPending(ctx)
	if err != nil {
		return OutcomeIdle, fmt.Errorf("select pending post: %w", err)
	}
	if !ok {
		return OutcomeIdle, nil
	}
	return p.updatePost(ctx, state.PostID, state.LastCommentID)
}

// UpdatePost fetches, parses and stores one post, then publishes what changed.
func (p *Pipeline) UpdatePost(ctx context.Context, postID int64) (Outcome, error) {
	state, _, err := p.store.SyncState(ctx, postID)
	if err != nil {
		return OutcomeIdle, fmt.Errorf("load state of post %d: %w", postID, err)
	}
	return p.updatePost(ctx, postID, state.LastCommentID)
}

// updatePost does the work of UpdatePost. baseline is the high-water mark known before the fetch.
func (p *Pipeline) updatePost(ctx context.Context, postID int64, baseline *int64) (Outcome, error) {
	logger := p.logger.With("post_id", postID)

	page, err := p.source.FetchPost(ctx, postID)
	if err != nil {
		result := fmt.Sprintf("Fetch error: %v", err)
		if markErr := p.store.MarkSynced(ctx, postID, result, p.now()); markErr != nil {
			return OutcomeHTTPError, errors.Join(err, markErr)
		}
		return OutcomeHTTPError, fmt.Errorf("fetch post %d: %w", postID, err)
	}
	if !page.OK() {
		logger.Warn("post fetch failed", "status", page.Status)
		if err := p.store.MarkSynced(ctx, postID, fmt.Sprintf("HTTP error %d", page.Status), p.now()); err != nil {
			return OutcomeHTTPError, fmt.Errorf("record http error: %w", err)
		}
		return OutcomeHTTPError, nil
	}

	p.dump(page.Body, logger)

	parsed, err := parser.ParsePostPage(page.Body)
	if err == nil && parsed.Post.ID != postID {
		err = fmt.Errorf("%w: page describes post %d", parser.ErrInvalidID, parsed.Post.ID)
	}
	if err != nil {
		logger.Warn("post parse failed", "error", err)
		result := fmt.Sprintf("%s: %v", domain.ResultParseError, err)
		if markErr := p.store.MarkSynced(ctx, postID, result, p.now()); markErr != nil {
			return OutcomeParseError, fmt.Errorf("record parse error: %w", markErr)
		}
		return OutcomeParseError, nil
	}

	delta, err := p.persist(ctx, postID, parsed)
	if err != nil {
		return OutcomeIdle, fmt.Errorf("persist post %d: %w", postID, err)
	}

	if err := p.publisher.Publish(ctx, delta); err != nil {
		logger.Warn("publish failed", "error", err)
	}

	outcome := OutcomeSynced
	if candidate, ok := parsed.MaxCommentID(); ok {
		stored, raced, err := p.store.AdvanceHighWater(ctx, postID, baseline, candidate)
		if err != nil {
			return outcome, fmt.Errorf("advance high-water mark: %w", err)
		}
		if raced {
			logger.Warn("newer comment sighted during fetch, post stays pending", "candidate", candidate, "stored", stored)
			outcome = OutcomeRaced
		}
	}

	logger.Info("post synced",
		"comments", len(parsed.Comments),
		"new", len(delta.New),
		"updated", len(delta.Updated),
		"outcome", outcome.String())
	return outcome, nil
}

func (p *Pipeline) persist(ctx context.Context, postID int64, page parser.PostPage) (domain.Delta, error) {
	var delta domain.Delta
	err := p.store.WithTx(ctx, func(tx ports.Store) error {
		if err := tx.UpsertUsers(ctx, page.Users); err != nil {
			return err
		}
		if err := tx.UpsertPost(ctx, page.Post); err != nil {
			return err
		}

		ids := make([]int64, len(page.Comments))
		for i, c := range page.Comments {
			ids[i] = c.ID
		}
		stored, err := tx.CommentTexts(ctx, ids)
		if err != nil {
			return err
		}
		delta = Classify(page.Comments, stored)

		if err := tx.UpsertComments(ctx, page.Comments); err != nil {
			return err
		}
		return tx.MarkSynced(ctx, postID, domain.ResultOK, p.now())
	})
	return delta, err
}

func (p *Pipeline) dump(content []byte, logger *slog.Logger) {
	if p.dumper == nil {
		return
	}
	path, err := p.dumper.Save(content)
	if err != nil {
		logger.Warn("dump failed", "error", err)
		return
	}
	logger.Debug("page dumped", "path", path)
}

// Classify splits freshly parsed comments into new ones and ones whose text changed.
func Classify(comments []domain.Comment, stored map[int64]string) domain.Delta {
	var delta domain.Delta
	for _, c := range comments {
		text, ok := stored[c.ID]
		switch {
		case !ok:
			delta.New = append(delta.New, c)
		case text != c.Text:
			delta.Updated = append(delta.Updated, c)
		}
	}
	return delta
}
