package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"ForumMirror/internal/domain"
	"ForumMirror/internal/ports"
)

const threadCacheSize = 4096

var _ ports.Publisher = (*UpdatePublisher)(nil)

// ViewSource resolves the data a comment view is denormalized with.
type ViewSource interface {
	Users(ctx context.Context, ids []int64) (map[int64]domain.User, error)
	ThreadIDs(ctx context.Context, postIDs []int64) (map[int64]int64, error)
	Links(ctx context.Context, commentIDs []int64) (map[int64]int64, error)
}

// UpdatePublisher turns deltas into comment views and broadcasts them.
type UpdatePublisher struct {
	views   ViewSource
	out     ports.Broadcaster
	threads *lru.Cache[int64, int64]
	logger  *slog.Logger
}

// NewUpdatePublisher builds a publisher. Thread ids never change, so they are cached.
func NewUpdatePublisher(views ViewSource, out ports.Broadcaster, logger *slog.Logger) *UpdatePublisher {
	if logger == nil {
		logger = slog.Default()
	}
	threads, _ := lru.New[int64, int64](threadCacheSize)
	return &UpdatePublisher{views: views, out: out, threads: threads, logger: logger}
}

// Publish broadcasts the delta; an empty delta is dropped.
func (p *UpdatePublisher) Publish(ctx context.Context, delta domain.Delta) error {
	if delta.Empty() {
		return nil
	}
	msg, err := p.Message(ctx, delta)
	if err != nil {
		return err
	}
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	if err := p.out.Broadcast(ctx, payload); err != nil {
		return fmt.Errorf("broadcast delta: %w", err)
	}
	p.logger.Debug("delta published", "new", len(msg.New), "updated", len(msg.Updated))
	return nil
}

// Message builds the broadcast message for a delta.
func (p *UpdatePublisher) Message(ctx context.Context, delta domain.Delta) (domain.DeltaMessage, error) {
	all := make([]domain.Comment, 0, len(delta.New)+len(delta.Updated))
	all = append(all, delta.New...)
	all = append(all, delta.Updated...)

	var userIDs, postIDs, commentIDs []int64
	for _, c := range all {
		userIDs = append(userIDs, c.UserID)
		postIDs = append(postIDs, c.PostID)
		commentIDs = append(commentIDs, c.ID)
	}

	users, err := p.views.Users(ctx, unique(userIDs))
	if err != nil {
		return domain.DeltaMessage{}, fmt.Errorf("load users: %w", err)
	}
	threads, err := p.threadIDs(ctx, unique(postIDs))
	if err != nil {
		return domain.DeltaMessage{}, fmt.Errorf("load thread ids: %w", err)
	}
	links, err := p.views.Links(ctx, unique(commentIDs))
	if err != nil {
		return domain.DeltaMessage{}, fmt.Errorf("load links: %w", err)
	}

	view := func(c domain.Comment) domain.CommentView {
		var xyzID *int64
		if id, ok := links[c.ID]; ok {
			xyzID = &id
		}
		return domain.NewCommentView(c, users[c.UserID], threads[c.PostID], xyzID)
	}

	msg := domain.DeltaMessage{
		New:     make([]domain.CommentView, 0, len(delta.New)),
		Updated: make([]domain.CommentView, 0, len(delta.Updated)),
	}
	for _, c := range delta.New {
		msg.New = append(msg.New, view(c))
	}
	for _, c := range delta.Updated {
		msg.Updated = append(msg.Updated, view(c))
	}
	return msg, nil
}

func (p *UpdatePublisher) threadIDs(ctx context.Context, postIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(postIDs))
	var missing []int64
	for _, id := range postIDs {
		if thread, ok := p.threads.Get(id); ok {
			result[id] = thread
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	loaded, err := p.views.ThreadIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, thread := range loaded {
		p.threads.Add(id, thread)
		result[id] = thread
	}
	return result, nil
}

// Encode serializes a message as UTF-8 JSON with markup left unescaped.
func Encode(msg domain.DeltaMessage) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(msg); err != nil {
		return nil, fmt.Errorf("encode delta: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func unique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
