package ports

import (
	"context"
	"time"

	"ForumMirror/internal/domain"
)

// Page is a fetched HTTP response body with its status code.
type Page struct {
	Status int
	Body   []byte
}

// OK reports whether the response was a 2xx.
func (p Page) OK() bool {
	return p.Status >= 200 && p.Status < 300
}

// PageSource fetches raw pages from both sites. Non-2xx statuses are returned, not raised.
type PageSource interface {
	FetchPost(ctx context.Context, postID int64) (Page, error)
	FetchRecentComments(ctx context.Context) (Page, error)
	FetchMigratedComments(ctx context.Context) (Page, error)
}

// PostRepository persists posts and their authors.
type PostRepository interface {
	UpsertUsers(ctx context.Context, users []domain.User) error
	UpsertPost(ctx context.Context, post domain.Post) error
	Users(ctx context.Context, ids []int64) (map[int64]domain.User, error)
	ThreadIDs(ctx context.Context, postIDs []int64) (map[int64]int64, error)
}

// CommentRepository persists comments.
type CommentRepository interface {
	UpsertComments(ctx context.Context, comments []domain.Comment) error
	CommentTexts(ctx context.Context, ids []int64) (map[int64]string, error)
	Comment(ctx context.Context, id int64) (domain.Comment, bool, error)
	UpdateCommentText(ctx context.Context, id int64, text string) error
	CommentsAfter(ctx context.Context, afterID int64, limit int) ([]domain.Comment, error)
}

// LinkRepository persists the primary-to-migrated comment id table.
type LinkRepository interface {
	Link(ctx context.Context, commentID int64) (domain.CommentLink, bool, error)
	SaveLink(ctx context.Context, link domain.CommentLink) error
	Links(ctx context.Context, commentIDs []int64) (map[int64]int64, error)
}

// SyncStateRepository persists the fetch queue.
type SyncStateRepository interface {
	NextPending(ctx context.Context) (domain.SyncState, bool, error)
	SyncState(ctx context.Context, postID int64) (domain.SyncState, bool, error)
	MarkSynced(ctx context.Context, postID int64, result string, at time.Time) error
	BumpHighWater(ctx context.Context, postID, commentID int64, priority int) (bool, error)
	AdvanceHighWater(ctx context.Context, postID int64, baseline *int64, candidate int64) (int64, bool, error)
	Enqueue(ctx context.Context, postIDs []int64, priority int) error
	SyncStats(ctx context.Context) (domain.SyncStats, error)
}

// Store is the whole persistent store; WithTx runs fn against a transactional view of it.
type Store interface {
	PostRepository
	CommentRepository
	LinkRepository
	SyncStateRepository
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Broadcaster delivers an encoded message to pub/sub subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte) error
}

// Publisher sends a delta to subscribers.
type Publisher interface {
	Publish(ctx context.Context, delta domain.Delta) error
}

// Dumper archives raw fetched pages.
type Dumper interface {
	Save(content []byte) (string, error)
}
