package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ForumMirror/internal/domain"
	"ForumMirror/internal/infrastructure/storage"
	"ForumMirror/internal/logging"
	"ForumMirror/internal/ports"
)

func openStore(t *testing.T) *storage.SQLStore {
	t.Helper()

	store, err := storage.Open(context.Background(), storage.DriverSQLite, filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fakeSource struct {
	posts       map[int64]ports.Page
	postErr     error
	recent      ports.Page
	migrated    ports.Page
	onFetchPost func(postID int64)
}

func (f *fakeSource) FetchPost(_ context.Context, postID int64) (ports.Page, error) {
	if f.onFetchPost != nil {
		f.onFetchPost(postID)
	}
	if f.postErr != nil {
		return ports.Page{}, f.postErr
	}
	page, ok := f.posts[postID]
	if !ok {
		return ports.Page{Status: 404}, nil
	}
	return page, nil
}

func (f *fakeSource) FetchRecentComments(context.Context) (ports.Page, error) {
	return f.recent, nil
}

func (f *fakeSource) FetchMigratedComments(context.Context) (ports.Page, error) {
	return f.migrated, nil
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, append([]byte(nil), payload...))
	return nil
}

func (b *recordingBroadcaster) messages(t *testing.T) []domain.DeltaMessage {
	t.Helper()

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.DeltaMessage, 0, len(b.payloads))
	for _, payload := range b.payloads {
		var msg domain.DeltaMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("decode payload %s: %v", payload, err)
		}
		out = append(out, msg)
	}
	return out
}

type pageComment struct {
	id     int64
	userID int64
	text   string
}

func okPage(body []byte) ports.Page {
	return ports.Page{Status: 200, Body: body}
}

func postPage(postID int64, comments ...pageComment) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><ol><li class="hentry">
<h2><a rel="chapter" href="https://govnokod.ru/php">PHP</a> / <a rel="bookmark" class="entry-title" href="https://govnokod.ru/%d">#%d</a></h2>
<div class="entry-content"><pre><code>echo 1;</code></pre></div>
<p class="author">Posted by <a href="https://govnokod.ru/user/1"><img class="avatar" src="https://govnokod.ru/avatar/0123456789abcdef0123456789abcdef/28.png"></a> <a href="https://govnokod.ru/user/1">author</a> <abbr class="published" title="2020-01-01T10:00:00+03:00">1 Jan</abbr></p>
<p class="vote"><strong title="1 за и 0 против">1</strong></p>
<div class="entry-comments"><ul id="comments_%d">`, postID, postID, postID+1000)
	for _, c := range comments {
		fmt.Fprintf(&b, `<li class="hcomment"><div class="entry-comment-wrapper" id="comment-%d"><p class="entry-info"><strong class="entry-author"><a href="https://govnokod.ru/user/%d">user%d</a></strong> <abbr class="published" title="2020-01-02T11:00:00+03:00">2 Jan</abbr></p><div class="entry-comment"><span class="comment-text">%s</span></div></div></li>`,
			c.id, c.userID, c.userID, c.text)
	}
	b.WriteString(`</ul></div></li></ol></body></html>`)
	return []byte(b.String())
}

type sinkComment struct {
	postID int64
	id     int64
	text   string
}

func recentPage(comments ...sinkComment) []byte {
	var b strings.Builder
	b.WriteString(`<html><body><ol class="comments">`)
	for _, c := range comments {
		fmt.Fprintf(&b, `<li class="hcomment"><div class="entry-comment-wrapper" id="comment-%d"><p class="entry-info"><strong class="entry-author"><a href="https://govnokod.ru/user/2">user2</a></strong> <abbr class="published" title="2021-05-05T12:00:00+03:00">5 May</abbr> <a class="comment-link" href="https://govnokod.ru/%d#comment%d">#</a></p><div class="entry-comment">%s</div></div></li>`,
			c.id, c.postID, c.id, c.text)
	}
	b.WriteString(`</ol></body></html>`)
	return []byte(b.String())
}

type migratedComment struct {
	postID int64
	xyzID  int64
	ruID   int64
}

func migratedPage(comments ...migratedComment) []byte {
	var b strings.Builder
	b.WriteString(`<html><body><ol class="comments">`)
	for _, c := range comments {
		fmt.Fprintf(&b, `<li class="hcomment"><div class="entry-comment-wrapper"><p class="entry-info"><strong class="entry-author"><a href="https://govnokod.xyz/user/5/">eve</a></strong> <time datetime="2020-05-16T12:34:56+00:00">16 May</time> <a class="comment-link" href="https://govnokod.xyz/_%d/#comment-%d" data-legacy-id="%d">#</a></p><div class="entry-comment">text</div></div></li>`,
			c.postID, c.xyzID, c.ruID)
	}
	b.WriteString(`</ol></body></html>`)
	return []byte(b.String())
}

func newTestPipeline(source ports.PageSource, store ports.Store, out ports.Broadcaster) *Pipeline {
	logger := logging.Discard()
	return NewPipeline(PipelineDeps{
		Source:       source,
		Store:        store,
		Publisher:    NewUpdatePublisher(store, out, logger),
		Logger:       logger,
		Now:          func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
		SuccessDelay: time.Second,
		ErrorDelay:   time.Minute,
	})
}

func ids(views []domain.CommentView) []int64 {
	out := make([]int64, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func int64Ptr(v int64) *int64 { return &v }
