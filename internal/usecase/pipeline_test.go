package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"ForumMirror/internal/domain"
	"ForumMirror/internal/infrastructure/dump"
	"ForumMirror/internal/ports"
)

func TestPipelinePublishesDelta(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)
	out := &recordingBroadcaster{}
	source := &fakeSource{posts: map[int64]ports.Page{
		500: okPage(postPage(500, pageComment{1, 2, "a"}, pageComment{2, 3, "b"})),
	}}
	pipeline := newTestPipeline(source, store, out)

	if err := store.Enqueue(ctx, []int64{500}, domain.PriorityDump); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if outcome, err := pipeline.UpdateNext(ctx); err != nil || outcome != OutcomeSynced {
		t.Fatalf("first update: %v %v", outcome, err)
	}

	source.posts[500] = okPage(postPage(500, pageComment{1, 2, "a"}, pageComment{2, 3, "b2"}, pageComment{3, 2, "c"}))
	if outcome, err := pipeline.UpdatePost(ctx, 500); err != nil || outcome != OutcomeSynced {
		t.Fatalf("second update: %v %v", outcome, err)
	}

	msgs := out.messages(t)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if got := ids(msgs[0].New); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("first delta new = %v", got)
	}
	second := msgs[1]
	if got := ids(second.New); !reflect.DeepEqual(got, []int64{3}) {
		t.Fatalf("expected new=[3], got %v", got)
	}
	if got := ids(second.Updated); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("expected updated=[2], got %v", got)
	}
	if view := second.Updated[0]; view.Text != "b2" || view.UserName != "user3" || view.CommentListID != 1500 {
		t.Fatalf("unexpected view %+v", view)
	}

	state, found, err := store.SyncState(ctx, 500)
	if err != nil || !found {
		t.Fatalf("load state: %v %v", found, err)
	}
	if state.Pending || state.Result != domain.ResultOK || state.LastCommentID == nil || *state.LastCommentID != 3 {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestPipelineIdleWithoutPendingPosts(t *testing.T) {
	t.Parallel()

	pipeline := newTestPipeline(&fakeSource{}, openStore(t), &recordingBroadcaster{})
	outcome, err := pipeline.UpdateNext(context.Background())
	if err != nil || outcome != OutcomeIdle {
		t.Fatalf("expected idle, got %v %v", outcome, err)
	}
}

func TestPipelineKeepsNewerHighWaterMark(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)
	const n = 100
	source := &fakeSource{posts: map[int64]ports.Page{
		7: okPage(postPage(7, pageComment{n + 1, 2, "x"}, pageComment{n + 2, 2, "y"})),
	}}
	source.onFetchPost = func(postID int64) {
		if _, err := store.BumpHighWater(ctx, postID, n+5, domain.PriorityHasComments); err != nil {
			t.Errorf("bump: %v", err)
		}
	}
	if _, err := store.BumpHighWater(ctx, 7, n, domain.PriorityHasComments); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	outcome, err := newTestPipeline(source, store, &recordingBroadcaster{}).UpdatePost(ctx, 7)
	if err != nil || outcome != OutcomeRaced {
		t.Fatalf("expected raced outcome, got %v %v", outcome, err)
	}

	state, _, err := store.SyncState(ctx, 7)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if !state.Pending || state.LastCommentID == nil || *state.LastCommentID != n+5 {
		t.Fatalf("expected pending with high-water %d, got %+v", n+5, state)
	}
}

func TestPipelineSettlesStaleHighWaterMark(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)
	fetches := map[int64]int{}
	source := &fakeSource{posts: map[int64]ports.Page{
		7: okPage(postPage(7, pageComment{101, 2, "x"}, pageComment{102, 2, "y"})),
		8: okPage(postPage(8, pageComment{201, 2, "z"})),
	}}
	source.onFetchPost = func(postID int64) { fetches[postID]++ }

	if _, err := store.BumpHighWater(ctx, 7, 105, domain.PriorityHasComments); err != nil {
		t.Fatalf("seed state: %v", err)
	}
	if err := store.Enqueue(ctx, []int64{8}, domain.PriorityDump); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pipeline := newTestPipeline(source, store, &recordingBroadcaster{})
	for i := 0; i < 3; i++ {
		if _, err := pipeline.UpdateNext(ctx); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	if fetches[7] != 1 || fetches[8] != 1 {
		t.Fatalf("expected one fetch per post, got %v", fetches)
	}
	state, _, err := store.SyncState(ctx, 7)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if state.Pending || state.LastCommentID == nil || *state.LastCommentID != 102 {
		t.Fatalf("expected settled state at 102, got %+v", state)
	}
}

func TestPipelineRejectsPageOfAnotherPost(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)
	out := &recordingBroadcaster{}
	source := &fakeSource{posts: map[int64]ports.Page{
		13: okPage(postPage(14, pageComment{1, 2, "a"})),
	}}

	outcome, err := newTestPipeline(source, store, out).UpdatePost(ctx, 13)
	if err != nil || outcome != OutcomeParseError {
		t.Fatalf("expected parse error outcome, got %v %v", outcome, err)
	}

	state, _, _ := store.SyncState(ctx, 13)
	if !strings.HasPrefix(state.Result, domain.ResultParseError) || state.LastCommentID != nil {
		t.Fatalf("unexpected state %+v", state)
	}
	if _, found, _ := store.Comment(ctx, 1); found {
		t.Fatalf("comments of another post must not be stored")
	}
	if len(out.messages(t)) != 0 {
		t.Fatalf("nothing should be published")
	}
}

func TestPipelineRecordsHTTPError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)
	out := &recordingBroadcaster{}
	if err := store.Enqueue(ctx, []int64{404}, domain.PriorityDump); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	outcome, err := newTestPipeline(&fakeSource{}, store, out).UpdateNext(ctx)
	if err != nil || outcome != OutcomeHTTPError {
		t.Fatalf("expected http error outcome, got %v %v", outcome, err)
	}
	state, _, _ := store.SyncState(ctx, 404)
	if state.Pending || state.Result != "HTTP error 404" {
		t.Fatalf("unexpected state %+v", state)
	}
	if len(out.messages(t)) != 0 {
		t.Fatalf("nothing should be published")
	}
}

func TestPipelineTransportErrorUsesErrorDelay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)
	if err := store.Enqueue(ctx, []int64{9}, domain.PriorityDump); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pipeline := newTestPipeline(&fakeSource{postErr: errors.New("connection reset")}, store, &recordingBroadcaster{})

	if delay := pipeline.Step(ctx); delay != pipeline.ErrorDelay() {
		t.Fatalf("expected error delay, got %v", delay)
	}
	state, _, _ := store.SyncState(ctx, 9)
	if state.Pending || !strings.Contains(state.Result, "connection reset") {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestPipelineParseErrorStoresNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)
	out := &recordingBroadcaster{}
	broken := strings.Replace(string(postPage(11, pageComment{1, 2, "a"})), `id="comments_1011"`, `id="oops"`, 1)
	source := &fakeSource{posts: map[int64]ports.Page{11: okPage([]byte(broken))}}

	outcome, err := newTestPipeline(source, store, out).UpdatePost(ctx, 11)
	if err != nil || outcome != OutcomeParseError {
		t.Fatalf("expected parse error outcome, got %v %v", outcome, err)
	}

	state, _, _ := store.SyncState(ctx, 11)
	if state.Pending || !strings.HasPrefix(state.Result, domain.ResultParseError) {
		t.Fatalf("unexpected state %+v", state)
	}
	if _, found, _ := store.Comment(ctx, 1); found {
		t.Fatalf("comment must not be stored after a parse failure")
	}
	if threads, _ := store.ThreadIDs(ctx, []int64{11}); len(threads) != 0 {
		t.Fatalf("post must not be stored after a parse failure")
	}
}

func TestPipelineDumpsFetchedPages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	body := postPage(12)
	pipeline := newTestPipeline(&fakeSource{posts: map[int64]ports.Page{12: okPage(body)}}, store, &recordingBroadcaster{})
	pipeline.dumper = dump.NewDumper(dir)

	if _, err := pipeline.UpdatePost(ctx, 12); err != nil {
		t.Fatalf("update: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*", "*.html"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one dump, got %v %v", matches, err)
	}
	saved, err := os.ReadFile(matches[0])
	if err != nil || string(saved) != string(body) {
		t.Fatalf("dump content mismatch: %v", err)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	comments := []domain.Comment{{ID: 1, Text: "a"}, {ID: 2, Text: "b2"}, {ID: 3, Text: "c"}}
	delta := Classify(comments, map[int64]string{1: "a", 2: "b"})
	if len(delta.New) != 1 || delta.New[0].ID != 3 {
		t.Fatalf("unexpected new %+v", delta.New)
	}
	if len(delta.Updated) != 1 || delta.Updated[0].ID != 2 {
		t.Fatalf("unexpected updated %+v", delta.Updated)
	}
}
