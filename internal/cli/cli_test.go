package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ForumMirror/internal/domain"
)

const samplePost = `<html><body><ol><li class="hentry">
<h2><a rel="chapter" href="/c">C</a> / <a class="entry-title" href="https://govnokod.ru/77">#77</a></h2>
<div class="entry-content"><pre><code>int x;</code></pre></div>
<p class="author">Posted by <a href="https://govnokod.ru/user/3">carol</a> <abbr class="published" title="2020-01-01T10:00:00+03:00">1 Jan</abbr></p>
<div class="entry-comments"><ul id="comments_5"></ul></div>
</li></ol></body></html>`

func useSQLite(t *testing.T) {
	t.Helper()

	t.Setenv("FORUM_MIRROR_CONFIG", "")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand("test")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestParseCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post.html")
	if err := os.WriteFile(path, []byte(samplePost), 0o644); err != nil {
		t.Fatalf("write page: %v", err)
	}

	out := execute(t, "parse", "--kind", "post", path)

	var page struct {
		Post domain.Post `json:"post"`
	}
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if page.Post.ID != 77 || page.Post.CommentListID != 5 || page.Post.Code != "int x;" {
		t.Fatalf("unexpected post %+v", page.Post)
	}
}

func TestParseCommandRejectsUnknownKind(t *testing.T) {
	cmd := NewRootCommand("test")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"parse", "--kind", "rss", "missing.html"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestEnqueueAndState(t *testing.T) {
	useSQLite(t)

	if out := execute(t, "enqueue", "100", "102"); !strings.Contains(out, "enqueued 3 posts") {
		t.Fatalf("unexpected enqueue output %q", out)
	}

	var stats domain.SyncStats
	if err := json.Unmarshal([]byte(execute(t, "state")), &stats); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if stats.Pending != 3 || stats.Total != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestParsePostID(t *testing.T) {
	t.Parallel()

	if _, err := parsePostID("0"); err == nil {
		t.Fatalf("zero must be rejected")
	}
	if _, err := parsePostID("abc"); err == nil {
		t.Fatalf("non-numeric must be rejected")
	}
	if id, err := parsePostID("123"); err != nil || id != 123 {
		t.Fatalf("unexpected result %d %v", id, err)
	}
}
