package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestClientFetchesPagesWithUserAgent(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		paths  []string
		agents []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()

		if r.URL.Path == "/404" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("<html>" + r.URL.Path + "</html>"))
	}))
	defer srv.Close()

	client := NewClient(Options{
		PrimaryURL:           srv.URL + "/",
		PrimaryCommentsPath:  "/comments",
		MigratedURL:          srv.URL,
		MigratedCommentsPath: "comments/",
		UserAgent:            "mirror-test/1.0",
		Timeout:              5 * time.Second,
	}, nil)

	ctx := context.Background()
	page, err := client.FetchPost(ctx, 12345)
	if err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	if !page.OK() || string(page.Body) != "<html>/12345</html>" {
		t.Fatalf("unexpected page %d %q", page.Status, page.Body)
	}
	if _, err := client.FetchRecentComments(ctx); err != nil {
		t.Fatalf("FetchRecentComments: %v", err)
	}
	if _, err := client.FetchMigratedComments(ctx); err != nil {
		t.Fatalf("FetchMigratedComments: %v", err)
	}

	missing, err := client.FetchPost(ctx, 404)
	if err != nil {
		t.Fatalf("non-2xx must not be an error: %v", err)
	}
	if missing.OK() || missing.Status != http.StatusNotFound {
		t.Fatalf("expected 404 page, got %d", missing.Status)
	}

	mu.Lock()
	defer mu.Unlock()
	wantPaths := []string{"/12345", "/comments", "/comments/", "/404"}
	for i, want := range wantPaths {
		if paths[i] != want {
			t.Fatalf("request %d: expected path %s, got %s", i, want, paths[i])
		}
		if agents[i] != "mirror-test/1.0" {
			t.Fatalf("request %d: unexpected user agent %q", i, agents[i])
		}
	}
}

func TestClientTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(Options{PrimaryURL: url, Timeout: time.Second}, nil)
	if _, err := client.FetchPost(context.Background(), 1); err == nil {
		t.Fatalf("expected transport error from closed server")
	}
}

func TestClientRateLimitHonorsContext(t *testing.T) {
	t.Parallel()

	client := NewClient(Options{PrimaryURL: "http://127.0.0.1:1", RequestsPerSecond: 0.001, Burst: 1}, nil)
	client.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.FetchPost(ctx, 1); err == nil {
		t.Fatalf("expected rate limiter to give up on cancelled context")
	}
}
