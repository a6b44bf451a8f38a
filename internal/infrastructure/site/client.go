package site

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ForumMirror/internal/ports"
)

const maxBodySize = 32 << 20

// Options configures the HTTP client shared by all loops.
type Options struct {
	PrimaryURL           string
	PrimaryCommentsPath  string
	MigratedURL          string
	MigratedCommentsPath string
	UserAgent            string
	Timeout              time.Duration
	RequestsPerSecond    float64
	Burst                int
}

// Client fetches pages from both sites with a fixed user agent and timeout.
// Requests from every caller share one rate limiter.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	opts      Options
}

var _ ports.PageSource = (*Client)(nil)

// NewClient builds a client; a nil httpClient gets one with opts.Timeout.
func NewClient(opts Options, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		http:      httpClient,
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: opts.UserAgent,
		opts:      opts,
	}
}

// FetchPost downloads the page of a single post from the primary site.
func (c *Client) FetchPost(ctx context.Context, postID int64) (ports.Page, error) {
	return c.Get(ctx, joinURL(c.opts.PrimaryURL, strconv.FormatInt(postID, 10)))
}

// FetchRecentComments downloads the primary site's recent comments page.
func (c *Client) FetchRecentComments(ctx context.Context) (ports.Page, error) {
	return c.Get(ctx, joinURL(c.opts.PrimaryURL, c.opts.PrimaryCommentsPath))
}

// FetchMigratedComments downloads the migrated site's recent comments page.
func (c *Client) FetchMigratedComments(ctx context.Context) (ports.Page, error) {
	return c.Get(ctx, joinURL(c.opts.MigratedURL, c.opts.MigratedCommentsPath))
}

// Get performs a GET request. Non-2xx responses are returned with their status, not as errors.
func (c *Client) Get(ctx context.Context, pageURL string) (ports.Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ports.Page{}, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ports.Page{}, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.Page{}, fmt.Errorf("request %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return ports.Page{}, fmt.Errorf("read %s: %w", pageURL, err)
	}
	return ports.Page{Status: resp.StatusCode, Body: body}, nil
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
