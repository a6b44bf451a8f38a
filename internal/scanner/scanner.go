package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Scanner polls one recent-comments feed once and reports whether anything new was seen.
type Scanner interface {
	Name() string
	Scan(ctx context.Context) (bool, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered scanners in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Backoff picks the delay between scans: fast for a while after activity, slow otherwise.
type Backoff struct {
	Fast  time.Duration
	Slow  time.Duration
	Steps int

	remaining int
}

// Next returns the delay following a scan that did or did not find something new.
func (b *Backoff) Next(found bool) time.Duration {
	if found {
		b.remaining = b.Steps
	}
	if b.remaining > 0 {
		b.remaining--
		return b.Fast
	}
	return b.Slow
}

// Reset drops any pending fast steps.
func (b *Backoff) Reset() {
	b.remaining = 0
}

// Worker drives a scanner with adaptive backoff.
type Worker struct {
	scanner Scanner
	backoff Backoff
	logger  *slog.Logger
}

// NewWorker binds a scanner to its backoff policy.
func NewWorker(scanner Scanner, backoff Backoff, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{scanner: scanner, backoff: backoff, logger: logger.With("scanner", scanner.Name())}
}

// Name returns the wrapped scanner name.
func (w *Worker) Name() string {
	return w.scanner.Name()
}

// SlowDelay is the delay used when nothing is happening.
func (w *Worker) SlowDelay() time.Duration {
	return w.backoff.Slow
}

// Step runs one scan and returns the delay before the next.
func (w *Worker) Step(ctx context.Context) time.Duration {
	found, err := w.scanner.Scan(ctx)
	if err != nil {
		w.logger.Error("scan failed", "error", err)
		w.backoff.Reset()
		return w.backoff.Next(false)
	}
	delay := w.backoff.Next(found)
	w.logger.Debug("scan finished", "found", found, "next", delay)
	return delay
}
