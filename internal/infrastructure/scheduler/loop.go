package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// Job is one loop iteration. It returns how long to wait before the next one.
type Job func(ctx context.Context) time.Duration

// Loop runs a job over and over until its context is cancelled.
// Cancellation is observed only while waiting; a running iteration is allowed to finish.
type Loop struct {
	name       string
	panicDelay time.Duration
	logger     *slog.Logger
}

// NewLoop builds a loop; a panicking iteration is logged and followed by panicDelay.
func NewLoop(name string, panicDelay time.Duration, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{name: name, panicDelay: panicDelay, logger: logger}
}

// Run blocks until ctx is done and returns nil then.
func (l *Loop) Run(ctx context.Context, job Job) error {
	work := context.WithoutCancel(ctx)
	l.logger.Info("loop started", "loop", l.name)
	for ctx.Err() == nil {
		delay := l.runOnce(work, job)
		if !Sleep(ctx, delay) {
			break
		}
	}
	l.logger.Info("loop stopped", "loop", l.name)
	return nil
}

func (l *Loop) runOnce(ctx context.Context, job Job) (delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop iteration panicked", "loop", l.name, "panic", r, "stack", string(debug.Stack()))
			delay = l.panicDelay
		}
	}()
	return job(ctx)
}

// Sleep waits for d or until ctx is done. It reports whether the full delay elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
