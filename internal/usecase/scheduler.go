package usecase

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ForumMirror/internal/infrastructure/scheduler"
	"ForumMirror/internal/scanner"
)

// Scheduler runs the pipeline loop and one loop per scan worker until the context ends.
type Scheduler struct {
	pipeline *Pipeline
	workers  []*scanner.Worker
	logger   *slog.Logger
}

// NewScheduler returns a runner for the recurring jobs; a nil pipeline runs only the scanners.
func NewScheduler(pipeline *Pipeline, workers []*scanner.Worker, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{pipeline: pipeline, workers: workers, logger: logger}
}

// Run blocks until ctx is cancelled and every loop has finished its current iteration.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.pipeline != nil {
		loop := scheduler.NewLoop("pipeline", s.pipeline.ErrorDelay(), s.logger)
		g.Go(func() error {
			return loop.Run(ctx, s.pipeline.Step)
		})
	}
	for _, worker := range s.workers {
		worker := worker
		loop := scheduler.NewLoop("scan."+worker.Name(), worker.SlowDelay(), s.logger)
		g.Go(func() error {
			return loop.Run(ctx, worker.Step)
		})
	}

	return g.Wait()
}
