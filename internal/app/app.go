package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"ForumMirror/internal/config"
	"ForumMirror/internal/domain"
	"ForumMirror/internal/infrastructure/dump"
	"ForumMirror/internal/infrastructure/parser"
	"ForumMirror/internal/infrastructure/pubsub"
	"ForumMirror/internal/infrastructure/site"
	"ForumMirror/internal/infrastructure/storage"
	"ForumMirror/internal/logging"
	"ForumMirror/internal/ports"
	"ForumMirror/internal/scanner"
	"ForumMirror/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.SQLStore
	source *site.Client

	redis       *redis.Client
	broadcaster *pubsub.RedisBroadcaster
}

// New opens the store. The broker is connected on first use.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	store.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	source := site.NewClient(site.Options{
		PrimaryURL:           cfg.Sites.Primary.BaseURL,
		PrimaryCommentsPath:  cfg.Sites.Primary.CommentsPath,
		MigratedURL:          cfg.Sites.Migrated.BaseURL,
		MigratedCommentsPath: cfg.Sites.Migrated.CommentsPath,
		UserAgent:            cfg.HTTP.UserAgent,
		Timeout:              cfg.HTTP.Timeout,
		RequestsPerSecond:    cfg.HTTP.RequestsPerSecond,
		Burst:                cfg.HTTP.Burst,
	}, nil)

	return &Application{cfg: cfg, logger: baseLogger, store: store, source: source}, nil
}

// Close releases the store and broker connections.
func (a *Application) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

// Run starts the pipeline and both scan workers and blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	pipeline, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	registry, err := a.registry(ctx)
	if err != nil {
		return err
	}
	return usecase.NewScheduler(pipeline, a.workers(registry, registry.Names()), a.logger.With("component", "scheduler")).Run(ctx)
}

// Scan runs only the named scan workers, or all of them when names is empty.
func (a *Application) Scan(ctx context.Context, names ...string) error {
	registry, err := a.registry(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		names = registry.Names()
	}
	for _, name := range names {
		if _, err := registry.Resolve(name); err != nil {
			return err
		}
	}
	return usecase.NewScheduler(nil, a.workers(registry, names), a.logger.With("component", "scheduler")).Run(ctx)
}

// RunPipeline runs only the post pipeline until ctx is cancelled.
func (a *Application) RunPipeline(ctx context.Context) error {
	pipeline, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	return usecase.NewScheduler(pipeline, nil, a.logger.With("component", "scheduler")).Run(ctx)
}

// Fetch updates one post right away, pending or not.
func (a *Application) Fetch(ctx context.Context, postID int64) (usecase.Outcome, error) {
	pipeline, err := a.pipeline(ctx)
	if err != nil {
		return usecase.OutcomeIdle, err
	}
	return pipeline.UpdatePost(ctx, postID)
}

// Enqueue marks the posts in [start, end] pending for a bulk refetch.
func (a *Application) Enqueue(ctx context.Context, start, end int64) (int, error) {
	if start <= 0 || end < start {
		return 0, fmt.Errorf("invalid post range %d..%d", start, end)
	}
	ids := make([]int64, 0, end-start+1)
	for id := start; id <= end; id++ {
		ids = append(ids, id)
	}
	if err := a.store.Enqueue(ctx, ids, domain.PriorityDump); err != nil {
		return 0, err
	}
	a.logger.Info("posts enqueued", "from", start, "to", end, "count", len(ids))
	return len(ids), nil
}

// State reports the sync queue size.
func (a *Application) State(ctx context.Context) (domain.SyncStats, error) {
	return a.store.SyncStats(ctx)
}

// Listen prints every broadcast delta until ctx is cancelled.
func (a *Application) Listen(ctx context.Context, handle func(payload []byte)) error {
	broadcaster, err := a.broker(ctx)
	if err != nil {
		return err
	}
	return broadcaster.Listen(ctx, handle)
}

// Renormalize re-applies text normalization to stored comments.
func (a *Application) Renormalize(ctx context.Context) (int, error) {
	return usecase.Renormalize(ctx, a.store, a.logger.With("component", "renormalize"))
}

func (a *Application) broker(ctx context.Context) (*pubsub.RedisBroadcaster, error) {
	if a.broadcaster != nil {
		return a.broadcaster, nil
	}
	client, err := pubsub.Dial(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.broadcaster = pubsub.NewRedisBroadcaster(client, a.cfg.Redis.Channel, a.logger.With("component", "pubsub"))
	return a.broadcaster, nil
}

func (a *Application) publisher(ctx context.Context) (*usecase.UpdatePublisher, error) {
	broadcaster, err := a.broker(ctx)
	if err != nil {
		return nil, err
	}
	return usecase.NewUpdatePublisher(a.store, broadcaster, a.logger.With("component", "publisher")), nil
}

func (a *Application) pipeline(ctx context.Context) (*usecase.Pipeline, error) {
	publisher, err := a.publisher(ctx)
	if err != nil {
		return nil, err
	}
	var dumper ports.Dumper
	if a.cfg.Dump.Enabled {
		dumper = dump.NewDumper(a.cfg.Dump.Dir)
	}
	return usecase.NewPipeline(usecase.PipelineDeps{
		Source:       a.source,
		Store:        a.store,
		Publisher:    publisher,
		Dumper:       dumper,
		Logger:       a.logger.With("component", "pipeline"),
		SuccessDelay: a.cfg.Pipeline.SuccessDelay,
		ErrorDelay:   a.cfg.Pipeline.ErrorDelay,
	}), nil
}

func (a *Application) registry(ctx context.Context) (*scanner.Registry, error) {
	publisher, err := a.publisher(ctx)
	if err != nil {
		return nil, err
	}
	registry := scanner.NewRegistry()
	registry.Register(usecase.NewPrimaryScanner(a.source, a.store, publisher,
		a.logger.With("component", "scanner.primary")))

	migrated := parser.NewMigratedParser(a.cfg.Sites.Primary.Host(), a.cfg.Sites.Migrated.Host())
	reconciler := usecase.NewReconciler(a.store, a.logger.With("component", "reconciler"))
	registry.Register(usecase.NewMigratedScanner(a.source, migrated, reconciler, publisher,
		a.logger.With("component", "scanner.migrated")))
	return registry, nil
}

func (a *Application) workers(registry *scanner.Registry, names []string) []*scanner.Worker {
	backoff := scanner.Backoff{
		Fast:  a.cfg.Scanner.FastDelay,
		Slow:  a.cfg.Scanner.SlowDelay,
		Steps: a.cfg.Scanner.FastSteps,
	}
	workers := make([]*scanner.Worker, 0, len(names))
	for _, name := range names {
		s, err := registry.Resolve(name)
		if err != nil {
			continue
		}
		workers = append(workers, scanner.NewWorker(s, backoff, a.logger.With("component", "worker")))
	}
	return workers
}
