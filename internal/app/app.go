// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/api"
	"github.com/JakeFAU/site-ingestor/internal/clock/system"
	"github.com/JakeFAU/site-ingestor/internal/config"
	"github.com/JakeFAU/site-ingestor/internal/crawler"
	"github.com/JakeFAU/site-ingestor/internal/dispatcher"
	"github.com/JakeFAU/site-ingestor/internal/extract"
	collyfetcher "github.com/JakeFAU/site-ingestor/internal/fetcher/colly"
	"github.com/JakeFAU/site-ingestor/internal/fetcher/headless"
	"github.com/JakeFAU/site-ingestor/internal/id/uuid"
	"github.com/JakeFAU/site-ingestor/internal/index"
	"github.com/JakeFAU/site-ingestor/internal/llm"
	"github.com/JakeFAU/site-ingestor/internal/pipeline"
	"github.com/JakeFAU/site-ingestor/internal/policy/ratelimit"
	"github.com/JakeFAU/site-ingestor/internal/profiler"
	memorypublisher "github.com/JakeFAU/site-ingestor/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/site-ingestor/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/site-ingestor/internal/queue/memory"
	"github.com/JakeFAU/site-ingestor/internal/storage"
	badgerstore "github.com/JakeFAU/site-ingestor/internal/storage/badger"
	"github.com/JakeFAU/site-ingestor/internal/storage/gcs"
	"github.com/JakeFAU/site-ingestor/internal/storage/local"
	"github.com/JakeFAU/site-ingestor/internal/storage/memory"
	"github.com/JakeFAU/site-ingestor/internal/storage/postgres"
	"github.com/JakeFAU/site-ingestor/internal/storage/sqlite"
)

// App holds the shared, long-lived services built from a Config.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Store        crawler.Store
	Cache        *index.Cache
	Orchestrator *pipeline.Orchestrator
	Queue        *queueMemory.Queue
	Dispatcher   *dispatcher.Dispatcher
	IDs          crawler.IDGenerator

	closers []func() error
}

// New builds every service named by cfg. On error, anything already opened
// is closed again.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, IDs: uuid.New()}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	var err error
	if a.Store, err = a.openStore(ctx); err != nil {
		return nil, err
	}
	sink, err := a.openArtifacts(ctx)
	if err != nil {
		return nil, err
	}
	durable, err := a.openDurableTier(ctx)
	if err != nil {
		return nil, err
	}

	llmCfg := llm.Config{
		Provider:       cfg.LLM.Provider,
		Host:           cfg.LLM.Host,
		Token:          cfg.LLM.Token,
		ChatModel:      cfg.LLM.ChatModel,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
	}
	embedder, err := llm.NewEmbedder(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	answerer, err := llm.NewAnswerGenerator(llmCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init answer generator: %w", err)
	}
	a.Cache, err = index.New(index.Config{
		ChunkSize:      cfg.Index.ChunkSize,
		ChunkOverlap:   cfg.Index.ChunkOverlap,
		TopK:           cfg.Index.TopK,
		EmbedBatchSize: cfg.Index.EmbedBatchSize,
		PoolSize:       cfg.Index.PoolSize,
		Model:          cfg.LLM.EmbeddingModel,
	}, durable, a.Store, embedder, answerer, logger)
	if err != nil {
		return nil, fmt.Errorf("init index cache: %w", err)
	}
	a.closers = append(a.closers, func() error { a.Cache.Close(); return nil })

	static := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.Crawler.RespectRobots,
		Timeout:       cfg.RequestTimeout(),
	})
	dynamic, err := a.dynamicFetcher()
	if err != nil {
		return nil, err
	}
	publisher, err := a.openPublisher(ctx)
	if err != nil {
		return nil, err
	}

	a.Orchestrator, err = pipeline.New(pipeline.Deps{
		Store:    a.Store,
		Profiler: profiler.Default(static, cfg.ProfilerTimeout(), logger),
		Crawler: crawler.NewScheduler(extract.Extractor{}, crawler.SchedulerConfig{
			MaxPages:    cfg.Crawler.MaxPages,
			MaxFrontier: cfg.Crawler.MaxFrontier,
			Pacer: ratelimit.New(ratelimit.Config{
				RPS:   cfg.Crawler.RequestsPerSecond,
				Burst: cfg.Crawler.Burst,
			}),
		}, logger),
		Static:    static,
		Dynamic:   dynamic,
		Sink:      sink,
		Indexer:   a.Cache,
		Publisher: publisher,
		Clock:     system.New(),
	}, pipeline.Config{Topic: cfg.Events.Topic}, logger)
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	a.Queue = queueMemory.NewQueue(cfg.Dispatch.QueueDepth)
	a.closers = append(a.closers, func() error { a.Queue.Close(); return nil })
	a.Dispatcher = dispatcher.New(a.Queue, a.Orchestrator, cfg.Dispatch.Workers, logger)

	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("artifacts", cfg.Artifacts.Provider),
		zap.String("index", cfg.Index.Durable),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("events", cfg.Events.Provider),
	)
	ready = true
	return a, nil
}

// Server builds the HTTP API over the app's services.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Store, a.Dispatcher, a.Cache, a.IDs, a.Config, a.Logger)
}

// NewJob assigns fresh doc and session IDs to seed.
func (a *App) NewJob(seed string) (pipeline.Job, error) {
	docID, err := a.IDs.NewID()
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("generate doc id: %w", err)
	}
	sessionID, err := a.IDs.NewID()
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("generate session id: %w", err)
	}
	return pipeline.Job{SeedURL: seed, DocID: docID, SessionID: sessionID}, nil
}

func (a *App) openStore(ctx context.Context) (crawler.Store, error) {
	cfg := a.Config.Storage
	switch cfg.Provider {
	case "memory":
		return memory.NewStore(), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.DSN,
			MaxConns:        cfg.MaxConns,
			MaxConnLifetime: time.Hour,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate postgres store: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLiteDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.Logger.Info("using sqlite store", zap.String("path", store.Path()))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func (a *App) openArtifacts(ctx context.Context) (crawler.ArtifactSink, error) {
	cfg := a.Config.Artifacts
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "local":
		sink, err := local.New(local.Config{BaseDir: cfg.Dir})
		if err != nil {
			return nil, fmt.Errorf("open local artifacts: %w", err)
		}
		return sink, nil
	case "gcs":
		sink, err := gcs.Dial(ctx, gcs.Config{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
		if err != nil {
			return nil, fmt.Errorf("open gcs artifacts: %w", err)
		}
		a.closers = append(a.closers, sink.Close)
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown artifacts provider: %s", cfg.Provider)
	}
}

func (a *App) openDurableTier(ctx context.Context) (index.DurableTier, error) {
	cfg := a.Config.Index
	var store storage.ObjectStore
	prefix := ""
	switch cfg.Durable {
	case "memory":
		store = memory.NewBlobStore()
	case "local":
		blobs, err := local.New(local.Config{BaseDir: cfg.Dir})
		if err != nil {
			return nil, fmt.Errorf("open local index tier: %w", err)
		}
		store = blobs
	case "badger":
		db, err := badgerstore.Open(badgerstore.Config{Dir: cfg.Dir}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("open badger index tier: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		store, prefix = db, "index/"
	case "gcs":
		objects, err := gcs.Dial(ctx, gcs.Config{Bucket: a.Config.Artifacts.Bucket, Prefix: "index/"})
		if err != nil {
			return nil, fmt.Errorf("open gcs index tier: %w", err)
		}
		a.closers = append(a.closers, objects.Close)
		store = objects
	default:
		return nil, fmt.Errorf("unknown index tier: %s", cfg.Durable)
	}
	return index.NewObjectTier(store, prefix), nil
}

func (a *App) dynamicFetcher() (crawler.Fetcher, error) {
	cfg := a.Config
	if !cfg.Headless.Enabled {
		a.Logger.Info("headless fetcher disabled; dynamic sites fall back to static fetch")
		return headless.NewNoop(), nil
	}
	f, err := headless.NewChromedp(headless.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.Crawler.UserAgent,
		NavigationTimeout: cfg.NavTimeout(),
		SettleDelay:       cfg.SettleDelay(),
		ExecPath:          cfg.Headless.ExecPath,
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("init headless fetcher: %w", err)
	}
	return f, nil
}

func (a *App) openPublisher(ctx context.Context) (crawler.Publisher, error) {
	cfg := a.Config.Events
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "memory":
		return memorypublisher.New(), nil
	case "pubsub":
		p, err := pubsubpublisher.Dial(ctx, cfg.ProjectID, cfg.Topic)
		if err != nil {
			return nil, fmt.Errorf("open pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events provider: %s", cfg.Provider)
	}
}

// Close shuts down services in reverse order of creation.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("error closing application services", zap.Error(err))
	}
}
