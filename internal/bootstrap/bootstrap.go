package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/study-assistant/internal/config"
	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
	"github.com/kirillkom/study-assistant/internal/core/usecase"
	"github.com/kirillkom/study-assistant/internal/infrastructure/cache/memory"
	"github.com/kirillkom/study-assistant/internal/infrastructure/cache/redis"
	"github.com/kirillkom/study-assistant/internal/infrastructure/engine"
	"github.com/kirillkom/study-assistant/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/study-assistant/internal/infrastructure/extractor/ocr"
	"github.com/kirillkom/study-assistant/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/study-assistant/internal/infrastructure/library/jsonfile"
	"github.com/kirillkom/study-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/study-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/study-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/study-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/study-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/study-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/study-assistant/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue       *usecase.UploadQueueUseCase
	Handoffs    *usecase.HandoffDispatcher
	Files       ports.FileReader
	HTTPMetrics *metrics.HTTPServerMetrics

	closers []func()
}

// New wires the ingestion pipeline for cmd/api. Optional collaborators
// (remote store, events, AI analysis) are only built when enabled.
func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	pipelineMetrics := metrics.NewPipelineMetrics(service, httpMetrics.Registerer())
	app.HTTPMetrics = httpMetrics

	policy := resiliencePolicy(cfg)
	policy.OnStateChange = pipelineMetrics.ObserveBreakerState
	policy.Logger = logger
	executor := resilience.NewExecutor(policy)
	logger.Debug("resilience_policy", "policy", policy)

	cache, err := newSessionCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer, isCloser := cache.(interface{ Close() error }); isCloser {
		app.closers = append(app.closers, func() { _ = closer.Close() })
	}

	library, err := jsonfile.NewStore(cfg.LibraryPath)
	if err != nil {
		return nil, fmt.Errorf("init library store: %w", err)
	}

	deps := usecase.HandoffDependencies{
		Cache:   cache,
		Library: library,
		Metrics: pipelineMetrics,
		Logger:  logger,
	}

	if cfg.RemoteStoreEnabled {
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		repo, closeDB, err := openFileRepository(ctx, cfg, executor)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, closeDB)
		deps.Storage = storage
		deps.Records = repo
		app.Files = repo
	}

	if cfg.AIEnabled {
		generator, err := newStudyPackGenerator(cfg, executor)
		if err != nil {
			return nil, err
		}
		deps.Generator = generator
	}

	loader := engine.NewLoader(map[domain.EngineKind]engine.Factory{
		domain.EnginePDF:  pdf.LoadEngine,
		domain.EngineDOCX: docx.LoadEngine,
		domain.EngineOCR: ocr.NewEngineFactory(ocr.Config{
			Binary:      cfg.OCRBinary,
			Language:    cfg.OCRLanguage,
			PageSegMode: cfg.OCRPageSegMode,
		}),
	}, engine.WithObserver(pipelineMetrics.ObserveEngineLoad), engine.WithLogger(logger))

	orchestrator := usecase.NewExtractionOrchestrator(
		loader,
		pdf.NewExtractor(),
		ocr.NewExtractor(logger),
		docx.NewExtractor(),
	)

	store := usecase.NewItemStore()
	notices := usecase.NewNoticeBoard(store, logger)
	deps.Notifier = notices
	handoffs := usecase.NewHandoffDispatcher(usecase.HandoffConfig{
		SummaryChars:  cfg.SummaryChars,
		QuestionCount: cfg.AIQuestionCount,
		Timeout:       cfg.HandoffTimeout,
	}, deps)

	queueOpts := []usecase.QueueOption{
		usecase.WithQueueMetrics(pipelineMetrics),
		usecase.WithQueueLogger(logger),
	}
	if cfg.EventsEnabled {
		publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		app.closers = append(app.closers, publisher.Close)
		queueOpts = append(queueOpts, usecase.WithEventPublisher(publisher))
	}

	app.Handoffs = handoffs
	app.Queue = usecase.NewUploadQueueUseCase(store, orchestrator, cache, handoffs, notices, queueOpts...)

	logger.Info("pipeline_ready",
		"cache_backend", cfg.CacheBackend,
		"remote_store", cfg.RemoteStoreEnabled,
		"events", cfg.EventsEnabled,
		"ai", cfg.AIEnabled,
		"ai_provider", cfg.AIProvider,
	)
	ok = true
	return app, nil
}

// NewFileReader opens the remote file store for read-only consumers such as cmd/mcp.
func NewFileReader(ctx context.Context, cfg config.Config) (ports.FileReader, func(), error) {
	return openFileRepository(ctx, cfg, resilience.NewExecutor(resiliencePolicy(cfg)))
}

func resiliencePolicy(cfg config.Config) resilience.Config {
	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = cfg.HandoffAttempts
	policy.BreakerMinRequests = uint32(max(cfg.BreakerMinRequests, 0))
	policy.BreakerFailureRatio = cfg.BreakerFailureRatio
	policy.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return policy
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newSessionCache(ctx context.Context, cfg config.Config) (ports.SessionCache, error) {
	switch cfg.CacheBackend {
	case "redis":
		cache, err := redis.New(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		return cache, nil
	default:
		return memory.New(), nil
	}
}

func openFileRepository(ctx context.Context, cfg config.Config, executor *resilience.Executor) (*postgres.FileRepository, func(), error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewFileRepository(db, postgres.WithExecutor(executor))
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, func() { _ = db.Close() }, nil
}

func newStudyPackGenerator(cfg config.Config, executor *resilience.Executor) (ports.StudyPackGenerator, error) {
	switch cfg.AIProvider {
	case "openai":
		generator, err := openai.NewStudyPackGenerator(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, executor)
		if err != nil {
			return nil, fmt.Errorf("init openai generator: %w", err)
		}
		return generator, nil
	default:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.WithExecutor(executor))
		return ollama.NewStudyPackGenerator(client), nil
	}
}
