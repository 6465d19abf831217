package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/article-agent/internal/catalog"
	"github.com/jonathan/article-agent/internal/config"
	"github.com/jonathan/article-agent/internal/curation"
	"github.com/jonathan/article-agent/internal/db"
	"github.com/jonathan/article-agent/internal/fetch"
	"github.com/jonathan/article-agent/internal/llm"
	"github.com/jonathan/article-agent/internal/logging"
	"github.com/jonathan/article-agent/internal/pipeline/steps"
	"github.com/jonathan/article-agent/internal/research"
	"github.com/jonathan/article-agent/internal/retrieval"
	"github.com/jonathan/article-agent/internal/store"
	"github.com/jonathan/article-agent/internal/style"
	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/vocab"
	"github.com/jonathan/article-agent/internal/workflow"
)

const browserTimeout = 45 * time.Second

// catalogStore is what the wiring needs from the catalog backend: the
// catalog itself plus material search.
type catalogStore interface {
	catalog.Store
	retrieval.VectorSearcher
	retrieval.KeywordSearcher
}

// app holds the wired collaborators for one command invocation.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	database   *db.DB
	controller *workflow.Controller
	catalog    *catalog.Service
	closers    []func() error
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if backend != "" {
		cfg.Store.Backend = backend
	}
	if databaseURL != "" {
		cfg.Store.DatabaseURL = databaseURL
		if backend == "" {
			cfg.Store.Backend = config.BackendPostgres
		}
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires the controller and catalog for the configured backend.
// Channels and assets from the config are seeded into non-Postgres catalogs;
// Postgres catalogs are seeded with "channel seed".
func newApp(ctx context.Context) (*app, error) {
	return openApp(ctx, true)
}

func openApp(ctx context.Context, autoSeed bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, closeLog := logging.Setup(cfg.Logging.File, cfg.LogLevel())
	a := &app{cfg: cfg, logger: logger, closers: []func() error{closeLog}}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if autoSeed && cfg.Store.Backend != config.BackendPostgres {
		if _, err := a.seed(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	tasks, cat, err := a.openStores(ctx)
	if err != nil {
		return err
	}

	llmCfg, err := cfg.LLMSettings()
	if err != nil {
		return err
	}
	gen, err := llm.NewGenerator(ctx, llmCfg, cfg.LLM.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.closers = append(a.closers, gen.Close)

	var embedder retrieval.Embedder
	if ecfg, ok := cfg.EmbedderSettings(); ok {
		emb, err := retrieval.NewEmbedder(ecfg)
		if err != nil {
			logger.Warn("embedder unavailable, retrieval falls back to keywords", "error", err)
		} else {
			embedder = emb
		}
	}

	searcher, err := newSearcher(ctx, cfg)
	if err != nil {
		return err
	}
	blocked, err := newBlockedSource(cfg, cat, logger)
	if err != nil {
		return err
	}

	noise, err := curation.CompileNoise(cfg.Curation.NoisePatterns)
	if err != nil {
		return err
	}
	curator := curation.NewCurator(cfg.Curation.Options, noise, curation.NewLLMSummarizer(gen), logger)
	retriever := retrieval.NewRetriever(embedder, cat, cat, logger)

	registry, err := steps.NewBuiltinRegistry(cfg.Workflow.CheckpointSteps, steps.Deps{
		Generator: gen,
		Searcher:  searcher,
		Research:  cfg.Research.Options,
		Samples:   cat,
		Blocked:   blocked,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	a.controller, err = workflow.NewController(workflow.Options{
		Store:        tasks,
		Channels:     cat,
		Registry:     registry,
		Resolver:     style.NewResolver(cat, logger),
		Materials:    workflow.NewRetrievalGatherer(retriever, curator, cfg.Curation.RetrievalK),
		Retry:        cfg.Workflow.Retry,
		Logger:       logger,
		PollInterval: cfg.Workflow.PollInterval,
	})
	if err != nil {
		return err
	}

	a.catalog, err = catalog.NewService(catalog.Options{
		Store:    cat,
		Analyzer: style.NewAnalyzer(gen, logger),
		Extractor: fetch.NewExtractor(fetch.ExtractorOptions{
			Render: fetch.Browser(browserTimeout, logger),
			Logger: logger,
		}),
		Embedder: embedder,
		Logger:   logger,
	})
	return err
}

// openStores opens the task store and the catalog backend.
func (a *app) openStores(ctx context.Context) (workflow.TaskStore, catalogStore, error) {
	cfg := a.cfg
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		database, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		a.database = database
		a.closers = append(a.closers, func() error { database.Close(); return nil })
		return db.NewTaskStore(database), database, nil

	case config.BackendSQLite:
		sqlDB, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, sqlDB.Close)
		tasks, err := store.NewSQLite(sqlDB)
		if err != nil {
			return nil, nil, err
		}
		return tasks, store.NewMemory(), nil

	default:
		mem := store.NewMemory()
		return mem, mem, nil
	}
}

func newSearcher(ctx context.Context, cfg *config.Config) (research.Searcher, error) {
	switch cfg.Research.Provider {
	case config.ResearchTavily:
		return research.NewTavilyClient(cfg.Research.TavilyAPIKey), nil
	case config.ResearchGoogle:
		g, err := research.NewGoogleSearcher(ctx, cfg.Research.GoogleAPIKey, cfg.Research.GoogleCX)
		if err != nil {
			return nil, fmt.Errorf("failed to create google searcher: %w", err)
		}
		return g, nil
	default:
		return nil, nil
	}
}

// newBlockedSource returns the blocked phrase source. A configured file is
// loaded once; otherwise the brand asset is read on every execution.
func newBlockedSource(cfg *config.Config, assets vocab.AssetGetter, logger *slog.Logger) (vocab.Source, error) {
	if cfg.Vocab.File != "" {
		list, err := vocab.LoadFile(cfg.Vocab.File)
		if err != nil {
			return nil, err
		}
		return vocab.Static(list), nil
	}
	return &vocab.AssetSource{Assets: assets, Key: cfg.Vocab.AssetKey, Logger: logger}, nil
}

// seed creates the channels and brand assets declared in the config.
func (a *app) seed(ctx context.Context) (int, error) {
	channels := make([]*types.Channel, 0, len(a.cfg.Channels))
	for _, s := range a.cfg.Channels {
		channels = append(channels, s.Channel())
	}
	created, err := a.catalog.SeedChannels(ctx, channels)
	if err != nil {
		return created, err
	}

	assets := make([]*types.BrandAsset, 0, len(a.cfg.Assets))
	for _, s := range a.cfg.Assets {
		asset, err := s.Asset()
		if err != nil {
			return created, err
		}
		assets = append(assets, asset)
	}
	return created, a.catalog.SeedAssets(ctx, assets)
}

// stepName labels a step with its registry name.
func (a *app) stepName(step int) string {
	if def, ok := a.controller.Registry().Definition(step); ok {
		return def.Name
	}
	return fmt.Sprintf("step %d", step)
}

// Close releases everything opened by newApp, last opened first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
