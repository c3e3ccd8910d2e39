// Package app assembles the insights engine and its adapters from configuration.
// The HTTP server and the CLI share it so both run on identical wiring.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sitelens/backend/config"
	"github.com/sitelens/backend/internal/domain"
	"github.com/sitelens/backend/internal/infrastructure/cache"
	"github.com/sitelens/backend/internal/infrastructure/dataset"
	"github.com/sitelens/backend/internal/infrastructure/metrics"
	"github.com/sitelens/backend/internal/infrastructure/textgen"
	"github.com/sitelens/backend/internal/usecase"
)

// App holds the assembled service and the resources that must be released on shutdown
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Service *usecase.InsightsService

	closers []func() error
}

// New builds every component named by cfg.
// m may be nil when metrics are not exported (CLI runs).
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: m}

	var recorder usecase.MetricsRecorder
	if m != nil {
		recorder = m
	}

	demand, err := usecase.NewDemandModel(CategoryProfiles(cfg.Categories))
	if err != nil {
		return nil, fmt.Errorf("demand model: %w", err)
	}

	scoring, err := usecase.NewScoringEngine(demand, usecase.ScoringConfig{
		Weights: usecase.ScoreWeights{
			Demand:        cfg.Scoring.Weights.Demand,
			Affordability: cfg.Scoring.Weights.Affordability,
			Demographic:   cfg.Scoring.Weights.Demographic,
		},
		CostPerRentPoint: cfg.Scoring.CostPerRentPoint,
	})
	if err != nil {
		return nil, fmt.Errorf("scoring engine: %w", err)
	}

	ds, closeDataset, err := OpenDataset(ctx, cfg, logger.Named("dataset"))
	if err != nil {
		return nil, err
	}
	a.addCloser(closeDataset)

	cacheRepo, closeCache, err := OpenCache(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.addCloser(closeCache)

	var generator domain.TextGenerator
	if cfg.TextGen.Enabled {
		client := textgen.NewClient(textgen.Config{
			BaseURL:           cfg.TextGen.BaseURL,
			APIKey:            cfg.TextGen.APIKey,
			Model:             cfg.TextGen.Model,
			Timeout:           cfg.TextGen.Timeout,
			MaxTokens:         cfg.TextGen.MaxTokens,
			Temperature:       cfg.TextGen.Temperature,
			RequestsPerSecond: cfg.TextGen.RequestsPerSecond,
			Burst:             cfg.TextGen.Burst,
			MaxRetries:        cfg.TextGen.MaxRetries,
		}, logger.Named("textgen"))
		if cfg.Server.Environment == "development" {
			client.SetDebug(true)
		}
		generator = client
		logger.Info("narrative enrichment enabled",
			zap.String("base_url", cfg.TextGen.BaseURL),
			zap.String("model", cfg.TextGen.Model))
	}

	narrative := usecase.NewNarrativeComposer(
		generator,
		usecase.NarrativeConfig{Timeout: cfg.TextGen.Timeout},
		logger.Named("narrative"),
		recorder,
	)

	a.Service = usecase.NewInsightsService(
		ds,
		cacheRepo,
		scoring,
		narrative,
		usecase.InsightsServiceConfig{
			CacheTTL:           cfg.Cache.TTL,
			ScoringConcurrency: cfg.Scoring.Concurrency,
			FetchTimeout:       cfg.Dataset.FetchTimeout,
		},
		logger.Named("insights"),
		recorder,
	)

	logger.Info("insights engine ready",
		zap.String("dataset", cfg.Dataset.Type),
		zap.String("cache", cfg.Cache.Type),
		zap.Duration("cache_ttl", cfg.Cache.TTL),
		zap.Int("categories", len(demand.Categories())))

	return a, nil
}

// Close releases adapters in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) addCloser(fn func() error) {
	if fn != nil {
		a.closers = append(a.closers, fn)
	}
}

// CategoryProfiles merges configured category overrides onto the built-in profiles
func CategoryProfiles(overrides map[string]config.CategoryConfig) map[domain.Category]usecase.CategoryProfile {
	profiles := make(map[domain.Category]usecase.CategoryProfile, len(usecase.DefaultCategoryProfiles)+len(overrides))
	for category, profile := range usecase.DefaultCategoryProfiles {
		profiles[category] = profile
	}
	for name, c := range overrides {
		profiles[usecase.NormalizeCategory(domain.Category(name))] = usecase.CategoryProfile{
			FootTraffic:              c.FootTraffic,
			Competition:              c.Competition,
			RentAffordability:        c.RentAffordability,
			CompetitorHalfSaturation: c.CompetitorHalfSaturation,
		}
	}
	return profiles
}

// OpenDataset connects the configured location dataset.
// The returned close function may be nil.
func OpenDataset(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.LocationDataset, func() error, error) {
	switch cfg.Dataset.Type {
	case config.DatasetFile:
		ds, err := dataset.NewFileDataset(cfg.Dataset.FilePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("file dataset %s: %w", cfg.Dataset.FilePath, err)
		}
		return ds, nil, nil

	case config.DatasetElasticsearch:
		ds, err := newElasticsearch(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return ds, nil, nil

	case config.DatasetPostgres:
		ds, err := newPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return ds, ds.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported dataset type %q", cfg.Dataset.Type)
	}
}

// OpenCache builds the configured cache. The returned close function is never nil.
func OpenCache(ctx context.Context, cfg *config.Config) (domain.CacheRepository, func() error, error) {
	if cfg.Cache.Type == config.CacheRedis {
		client, err := cache.Connect(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		rc := cache.NewRedisCache(client, cache.DefaultKeyPrefix)
		return rc, rc.Close, nil
	}

	mc := cache.NewMemoryCacheWithCleanup(cache.DefaultCleanupInterval)
	return mc, mc.Close, nil
}

// Seed loads the location fixture at path into the configured dataset backend
// and returns the number of locations written.
func Seed(ctx context.Context, cfg *config.Config, path string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fixture, err := dataset.NewFileDataset(path, logger)
	if err != nil {
		return 0, fmt.Errorf("read fixture: %w", err)
	}
	locations := fixture.All()

	switch cfg.Dataset.Type {
	case config.DatasetElasticsearch:
		es, err := newElasticsearch(cfg, logger)
		if err != nil {
			return 0, err
		}
		if err := es.EnsureIndex(ctx); err != nil {
			return 0, err
		}
		if err := es.IndexLocations(ctx, locations); err != nil {
			return 0, err
		}

	case config.DatasetPostgres:
		pg, err := newPostgres(ctx, cfg, logger)
		if err != nil {
			return 0, err
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return 0, err
		}
		if err := pg.UpsertLocations(ctx, locations); err != nil {
			return 0, err
		}

	default:
		return 0, fmt.Errorf("dataset type %q cannot be seeded", cfg.Dataset.Type)
	}

	logger.Info("seeded locations", zap.String("dataset", cfg.Dataset.Type), zap.Int("locations", len(locations)))
	return len(locations), nil
}

func newElasticsearch(cfg *config.Config, logger *zap.Logger) (*dataset.ElasticsearchDataset, error) {
	es, err := dataset.NewElasticsearchDataset(dataset.ElasticsearchConfig{
		Addresses:    cfg.Dataset.Elasticsearch.Addresses,
		Username:     cfg.Dataset.Elasticsearch.Username,
		Password:     cfg.Dataset.Elasticsearch.Password,
		Index:        cfg.Dataset.Elasticsearch.Index,
		FetchTimeout: cfg.Dataset.FetchTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch dataset: %w", err)
	}
	return es, nil
}

func newPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dataset.PostgresDataset, error) {
	db, err := dataset.OpenPostgres(ctx, cfg.Dataset.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres dataset: %w", err)
	}
	return dataset.NewPostgresDataset(db, cfg.Dataset.FetchTimeout, logger), nil
}
