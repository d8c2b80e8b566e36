package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"organized-data/internal/config"
	"organized-data/internal/db"
	"organized-data/internal/extraction"
	"organized-data/internal/jsonextract"
	"organized-data/internal/llmservice"
	"organized-data/internal/parser"
)

// app holds everything a command needs, built from the config file.
type app struct {
	cfg      *config.Config
	metrics  *prometheus.Registry
	cache    *llmservice.RedisCache
	store    *db.Store
	registry *llmservice.Registry
	service  *jsonextract.Service
	fetcher  *parser.Fetcher
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("error loading config %s: %w", opts.Config, err)
	}
	configureLogger(cfg.Log)
	return cfg, nil
}

func configureLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.Console {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		metrics: prometheus.NewRegistry(),
		fetcher: parser.NewFetcher(parser.WithMaxSize(cfg.PDF.MaxSizeBytes)),
	}
	a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	shared := []llmservice.BackendOption{
		llmservice.WithMetrics(llmservice.NewMetrics(a.metrics)),
	}
	if cfg.Cache.RedisAddr != "" {
		a.cache = llmservice.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL)
		if err := a.cache.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Redis not reachable, responses will not be cached")
			_ = a.cache.Close()
			a.cache = nil
		} else {
			shared = append(shared, llmservice.WithCache(a.cache))
		}
	}

	registry, err := llmservice.NewRegistryFromConfig(cfg.LLMs, shared...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("error building models: %w", err)
	}
	a.registry = registry

	orchOpts := []extraction.Option{extraction.WithChunking(cfg.Refine.ChunkSize, cfg.Refine.ChunkOverlap)}
	if cfg.Database.DSN != "" {
		store, err := openStore(ctx, cfg.Database)
		if err != nil {
			a.close()
			return nil, err
		}
		a.store = store
		orchOpts = append(orchOpts, extraction.WithRecorder(store))
	}

	a.service = jsonextract.NewService(extraction.New(registry, orchOpts...))
	log.Debug().Strs("models", registry.Models()).Bool("cache", a.cache != nil).Bool("store", a.store != nil).Msg("Application ready")
	return a, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*db.Store, error) {
	sqldb, err := db.ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	bunDB := db.NewDB(sqldb, cfg.Debug)

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.InitDB(initCtx, bunDB); err != nil {
		_ = bunDB.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	return db.NewStore(bunDB), nil
}

func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing redis")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing database")
		}
	}
}
