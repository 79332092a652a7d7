package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"codeintel/internal/api"
	"codeintel/internal/cache"
	"codeintel/internal/config"
	"codeintel/internal/credentials"
	"codeintel/internal/jobs"
	"codeintel/internal/llm"
	"codeintel/internal/logging"
	"codeintel/internal/retrieval"
	"codeintel/internal/storage"
	codeintelsync "codeintel/internal/sync"
	"codeintel/internal/telemetry"
)

const (
	embedCacheCapacity = cache.EmbeddingCapacity
	embedCacheTTL      = time.Hour
)

// services bundles every long-lived dependency a cobra command needs, built
// once per process the way the teacher's engine_helper.go lazily builds a
// shared query.Engine.
type services struct {
	Config      *config.Config
	Logger      *logging.Logger
	DB          *storage.DB
	Cache       *storage.Cache
	Credentials *credentials.Pool
	LLM         *llm.Client
	Sync        *codeintelsync.Service
	Counters    *telemetry.Counters
	Collector   *telemetry.Collector
	InterLog    *telemetry.InteractionLog
	Trace       *telemetry.Trace
	JobsStore   *jobs.Store
	Jobs        *jobs.Runner
	Registry    *api.Registry
}

var (
	servicesOnce sync.Once
	sharedSvc    *services
	servicesErr  error
)

// getServices lazily builds the shared services bundle for repoRoot.
func getServices(repoRoot string, logger *logging.Logger) (*services, error) {
	servicesOnce.Do(func() {
		sharedSvc, servicesErr = buildServices(repoRoot, logger)
	})
	return sharedSvc, servicesErr
}

// mustGetServices returns the shared services bundle or exits on error.
func mustGetServices(repoRoot string, logger *logging.Logger) *services {
	svc, err := getServices(repoRoot, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing services: %v\n", err)
		os.Exit(1)
	}
	return svc
}

func buildServices(repoRoot string, logger *logging.Logger) (*services, error) {
	cfg, err := config.LoadConfig(repoRoot)
	if err != nil {
		logger.Warn("failed to load config, using defaults", map[string]interface{}{"error": err.Error()})
		cfg = config.DefaultConfig()
	}

	db, err := storage.Open(repoRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	credPath, found := credentials.LocateFile(repoRoot, cfg.Credentials.FileName)
	if !found {
		return nil, fmt.Errorf("credentials file %q not found in %s or its parents", cfg.Credentials.FileName, repoRoot)
	}
	pool, err := credentials.Load(credPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	embedCache := cache.New[[]float32](embedCacheCapacity, embedCacheTTL)
	counters := telemetry.NewCounters()
	llmClient := llm.New(pool, embedCache, counters, logger)
	syncService := codeintelsync.NewService(llmClient, logger)

	storageCache := storage.NewCache(db)
	interLog := telemetry.NewInteractionLog()
	trace := telemetry.NewTrace()

	collector, err := telemetry.NewCollector(counters, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Warn("failed to start telemetry collector", map[string]interface{}{"error": err.Error()})
		collector = nil
	} else {
		go collector.Run(context.Background())
	}

	jobsStore := jobs.NewStore(db)
	runner := jobs.NewRunner(jobsStore, logger, jobs.RunnerConfig{WorkerCount: cfg.Jobs.WorkerCount, QueueSize: cfg.Jobs.QueueDepth})

	dataRoot := filepath.Join(repoRoot, ".codeintel", "projects")
	registry := api.NewRegistry(dataRoot, scanCounterAdapter{counters}, pool.SerperKey())

	return &services{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		Cache:       storageCache,
		Credentials: pool,
		LLM:         llmClient,
		Sync:        syncService,
		Counters:    counters,
		Collector:   collector,
		InterLog:    interLog,
		Trace:       trace,
		JobsStore:   jobsStore,
		Jobs:        runner,
		Registry:    registry,
	}, nil
}

// scanCounterAdapter satisfies retrieval.ScanCounter against the shared
// telemetry.Counters without exposing the whole Counters type to internal/api.
type scanCounterAdapter struct {
	counters *telemetry.Counters
}

func (a scanCounterAdapter) AddGraphNodesScanned(n int64) {
	a.counters.AddGraphNodesScanned(n)
}

var _ retrieval.ScanCounter = scanCounterAdapter{}

func mustGetRepoRoot() string {
	repoRoot, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return repoRoot
}
