package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"document-extraction-platform/internal/ai"
	"document-extraction-platform/internal/config"
	"document-extraction-platform/internal/logger"
	"document-extraction-platform/internal/telemetry"
	"document-extraction-platform/routes"
	"document-extraction-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics unavailable, continuing without", "error", err)
	}

	provider, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiTier)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}
	defer provider.Close()

	cache, err := services.NewResultCache(services.ResultCacheConfig{
		Enabled:         cfg.CacheEnabled,
		DBPath:          cfg.CacheDBPath,
		TTLHours:        cfg.CacheTTLHours,
		MaxEntries:      cfg.CacheMaxEntries,
		HashAlgorithm:   cfg.CacheHashAlgorithm,
		MaxEntrySize:    cfg.CacheMaxEntrySize,
		CleanupInterval: time.Duration(cfg.CacheCleanupInterval) * time.Hour,
	}, metrics)
	if err != nil {
		log.Fatalf("Failed to open result cache: %v", err)
	}
	defer cache.Stop()
	if err := cache.Start(); err != nil {
		log.Fatalf("Failed to start cache sweeper: %v", err)
	}

	ledger, err := services.NewRunLedger(services.RunLedgerConfig{
		Enabled: cfg.LogsDBEnabled,
		DBPath:  cfg.LogsDBPath,
	})
	if err != nil {
		log.Fatalf("Failed to open run ledger: %v", err)
	}
	defer ledger.Close()

	lifecycle := services.NewFileLifecycle(services.FileLifecycleConfig{
		Strategy:        cfg.FileCleanupStrategy,
		MaxRetention:    time.Duration(cfg.MaxFileRetention) * time.Second,
		CleanupInterval: time.Duration(cfg.FileCleanupCheckInterval) * time.Second,
	})
	defer lifecycle.Stop()
	if err := lifecycle.Start(); err != nil {
		log.Fatalf("Failed to start file sweeper: %v", err)
	}

	registry := services.NewSchemaRegistry()
	expander := services.NewArchiveExpander(cfg.TempExtractDir, lifecycle)

	converterSet := services.NewConverterSet(
		services.NewPDFConverter(provider, cfg.DefaultModel, services.PDFClassifierConfig{
			MinCharsPerPage:          cfg.PDFMinCharsPerPage,
			TextPageThresholdPercent: cfg.PDFTextPageThresholdPercent,
			OCREnabled:               cfg.OCREnabled,
		}),
		services.NewAudioConverter(provider, cfg.DefaultModel),
		services.NewVisionConverter(provider, cfg.DefaultModel),
		services.NewPassthroughConverter(),
	)
	converter := services.NewParallelConverter(converterSet, services.ParallelConverterConfig{
		MaxWorkers:     cfg.MarkdownMaxWorkers,
		TimeoutPerFile: time.Duration(cfg.MarkdownTimeoutPerFile) * time.Second,
	}, metrics)

	summarizer := services.NewSummarizer(provider, services.SummarizerConfig{
		TokenThreshold: cfg.SummarizationTokenThreshold,
		Model:          cfg.SummarizationModel,
	})
	extractor := services.NewExtractor(provider, services.ExtractorConfig{
		RetryAttempts: cfg.AIRetryAttempts,
		Timeout:       time.Duration(cfg.AITimeoutPerBatch) * time.Second,
	})
	dispatcher := services.NewDispatcher(extractor, cache, metrics, services.DispatcherConfig{
		MaxConcurrent:        cfg.AIMaxConcurrentItems,
		EnablePartialResults: cfg.EnablePartialResults,
	})

	orchestrator := services.NewOrchestrator(registry, expander, converter, summarizer,
		dispatcher, ledger, lifecycle, metrics, services.OrchestratorConfig{
			MaxWorkers:           cfg.MarkdownMaxWorkers,
			MaxConcurrentItems:   cfg.AIMaxConcurrentItems,
			EnablePartialResults: cfg.EnablePartialResults,
		})

	handler := routes.NewHandler(cfg, registry, orchestrator, ledger)
	router := routes.SetupRouter(handler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	logger.Info("Server exited")
}
