// Command rexcand serves the invoice extraction pipeline over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sundramrai3691/ReXcan/internal/backpressure"
	"github.com/Sundramrai3691/ReXcan/internal/canonicalize"
	"github.com/Sundramrai3691/ReXcan/internal/common"
	"github.com/Sundramrai3691/ReXcan/internal/confidence"
	"github.com/Sundramrai3691/ReXcan/internal/dedup"
	"github.com/Sundramrai3691/ReXcan/internal/export"
	"github.com/Sundramrai3691/ReXcan/internal/heuristics"
	"github.com/Sundramrai3691/ReXcan/internal/llm"
	"github.com/Sundramrai3691/ReXcan/internal/llm/openai"
	"github.com/Sundramrai3691/ReXcan/internal/pipeline"
	"github.com/Sundramrai3691/ReXcan/internal/reconcile"
	"github.com/Sundramrai3691/ReXcan/internal/repository"
	"github.com/Sundramrai3691/ReXcan/internal/safety"
	"github.com/Sundramrai3691/ReXcan/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config.invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.Database.Path, cfg.Database.BusyTimeout, logger)
	if err != nil {
		logger.Error("db.open_failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	records := repository.NewRecordRepository(store, logger)
	audit := repository.NewAuditRepository(store, logger)

	var vendors *canonicalize.VendorCanonicalizer
	if v, err := canonicalize.NewVendorCanonicalizer(cfg.Export.VendorsCSV, logger); err != nil {
		logger.Warn("vendors.registry_unavailable", "path", cfg.Export.VendorsCSV, "error", err)
	} else {
		vendors = v
	}

	var extractor llm.FieldExtractor
	if cfg.LLM.APIKey != "" {
		client := openai.NewClient(openai.Config{
			APIKey:          cfg.LLM.APIKey,
			BaseURL:         cfg.LLM.BaseURL,
			Model:           cfg.LLM.Model,
			Temperature:     cfg.LLM.Temperature,
			Timeout:         cfg.LLM.Timeout,
			LenientRecovery: true,
		}, logger)
		extractor = llm.NewRouter(client, cfg.LLM.Timeout, cfg.LLM.MaxRetries, cfg.LLM.RetryDelay, logger)
	} else {
		logger.Warn("llm.disabled", "reason", "no API key configured")
	}

	limits := backpressure.NewManager(backpressure.Limits{
		Window:       cfg.Limits.Window,
		OCRMaxCalls:  cfg.Limits.OCRMaxCalls,
		LLMMaxCalls:  cfg.Limits.LLMMaxCalls,
		DocAIMax:     cfg.Limits.DocAIMax,
		MaxQueueSize: cfg.Limits.MaxQueueSize,
	}, logger)

	totalCfg := heuristics.DefaultTotalConfig()
	totalCfg.MaxAmount = cfg.Thresholds.MaxTotalAmount

	reconCfg := reconcile.DefaultConfig()
	reconCfg.MaxTotalAmount = cfg.Thresholds.MaxTotalAmount

	processor := pipeline.NewProcessor(pipeline.Deps{
		Generator:  heuristics.NewGenerator(totalCfg, logger),
		Scorer:     confidence.NewScorer(cfg.Thresholds.AutoAccept, 0.75, logger),
		Policy:     confidence.NewFallbackPolicy(cfg.Thresholds.FlagFloor, cfg.Thresholds.AutoAccept, cfg.Thresholds.SlowPipeline),
		Extractor:  extractor,
		Reconciler: reconcile.New(reconCfg, logger),
		Vendors:    vendors,
		Deduper:    dedup.NewEngine(cfg.Thresholds.NearDupRatio, 5, logger),
		Records:    records,
		Audit:      audit,
		Limits:     limits,
	}, pipeline.Config{
		MaxLLMCallsPerJob: cfg.LLM.MaxCallsPerJob,
		StripPII:          cfg.LLM.StripPII,
		AmountTolerance:   cfg.Thresholds.AmountTolerance,
		FlagFloor:         cfg.Thresholds.FlagFloor,
		DefaultCurrency:   "USD",
	}, logger)

	exporter := export.NewService(records,
		safety.ExportGate{MinFieldConfidence: cfg.Thresholds.FlagFloor}, logger)

	srv := server.New(processor, exporter, records, audit, store, cfg, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http.listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http.serve_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown.begin")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown.http_timeout", "error", err)
	}
	logger.Info("shutdown.done")
}
