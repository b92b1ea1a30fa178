// Command rexcan-batch processes a directory of pre-extracted block
// files through the pipeline and writes one ERP workbook at the end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sundramrai3691/ReXcan/internal/async"
	"github.com/Sundramrai3691/ReXcan/internal/backpressure"
	"github.com/Sundramrai3691/ReXcan/internal/canonicalize"
	"github.com/Sundramrai3691/ReXcan/internal/common"
	"github.com/Sundramrai3691/ReXcan/internal/confidence"
	"github.com/Sundramrai3691/ReXcan/internal/dedup"
	"github.com/Sundramrai3691/ReXcan/internal/export"
	"github.com/Sundramrai3691/ReXcan/internal/heuristics"
	"github.com/Sundramrai3691/ReXcan/internal/llm"
	"github.com/Sundramrai3691/ReXcan/internal/llm/openai"
	"github.com/Sundramrai3691/ReXcan/internal/ocr"
	"github.com/Sundramrai3691/ReXcan/internal/pipeline"
	"github.com/Sundramrai3691/ReXcan/internal/reconcile"
	"github.com/Sundramrai3691/ReXcan/internal/repository"
	"github.com/Sundramrai3691/ReXcan/internal/safety"
)

func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory of block JSON files (required)")
		out     = flag.String("out", "", "output XLSX path (defaults to <dir>/../invoices.xlsx)")
		erp     = flag.String("erp", "quickbooks", "ERP schema: quickbooks, sap, oracle, xero")
		inmem   = flag.Bool("inmem", false, "use an in-memory database")
		workers = flag.Int("workers", 4, "pipeline workers")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "invoices.xlsx")
	}

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	ctx := context.Background()

	dbPath := cfg.Database.Path
	if *inmem {
		dbPath = "file::memory:"
	}
	store, err := repository.Open(ctx, dbPath, cfg.Database.BusyTimeout, logger)
	if err != nil {
		logger.Error("db.open_failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	records := repository.NewRecordRepository(store, logger)
	audit := repository.NewAuditRepository(store, logger)

	var vendors *canonicalize.VendorCanonicalizer
	if v, err := canonicalize.NewVendorCanonicalizer(cfg.Export.VendorsCSV, logger); err == nil {
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
	}

	processor := pipeline.NewProcessor(pipeline.Deps{
		Generator:  heuristics.NewGenerator(heuristics.DefaultTotalConfig(), logger),
		Scorer:     confidence.NewScorer(cfg.Thresholds.AutoAccept, 0.75, logger),
		Policy:     confidence.NewFallbackPolicy(cfg.Thresholds.FlagFloor, cfg.Thresholds.AutoAccept, cfg.Thresholds.SlowPipeline),
		Extractor:  extractor,
		Reconciler: reconcile.New(reconcile.DefaultConfig(), logger),
		Vendors:    vendors,
		Deduper:    dedup.NewEngine(cfg.Thresholds.NearDupRatio, 5, logger),
		Records:    records,
		Audit:      audit,
		Limits: backpressure.NewManager(backpressure.Limits{
			Window:       cfg.Limits.Window,
			OCRMaxCalls:  cfg.Limits.OCRMaxCalls,
			LLMMaxCalls:  cfg.Limits.LLMMaxCalls,
			DocAIMax:     cfg.Limits.DocAIMax,
			MaxQueueSize: cfg.Limits.MaxQueueSize,
		}, logger),
	}, pipeline.Config{
		MaxLLMCallsPerJob: cfg.LLM.MaxCallsPerJob,
		StripPII:          cfg.LLM.StripPII,
		AmountTolerance:   cfg.Thresholds.AmountTolerance,
		FlagFloor:         cfg.Thresholds.FlagFloor,
		DefaultCurrency:   "USD",
	}, logger)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		logger.Error("batch.read_dir_failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(*dir, e.Name()))
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		printError("Error: no .json block files in %s\n", *dir)
		os.Exit(1)
	}

	source := ocr.JSONBlockSource{}
	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(len(paths)),
		async.WithJobTimeout(cfg.Limits.JobTimeout))

	queued := 0
	for _, path := range paths {
		ocrStart := time.Now()
		blocks, err := source.Extract(ctx, path, 1)
		if err != nil {
			logger.Warn("batch.blocks_unreadable", "path", path, "error", err)
			continue
		}
		if len(blocks) == 0 {
			logger.Warn("batch.empty_document", "path", path)
			continue
		}
		job := async.Job{
			Blocks:   blocks,
			Filename: filepath.Base(path),
			OCRTime:  time.Since(ocrStart),
		}
		if err := queue.Enqueue(ctx, job); err != nil {
			logger.Warn("batch.enqueue_failed", "path", path, "error", err)
			continue
		}
		queued++
	}

	drainCtx, cancel := context.WithTimeout(ctx, time.Duration(queued+1)*cfg.Limits.JobTimeout)
	queue.Shutdown(drainCtx)
	cancel()

	exporter := export.NewService(records,
		safety.ExportGate{MinFieldConfidence: cfg.Thresholds.FlagFloor}, logger)
	data, rows, err := exporter.ExportXLSX(ctx, export.ERPType(*erp))
	if err != nil {
		logger.Error("batch.export_failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("batch.write_failed", "path", *out, "error", err)
		os.Exit(1)
	}

	logger.Info("batch.done", "documents", queued, "exported_rows", rows, "out", *out)
	fmt.Printf("Processed %d documents, exported %d rows to %s\n", queued, rows, *out)
}
