package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"nfcexposure/internal/api"
	"nfcexposure/internal/batch"
	"nfcexposure/internal/config"
	"nfcexposure/internal/detect"
	"nfcexposure/internal/engine"
	"nfcexposure/internal/ingest"
	"nfcexposure/internal/issues"
	"nfcexposure/internal/logging"
	"nfcexposure/internal/metrics"
	"nfcexposure/internal/publish"
	"nfcexposure/internal/storage"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to yaml or json config")
	root := flag.String("root", "", "directory holding the experiment log directories")
	studyFile := flag.String("study", "", "study file name inside root")
	continueOnError := flag.Bool("continue", false, "record failed experiments and keep going")
	serve := flag.Bool("serve", false, "serve the results api after the batch until interrupted")
	flag.Parse()

	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(config.ResolvePath(*configPath))
		if err != nil {
			bootstrap.Error("config load failed", "path", *configPath, "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *root != "" {
		cfg.Batch.Root = *root
	}
	if *studyFile != "" {
		cfg.Batch.StudyFile = *studyFile
	}
	if *continueOnError {
		cfg.Batch.ContinueOnError = true
	}
	if *serve {
		cfg.API.Enabled = true
	}
	if err := config.Validate(cfg); err != nil {
		bootstrap.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("nfcexposure starting", "version", version, "root", cfg.Batch.Root, "study_file", cfg.Batch.StudyFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	metricsStore := metrics.NewStore(cfg.Metrics.StoreLimit)
	issuesStore := issues.NewStore(cfg.Issues.StoreLimit)

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage open failed", "driver", cfg.Storage.Driver, "err", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
		if err := store.Init(ctx); err != nil {
			logger.Error("storage init failed", "err", err)
			os.Exit(1)
		}
	}
	publisher := publish.NewKafka(cfg.Publish.Kafka, logger)
	if publisher != nil {
		defer publisher.Close()
	}

	registry := detect.NewRegistry()
	loader := ingest.NewLoader(cfg.Study, cfg.Batch.LoadWorkers)
	eng := engine.NewEngine(cfg.Study, loader, registry, metricsStore, logger)

	var results batch.ResultStore
	if store != nil {
		results = store
	}
	driver, err := batch.NewDriver(cfg, eng, issuesStore, results, publisher, logger)
	if err != nil {
		logger.Error("batch setup failed", "err", err)
		os.Exit(1)
	}

	server := api.Start(ctx, cfg, metricsStore, issuesStore, registry.Variants(), logger, version)

	_, runErr := driver.Run(ctx)
	if runErr != nil {
		logger.Error("batch aborted", "err", runErr)
	}
	if server != nil {
		logger.Info("serving results until interrupted", "addr", cfg.API.Addr)
		<-ctx.Done()
	}
	if runErr != nil {
		os.Exit(1)
	}
}
