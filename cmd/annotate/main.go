package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/nmedina/skulens/internal/archive"
	"github.com/nmedina/skulens/internal/config"
	"github.com/nmedina/skulens/internal/featurestore"
	"github.com/nmedina/skulens/internal/logger"
	"github.com/nmedina/skulens/internal/matcher"
	"github.com/nmedina/skulens/internal/media"
	"github.com/nmedina/skulens/internal/repository"
	"github.com/nmedina/skulens/internal/service"
	"github.com/nmedina/skulens/internal/storage"
	"github.com/nmedina/skulens/internal/transcriber"
)

func main() {
	appLog := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "skulens-annotate",
	})
	logger.SetDefault(appLog)

	videoPath := flag.String("video", "", "Path to the video file to analyze")
	outputPath := flag.String("output", "", "Write the analysis result to this file instead of stdout")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *videoPath == "" {
		appLog.Fatal("Flag -video is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize database")
	}

	productRepo := repository.NewProductRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	objectStorage, err := storage.New(cfg.Storage.Driver, &storage.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
	})
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize storage")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		appLog.Warn("Interrupted, canceling analysis")
		cancel()
	}()

	store := featurestore.NewStore(
		archive.New(objectStorage, snapshotRepo, "snapshots", appLog),
		productRepo,
		appLog,
	)
	if err := store.Load(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to load feature store")
	}

	extractorService := service.NewExtractorService(&service.ExtractorServiceConfig{
		BaseURL: cfg.Extractor.BaseURL,
		APIKey:  cfg.Extractor.APIKey,
		Timeout: cfg.Extractor.Timeout,
	})

	analysisService := service.NewAnalysisService(
		media.NewProcessor(cfg.Transcribe.FFmpegBinary, cfg.Pipeline.FrameInterval),
		transcriber.New(transcriber.Config{
			Binary:   cfg.Transcribe.WhisperXBinary,
			Model:    cfg.Transcribe.Model,
			Device:   cfg.Transcribe.Device,
			Language: cfg.Pipeline.Language,
		}),
		extractorService,
		matcher.New(matcher.Config{
			Ratio:            cfg.Matcher.Ratio,
			MinMatches:       cfg.Matcher.MinMatches,
			EarlyExitMatches: cfg.Matcher.EarlyExitMatches,
		}),
		store,
		service.NewAnnotator(cfg.Pipeline.WindowSeconds, cfg.Pipeline.RequireVisual),
		cfg.Extractor.DefaultThreshold,
		cfg.Pipeline.WorkDir,
		appLog,
	)

	appLog.WithField(logger.FieldVideo, *videoPath).Info("Starting analysis")

	result, err := analysisService.Analyze(ctx, *videoPath)
	if err != nil {
		appLog.WithError(err).Fatal("Analysis failed")
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		appLog.WithError(err).Fatal("Failed to encode result")
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			appLog.WithError(err).Fatal("Failed to write output file")
		}
		appLog.WithField("output", *outputPath).Info("Analysis written")
		return
	}
	os.Stdout.Write(encoded)
	os.Stdout.Write([]byte("\n"))
}
