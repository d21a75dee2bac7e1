package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nmedina/skulens/internal/api"
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
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := logger.New(logger.FromEnv())
	logger.SetDefault(appLog)

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

	ctx := context.Background()
	if s3, ok := objectStorage.(*storage.S3Storage); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			appLog.WithError(err).Fatal("Failed to ensure storage bucket")
		}
	}

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
	bgRemoverService := service.NewBgRemoverService(&service.BgRemoverServiceConfig{
		Enabled: cfg.BgRemover.Enabled,
		BaseURL: cfg.BgRemover.BaseURL,
		Timeout: cfg.BgRemover.Timeout,
	})

	productMatcher := matcher.New(matcher.Config{
		Ratio:            cfg.Matcher.Ratio,
		MinMatches:       cfg.Matcher.MinMatches,
		EarlyExitMatches: cfg.Matcher.EarlyExitMatches,
	})

	registerService := service.NewRegisterService(
		extractorService,
		bgRemoverService,
		store,
		cfg.Extractor,
		appLog,
	)

	analysisService := service.NewAnalysisService(
		media.NewProcessor(cfg.Transcribe.FFmpegBinary, cfg.Pipeline.FrameInterval),
		transcriber.New(transcriber.Config{
			Binary:   cfg.Transcribe.WhisperXBinary,
			Model:    cfg.Transcribe.Model,
			Device:   cfg.Transcribe.Device,
			Language: cfg.Pipeline.Language,
		}),
		extractorService,
		productMatcher,
		store,
		service.NewAnnotator(cfg.Pipeline.WindowSeconds, cfg.Pipeline.RequireVisual),
		cfg.Extractor.DefaultThreshold,
		cfg.Pipeline.WorkDir,
		appLog,
	)

	identifyService := service.NewIdentifyService(
		extractorService,
		productMatcher,
		store,
		cfg.Extractor.DefaultThreshold,
		appLog,
	)

	router := api.SetupRouter(api.Services{
		Register: registerService,
		Identify: identifyService,
		Analysis: analysisService,
		Store:    store,
		Products: productRepo,
	}, cfg, appLog)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLog.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Fatal("Server forced to shutdown")
	}

	appLog.Info("Server exited")
}
