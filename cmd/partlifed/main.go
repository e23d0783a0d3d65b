package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"partlife-backend/config"
	"partlife-backend/internal/api"
	"partlife-backend/internal/archive"
	"partlife-backend/internal/db"
	"partlife-backend/internal/fleet"
	"partlife-backend/internal/logging"
	"partlife-backend/internal/metrics"
	"partlife-backend/internal/model"
	"partlife-backend/internal/narrative"
	"partlife-backend/internal/notification"
	"partlife-backend/internal/persist"
	"partlife-backend/internal/store"
	"partlife-backend/internal/sweep"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log, "partlifed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Warn("VAPID keys are not configured, critical-part alerts will fail to send")
	}
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var storeOpts []store.Option
	if cfg.Database.Seed {
		storeOpts = append(storeOpts, store.WithSeed(func() model.Dataset {
			return store.DemoDataset(time.Now().UTC(), rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))
		}))
	}
	appStore := store.NewGormStore(gormDB, logger, storeOpts...)

	mtr := metrics.New()

	queue := persist.NewQueue(appStore, cfg.Persistence.QueueSize, cfg.Persistence.Timeout, logger, mtr)
	queue.Start(ctx)

	initial := appStore.LoadAll(ctx)
	manager := fleet.NewManager(initial, queue, logger, mtr)
	logger.Info("fleet loaded",
		zap.Int("machines", len(initial.Machines)),
		zap.Int("parts", len(initial.Parts)),
	)

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions, logger, mtr)
	pool.Start(ctx)

	sweeper := sweep.NewService(cfg.Sweep, manager, pool, mtr, logger)
	go sweeper.Run(ctx)

	if cfg.Narrative.APIKey == "" {
		cfg.Narrative.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	summarizer := narrative.NewSummarizer(cfg.Narrative, logger)

	var archiver api.Archiver
	if a, err := archive.New(ctx, cfg.Archive, logger); err != nil {
		logger.Info("backup archive disabled", zap.Error(err))
	} else {
		archiver = a
	}

	handler := api.NewHandler(manager, appStore, &webpushOptions, summarizer, archiver, logger)
	router := api.NewRouter(handler, cfg.Server, mtr, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}

	// Drain pending writes before the workers are cancelled.
	queue.Wait()
	cancel()

	logger.Info("server gracefully stopped")
}
