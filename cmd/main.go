package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/kyrremann/plogtion/internal/api"
	"github.com/kyrremann/plogtion/internal/cache"
	"github.com/kyrremann/plogtion/internal/campaign"
	"github.com/kyrremann/plogtion/internal/config"
	"github.com/kyrremann/plogtion/internal/gitrepo"
	"github.com/kyrremann/plogtion/internal/imaging"
	"github.com/kyrremann/plogtion/internal/logger"
	"github.com/kyrremann/plogtion/internal/metrics"
	"github.com/kyrremann/plogtion/internal/middleware"
	"github.com/kyrremann/plogtion/internal/pipeline"
	"github.com/kyrremann/plogtion/internal/post"
	"github.com/kyrremann/plogtion/internal/storage"
)

func main() {
	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	output := cfg.LogFile
	if output == "" {
		output = "stdout"
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: output,
		Pretty: !cfg.IsProduction(),
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Str("env", cfg.Env).Msg("Starting application...")

	if cfg.Token == "" {
		log.Warn().Msg("TOKEN not set, every publish request will fail")
	}
	if cfg.GitHubToken == "" {
		log.Warn().Msg("GITHUB_TOKEN not set, every publish request will fail")
	}

	ctx := context.Background()

	store, err := storage.NewStorage(ctx, storage.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		BaseURL:   cfg.ImageBaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize object storage")
	}

	// Campaign ledger: Redis when configured, process memory otherwise
	var ledger cache.Ledger
	if cfg.RedisURL != "" {
		redisLedger, err := cache.NewRedisLedger(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Redis client")
		}
		ledger = redisLedger
	} else {
		log.Info().Msg("REDIS_URL not set, using in-memory campaign ledger")
		ledger = cache.NewMemoryLedger()
	}
	defer func() {
		log.Info().Msg("Closing campaign ledger...")
		if err := ledger.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing campaign ledger")
		}
	}()

	renderer, err := post.NewRenderer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse post template")
	}

	repo := gitrepo.NewClient(gitrepo.Config{
		URL:         cfg.RepoURL,
		Path:        cfg.RepoPath,
		Branch:      cfg.RepoBranch,
		AuthorName:  cfg.GitAuthorName,
		AuthorEmail: cfg.GitAuthorEmail,
	}, log.With().Str("component", "git").Logger())

	brevo := campaign.NewBrevoClient(campaign.Config{
		APIKey:     cfg.BrevoAPIKey,
		BaseURL:    cfg.BrevoBaseURL,
		SenderID:   cfg.BrevoSenderID,
		ListID:     cfg.BrevoListID,
		TemplateID: cfg.BrevoTemplateID,
		Tag:        cfg.BrevoTag,
	})

	opts := []pipeline.Option{
		pipeline.WithLedger(ledger),
		pipeline.WithMetrics(metrics.NewPrometheusProvider()),
	}
	var resizer pipeline.Preprocessor
	if cfg.ResizeEnabled {
		resizer = imaging.NewResizer(cfg.MaxImageDimension, cfg.JPEGQuality)
		opts = append(opts, pipeline.WithPreprocessor(resizer))
	}

	coordinator := pipeline.NewCoordinator(pipeline.Config{
		Token:             cfg.Token,
		GitHubToken:       cfg.GitHubToken,
		SiteURL:           cfg.SiteURL,
		CampaignDelay:     cfg.CampaignDelay,
		UploadConcurrency: cfg.UploadConcurrency,
		LedgerTTL:         cfg.CampaignLedgerTTL,
	}, store, pipeline.GitRepository{Client: repo}, brevo, renderer, *log, opts...)

	// Create Fiber app with custom config
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    cfg.MaxBodySize,
		ErrorHandler: middleware.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New()) // Recover from panics
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())

	api.SetupRoutes(app, api.NewHandlers(coordinator, store, resizer), cfg.Token)

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Create a deadline for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
