package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ipv-vendor-gateway/config"
	"ipv-vendor-gateway/internal/api"
	"ipv-vendor-gateway/internal/auth"
	"ipv-vendor-gateway/internal/cache"
	"ipv-vendor-gateway/internal/credits"
	"ipv-vendor-gateway/internal/database"
	"ipv-vendor-gateway/internal/email"
	"ipv-vendor-gateway/internal/events"
	"ipv-vendor-gateway/internal/gateway"
	"ipv-vendor-gateway/internal/goldenprompt"
	"ipv-vendor-gateway/internal/license"
	"ipv-vendor-gateway/internal/logging"
	"ipv-vendor-gateway/internal/ratelimit"
	"ipv-vendor-gateway/internal/vault"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	// Upstream provider clients log through zerolog
	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize event bus
	eventBus := events.NewBus()
	logger.Info("Event bus initialized")

	// Initialize database
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repository
	repo := database.NewRepository(db)

	// Initialize Redis cache (degraded mode is fine, nil means disabled)
	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Warn("Redis cache unavailable, continuing without cache", "error", err)
			cacheService = nil
		}
	} else {
		logger.Info("Redis cache disabled")
	}

	// Initialize Vault for provider key storage. When Vault is disabled
	// the keys come from the environment via the config.
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		log.Fatalf("Failed to initialize Vault client: %v", err)
	}
	vaultClient.SeedFromConfig(&cfg.GatewayConfig)
	if vaultClient.IsEnabled() {
		logger.Info("Vault provider key storage enabled", "address", cfg.VaultConfig.Address)
	} else {
		logger.Info("Vault disabled, provider keys sourced from environment")
	}

	// Domain managers
	licenseManager := license.NewManager(repo, eventBus, logger)
	creditsManager := credits.NewManager(repo, eventBus, logger, cfg.CreditsConfig.LowCreditsThreshold)

	promptManager, err := goldenprompt.NewManager(repo, cfg.GatewayConfig.PromptSecretKey, logger)
	if err != nil {
		log.Fatalf("Failed to initialize golden prompt manager: %v", err)
	}

	// Admin authentication
	jwtManager := auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.AccessTokenDuration)
	passwordManager := auth.NewPasswordManager(12, cfg.AuthConfig.MinPasswordLength)
	authService := auth.NewService(repo, jwtManager, passwordManager, logger)

	// Per-license rate limiter. Redis keeps counts consistent across
	// instances; the in-memory store covers single-instance deployments.
	var limiter *ratelimit.Limiter
	if cfg.RateLimitConfig.Enabled {
		var store ratelimit.CounterStore
		if cacheService != nil {
			store = ratelimit.NewRedisStore(cacheService.GetClient())
		} else {
			store = ratelimit.NewMemoryStore()
		}
		limiter = ratelimit.NewLimiter(store, cfg.RateLimitConfig.MaxRequests, cfg.RateLimitConfig.WindowSecs, logger)
		logger.Info("Rate limiter initialized",
			"max_requests", cfg.RateLimitConfig.MaxRequests,
			"window_secs", cfg.RateLimitConfig.WindowSecs)
	}

	// Upstream gateway clients
	var gwCache gateway.Cache
	if cacheService != nil && cfg.GatewayConfig.CacheEnabled {
		gwCache = cacheService
	}

	var audit gateway.AuditLogger = gateway.NopAudit{}
	if cfg.GatewayConfig.AuditLogEnabled {
		audit = gateway.NewDBAudit(repo, zlog)
	}

	transcriptClient := gateway.NewTranscriptClient(
		cfg.GatewayConfig.SupadataBaseURL,
		time.Duration(cfg.GatewayConfig.SupadataTimeout)*time.Second,
		time.Duration(cfg.GatewayConfig.TranscriptTTL)*time.Second,
		vaultClient,
		gwCache,
		audit,
		zlog,
	)

	openaiClient := gateway.NewOpenAIClient(
		cfg.GatewayConfig.OpenAIBaseURL,
		time.Duration(cfg.GatewayConfig.OpenAITimeout)*time.Second,
		cfg.GatewayConfig.OpenAIModel,
		cfg.GatewayConfig.DefaultAIPrompt,
		vaultClient,
		audit,
		zlog,
	)

	youtubeClient := gateway.NewYouTubeClient(
		cfg.GatewayConfig.YouTubeBaseURL,
		time.Duration(cfg.GatewayConfig.YouTubeTimeout)*time.Second,
		time.Duration(cfg.GatewayConfig.YouTubeDataTTL)*time.Second,
		vaultClient,
		gwCache,
		audit,
		zlog,
	)

	// Email notifications for credit events
	emailService := email.NewService(cfg.SMTPConfig, logger)
	if emailService.IsConfigured() {
		emailService.SubscribeToEvents(eventBus)
		logger.Info("Email notifications enabled", "host", cfg.SMTPConfig.Host)
	}

	// Monthly credit reset scheduler
	scheduler := credits.NewScheduler(creditsManager, eventBus, &credits.SchedulerConfig{
		CheckInterval: time.Duration(cfg.CreditsConfig.ResetCheckMins) * time.Minute,
	})
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start credit reset scheduler: %v", err)
	}

	// Initialize API server
	server := api.NewServer(cfg.ServerConfig, api.Deps{
		Repo:         repo,
		EventBus:     eventBus,
		Licenses:     licenseManager,
		Credits:      creditsManager,
		Limiter:      limiter,
		Transcripts:  transcriptClient,
		Descriptions: openaiClient,
		VideoData:    youtubeClient,
		Prompts:      promptManager,
		AuthService:  authService,
		JWTManager:   jwtManager,
		Cache:        cacheService,
		Vault:        vaultClient,
		Logger:       logger,
	})

	// Start API server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start API server: %v", err)
		}
	}()

	log.Println("Starting IPV vendor gateway...")
	log.Printf("API available at http://%s:%d/ipv-vendor/v1", cfg.ServerConfig.Host, cfg.ServerConfig.Port)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}

	if err := scheduler.Stop(); err != nil {
		log.Printf("Error stopping scheduler: %v", err)
	}

	if cacheService != nil {
		if err := cacheService.Close(); err != nil {
			log.Printf("Error closing cache: %v", err)
		}
	}

	log.Println("Shutdown complete")
}
