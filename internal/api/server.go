package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ipv-vendor-gateway/config"
	"ipv-vendor-gateway/internal/auth"
	"ipv-vendor-gateway/internal/cache"
	"ipv-vendor-gateway/internal/credits"
	"ipv-vendor-gateway/internal/database"
	"ipv-vendor-gateway/internal/events"
	"ipv-vendor-gateway/internal/gateway"
	"ipv-vendor-gateway/internal/goldenprompt"
	"ipv-vendor-gateway/internal/license"
	"ipv-vendor-gateway/internal/logging"
	"ipv-vendor-gateway/internal/ratelimit"
	"ipv-vendor-gateway/internal/vault"
)

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     config.ServerConfig

	repo         *database.Repository
	eventBus     *events.Bus
	licenses     *license.Manager
	credits      *credits.Manager
	limiter      *ratelimit.Limiter
	transcripts  *gateway.TranscriptClient
	descriptions *gateway.OpenAIClient
	videoData    *gateway.YouTubeClient
	prompts      *goldenprompt.Manager
	authService  *auth.Service
	jwtManager   *auth.JWTManager
	cacheService *cache.CacheService
	vaultClient  *vault.Client
	logger       *logging.Logger
}

// Deps bundles the services the server routes to
type Deps struct {
	Repo         *database.Repository
	EventBus     *events.Bus
	Licenses     *license.Manager
	Credits      *credits.Manager
	Limiter      *ratelimit.Limiter
	Transcripts  *gateway.TranscriptClient
	Descriptions *gateway.OpenAIClient
	VideoData    *gateway.YouTubeClient
	Prompts      *goldenprompt.Manager
	AuthService  *auth.Service
	JWTManager   *auth.JWTManager
	Cache        *cache.CacheService
	Vault        *vault.Client
	Logger       *logging.Logger
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "*" || cfg.AllowedOrigins == "" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-License-Key", "X-API-Key", "X-Site-URL"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining"}
	router.Use(cors.New(corsConfig))

	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	server := &Server{
		router:       router,
		config:       cfg,
		repo:         deps.Repo,
		eventBus:     deps.EventBus,
		licenses:     deps.Licenses,
		credits:      deps.Credits,
		limiter:      deps.Limiter,
		transcripts:  deps.Transcripts,
		descriptions: deps.Descriptions,
		videoData:    deps.VideoData,
		prompts:      deps.Prompts,
		authService:  deps.AuthService,
		jwtManager:   deps.JWTManager,
		cacheService: deps.Cache,
		vaultClient:  deps.Vault,
		logger:       logger.WithComponent("api"),
	}

	server.setupRoutes()

	return server
}

// setupRoutes registers all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestLogMiddleware())

	v1 := s.router.Group("/ipv-vendor/v1")
	v1.Use(s.requestValidationMiddleware())

	v1.GET("/health", s.handleHealth)

	// License lifecycle, open to plugin installs
	v1.POST("/license/validate", s.handleValidateLicense)
	v1.POST("/license/activate", s.handleActivateLicense)
	v1.POST("/license/deactivate", s.handleDeactivateLicense)

	// Gateway endpoints, require a valid license and count against the
	// per-license rate limit
	licensed := v1.Group("")
	licensed.Use(s.licenseAuthMiddleware())
	licensed.Use(s.rateLimitMiddleware())
	{
		licensed.POST("/transcript", s.handleTranscript)
		licensed.POST("/ai/description", s.handleDescription)
		licensed.POST("/youtube/video-data", s.handleVideoData)
		licensed.POST("/golden-prompt/verify", s.handleVerifyPrompt)
		licensed.POST("/golden-prompt/fetch", s.handleFetchPrompt)
	}

	// Admin API
	admin := v1.Group("/admin")
	admin.POST("/login", s.handleAdminLogin)

	protected := admin.Group("")
	protected.Use(auth.Middleware(s.jwtManager))
	{
		protected.GET("/licenses", s.handleListLicenses)
		protected.POST("/licenses", s.handleCreateLicense)
		protected.GET("/licenses/:id", s.handleGetLicense)
		protected.PATCH("/licenses/:id/status", s.handleSetLicenseStatus)
		protected.POST("/licenses/:id/plan", s.handleChangePlan)
		protected.POST("/licenses/:id/credits/adjust", s.handleAdjustCredits)
		protected.POST("/licenses/:id/credits/extra", s.handleAddExtraCredits)
		protected.GET("/licenses/:id/ledger", s.handleGetLedger)
		protected.GET("/licenses/:id/logs", s.handleGetAPILogs)
		protected.POST("/licenses/:id/golden-prompt", s.handleSavePrompt)
		protected.GET("/stats/licenses", s.handleLicenseStats)
		protected.GET("/stats/api", s.handleAPIStats)
		protected.POST("/cache/clear", s.handleClearCache)
		protected.POST("/golden-prompt/push-master", s.handlePushMasterPrompt)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	log.Printf("API server listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// handleHealth reports component health
func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if s.repo != nil {
		status["database"] = "ok"
	}
	if s.cacheService != nil {
		if s.cacheService.IsHealthy() {
			status["cache"] = "ok"
		} else {
			status["cache"] = "degraded"
		}
	}
	if s.vaultClient != nil && s.vaultClient.IsEnabled() {
		if err := s.vaultClient.Health(c.Request.Context()); err != nil {
			status["vault"] = "error"
		} else {
			status["vault"] = "ok"
		}
	}

	c.JSON(http.StatusOK, status)
}
