// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/app/handlers"
	"github.com/videostreampro/adserver/app/middleware"
	"github.com/videostreampro/adserver/config"
	"github.com/videostreampro/adserver/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app               *fiber.App
	cfg               *config.ProductionConfig
	adServeHandler    handlers.AdServeHandlerInterface
	impressionHandler handlers.ImpressionHandlerInterface
	campaignHandler   handlers.CampaignHandlerInterface
	adHandler         handlers.AdHandlerInterface
	walletHandler     handlers.WalletHandlerInterface
	authMiddleware    *middleware.AuthMiddleware
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	adServeHandler handlers.AdServeHandlerInterface,
	impressionHandler handlers.ImpressionHandlerInterface,
	campaignHandler handlers.CampaignHandlerInterface,
	adHandler handlers.AdHandlerInterface,
	walletHandler handlers.WalletHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "VideoStreamPro Ad Server",
		ServerHeader: "adserver",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ProxyHeader:  cfg.Server.ProxyHeader,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:               app,
		cfg:               cfg,
		adServeHandler:    adServeHandler,
		impressionHandler: impressionHandler,
		campaignHandler:   campaignHandler,
		adHandler:         adHandler,
		walletHandler:     walletHandler,
		authMiddleware:    authMiddleware,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// General rate limiting for all API routes
	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	// Player-facing serving endpoints. Public, but throttled harder than
	// the management API since they take no bearer token.
	servingLimiter := limiter.New(limiter.Config{
		Max:        r.cfg.Security.ServeRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
	})
	api.Post("/ad/serve", r.adServeHandler.ServeAd, servingLimiter, r.authMiddleware.OptionalViewerAuth())
	api.Post("/impression/confirm", r.impressionHandler.ConfirmImpression, servingLimiter)
	api.Get("/impression/:token", r.impressionHandler.GetImpression, servingLimiter)

	// Team-scoped management endpoints require a bearer token.
	teams := api.Group("/teams/:team_id", r.authMiddleware.Authenticate())
	teams.Post("/campaigns", r.campaignHandler.CreateCampaign)
	teams.Get("/campaigns", r.campaignHandler.ListCampaigns)
	teams.Get("/campaigns/:campaign_id", r.campaignHandler.GetCampaign)
	teams.Put("/campaigns/:campaign_id", r.campaignHandler.UpdateCampaign)
	teams.Delete("/campaigns/:campaign_id", r.campaignHandler.DeleteCampaign)

	teams.Post("/campaigns/:campaign_id/ads", r.adHandler.CreateAd)
	teams.Get("/campaigns/:campaign_id/ads", r.adHandler.ListAds)
	teams.Get("/campaigns/:campaign_id/ads/budget", r.adHandler.ValidateAdBudget)
	teams.Get("/campaigns/:campaign_id/ads/:ad_id", r.adHandler.GetAd)
	teams.Put("/campaigns/:campaign_id/ads/:ad_id", r.adHandler.UpdateAd)
	teams.Delete("/campaigns/:campaign_id/ads/:ad_id", r.adHandler.DeleteAd)

	// Wallet endpoints for the authenticated owner
	wallet := api.Group("/wallet", r.authMiddleware.Authenticate())
	wallet.Get("/balance", r.walletHandler.GetBalance)
	wallet.Get("/transactions", r.walletHandler.GetTransactionHistory)
	wallet.Post("/funds", r.walletHandler.AddFunds)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         r.cfg.Security.XSSProtection,
		ContentTypeNosniff:    r.cfg.Security.XContentTypeOptions,
		XFrameOptions:         r.cfg.Security.XFrameOptions,
		HSTSMaxAge:            r.cfg.Security.HSTSMaxAge,
		HSTSExcludeSubdomains: !r.cfg.Security.HSTSIncludeSubDoms,
		HSTSPreloadEnabled:    r.cfg.Security.HSTSPreload,
		ContentSecurityPolicy: r.cfg.Security.CSPPolicy,
		ReferrerPolicy:        r.cfg.Security.ReferrerPolicy,
	}))

	// CORS middleware with production settings
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.Security.AllowedOrigins,
		AllowMethods: r.cfg.Security.AllowedMethods,
		AllowHeaders: r.cfg.Security.AllowedHeaders,
		ExposeHeaders: []string{
			"X-Request-ID",
		},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	// Compression middleware for performance
	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	// Prometheus HTTP metrics
	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	// Structured access logging
	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/api/v1/health"
			},
		}))
	}

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// healthCheck reports liveness
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "videostreampro-adserver",
		},
	})
}

// notFoundHandler handles unmatched routes
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "Endpoint not found",
		Error: dto.ErrorDetail{
			Code: "ENDPOINT_NOT_FOUND",
		},
	})
}

// rateLimitReached writes the throttling response
func rateLimitReached(c fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
		Success: false,
		Message: "Too many requests. Please try again later.",
		Error: dto.ErrorDetail{
			Code: "RATE_LIMIT_EXCEEDED",
		},
	})
}

// errorHandler is the global Fiber error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		if code != fiber.StatusInternalServerError {
			message = fiberErr.Message
		}
	}

	if code == fiber.StatusInternalServerError {
		log.Printf("Unhandled error: %v", err)
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: "HTTP_ERROR",
		},
	})
}

// generateRequestID creates a random hex request identifier
func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(bytes)
}
