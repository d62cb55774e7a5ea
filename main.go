// Package main provides the main entry point for the VideoStreamPro ad server
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/videostreampro/adserver/app/handlers"
	"github.com/videostreampro/adserver/app/middleware"
	"github.com/videostreampro/adserver/app/router"
	"github.com/videostreampro/adserver/app/scheduler"
	"github.com/videostreampro/adserver/app/services"
	businessflow "github.com/videostreampro/adserver/business_flow"
	"github.com/videostreampro/adserver/config"
	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/repository"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting VideoStreamPro ad server...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers before draining connections
	for _, stop := range app.stopFuncs {
		stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the process log through a rotating file writer
// when file output is configured.
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	if cfg.Output == "both" {
		log.SetOutput(io.MultiWriter(os.Stdout, rotating))
	} else {
		log.SetOutput(rotating)
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database connection
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize Redis (optional)
	redisClient, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	if redisClient != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(redisClient))
	}

	// Initialize repositories
	teamRepo := repository.NewTeamRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	adRepo := repository.NewAdRepository(db)
	impressionRepo := repository.NewImpressionRepository(db)
	txm := repository.NewTxManager(db)

	clk := clock.NewDefaultClock()

	// Initialize services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	impressionTokenService, err := services.NewImpressionTokenService(cfg.JWT.SecretKey, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize impression token service: %w", err)
	}

	monetizationClient := services.NewMonetizationClient(&cfg.Monetization)
	authClient := services.NewAuthClient(&cfg.Auth)

	var identityCache services.IdentityCache
	if redisClient != nil {
		identityCache = services.NewIdentityCache(redisClient, &cfg.Auth, cfg.Cache.RedisPrefix)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize business flows
	walletFlow := businessflow.NewWalletFlow(walletRepo, transactionRepo, txm, clk)
	campaignFlow := businessflow.NewCampaignFlow(teamRepo, campaignRepo, walletFlow, txm, clk)
	adFlow := businessflow.NewAdFlow(teamRepo, campaignRepo, adRepo, walletFlow, txm, clk)

	scorer := businessflow.NewScorer(cfg.AdServing, rand.New(rand.NewSource(time.Now().UnixNano())))
	adServeFlow := businessflow.NewAdServeFlow(
		adRepo,
		campaignRepo,
		impressionRepo,
		impressionTokenService,
		txm,
		scorer,
		clk,
		cfg.AdServing,
	)
	impressionFlow := businessflow.NewImpressionFlow(
		impressionRepo,
		adRepo,
		campaignRepo,
		impressionTokenService,
		monetizationClient,
		txm,
		clk,
	)

	// Initialize handlers
	adServeHandler := handlers.NewAdServeHandler(adServeFlow)
	impressionHandler := handlers.NewImpressionHandler(impressionFlow)
	campaignHandler := handlers.NewCampaignHandler(campaignFlow)
	adHandler := handlers.NewAdHandler(adFlow)
	walletHandler := handlers.NewWalletHandler(walletFlow)

	authMiddleware := middleware.NewAuthMiddleware(tokenService, authClient, identityCache)

	appRouter := router.NewFiberRouter(
		cfg,
		adServeHandler,
		impressionHandler,
		campaignHandler,
		adHandler,
		walletHandler,
		authMiddleware,
	)

	// Background maintenance: expire stale reservations, close ended campaigns
	if cfg.Scheduler.Enabled {
		maintenance := scheduler.NewMaintenanceScheduler(impressionRepo, campaignRepo, clk, log.Default(), cfg.Scheduler.Interval)
		stopFuncs = append(stopFuncs, maintenance.Start(context.Background()))
	}

	fiberRouter := appRouter.(*router.FiberRouter)

	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}

// initializeDatabase opens the Postgres connection, tunes the pool, and
// runs schema migrations.
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Team{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Campaign{},
		&models.Ad{},
		&models.Impression{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Printf("Database connection established (max_open=%d, max_idle=%d)",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache connects to Redis and verifies connectivity. Returns
// nil without error when caching is disabled.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		log.Println("Cache disabled, identity lookups will hit the auth provider directly")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return client, nil
}

// startCacheHealthMonitor pings Redis periodically so connectivity loss
// shows up in the logs before requests start failing. The returned
// function stops the monitor.
func startCacheHealthMonitor(client *redis.Client) func() {
	monitorCtx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(pingCtx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				pingCancel()
			}
		}
	}()

	return func() {
		cancel()
		_ = client.Close()
	}
}
