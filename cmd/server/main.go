package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	costingapp "github.com/ecomfin/backend/internal/application/costing"
	importingapp "github.com/ecomfin/backend/internal/application/importing"
	marketplaceapp "github.com/ecomfin/backend/internal/application/marketplace"
	reconciliationapp "github.com/ecomfin/backend/internal/application/reconciliation"
	reportapp "github.com/ecomfin/backend/internal/application/report"
	"github.com/ecomfin/backend/internal/domain/integration"
	"github.com/ecomfin/backend/internal/infrastructure/auth"
	"github.com/ecomfin/backend/internal/infrastructure/cache"
	"github.com/ecomfin/backend/internal/infrastructure/config"
	"github.com/ecomfin/backend/internal/infrastructure/logger"
	"github.com/ecomfin/backend/internal/infrastructure/marketplace"
	"github.com/ecomfin/backend/internal/infrastructure/persistence"
	"github.com/ecomfin/backend/internal/interfaces/http/handler"
	"github.com/ecomfin/backend/internal/interfaces/http/middleware"
	"github.com/ecomfin/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.NewFromSettings(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ECOM Finance backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Repositories
	txRepo := persistence.NewGormTransactionRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	mappingRepo := persistence.NewGormSkuMappingRepository(db.DB)
	cmvRepo := persistence.NewGormCMVRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	jobRepo := persistence.NewGormImportJobRepository(db.DB)
	credRepo := persistence.NewGormCredentialRepository(db.DB)
	logRepo := persistence.NewGormIntegrationLogRepository(db.DB)
	titleRepo := persistence.NewGormTitleRepository(db.DB)

	// Mapping cache: Redis when configured, in-process otherwise
	var mappingCache integration.MappingCache
	if cfg.Redis.Host != "" {
		redisCache, err := cache.NewRedisMappingCache(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		mappingCache = redisCache
		log.Info("Redis mapping cache connected", zap.String("host", cfg.Redis.Host))
	} else {
		mappingCache = cache.NewInMemoryMappingCache()
		log.Info("Using in-memory mapping cache")
	}
	defer func() {
		if err := mappingCache.Close(); err != nil {
			log.Error("Error closing mapping cache", zap.Error(err))
		}
	}()

	// Marketplace clients
	clients := []integration.MarketplaceClient{
		marketplace.NewMercadoLivreClient(cfg.Marketplace),
		marketplace.NewShopeeClient(cfg.Marketplace),
	}

	// Application services
	costingService := costingapp.NewCostingService(txRepo, mappingRepo, productRepo, cmvRepo, mappingCache, log)
	importService := importingapp.NewImportService(txRepo, jobRepo, movementRepo, costingService, log)
	reconciliationService := reconciliationapp.NewReconciliationService(txRepo, productRepo, cmvRepo, movementRepo, costingService, log)
	marketplaceService := marketplaceapp.NewMarketplaceService(clients, credRepo, logRepo, txRepo, costingService, log)
	reportService := reportapp.NewReportService(movementRepo, cmvRepo, titleRepo, nil, log)

	jwtService := auth.NewJWTService(cfg.JWT)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	r := router.New(cfg.HTTP, log)
	r.Register(handler.NewImportHandler(importService, log))
	r.Register(handler.NewTransactionHandler(reconciliationService, log))
	r.Register(handler.NewMappingHandler(costingService, log))
	r.Register(handler.NewReportHandler(reportService, log))
	marketplaceHandler := handler.NewMarketplaceHandler(marketplaceService, log)
	r.Register(marketplaceHandler)
	r.RegisterPublic(marketplaceHandler)
	engine := r.Setup(jwtService)

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
