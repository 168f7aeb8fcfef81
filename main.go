package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stockwatch/config"
	"stockwatch/logger"
	"stockwatch/models"
	"stockwatch/routes"
	"stockwatch/scheduler"
	"stockwatch/services/maintenance"
	"stockwatch/services/marketdata"
	"stockwatch/services/notify"
	"stockwatch/services/predictor"
	"stockwatch/services/secrets"
	"stockwatch/services/settings"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	zlog, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zlog.Sync()

	if cfg.UsingFallbackEncryption() {
		zlog.Warn("running with built-in encryption material, set ENCRYPTION_KEY and ENCRYPTION_IV")
	}

	db, err := config.InitDB()
	if err != nil {
		zlog.Fatal("database init failed", zap.Error(err))
	}

	if err := models.Migrate(db); err != nil {
		zlog.Fatal("migrations failed", zap.Error(err))
	}
	if err := models.SeedDefaultStocks(db, cfg.DefaultSymbols); err != nil {
		zlog.Warn("seeding default stocks failed", zap.Error(err))
	}

	secretStore := secrets.NewStore(cfg.EncryptionKey, cfg.EncryptionIV)
	if !secretStore.Verify() {
		zlog.Fatal("secret store self-check failed")
	}
	registry := settings.NewRegistry(db)

	providerLimiter := rate.NewLimiter(rate.Limit(cfg.ProviderRateLimit), cfg.ProviderRateBurst)
	telegramLimiter := rate.NewLimiter(rate.Limit(cfg.TelegramRateLimit), cfg.TelegramRateBurst)

	gateway := marketdata.NewGateway(db, registry, secretStore, providerLimiter, cfg.StockAPIProvider, zlog)
	dispatcher := notify.NewDispatcher(db, registry, secretStore, telegramLimiter, zlog)
	generator := predictor.NewStubGenerator(db, rand.New(rand.NewSource(time.Now().UnixNano())))
	maintenanceService := maintenance.NewService(db, registry, cfg.DBPath, cfg.BackupDir, cfg.DefaultSymbols, zlog)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger(zlog))

	routes.SetupRoutes(router, routes.Deps{
		DB:          db,
		Registry:    registry,
		Secrets:     secretStore,
		Gateway:     gateway,
		Dispatcher:  dispatcher,
		Generator:   generator,
		Maintenance: maintenanceService,
	})

	jobScheduler := scheduler.NewScheduler(db, gateway, dispatcher, generator, maintenanceService, scheduler.Times{
		RefreshAt: cfg.RefreshAt,
		NotifyAt:  cfg.NotifyAt,
		BackupAt:  cfg.BackupAt,
	}, zlog)
	if err := jobScheduler.Start(); err != nil {
		zlog.Fatal("scheduler start failed", zap.Error(err))
	}

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	gracefulShutdown(server, jobScheduler, zlog)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs every non-health request after it completes.
func requestLogger(zlog *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		zlog.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler, zlog *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	zlog.Info("shutting down", zap.String("signal", sig.String()))

	jobScheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	if config.DB != nil {
		if sqlDB, err := config.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	zlog.Info("shutdown complete")
}
