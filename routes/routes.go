package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stockwatch/controllers"
	"stockwatch/services/maintenance"
	"stockwatch/services/marketdata"
	"stockwatch/services/notify"
	"stockwatch/services/predictor"
	"stockwatch/services/secrets"
	"stockwatch/services/settings"
)

// Deps bundles the shared services the controllers are built from.
type Deps struct {
	DB          *gorm.DB
	Registry    *settings.Registry
	Secrets     *secrets.Store
	Gateway     *marketdata.Gateway
	Dispatcher  *notify.Dispatcher
	Generator   predictor.Generator
	Maintenance *maintenance.Service
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	stockController := controllers.NewStockController(deps.DB, deps.Gateway)
	settingsController := controllers.NewSettingsController(deps.Registry, deps.Secrets, deps.Gateway, deps.Dispatcher)
	predictionController := controllers.NewPredictionController(deps.DB, deps.Generator)
	notificationController := controllers.NewNotificationController(deps.DB, deps.Dispatcher)
	databaseController := controllers.NewDatabaseController(deps.Maintenance)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		stocks := api.Group("/stocks")
		{
			stocks.GET("", stockController.GetStocks)
			stocks.POST("/refresh", stockController.RefreshStocks)
			stocks.GET("/:symbol", stockController.GetStock)
			stocks.GET("/:symbol/history", stockController.GetStockHistory)
		}

		settingsGroup := api.Group("/settings")
		{
			settingsGroup.GET("", settingsController.GetSettings)
			settingsGroup.POST("", settingsController.UpdateSettings)
			settingsGroup.POST("/test-connection", settingsController.TestConnection)
		}

		database := api.Group("/database")
		{
			database.GET("/stats", databaseController.GetStats)
			database.POST("/backup", databaseController.CreateBackup)
			database.POST("/initialize", databaseController.InitializeDatabase)
		}

		predictions := api.Group("/predictions")
		{
			predictions.POST("/generate", predictionController.GeneratePrediction)
			predictions.GET("/:symbol", predictionController.GetPredictions)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationController.GetNotifications)
			notifications.POST("", notificationController.CreateNotification)
			notifications.POST("/test-telegram", notificationController.TestTelegram)
			notifications.POST("/:id/send", notificationController.SendNotification)
			notifications.DELETE("/:id", notificationController.DeleteNotification)
		}
	}
}
