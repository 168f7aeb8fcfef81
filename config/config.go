package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Default encryption material. Deploying with these values is a
// configuration error; they exist so a development instance boots.
const (
	DefaultEncryptionKey = "change-me-in-production"
	DefaultEncryptionIV  = "change-me-iv-too"
)

type Config struct {
	Port        string
	Environment string

	DBPath    string
	BackupDir string

	EncryptionKey string
	EncryptionIV  string

	StockAPIProvider string
	DefaultSymbols   string

	RefreshAt string // HH:MM, daily data refresh
	NotifyAt  string // HH:MM, daily notification flush
	BackupAt  string // HH:MM, weekly backup (Sunday)

	ProviderRateLimit float64
	ProviderRateBurst int
	TelegramRateLimit float64
	TelegramRateBurst int

	LogLevel  string
	LogFormat string
}

var AppConfig *Config
var DB *gorm.DB

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBPath:    getEnv("DB_PATH", "data/stocks.db"),
		BackupDir: getEnv("BACKUP_DIR", "data/backups"),

		EncryptionKey: getEnv("ENCRYPTION_KEY", DefaultEncryptionKey),
		EncryptionIV:  getEnv("ENCRYPTION_IV", DefaultEncryptionIV),

		StockAPIProvider: getEnv("STOCK_API_PROVIDER", "alphavantage"),
		DefaultSymbols:   getEnv("DEFAULT_SYMBOLS", "AAPL,MSFT,GOOGL,AMZN,TSLA"),

		RefreshAt: getEnv("REFRESH_AT", "17:00"),
		NotifyAt:  getEnv("NOTIFY_AT", "09:00"),
		BackupAt:  getEnv("BACKUP_AT", "02:00"),

		ProviderRateLimit: getEnvFloat("PROVIDER_RATE_LIMIT", 0.25), // requests per second
		ProviderRateBurst: getEnvInt("PROVIDER_RATE_BURST", 1),
		TelegramRateLimit: getEnvFloat("TELEGRAM_RATE_LIMIT", 2),
		TelegramRateBurst: getEnvInt("TELEGRAM_RATE_BURST", 1),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	AppConfig = config
	return config, nil
}

// UsingFallbackEncryption reports whether the deployment still runs on the
// built-in encryption material.
func (c *Config) UsingFallbackEncryption() bool {
	return c.EncryptionKey == DefaultEncryptionKey || c.EncryptionIV == DefaultEncryptionIV
}

// InitDB opens the sqlite database file, creating its directory if needed.
func InitDB() (*gorm.DB, error) {
	if dir := filepath.Dir(AppConfig.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	var logLevel logger.LogLevel
	if AppConfig.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(sqlite.Open(AppConfig.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	DB = db
	return db, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
