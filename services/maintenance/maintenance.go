// Package maintenance covers database housekeeping: stats, file backups
// and (re)initialization.
package maintenance

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"stockwatch/models"
	"stockwatch/services/apperr"
	"stockwatch/services/settings"
)

// DBStats is the health snapshot served by the database controller.
type DBStats struct {
	Stocks           int64      `json:"stocks"`
	HistoricalPrices int64      `json:"historical_prices"`
	Predictions      int64      `json:"predictions"`
	Notifications    int64      `json:"notifications"`
	Settings         int64      `json:"settings"`
	FileSizeBytes    int64      `json:"file_size_bytes"`
	LastBackupAt     *time.Time `json:"last_backup_at"`
}

type Service struct {
	db             *gorm.DB
	registry       *settings.Registry
	dbPath         string
	backupDir      string
	defaultSymbols string
	logger         *zap.Logger
}

func NewService(db *gorm.DB, registry *settings.Registry, dbPath, backupDir, defaultSymbols string, logger *zap.Logger) *Service {
	return &Service{
		db:             db,
		registry:       registry,
		dbPath:         dbPath,
		backupDir:      backupDir,
		defaultSymbols: defaultSymbols,
		logger:         logger,
	}
}

// Stats counts every table and sizes the database file. A missing file
// size is reported as zero, not an error.
func (s *Service) Stats() (*DBStats, error) {
	stats := &DBStats{}
	counts := map[interface{}]*int64{
		&models.Stock{}:           &stats.Stocks,
		&models.HistoricalPrice{}: &stats.HistoricalPrices,
		&models.Prediction{}:      &stats.Predictions,
		&models.Notification{}:    &stats.Notifications,
		&models.Setting{}:         &stats.Settings,
	}
	for model, target := range counts {
		if err := s.db.Model(model).Count(target).Error; err != nil {
			return nil, fmt.Errorf("%w: count: %v", apperr.ErrPersistence, err)
		}
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.FileSizeBytes = info.Size()
	}

	if value, ok, err := s.registry.Get(settings.KeyLastBackupAt); err != nil {
		return nil, err
	} else if ok {
		if parsed, err := time.Parse(time.RFC3339, value); err == nil {
			stats.LastBackupAt = &parsed
		}
	}
	return stats, nil
}

// Backup copies the database file into the backup directory under a
// timestamped name and stamps last_backup_at.
func (s *Service) Backup() (string, error) {
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create backup dir: %v", apperr.ErrPersistence, err)
	}

	now := time.Now().UTC()
	target := filepath.Join(s.backupDir, fmt.Sprintf("stocks-%s.db", now.Format("20060102-150405")))
	if err := copyFile(s.dbPath, target); err != nil {
		return "", fmt.Errorf("%w: backup: %v", apperr.ErrPersistence, err)
	}

	if err := s.registry.Set(settings.KeyLastBackupAt, now.Format(time.RFC3339)); err != nil {
		return "", err
	}
	s.logger.Info("database backed up", zap.String("path", target))
	return target, nil
}

// Initialize migrates the schema and seeds default stocks, dropping all
// tables first when reset is requested.
func (s *Service) Initialize(reset bool) error {
	if reset {
		for _, model := range models.AllModels() {
			if err := s.db.Migrator().DropTable(model); err != nil {
				return fmt.Errorf("%w: drop table: %v", apperr.ErrPersistence, err)
			}
		}
		s.logger.Warn("database reset: all tables dropped")
	}

	if err := models.Migrate(s.db); err != nil {
		return fmt.Errorf("%w: migrate: %v", apperr.ErrPersistence, err)
	}
	if err := models.SeedDefaultStocks(s.db, s.defaultSymbols); err != nil {
		return fmt.Errorf("%w: seed stocks: %v", apperr.ErrPersistence, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
