// Package settings is the key/value configuration store backing every
// other component. It is encryption-agnostic: callers encrypt sensitive
// values before Set and decrypt after Get.
package settings

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockwatch/models"
	"stockwatch/services/apperr"
)

// Well-known setting keys.
const (
	KeyStockAPIKey      = "stock_api_key"
	KeyStockAPIProvider = "stock_api_provider"
	KeyAIAPIKey         = "ai_api_key"
	KeyAIAPIProvider    = "ai_api_provider"
	KeyTelegramToken    = "telegram_token"
	KeyTelegramChatID   = "telegram_chat_id"
	KeyLastBackupAt     = "last_backup_at"
	KeyTrackedSymbols   = "tracked_symbols"
)

// sensitiveKeys are stored ciphertext-only and redacted on listing.
var sensitiveKeys = map[string]bool{
	KeyStockAPIKey:   true,
	KeyAIAPIKey:      true,
	KeyTelegramToken: true,
}

// IsSensitive reports whether key holds an encrypted credential.
func IsSensitive(key string) bool { return sensitiveKeys[key] }

// SettingView is the external representation of one setting. Sensitive
// keys carry only the IsSet flag; Value stays nil so ciphertext and
// plaintext never leave the boundary together.
type SettingView struct {
	Key       string    `json:"key"`
	Value     *string   `json:"value,omitempty"`
	IsSet     *bool     `json:"is_set,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry reads and writes the settings table.
type Registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// Get returns the raw stored value for key. ok=false when the key is
// absent or holds a null value.
func (r *Registry) Get(key string) (value string, ok bool, err error) {
	var setting models.Setting
	if err := r.db.Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: read setting %s: %v", apperr.ErrPersistence, key, err)
	}
	if setting.Value == nil {
		return "", false, nil
	}
	return *setting.Value, true, nil
}

// Set upserts key to value, stamping updated_at.
func (r *Registry) Set(key, value string) error {
	setting := models.Setting{Key: key, Value: &value, UpdatedAt: time.Now().UTC()}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("%w: write setting %s: %v", apperr.ErrPersistence, key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (r *Registry) Delete(key string) error {
	if err := r.db.Where("key = ?", key).Delete(&models.Setting{}).Error; err != nil {
		return fmt.Errorf("%w: delete setting %s: %v", apperr.ErrPersistence, key, err)
	}
	return nil
}

// GetAll lists every setting ordered by key, with sensitive values
// redacted to an is_set flag.
func (r *Registry) GetAll() ([]SettingView, error) {
	var rows []models.Setting
	if err := r.db.Order("key asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list settings: %v", apperr.ErrPersistence, err)
	}

	views := make([]SettingView, 0, len(rows))
	for _, row := range rows {
		view := SettingView{Key: row.Key, UpdatedAt: row.UpdatedAt}
		if IsSensitive(row.Key) {
			isSet := row.Value != nil && *row.Value != ""
			view.IsSet = &isSet
		} else {
			view.Value = row.Value
		}
		views = append(views, view)
	}
	return views, nil
}
