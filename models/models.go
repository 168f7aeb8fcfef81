package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Setting is a single key/value configuration row. Values for sensitive
// keys are stored ciphertext-only; the registry never decrypts them.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key" json:"key"`
	Value     *string   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }

// Stock is one tracked instrument, keyed by symbol. Rows are upserted by
// the market-data gateway and never deleted by the core.
type Stock struct {
	Symbol    string    `gorm:"primaryKey" json:"symbol"`
	Name      string    `json:"name"`
	Exchange  string    `json:"exchange"`
	Sector    string    `json:"sector"`
	Industry  string    `json:"industry"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Stock) TableName() string { return "stocks" }

// HistoricalPrice is one daily OHLCV bar. (symbol, date) is the natural
// key; re-fetching the same date overwrites silently.
type HistoricalPrice struct {
	ID     uint            `gorm:"primaryKey" json:"id"`
	Symbol string          `gorm:"uniqueIndex:idx_symbol_date;not null" json:"symbol"`
	Stock  *Stock          `gorm:"foreignKey:Symbol;references:Symbol" json:"-"`
	Date   time.Time       `gorm:"uniqueIndex:idx_symbol_date;not null" json:"date"`
	Open   decimal.Decimal `gorm:"type:decimal(15,4)" json:"open"`
	High   decimal.Decimal `gorm:"type:decimal(15,4)" json:"high"`
	Low    decimal.Decimal `gorm:"type:decimal(15,4)" json:"low"`
	Close  decimal.Decimal `gorm:"type:decimal(15,4)" json:"close"`
	Volume int64           `json:"volume"`
}

func (HistoricalPrice) TableName() string { return "historical_prices" }

// Prediction is an append-only directional call. PredictionType is
// bullish, bearish or neutral; Prediction holds the human-readable text.
type Prediction struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	Symbol         string           `gorm:"index;not null" json:"symbol"`
	Stock          *Stock           `gorm:"foreignKey:Symbol;references:Symbol" json:"-"`
	Date           time.Time        `gorm:"index" json:"date"`
	PredictionType string           `json:"prediction_type"`
	Timeframe      string           `json:"timeframe"` // short, medium, long
	Prediction     string           `json:"prediction"`
	Confidence     decimal.Decimal  `gorm:"type:decimal(5,4)" json:"confidence"`
	TargetPrice    *decimal.Decimal `gorm:"type:decimal(15,4)" json:"target_price"`
	CreatedAt      time.Time        `json:"created_at"`
}

func (Prediction) TableName() string { return "predictions" }

// Notification lifecycle: created, optionally sent immediately, otherwise
// pending until a scheduler flush or an explicit send marks it sent. A sent
// row is never mutated again except for deletion.
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Type      string     `json:"type"`
	Symbol    *string    `json:"symbol,omitempty"`
	Message   string     `json:"message"`
	IsSent    bool       `gorm:"index" json:"is_sent"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at"`
}

func (Notification) TableName() string { return "notifications" }

// AllModels lists every persisted model, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Setting{},
		&Stock{},
		&HistoricalPrice{},
		&Prediction{},
		&Notification{},
	}
}

// Migrate runs database migrations for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// SeedDefaultStocks inserts placeholder rows for the configured default
// symbols so the first scheduled refresh has something to work on.
func SeedDefaultStocks(db *gorm.DB, symbols string) error {
	for _, symbol := range strings.Split(symbols, ",") {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		stock := Stock{Symbol: symbol, Name: symbol}
		if err := db.FirstOrCreate(&stock, Stock{Symbol: symbol}).Error; err != nil {
			return err
		}
	}
	return nil
}
