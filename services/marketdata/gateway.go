package marketdata

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockwatch/models"
	"stockwatch/services/apperr"
	"stockwatch/services/secrets"
	"stockwatch/services/settings"
)

// RefreshResult is the outcome of one successful symbol refresh.
type RefreshResult struct {
	Stock  models.Stock `json:"stock"`
	Prices int          `json:"prices"`
}

// Outcome is one entry of a batch refresh report.
type Outcome struct {
	Symbol  string `json:"symbol"`
	Success bool   `json:"success"`
	Prices  int    `json:"prices,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Gateway orchestrates provider fetches and persistence. The limiter is
// the pacing contract between consecutive refreshes in a batch.
type Gateway struct {
	db              *gorm.DB
	registry        *settings.Registry
	secrets         *secrets.Store
	limiter         *rate.Limiter
	logger          *zap.Logger
	defaultProvider string

	// newProvider is swappable so tests can inject a fake variant.
	newProvider func(name, apiKey string) (Provider, error)
}

func NewGateway(db *gorm.DB, registry *settings.Registry, store *secrets.Store, limiter *rate.Limiter, defaultProvider string, logger *zap.Logger) *Gateway {
	return &Gateway{
		db:              db,
		registry:        registry,
		secrets:         store,
		limiter:         limiter,
		logger:          logger,
		defaultProvider: defaultProvider,
		newProvider:     NewProvider,
	}
}

// resolveProvider reads the configured provider and its credential. The
// provider setting is read once per call; a missing or undecryptable key
// fails before any network call is attempted.
func (g *Gateway) resolveProvider() (Provider, error) {
	name, ok, err := g.registry.Get(settings.KeyStockAPIProvider)
	if err != nil {
		return nil, err
	}
	if !ok || name == "" {
		name = g.defaultProvider
	}

	switch name {
	case ProviderAlphaVantage, ProviderTwelveData, ProviderYahoo:
	default:
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnsupportedProvider, name)
	}

	var apiKey string
	if RequiresAPIKey(name) {
		ciphertext, ok, err := g.registry.Get(settings.KeyStockAPIKey)
		if err != nil {
			return nil, err
		}
		if !ok || ciphertext == "" {
			return nil, fmt.Errorf("%w: stock_api_key", apperr.ErrMissingCredential)
		}
		apiKey, ok = g.secrets.Decrypt(ciphertext)
		if !ok {
			return nil, fmt.Errorf("%w: stock_api_key cannot be decrypted", apperr.ErrMissingCredential)
		}
	}

	return g.newProvider(name, apiKey)
}

// Refresh fetches overview and daily series for one symbol and upserts
// stock plus price rows in a single transaction: either both land or
// neither does.
func (g *Gateway) Refresh(ctx context.Context, symbol string) (*RefreshResult, error) {
	provider, err := g.resolveProvider()
	if err != nil {
		return nil, err
	}

	info, err := provider.FetchOverview(ctx, symbol)
	if err != nil {
		return nil, err
	}
	points, err := provider.FetchDailySeries(ctx, symbol)
	if err != nil {
		return nil, err
	}

	stock := models.Stock{
		Symbol:   info.Symbol,
		Name:     info.Name,
		Exchange: info.Exchange,
		Sector:   info.Sector,
		Industry: info.Industry,
	}

	err = g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "exchange", "sector", "industry", "updated_at"}),
		}).Create(&stock).Error; err != nil {
			return err
		}

		for _, point := range points {
			price := models.HistoricalPrice{
				Symbol: stock.Symbol,
				Date:   point.Date,
				Open:   point.Open,
				High:   point.High,
				Low:    point.Low,
				Close:  point.Close,
				Volume: point.Volume,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
				DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
			}).Create(&price).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: refresh %s: %v", apperr.ErrPersistence, symbol, err)
	}

	g.logger.Info("refreshed symbol",
		zap.String("symbol", stock.Symbol),
		zap.String("provider", provider.Name()),
		zap.Int("prices", len(points)),
	)
	return &RefreshResult{Stock: stock, Prices: len(points)}, nil
}

// RefreshAll processes each symbol independently, pacing consecutive
// calls through the limiter. One symbol's failure never aborts the rest.
func (g *Gateway) RefreshAll(ctx context.Context, symbols []string) []Outcome {
	outcomes := make([]Outcome, 0, len(symbols))
	for _, symbol := range symbols {
		if err := g.limiter.Wait(ctx); err != nil {
			outcomes = append(outcomes, Outcome{Symbol: symbol, Error: err.Error()})
			continue
		}

		result, err := g.Refresh(ctx, symbol)
		if err != nil {
			g.logger.Warn("symbol refresh failed", zap.String("symbol", symbol), zap.Error(err))
			outcomes = append(outcomes, Outcome{Symbol: symbol, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, Outcome{Symbol: symbol, Success: true, Prices: result.Prices})
	}
	return outcomes
}

// TestConnection verifies the configured provider and credential by
// fetching a well-known symbol's overview.
func (g *Gateway) TestConnection(ctx context.Context) error {
	provider, err := g.resolveProvider()
	if err != nil {
		return err
	}
	_, err = provider.FetchOverview(ctx, "AAPL")
	return err
}
