package marketdata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stockwatch/models"
	"stockwatch/services/apperr"
	"stockwatch/services/secrets"
	"stockwatch/services/settings"
)

type fakeProvider struct {
	info   *StockInfo
	points []PricePoint
	err    error
	calls  int
}

var _ Provider = (*fakeProvider)(nil)

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchOverview(ctx context.Context, symbol string) (*StockInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	info := *f.info
	info.Symbol = symbol
	return &info, nil
}

func (f *fakeProvider) FetchDailySeries(ctx context.Context, symbol string) ([]PricePoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.points, nil
}

func day(value string) time.Time {
	parsed, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		panic(err)
	}
	return parsed
}

func bar(date string, closePrice int64, volume int64) PricePoint {
	price := decimal.NewFromInt(closePrice)
	return PricePoint{
		Date:   day(date),
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: volume,
	}
}

func setupGateway(t *testing.T, provider Provider) (*Gateway, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	registry := settings.NewRegistry(db)
	store := secrets.NewStore("test-secret", "test-iv-seed")
	gateway := NewGateway(db, registry, store, rate.NewLimiter(rate.Inf, 1), ProviderYahoo, zap.NewNop())
	if provider != nil {
		gateway.newProvider = func(name, apiKey string) (Provider, error) {
			return provider, nil
		}
	}
	return gateway, db
}

func TestRefreshUpsertsStockAndPrices(t *testing.T) {
	fake := &fakeProvider{
		info: &StockInfo{Name: "Apple Inc.", Exchange: "NASDAQ", Sector: "Technology"},
		points: []PricePoint{
			bar("2026-08-27", 230, 100),
			bar("2026-08-28", 231, 200),
		},
	}
	gateway, db := setupGateway(t, fake)

	result, err := gateway.Refresh(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", result.Stock.Symbol)
	assert.Equal(t, 2, result.Prices)

	var priceCount int64
	require.NoError(t, db.Model(&models.HistoricalPrice{}).Count(&priceCount).Error)
	assert.Equal(t, int64(2), priceCount)
}

func TestRefreshIsIdempotent(t *testing.T) {
	fake := &fakeProvider{
		info:   &StockInfo{Name: "Apple Inc."},
		points: []PricePoint{bar("2026-08-28", 231, 200)},
	}
	gateway, db := setupGateway(t, fake)

	_, err := gateway.Refresh(context.Background(), "AAPL")
	require.NoError(t, err)

	// Second run with an updated close for the same date overwrites,
	// never duplicates.
	fake.points = []PricePoint{bar("2026-08-28", 235, 300)}
	_, err = gateway.Refresh(context.Background(), "AAPL")
	require.NoError(t, err)

	var prices []models.HistoricalPrice
	require.NoError(t, db.Where("symbol = ?", "AAPL").Find(&prices).Error)
	require.Len(t, prices, 1)
	assert.Equal(t, "235", prices[0].Close.String())

	var stockCount int64
	require.NoError(t, db.Model(&models.Stock{}).Count(&stockCount).Error)
	assert.Equal(t, int64(1), stockCount)
}

func TestRefreshAllIsolatesFailures(t *testing.T) {
	fake := &fakeProvider{
		info:   &StockInfo{Name: "Good Corp"},
		points: []PricePoint{bar("2026-08-28", 50, 10)},
	}
	gateway, db := setupGateway(t, nil)
	gateway.newProvider = func(name, apiKey string) (Provider, error) {
		return &batchProvider{good: fake}, nil
	}

	outcomes := gateway.RefreshAll(context.Background(), []string{"GOOD", "BAD$", "ALSO"})
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Success)
	assert.False(t, outcomes[1].Success)
	assert.NotEmpty(t, outcomes[1].Error)
	assert.True(t, outcomes[2].Success)

	var symbols []string
	require.NoError(t, db.Model(&models.Stock{}).Order("symbol").Pluck("symbol", &symbols).Error)
	assert.Equal(t, []string{"ALSO", "GOOD"}, symbols)
}

// batchProvider fails any symbol containing '$' and delegates the rest.
type batchProvider struct {
	good *fakeProvider
}

func (b *batchProvider) Name() string { return "fake" }

func (b *batchProvider) FetchOverview(ctx context.Context, symbol string) (*StockInfo, error) {
	for _, c := range symbol {
		if c == '$' {
			return nil, fmt.Errorf("%w: invalid symbol %q", apperr.ErrUpstream, symbol)
		}
	}
	return b.good.FetchOverview(ctx, symbol)
}

func (b *batchProvider) FetchDailySeries(ctx context.Context, symbol string) ([]PricePoint, error) {
	return b.good.FetchDailySeries(ctx, symbol)
}

func TestRefreshMissingCredential(t *testing.T) {
	gateway, _ := setupGateway(t, nil)
	gateway.defaultProvider = ProviderAlphaVantage
	gateway.newProvider = NewProvider

	_, err := gateway.Refresh(context.Background(), "AAPL")
	assert.ErrorIs(t, err, apperr.ErrMissingCredential)
}

func TestRefreshDecryptsStoredCredential(t *testing.T) {
	fake := &fakeProvider{
		info:   &StockInfo{Name: "Apple Inc."},
		points: []PricePoint{bar("2026-08-28", 231, 200)},
	}
	gateway, _ := setupGateway(t, nil)

	ciphertext, err := gateway.secrets.Encrypt("real-api-key")
	require.NoError(t, err)
	require.NoError(t, gateway.registry.Set(settings.KeyStockAPIKey, ciphertext))
	require.NoError(t, gateway.registry.Set(settings.KeyStockAPIProvider, ProviderAlphaVantage))

	var gotKey string
	gateway.newProvider = func(name, apiKey string) (Provider, error) {
		gotKey = apiKey
		return fake, nil
	}

	_, err = gateway.Refresh(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "real-api-key", gotKey)
}

func TestRefreshUnsupportedProviderSetting(t *testing.T) {
	gateway, _ := setupGateway(t, nil)

	// An unknown name fails before credential resolution gets a chance
	// to complain about a missing key.
	require.NoError(t, gateway.registry.Set(settings.KeyStockAPIProvider, "bloomberg"))
	_, err := gateway.Refresh(context.Background(), "AAPL")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedProvider)
}

func TestTestConnection(t *testing.T) {
	fake := &fakeProvider{
		info:   &StockInfo{Name: "Apple Inc."},
		points: []PricePoint{bar("2026-08-28", 231, 200)},
	}
	gateway, _ := setupGateway(t, fake)

	require.NoError(t, gateway.TestConnection(context.Background()))
	assert.Equal(t, 1, fake.calls)

	fake.err = fmt.Errorf("%w: boom", apperr.ErrUpstream)
	assert.ErrorIs(t, gateway.TestConnection(context.Background()), apperr.ErrUpstream)
}
