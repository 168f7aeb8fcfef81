package predictor

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stockwatch/models"
	"stockwatch/services/apperr"
)

func setupGenerator(t *testing.T) (*StubGenerator, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return NewStubGenerator(db, rand.New(rand.NewSource(42))), db
}

func seedStock(t *testing.T, db *gorm.DB, symbol string, close int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.Stock{Symbol: symbol, Name: symbol}).Error)
	require.NoError(t, db.Create(&models.HistoricalPrice{
		Symbol: symbol,
		Date:   time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		Close:  decimal.NewFromInt(close),
	}).Error)
}

func TestGenerateUnknownStock(t *testing.T) {
	generator, _ := setupGenerator(t)
	_, err := generator.Generate("NOPE", TimeframeMedium)
	assert.ErrorIs(t, err, apperr.ErrNoData)
}

func TestGenerateNoPriceHistory(t *testing.T) {
	generator, db := setupGenerator(t)
	require.NoError(t, db.Create(&models.Stock{Symbol: "AAPL", Name: "Apple"}).Error)

	_, err := generator.Generate("AAPL", TimeframeMedium)
	assert.ErrorIs(t, err, apperr.ErrNoData)
}

func TestGenerateBounds(t *testing.T) {
	generator, db := setupGenerator(t)
	seedStock(t, db, "AAPL", 200)

	lower := decimal.NewFromFloat(0.40)
	upper := decimal.NewFromFloat(0.90)
	for i := 0; i < 50; i++ {
		prediction, err := generator.Generate("AAPL", "")
		require.NoError(t, err)

		assert.Contains(t, directions, prediction.PredictionType)
		assert.Equal(t, TimeframeMedium, prediction.Timeframe)
		assert.True(t, prediction.Confidence.GreaterThanOrEqual(lower))
		assert.True(t, prediction.Confidence.LessThanOrEqual(upper))

		require.NotNil(t, prediction.TargetPrice)
		close := decimal.NewFromInt(200)
		maxDrift := close.Mul(decimal.NewFromFloat(0.09)) // 0.90 * 10%
		diff := prediction.TargetPrice.Sub(close).Abs()
		assert.True(t, diff.LessThanOrEqual(maxDrift.Add(decimal.NewFromFloat(0.0001))))
	}
}

func TestGenerateAppendsRows(t *testing.T) {
	generator, db := setupGenerator(t)
	seedStock(t, db, "AAPL", 200)

	_, err := generator.Generate("AAPL", TimeframeShort)
	require.NoError(t, err)
	_, err = generator.Generate("AAPL", TimeframeShort)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Prediction{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestGenerateInvalidTimeframe(t *testing.T) {
	generator, db := setupGenerator(t)
	seedStock(t, db, "AAPL", 200)

	_, err := generator.Generate("AAPL", "decade")
	assert.Error(t, err)
}

func TestValidTimeframe(t *testing.T) {
	timeframe, ok := ValidTimeframe("")
	assert.True(t, ok)
	assert.Equal(t, TimeframeMedium, timeframe)

	_, ok = ValidTimeframe("long")
	assert.True(t, ok)
	_, ok = ValidTimeframe("decade")
	assert.False(t, ok)
}
