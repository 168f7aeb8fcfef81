// Package predictor produces directional calls for tracked stocks. The
// only implementation today is a random stub standing in for a model
// backend; its output shape is the real contract.
package predictor

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stockwatch/models"
	"stockwatch/services/apperr"
)

// Timeframes accepted by Generate.
const (
	TimeframeShort  = "short"
	TimeframeMedium = "medium"
	TimeframeLong   = "long"
)

// ValidTimeframe reports whether the given timeframe is accepted,
// defaulting empty input to medium.
func ValidTimeframe(timeframe string) (string, bool) {
	switch timeframe {
	case "":
		return TimeframeMedium, true
	case TimeframeShort, TimeframeMedium, TimeframeLong:
		return timeframe, true
	default:
		return "", false
	}
}

// Generator produces and persists one prediction per call.
type Generator interface {
	Generate(symbol, timeframe string) (*models.Prediction, error)
}

// StubGenerator makes random calls anchored to the latest stored close.
// The rand source is injectable so tests can pin the output.
type StubGenerator struct {
	db  *gorm.DB
	rng *rand.Rand
}

var _ Generator = (*StubGenerator)(nil)

func NewStubGenerator(db *gorm.DB, rng *rand.Rand) *StubGenerator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &StubGenerator{db: db, rng: rng}
}

var directions = []string{"bullish", "bearish", "neutral"}

// Generate requires a known stock with at least one stored price bar.
// Confidence lands in [0.40, 0.90]; the target price moves off the latest
// close by confidence-scaled ±10%.
func (g *StubGenerator) Generate(symbol, timeframe string) (*models.Prediction, error) {
	timeframe, ok := ValidTimeframe(timeframe)
	if !ok {
		return nil, fmt.Errorf("invalid timeframe %q", timeframe)
	}

	var stock models.Stock
	if err := g.db.First(&stock, "symbol = ?", symbol).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown stock %s", apperr.ErrNoData, symbol)
		}
		return nil, fmt.Errorf("%w: load stock %s: %v", apperr.ErrPersistence, symbol, err)
	}

	var latest models.HistoricalPrice
	err := g.db.Where("symbol = ?", symbol).Order("date desc").First(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no price history for %s", apperr.ErrNoData, symbol)
		}
		return nil, fmt.Errorf("%w: load prices for %s: %v", apperr.ErrPersistence, symbol, err)
	}

	direction := directions[g.rng.Intn(len(directions))]
	confidence := decimal.NewFromFloat(0.40 + g.rng.Float64()*0.50).Round(4)

	// Target drifts up for bullish, down for bearish, stays put for
	// neutral. Drift magnitude scales with confidence, capped at 10%.
	drift := latest.Close.Mul(confidence).Mul(decimal.NewFromFloat(0.10))
	target := latest.Close
	switch direction {
	case "bullish":
		target = latest.Close.Add(drift)
	case "bearish":
		target = latest.Close.Sub(drift)
	}
	target = target.Round(4)

	prediction := models.Prediction{
		Symbol:         stock.Symbol,
		Date:           time.Now().UTC().Truncate(24 * time.Hour),
		PredictionType: direction,
		Timeframe:      timeframe,
		Prediction: fmt.Sprintf("%s outlook for %s over the %s term, target %s",
			direction, stock.Symbol, timeframe, target.StringFixed(2)),
		Confidence:  confidence,
		TargetPrice: &target,
	}
	if err := g.db.Create(&prediction).Error; err != nil {
		return nil, fmt.Errorf("%w: store prediction for %s: %v", apperr.ErrPersistence, symbol, err)
	}
	return &prediction, nil
}
