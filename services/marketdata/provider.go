// Package marketdata adapts interchangeable stock-data providers into one
// canonical shape and persists the results.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"stockwatch/services/apperr"
)

// Providers known to the gateway.
const (
	ProviderAlphaVantage = "alphavantage"
	ProviderTwelveData   = "twelvedata"
	ProviderYahoo        = "yahoo"
)

const requestTimeout = 15 * time.Second

// StockInfo is the canonical company overview. Field availability differs
// per provider; empty sector/industry is expected, not an error.
type StockInfo struct {
	Symbol   string
	Name     string
	Exchange string
	Sector   string
	Industry string
}

// PricePoint is one canonical daily bar.
type PricePoint struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Provider is one external stock-data source. Each variant maps its own
// response schema into the canonical shape.
type Provider interface {
	Name() string
	FetchOverview(ctx context.Context, symbol string) (*StockInfo, error)
	FetchDailySeries(ctx context.Context, symbol string) ([]PricePoint, error)
}

// RequiresAPIKey reports whether the named provider needs a credential
// before any network call.
func RequiresAPIKey(name string) bool {
	return name != ProviderYahoo
}

// NewProvider builds the named provider variant.
func NewProvider(name, apiKey string) (Provider, error) {
	switch name {
	case ProviderAlphaVantage:
		return newAlphaVantage(apiKey), nil
	case ProviderTwelveData:
		return newTwelveData(apiKey), nil
	case ProviderYahoo:
		return newYahoo(), nil
	default:
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnsupportedProvider, name)
	}
}

func newHTTPClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout)
}

func parseBar(open, high, low, closePrice string, volume int64, date time.Time) (PricePoint, error) {
	var point PricePoint
	var err error
	if point.Open, err = decimal.NewFromString(open); err != nil {
		return point, err
	}
	if point.High, err = decimal.NewFromString(high); err != nil {
		return point, err
	}
	if point.Low, err = decimal.NewFromString(low); err != nil {
		return point, err
	}
	if point.Close, err = decimal.NewFromString(closePrice); err != nil {
		return point, err
	}
	point.Volume = volume
	point.Date = date
	return point, nil
}
