package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"stockwatch/services/apperr"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// alphaVantage talks to the Alpha Vantage query API. Both overview and
// daily series live behind a single /query endpoint selected by the
// "function" parameter.
type alphaVantage struct {
	client *resty.Client
	apiKey string
}

var _ Provider = (*alphaVantage)(nil)

func newAlphaVantage(apiKey string) *alphaVantage {
	return &alphaVantage{
		client: newHTTPClient(alphaVantageBaseURL),
		apiKey: apiKey,
	}
}

func (p *alphaVantage) Name() string { return ProviderAlphaVantage }

type avOverviewResponse struct {
	Symbol   string `json:"Symbol"`
	Name     string `json:"Name"`
	Exchange string `json:"Exchange"`
	Sector   string `json:"Sector"`
	Industry string `json:"Industry"`

	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
}

type avBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type avDailyResponse struct {
	TimeSeries map[string]avBar `json:"Time Series (Daily)"`

	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
}

func (p *alphaVantage) FetchOverview(ctx context.Context, symbol string) (*StockInfo, error) {
	var result avOverviewResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "OVERVIEW",
			"symbol":   symbol,
			"apikey":   p.apiKey,
		}).
		SetResult(&result).
		Get("/query")
	if err != nil {
		return nil, fmt.Errorf("%w: alphavantage overview: %v", apperr.ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: alphavantage overview: status %d", apperr.ErrUpstream, resp.StatusCode())
	}
	if result.ErrorMessage != "" {
		return nil, fmt.Errorf("%w: alphavantage: %s", apperr.ErrUpstream, result.ErrorMessage)
	}
	if result.Note != "" {
		return nil, fmt.Errorf("%w: alphavantage rate limited: %s", apperr.ErrUpstream, result.Note)
	}

	info := &StockInfo{
		Symbol:   symbol,
		Name:     result.Name,
		Exchange: result.Exchange,
		Sector:   result.Sector,
		Industry: result.Industry,
	}
	if result.Symbol != "" {
		info.Symbol = result.Symbol
	}
	return info, nil
}

func (p *alphaVantage) FetchDailySeries(ctx context.Context, symbol string) ([]PricePoint, error) {
	var result avDailyResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function":   "TIME_SERIES_DAILY",
			"symbol":     symbol,
			"outputsize": "compact",
			"apikey":     p.apiKey,
		}).
		SetResult(&result).
		Get("/query")
	if err != nil {
		return nil, fmt.Errorf("%w: alphavantage series: %v", apperr.ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: alphavantage series: status %d", apperr.ErrUpstream, resp.StatusCode())
	}
	if result.ErrorMessage != "" {
		return nil, fmt.Errorf("%w: alphavantage: %s", apperr.ErrUpstream, result.ErrorMessage)
	}
	if result.Note != "" {
		return nil, fmt.Errorf("%w: alphavantage rate limited: %s", apperr.ErrUpstream, result.Note)
	}
	if len(result.TimeSeries) == 0 {
		return nil, fmt.Errorf("%w: alphavantage: empty time series for %s", apperr.ErrUpstream, symbol)
	}

	dates := make([]string, 0, len(result.TimeSeries))
	for date := range result.TimeSeries {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	points := make([]PricePoint, 0, len(dates))
	for _, dateStr := range dates {
		bar := result.TimeSeries[dateStr]
		date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: alphavantage: bad date %q", apperr.ErrUpstream, dateStr)
		}
		volume, err := strconv.ParseInt(bar.Volume, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: alphavantage: bad volume %q", apperr.ErrUpstream, bar.Volume)
		}
		point, err := parseBar(bar.Open, bar.High, bar.Low, bar.Close, volume, date)
		if err != nil {
			return nil, fmt.Errorf("%w: alphavantage: bad bar for %s: %v", apperr.ErrUpstream, dateStr, err)
		}
		points = append(points, point)
	}
	return points, nil
}
