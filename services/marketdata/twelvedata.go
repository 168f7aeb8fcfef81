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

const twelveDataBaseURL = "https://api.twelvedata.com"

// twelveData talks to the Twelve Data REST API. The provider does not
// publish sector/industry, so those canonical fields come back empty.
type twelveData struct {
	client *resty.Client
	apiKey string
}

var _ Provider = (*twelveData)(nil)

func newTwelveData(apiKey string) *twelveData {
	return &twelveData{
		client: newHTTPClient(twelveDataBaseURL),
		apiKey: apiKey,
	}
}

func (p *twelveData) Name() string { return ProviderTwelveData }

type tdErrorEnvelope struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e tdErrorEnvelope) failed() bool { return e.Status == "error" }

type tdQuoteResponse struct {
	tdErrorEnvelope
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

type tdValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

type tdSeriesResponse struct {
	tdErrorEnvelope
	Values []tdValue `json:"values"`
}

func (p *twelveData) FetchOverview(ctx context.Context, symbol string) (*StockInfo, error) {
	var result tdQuoteResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"apikey": p.apiKey,
		}).
		SetResult(&result).
		Get("/quote")
	if err != nil {
		return nil, fmt.Errorf("%w: twelvedata quote: %v", apperr.ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: twelvedata quote: status %d", apperr.ErrUpstream, resp.StatusCode())
	}
	if result.failed() {
		return nil, fmt.Errorf("%w: twelvedata: %s", apperr.ErrUpstream, result.Message)
	}

	info := &StockInfo{
		Symbol:   symbol,
		Name:     result.Name,
		Exchange: result.Exchange,
	}
	if result.Symbol != "" {
		info.Symbol = result.Symbol
	}
	return info, nil
}

func (p *twelveData) FetchDailySeries(ctx context.Context, symbol string) ([]PricePoint, error) {
	var result tdSeriesResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":     symbol,
			"interval":   "1day",
			"outputsize": "100",
			"apikey":     p.apiKey,
		}).
		SetResult(&result).
		Get("/time_series")
	if err != nil {
		return nil, fmt.Errorf("%w: twelvedata series: %v", apperr.ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: twelvedata series: status %d", apperr.ErrUpstream, resp.StatusCode())
	}
	if result.failed() {
		return nil, fmt.Errorf("%w: twelvedata: %s", apperr.ErrUpstream, result.Message)
	}
	if len(result.Values) == 0 {
		return nil, fmt.Errorf("%w: twelvedata: empty time series for %s", apperr.ErrUpstream, symbol)
	}

	points := make([]PricePoint, 0, len(result.Values))
	for _, value := range result.Values {
		date, err := time.ParseInLocation("2006-01-02", value.Datetime, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: twelvedata: bad datetime %q", apperr.ErrUpstream, value.Datetime)
		}
		volume, err := strconv.ParseInt(value.Volume, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: twelvedata: bad volume %q", apperr.ErrUpstream, value.Volume)
		}
		point, err := parseBar(value.Open, value.High, value.Low, value.Close, volume, date)
		if err != nil {
			return nil, fmt.Errorf("%w: twelvedata: bad bar for %s: %v", apperr.ErrUpstream, value.Datetime, err)
		}
		points = append(points, point)
	}

	// Twelve Data returns newest first; callers expect ascending dates.
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}
