package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"stockwatch/services/apperr"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// yahoo uses the unofficial chart endpoint. No API key required; overview
// fields come from the chart metadata and sector/industry stay empty.
type yahoo struct {
	client *resty.Client
}

var _ Provider = (*yahoo)(nil)

func newYahoo() *yahoo {
	return &yahoo{client: newHTTPClient(yahooBaseURL)}
}

func (p *yahoo) Name() string { return ProviderYahoo }

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol       string `json:"symbol"`
				ShortName    string `json:"shortName"`
				LongName     string `json:"longName"`
				ExchangeName string `json:"fullExchangeName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *yahoo) fetchChart(ctx context.Context, symbol, dataRange string) (*yahooChartResponse, error) {
	var result yahooChartResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"range":    dataRange,
			"interval": "1d",
		}).
		SetResult(&result).
		Get("/v8/finance/chart/" + symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo chart: %v", apperr.ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: yahoo chart: status %d", apperr.ErrUpstream, resp.StatusCode())
	}
	if result.Chart.Error != nil {
		return nil, fmt.Errorf("%w: yahoo: %s", apperr.ErrUpstream, result.Chart.Error.Description)
	}
	if len(result.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: yahoo: empty chart for %s", apperr.ErrUpstream, symbol)
	}
	return &result, nil
}

func (p *yahoo) FetchOverview(ctx context.Context, symbol string) (*StockInfo, error) {
	result, err := p.fetchChart(ctx, symbol, "1d")
	if err != nil {
		return nil, err
	}

	meta := result.Chart.Result[0].Meta
	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}
	info := &StockInfo{
		Symbol:   symbol,
		Name:     name,
		Exchange: meta.ExchangeName,
	}
	if meta.Symbol != "" {
		info.Symbol = meta.Symbol
	}
	return info, nil
}

func (p *yahoo) FetchDailySeries(ctx context.Context, symbol string) ([]PricePoint, error) {
	result, err := p.fetchChart(ctx, symbol, "3mo")
	if err != nil {
		return nil, err
	}

	chart := result.Chart.Result[0]
	if len(chart.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: yahoo: no quote data for %s", apperr.ErrUpstream, symbol)
	}
	quote := chart.Indicators.Quote[0]

	// The chart endpoint pads incomplete sessions with nulls and has been
	// seen returning quote arrays shorter than the timestamp list.
	n := len(chart.Timestamp)
	for _, series := range [][]*float64{quote.Open, quote.High, quote.Low, quote.Close} {
		if len(series) < n {
			n = len(series)
		}
	}
	if len(quote.Volume) < n {
		n = len(quote.Volume)
	}

	points := make([]PricePoint, 0, n)
	for i := 0; i < n; i++ {
		ts := chart.Timestamp[i]
		if quote.Open[i] == nil || quote.High[i] == nil ||
			quote.Low[i] == nil || quote.Close[i] == nil || quote.Volume[i] == nil {
			continue
		}
		day := time.Unix(ts, 0).UTC()
		points = append(points, PricePoint{
			Date:   time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			Open:   decimal.NewFromFloat(*quote.Open[i]),
			High:   decimal.NewFromFloat(*quote.High[i]),
			Low:    decimal.NewFromFloat(*quote.Low[i]),
			Close:  decimal.NewFromFloat(*quote.Close[i]),
			Volume: *quote.Volume[i],
		})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: yahoo: empty series for %s", apperr.ErrUpstream, symbol)
	}
	return points, nil
}
