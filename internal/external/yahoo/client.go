package yahoo

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/pkg/config"
	"github.com/wonny/fusion/backend/pkg/httputil"
	"github.com/wonny/fusion/backend/pkg/logger"
)

// quoteSummary modules carrying the fundamentals the scorer reads
const summaryModules = "financialData,summaryDetail,defaultKeyStatistics,assetProfile,price"

// Client reads daily bars and company fundamentals from Yahoo Finance
// ⭐ SSOT: Yahoo Finance API 호출은 이 클라이언트에서만
type Client struct {
	httpClient      *httputil.Client
	chartURL        string
	quoteSummaryURL string
	historyDays     int
	now             func() time.Time
	logger          *logger.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, cfg config.YahooConfig, log *logger.Logger) *Client {
	days := cfg.HistoryDays
	if days <= 0 {
		days = 730
	}
	return &Client{
		httpClient:      httpClient,
		chartURL:        strings.TrimRight(cfg.ChartURL, "/"),
		quoteSummaryURL: strings.TrimRight(cfg.QuoteSummaryURL, "/"),
		historyDays:     days,
		now:             time.Now,
		logger:          log.WithComponent("yahoo"),
	}
}

// chartResponse for the v8 chart endpoint. Prices are nullable.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol string `json:"symbol"`
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
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchPrices returns daily bars for the configured history window.
// Missing closes are kept as NaN; callers drop them before scoring.
func (c *Client) FetchPrices(ctx context.Context, ticker string) (*contracts.PriceTable, error) {
	end := c.now()
	start := end.AddDate(0, 0, -c.historyDays)

	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	params.Set("includeAdjustedClose", "true")

	var resp chartResponse
	fullURL := fmt.Sprintf("%s/%s?%s", c.chartURL, url.PathEscape(ticker), params.Encode())
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, fmt.Errorf("fetch chart %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart %s: no data in response", ticker)
	}

	table := parseChart(ticker, resp)

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"bars":   table.Len(),
	}).Debug("Fetched Yahoo chart")

	return table, nil
}

func parseChart(ticker string, resp chartResponse) *contracts.PriceTable {
	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]contracts.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bar := contracts.PriceBar{
			Date:     time.Unix(ts, 0).UTC(),
			Open:     at(quote.Open, i),
			High:     at(quote.High, i),
			Low:      at(quote.Low, i),
			Close:    at(quote.Close, i),
			AdjClose: at(adj, i),
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	return &contracts.PriceTable{Ticker: ticker, Bars: bars}
}

func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return math.NaN()
	}
	return *values[i]
}

// rawValue is Yahoo's {"raw": 1.2, "fmt": "1.20"} number wrapper
type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			FinancialData struct {
				RevenueGrowth rawValue `json:"revenueGrowth"`
			} `json:"financialData"`
			SummaryDetail struct {
				TrailingPE rawValue `json:"trailingPE"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				TrailingPE rawValue `json:"trailingPE"`
			} `json:"defaultKeyStatistics"`
			AssetProfile struct {
				Sector string `json:"sector"`
			} `json:"assetProfile"`
			Price struct {
				ShortName string `json:"shortName"`
			} `json:"price"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// FetchFundamentals returns the fundamentals record. Absent fields are
// left out of the record.
func (c *Client) FetchFundamentals(ctx context.Context, ticker string) (contracts.FundamentalsRecord, error) {
	params := url.Values{}
	params.Set("modules", summaryModules)

	var resp quoteSummaryResponse
	fullURL := fmt.Sprintf("%s/%s?%s", c.quoteSummaryURL, url.PathEscape(ticker), params.Encode())
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, fmt.Errorf("fetch quote summary %s: %w", ticker, err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("quote summary %s: %s", ticker, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("quote summary %s: no data in response", ticker)
	}

	r := resp.QuoteSummary.Result[0]
	record := contracts.FundamentalsRecord{}
	if r.FinancialData.RevenueGrowth.Raw != nil {
		record[contracts.KeyRevenueGrowth] = *r.FinancialData.RevenueGrowth.Raw
	}
	// summaryDetail 우선, 없으면 defaultKeyStatistics
	switch {
	case r.SummaryDetail.TrailingPE.Raw != nil:
		record[contracts.KeyTrailingPE] = *r.SummaryDetail.TrailingPE.Raw
	case r.DefaultKeyStatistics.TrailingPE.Raw != nil:
		record[contracts.KeyTrailingPE] = *r.DefaultKeyStatistics.TrailingPE.Raw
	}
	if r.AssetProfile.Sector != "" {
		record[contracts.KeySector] = r.AssetProfile.Sector
	}
	if r.Price.ShortName != "" {
		record[contracts.KeyShortName] = r.Price.ShortName
	}

	return record, nil
}
