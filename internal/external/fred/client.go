package fred

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/pkg/config"
	"github.com/wonny/fusion/backend/pkg/httputil"
	"github.com/wonny/fusion/backend/pkg/logger"
)

const dateLayout = "2006-01-02"

// Series maps a FRED series id to its macro column
type Series struct {
	ID     string
	Column string
	Scale  float64 // 컬럼 단위로 맞추는 배수
}

// DefaultSeries are the indicators read for the macro table.
// Balance-sheet series are aligned to millions of USD (WALCL's unit).
var DefaultSeries = []Series{
	{ID: "M2SL", Column: contracts.ColM2, Scale: 1},
	{ID: "T10Y2Y", Column: contracts.ColYieldSpread, Scale: 1},
	{ID: "WALCL", Column: contracts.ColFedAssets, Scale: 1},
	{ID: "WTREGEN", Column: contracts.ColTGA, Scale: 1000},
	{ID: "RRPONTSYD", Column: contracts.ColRRP, Scale: 1000},
	{ID: "UNRATE", Column: contracts.ColUnemployment, Scale: 1},
	{ID: "BAMLH0A0HYM2", Column: contracts.ColHYSpread, Scale: 1},
}

// Client reads series observations from the FRED API
// ⭐ SSOT: FRED API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	baseURL    string
	apiKey     string
	lookback   int
	series     []Series
	now        func() time.Time
	logger     *logger.Logger
}

// NewClient creates a new FRED client
func NewClient(httpClient *httputil.Client, cfg config.FREDConfig, log *logger.Logger) *Client {
	lookback := cfg.LookbackDays
	if lookback <= 0 {
		lookback = 365
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		lookback:   lookback,
		series:     DefaultSeries,
		now:        time.Now,
		logger:     log.WithComponent("fred"),
	}
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// Observation is one dated value of a series
type Observation struct {
	Date  time.Time
	Value float64
}

// FetchSeries returns the observations of one series over the lookback
// window. FRED's "." marks a missing value; those are skipped.
func (c *Client) FetchSeries(ctx context.Context, seriesID string) ([]Observation, error) {
	end := c.now()
	start := end.AddDate(0, 0, -c.lookback)

	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	params.Set("observation_start", start.Format(dateLayout))
	params.Set("observation_end", end.Format(dateLayout))

	var resp observationsResponse
	fullURL := fmt.Sprintf("%s/series/observations?%s", c.baseURL, params.Encode())
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", seriesID, err)
	}

	out := make([]Observation, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		if o.Value == "." || o.Value == "" {
			continue
		}
		v, err := strconv.ParseFloat(o.Value, 64)
		if err != nil {
			continue
		}
		d, err := time.Parse(dateLayout, o.Date)
		if err != nil {
			continue
		}
		out = append(out, Observation{Date: d, Value: v})
	}
	return out, nil
}

// MacroTable fetches every configured series and merges them on date.
// Without an API key it returns an empty table. A series that fails to
// load is left out; the table is only an error when every series failed.
func (c *Client) MacroTable(ctx context.Context) (*contracts.MacroSeriesTable, error) {
	if !c.Configured() {
		c.logger.Warn("FRED_API_KEY not set, returning empty macro table")
		return &contracts.MacroSeriesTable{}, nil
	}

	byDate := make(map[time.Time]map[string]float64)
	var lastErr error
	loaded := 0

	for _, s := range c.series {
		obs, err := c.FetchSeries(ctx, s.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.WithError(err).WithField("series", s.ID).Warn("Failed to load FRED series")
			lastErr = err
			continue
		}
		loaded++

		scale := s.Scale
		if scale == 0 {
			scale = 1
		}
		for _, o := range obs {
			row, ok := byDate[o.Date]
			if !ok {
				row = make(map[string]float64)
				byDate[o.Date] = row
			}
			row[s.Column] = o.Value * scale
		}
	}

	if loaded == 0 && lastErr != nil {
		return nil, fmt.Errorf("no FRED series loaded: %w", lastErr)
	}

	rows := make([]contracts.MacroObservation, 0, len(byDate))
	for d, values := range byDate {
		rows = append(rows, contracts.MacroObservation{Date: d, Values: values})
	}
	table, err := contracts.NewMacroSeriesTable(rows)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"series": loaded,
		"rows":   table.Len(),
		"cols":   table.Columns(),
	}).Info("Loaded macro table")

	return table, nil
}
