package yahoo

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/pkg/config"
	"github.com/wonny/fusion/backend/pkg/httputil"
	"github.com/wonny/fusion/backend/pkg/logger"
)

const chartFixture = `{"chart":{"result":[{
  "meta":{"symbol":"AAPL"},
  "timestamp":[1704205800,1704292200,1704378600],
  "indicators":{
    "quote":[{"open":[187.1,184.2,182.1],"high":[188.4,185.8,183.0],"low":[183.8,183.4,180.8],
              "close":[185.6,null,181.9],"volume":[82488700,null,71983600]}],
    "adjclose":[{"adjclose":[184.9,null,181.2]}]}}],"error":null}}`

const summaryFixture = `{"quoteSummary":{"result":[{
  "financialData":{"revenueGrowth":{"raw":0.061,"fmt":"6.10%"}},
  "summaryDetail":{"trailingPE":{"raw":29.4,"fmt":"29.40"}},
  "defaultKeyStatistics":{},
  "assetProfile":{"sector":"Technology"},
  "price":{"shortName":"Apple Inc."}}],"error":null}}`

func newTestClient(serverURL string) *Client {
	hc := httputil.New(&config.Config{HTTPRateLimitRPS: 1000}, logger.Nop()).DisableRetry()
	c := NewClient(hc, config.YahooConfig{
		ChartURL:        serverURL + "/chart",
		QuoteSummaryURL: serverURL + "/summary/",
		HistoryDays:     10,
	}, logger.Nop())
	c.now = func() time.Time { return time.Unix(1704900000, 0) }
	return c
}

func TestFetchPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1704900000", r.URL.Query().Get("period2"))
		w.Write([]byte(chartFixture))
	}))
	defer server.Close()

	table, err := newTestClient(server.URL).FetchPrices(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, "AAPL", table.Ticker)

	assert.Equal(t, 185.6, table.Bars[0].Close)
	assert.Equal(t, 184.9, table.Bars[0].AdjClose)
	assert.Equal(t, int64(82488700), table.Bars[0].Volume)
	assert.True(t, math.IsNaN(table.Bars[1].Close))
	assert.Equal(t, int64(0), table.Bars[1].Volume)

	clean := table.DropMissingClose()
	assert.Equal(t, []float64{185.6, 181.9}, clean.Closes())
}

func TestFetchPrices_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"chart error", `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`, http.StatusOK},
		{"empty result", `{"chart":{"result":[],"error":null}}`, http.StatusOK},
		{"http status", `{}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).FetchPrices(context.Background(), "ZZZZ")
			assert.Error(t, err)
		})
	}
}

func TestFetchFundamentals(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/summary/AAPL", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("modules"), "financialData")
		w.Write([]byte(summaryFixture))
	}))
	defer server.Close()

	rec, err := newTestClient(server.URL).FetchFundamentals(context.Background(), "AAPL")
	require.NoError(t, err)

	growth, ok := rec.Float(contracts.KeyRevenueGrowth)
	require.True(t, ok)
	assert.Equal(t, 0.061, growth)

	pe, ok := rec.Float(contracts.KeyTrailingPE)
	require.True(t, ok)
	assert.Equal(t, 29.4, pe)

	assert.Equal(t, "Technology", rec.String(contracts.KeySector, "Unknown"))
	assert.Equal(t, "Apple Inc.", rec.String(contracts.KeyShortName, "AAPL"))
}

func TestFetchFundamentals_MissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteSummary":{"result":[{"defaultKeyStatistics":{"trailingPE":{"raw":12.5}}}],"error":null}}`))
	}))
	defer server.Close()

	rec, err := newTestClient(server.URL).FetchFundamentals(context.Background(), "XYZ")
	require.NoError(t, err)

	_, ok := rec.Float(contracts.KeyRevenueGrowth)
	assert.False(t, ok)
	pe, _ := rec.Float(contracts.KeyTrailingPE)
	assert.Equal(t, 12.5, pe)
	assert.Equal(t, "Unknown", rec.String(contracts.KeySector, "Unknown"))
}
