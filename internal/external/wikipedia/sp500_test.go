package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fusion/backend/pkg/config"
	"github.com/wonny/fusion/backend/pkg/httputil"
	"github.com/wonny/fusion/backend/pkg/logger"
)

const constituentsPage = `<html><body>
<table class="wikitable">
  <tr><th>Other</th></tr><tr><td>ignore</td></tr>
</table>
<table class="wikitable sortable" id="constituents">
  <tbody>
  <tr><th>Symbol</th><th>Security</th><th>GICS Sector</th></tr>
  <tr><td><a href="#">MMM</a></td><td>3M</td><td>Industrials</td></tr>
  <tr><td><a href="#">BRK.B</a></td><td>Berkshire Hathaway</td><td>Financials</td></tr>
  <tr><td>BF.B</td><td>Brown–Forman</td><td>Consumer Staples</td></tr>
  <tr><td>MMM</td><td>dup</td><td>Industrials</td></tr>
  </tbody>
</table>
</body></html>`

func TestParseConstituents(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    []string
		wantErr bool
	}{
		{
			name: "constituents table",
			html: constituentsPage,
			want: []string{"MMM", "BRK-B", "BF-B"},
		},
		{
			name: "fallback to first wikitable",
			html: `<table class="wikitable"><tr><th>Security</th><th>Symbol</th></tr><tr><td>Apple</td><td>AAPL</td></tr></table>`,
			want: []string{"AAPL"},
		},
		{
			name:    "no table",
			html:    `<p>nothing</p>`,
			wantErr: true,
		},
		{
			name:    "no symbol column",
			html:    `<table id="constituents"><tr><th>Name</th></tr><tr><td>x</td></tr></table>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConstituents([]byte(tt.html))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTickers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(constituentsPage))
	}))
	defer server.Close()

	hc := httputil.New(&config.Config{HTTPRateLimitRPS: 1000}, logger.Nop()).DisableRetry()
	tickers, err := NewClient(hc, server.URL, logger.Nop()).Tickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"MMM", "BRK-B", "BF-B"}, tickers)
}
