package wikipedia

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/fusion/backend/pkg/httputil"
	"github.com/wonny/fusion/backend/pkg/logger"
)

// Client scrapes the S&P 500 constituents table
// ⭐ SSOT: 티커 유니버스 스크래핑은 여기서만
type Client struct {
	httpClient *httputil.Client
	url        string
	logger     *logger.Logger
}

// NewClient creates a new constituents scraper
func NewClient(httpClient *httputil.Client, pageURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		url:        pageURL,
		logger:     log.WithComponent("wikipedia"),
	}
}

// Tickers returns the S&P 500 symbols in page order, with share-class
// dots replaced by dashes (BRK.B → BRK-B)
func (c *Client) Tickers(ctx context.Context) ([]string, error) {
	body, err := c.httpClient.GetBody(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents page: %w", err)
	}

	tickers, err := ParseConstituents(body)
	if err != nil {
		return nil, err
	}

	c.logger.WithField("count", len(tickers)).Info("Loaded S&P 500 constituents")
	return tickers, nil
}

// ParseConstituents extracts the Symbol column of the first constituents
// table. It prefers table#constituents and falls back to the first
// wikitable.
func ParseConstituents(html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse constituents page: %w", err)
	}

	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}
	if table.Length() == 0 {
		return nil, fmt.Errorf("constituents table not found")
	}

	// Symbol 컬럼 위치 탐색
	col := -1
	table.Find("tr").First().Find("th").EachWithBreak(func(i int, th *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(th.Text()), "Symbol") {
			col = i
			return false
		}
		return true
	})
	if col < 0 {
		return nil, fmt.Errorf("symbol column not found")
	}

	var tickers []string
	seen := make(map[string]bool)
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() <= col {
			return
		}
		symbol := strings.TrimSpace(cells.Eq(col).Text())
		if symbol == "" {
			return
		}
		symbol = strings.ReplaceAll(symbol, ".", "-")
		if seen[symbol] {
			return
		}
		seen[symbol] = true
		tickers = append(tickers, symbol)
	})

	if len(tickers) == 0 {
		return nil, fmt.Errorf("constituents table has no symbols")
	}
	return tickers, nil
}
