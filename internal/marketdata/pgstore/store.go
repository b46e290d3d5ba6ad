package pgstore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/fusion/backend/internal/contracts"
)

// Store reads daily bars from PostgreSQL. It never writes.
// ⭐ SSOT: SQL 가격 조회는 여기서만
type Store struct {
	pool        *pgxpool.Pool
	historyDays int
	now         func() time.Time
}

// NewStore creates a read-only price store over pool
func NewStore(pool *pgxpool.Pool, historyDays int) *Store {
	if historyDays <= 0 {
		historyDays = 730
	}
	return &Store{pool: pool, historyDays: historyDays, now: time.Now}
}

// FetchPrices returns the ticker's bars over the history window, oldest first.
// A ticker with no rows yields an empty table.
func (s *Store) FetchPrices(ctx context.Context, ticker string) (*contracts.PriceTable, error) {
	query := `
		SELECT trade_date, open_price, high_price, low_price, close_price, adj_close, volume
		FROM market.daily_prices
		WHERE ticker = $1 AND trade_date >= $2
		ORDER BY trade_date ASC
	`

	from := s.now().AddDate(0, 0, -s.historyDays)
	rows, err := s.pool.Query(ctx, query, ticker, from)
	if err != nil {
		return nil, fmt.Errorf("query prices %s: %w", ticker, err)
	}
	defer rows.Close()

	table := &contracts.PriceTable{Ticker: ticker}
	for rows.Next() {
		var (
			b                                 contracts.PriceBar
			open, high, low, closeP, adjClose *float64
			volume                            *int64
		)
		if err := rows.Scan(&b.Date, &open, &high, &low, &closeP, &adjClose, &volume); err != nil {
			return nil, fmt.Errorf("scan price %s: %w", ticker, err)
		}
		b.Open = orNaN(open)
		b.High = orNaN(high)
		b.Low = orNaN(low)
		b.Close = orNaN(closeP)
		b.AdjClose = orNaN(adjClose)
		if volume != nil {
			b.Volume = *volume
		}
		table.Bars = append(table.Bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read prices %s: %w", ticker, err)
	}
	return table, nil
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
