package pgstore

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fusion/backend/pkg/config"
	"github.com/wonny/fusion/backend/pkg/database"
)

func TestOrNaN(t *testing.T) {
	v := 12.5
	assert.Equal(t, 12.5, orNaN(&v))
	assert.True(t, math.IsNaN(orNaN(nil)))
}

func TestFetchPrices_Integration(t *testing.T) {
	if testing.Short() || os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	db, err := database.New(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = db.Pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS market`)
	require.NoError(t, err)
	_, err = db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS market.daily_prices (
			ticker      TEXT NOT NULL,
			trade_date  DATE NOT NULL,
			open_price  DOUBLE PRECISION,
			high_price  DOUBLE PRECISION,
			low_price   DOUBLE PRECISION,
			close_price DOUBLE PRECISION,
			adj_close   DOUBLE PRECISION,
			volume      BIGINT,
			PRIMARY KEY (ticker, trade_date)
		)`)
	require.NoError(t, err)

	const ticker = "ZZTEST"
	defer db.Pool.Exec(context.Background(), `DELETE FROM market.daily_prices WHERE ticker = $1`, ticker)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO market.daily_prices VALUES
			($1, $2, 10, 11, 9, 10.5, 10.4, 1000),
			($1, $3, 10.5, 12, 10, NULL, NULL, NULL)
		ON CONFLICT DO NOTHING`, ticker, today.AddDate(0, 0, -2), today.AddDate(0, 0, -1))
	require.NoError(t, err)

	table, err := NewStore(db.Pool, 30).FetchPrices(ctx, ticker)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, 10.5, table.Bars[0].Close)
	assert.True(t, math.IsNaN(table.Bars[1].Close))
	assert.Equal(t, 1, table.DropMissingClose().Len())
}
