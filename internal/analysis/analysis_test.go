package analysis

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/internal/fusion"
	"github.com/wonny/fusion/backend/pkg/config"
	"github.com/wonny/fusion/backend/pkg/logger"
	"github.com/wonny/fusion/backend/pkg/metrics"
)

// ============================================================================
// Fakes
// ============================================================================

type fakePrices struct {
	tables map[string]*contracts.PriceTable
}

func (f *fakePrices) PriceTable(ctx context.Context, ticker string) contracts.Result[*contracts.PriceTable] {
	if ticker == "BOOM" {
		panic("provider exploded")
	}
	t, ok := f.tables[ticker]
	if !ok {
		return contracts.Unavailable[*contracts.PriceTable](errors.New("unknown ticker"))
	}
	return contracts.Ok(t)
}

type fakeFundamentals struct{}

func (fakeFundamentals) Fundamentals(ctx context.Context, ticker string) contracts.Result[contracts.FundamentalsRecord] {
	return contracts.Ok(contracts.FundamentalsRecord{
		contracts.KeyShortName: ticker + " Inc.",
		contracts.KeySector:    "Technology",
	})
}

type fakeUniverse struct {
	tickers []string
	err     error
	gate    chan struct{}
}

func (f *fakeUniverse) Tickers(ctx context.Context) ([]string, error) {
	if f.gate != nil {
		<-f.gate
	}
	return f.tickers, f.err
}

type fakeMacro struct{}

func (fakeMacro) MacroTable(ctx context.Context) contracts.Result[*contracts.MacroSeriesTable] {
	return contracts.Unavailable[*contracts.MacroSeriesTable](errors.New("no api key"))
}

func trendTable(ticker string, n int, drift float64) *contracts.PriceTable {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.PriceBar, n)
	for i := range bars {
		c := 100 * math.Pow(1+drift, float64(i)) * (1 + 0.01*math.Sin(float64(i)))
		bars[i] = contracts.PriceBar{Date: start.AddDate(0, 0, i), Close: c}
	}
	return &contracts.PriceTable{Ticker: ticker, Bars: bars}
}

func newTestCoordinator(universe contracts.UniverseProvider, topN int) *Coordinator {
	prices := &fakePrices{tables: map[string]*contracts.PriceTable{
		"AAA":   trendTable("AAA", 260, 0.002),
		"BBB":   trendTable("BBB", 260, -0.002),
		"CCC":   trendTable("CCC", 260, 0.0005),
		"SHORT": trendTable("SHORT", 120, 0.001),
	}}
	cfg := &config.Config{Analysis: config.AnalysisConfig{TopN: topN, UniverseLimit: 10, Workers: 3}}

	return NewCoordinator(
		context.Background(),
		cfg,
		Providers{
			Macro:        fakeMacro{},
			Prices:       prices,
			Fundamentals: fakeFundamentals{},
			Universe:     universe,
		},
		fusion.NewEngine(config.DefaultScoringConfig().Fusion, logger.Nop()),
		metrics.New(),
		logger.Nop(),
	)
}

// ============================================================================
// RunState
// ============================================================================

func TestRunState_StartGuard(t *testing.T) {
	s := NewRunState()
	assert.Equal(t, contracts.RunIdle, s.Snapshot().Status)

	first, started := s.Start("run-1")
	require.True(t, started)
	assert.Equal(t, contracts.RunRunning, first.Status)
	assert.Equal(t, 0, first.Progress)
	assert.Empty(t, first.TopStocks)

	s.SetProgress("run-1", 40)

	second, started := s.Start("run-2")
	assert.False(t, started)
	assert.Equal(t, "run-1", second.RunID)
	assert.Equal(t, 40, second.Progress)
}

func TestRunState_ProgressMonotonic(t *testing.T) {
	s := NewRunState()
	s.Start("r")

	for _, p := range []int{10, 5, 30, 30, 20, 150} {
		s.SetProgress("r", p)
	}
	assert.Equal(t, 100, s.Snapshot().Progress)

	// 다른 실행의 갱신은 무시
	s2 := NewRunState()
	s2.Start("a")
	s2.SetProgress("b", 50)
	assert.Equal(t, 0, s2.Snapshot().Progress)
}

func TestRunState_CompleteAndFail(t *testing.T) {
	s := NewRunState()
	s.Start("r1")
	s.SetProgress("r1", 55)
	s.Complete("r1", []contracts.ScoreResult{{Ticker: "AAA"}})

	snap := s.Snapshot()
	assert.Equal(t, contracts.RunCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	require.Len(t, snap.TopStocks, 1)
	assert.NotNil(t, snap.FinishedAt)

	// 완료 후 새 실행 가능
	_, started := s.Start("r2")
	require.True(t, started)
	s.SetProgress("r2", 70)
	s.Fail("r2", errors.New("boom"))

	snap = s.Snapshot()
	assert.Equal(t, contracts.RunFailed, snap.Status)
	assert.Equal(t, 0, snap.Progress)
	assert.Empty(t, snap.TopStocks)
	assert.Equal(t, "boom", snap.Error)

	// 종료된 실행은 더 이상 변하지 않음
	s.Complete("r2", []contracts.ScoreResult{{Ticker: "X"}})
	assert.Equal(t, contracts.RunFailed, s.Snapshot().Status)
}

func TestRunState_SnapshotIsCopy(t *testing.T) {
	s := NewRunState()
	s.Start("r")
	s.Complete("r", []contracts.ScoreResult{{Ticker: "AAA"}})

	snap := s.Snapshot()
	snap.TopStocks[0].Ticker = "MUTATED"
	assert.Equal(t, "AAA", s.Snapshot().TopStocks[0].Ticker)
}

func TestRunState_Subscribe(t *testing.T) {
	s := NewRunState()
	ch, cancel := s.Subscribe()

	initial := <-ch
	assert.Equal(t, contracts.RunIdle, initial.Status)

	s.Start("r")
	s.SetProgress("r", 10)

	got := <-ch
	assert.Equal(t, contracts.RunRunning, got.Status)
	got = <-ch
	assert.Equal(t, 10, got.Progress)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// 구독 해지 후 전이는 블록되지 않음
	s.SetProgress("r", 20)
}

func TestRunState_ConcurrentStart(t *testing.T) {
	s := NewRunState()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Start("r"); ok {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, started)
}

// ============================================================================
// Coordinator
// ============================================================================

func TestCoordinator_RunSync(t *testing.T) {
	universe := &fakeUniverse{tickers: []string{"AAA", "BBB", "CCC", "SHORT", "MISSING", "BOOM"}}
	c := newTestCoordinator(universe, 2)

	final, started := c.RunSync(context.Background(), 0)
	require.True(t, started)

	assert.Equal(t, contracts.RunCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	require.Len(t, final.TopStocks, 2)
	assert.GreaterOrEqual(t, final.TopStocks[0].FusionScore, final.TopStocks[1].FusionScore)

	for _, s := range final.TopStocks {
		assert.Contains(t, []string{"AAA", "BBB", "CCC"}, s.Ticker)
		assert.Equal(t, 50.0, s.D1Macro)
		assert.Equal(t, contracts.RegimeNeutral, s.MacroRegime)
		assert.Equal(t, "Technology", s.Sector)
	}
}

func TestCoordinator_TiesKeepUniverseOrder(t *testing.T) {
	universe := []string{"T5", "T1", "T6", "T3", "T2", "T4"}
	c := newTestCoordinator(&fakeUniverse{tickers: universe}, len(universe))

	tables := make(map[string]*contracts.PriceTable, len(universe))
	for _, ticker := range universe {
		tables[ticker] = trendTable(ticker, 260, 0.001)
	}
	c.providers.Prices = &fakePrices{tables: tables}

	for i := 0; i < 20; i++ {
		final, started := c.RunSync(context.Background(), 0)
		require.True(t, started)
		require.Len(t, final.TopStocks, len(universe))

		got := make([]string, len(final.TopStocks))
		for j, s := range final.TopStocks {
			got[j] = s.Ticker
			assert.Equal(t, final.TopStocks[0].FusionScore, s.FusionScore)
		}
		assert.Equal(t, universe, got, "run %d", i)
	}
}

func TestCoordinator_TopNOverride(t *testing.T) {
	c := newTestCoordinator(&fakeUniverse{tickers: []string{"AAA", "BBB", "CCC"}}, 1)
	final, _ := c.RunSync(context.Background(), 5)
	assert.Len(t, final.TopStocks, 3)
}

func TestCoordinator_UniverseFailure(t *testing.T) {
	c := newTestCoordinator(&fakeUniverse{err: errors.New("wikipedia down")}, 5)

	final, started := c.RunSync(context.Background(), 5)
	require.True(t, started)
	assert.Equal(t, contracts.RunFailed, final.Status)
	assert.Equal(t, 0, final.Progress)
	assert.Empty(t, final.TopStocks)
	assert.Contains(t, final.Error, "wikipedia down")
}

func TestCoordinator_EmptyUniverseCompletes(t *testing.T) {
	c := newTestCoordinator(&fakeUniverse{}, 5)
	final, _ := c.RunSync(context.Background(), 5)
	assert.Equal(t, contracts.RunCompleted, final.Status)
	assert.Empty(t, final.TopStocks)
}

func TestCoordinator_StartWhileRunning(t *testing.T) {
	universe := &fakeUniverse{tickers: []string{"AAA"}, gate: make(chan struct{})}
	c := newTestCoordinator(universe, 5)

	first := c.Start(5)
	assert.Equal(t, contracts.RunRunning, first.Status)

	second := c.Start(5)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, contracts.RunRunning, second.Status)

	close(universe.gate)
	c.Wait()

	final := c.Status()
	assert.Equal(t, first.RunID, final.RunID)
	assert.Equal(t, contracts.RunCompleted, final.Status)
	assert.Len(t, final.TopStocks, 1)
}

func TestCoordinator_AnalyzeSingle(t *testing.T) {
	c := newTestCoordinator(&fakeUniverse{}, 5)

	res, err := c.AnalyzeSingle(context.Background(), "aaa")
	require.NoError(t, err)
	assert.Equal(t, "AAA", res.Ticker)
	assert.Equal(t, "AAA Inc.", res.CompanyName)

	_, err = c.AnalyzeSingle(context.Background(), "SHORT")
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = c.AnalyzeSingle(context.Background(), "MISSING")
	assert.ErrorIs(t, err, ErrNoPriceData)
}

func TestCoordinator_MacroBreakdownNeutral(t *testing.T) {
	c := newTestCoordinator(&fakeUniverse{}, 5)
	b := c.MacroBreakdown(context.Background())
	assert.Equal(t, 50.0, b.Score)
	assert.Equal(t, contracts.RegimeNeutral, b.Regime)
}

func TestRankTop(t *testing.T) {
	in := []contracts.ScoreResult{
		{Ticker: "A", FusionScore: 50},
		{Ticker: "B", FusionScore: 70},
		{Ticker: "C", FusionScore: 50},
		{Ticker: "D", FusionScore: 90},
	}

	top := RankTop(in, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "D", top[0].Ticker)
	assert.Equal(t, "B", top[1].Ticker)
	assert.Equal(t, "A", top[2].Ticker)
	assert.Equal(t, "A", in[0].Ticker)

	assert.Len(t, RankTop(in, 10), 4)
	assert.Empty(t, RankTop(nil, 5))
}
