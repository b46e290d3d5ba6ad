package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/internal/fusion"
	"github.com/wonny/fusion/backend/internal/macro"
	"github.com/wonny/fusion/backend/pkg/config"
	"github.com/wonny/fusion/backend/pkg/logger"
	"github.com/wonny/fusion/backend/pkg/metrics"
)

var (
	// ErrInsufficientData is returned when a ticker cannot be scored
	ErrInsufficientData = errors.New("insufficient data to score")
	// ErrNoPriceData is returned when the price provider has nothing for a ticker
	ErrNoPriceData = errors.New("price data not found")
)

const (
	// DefaultTopN 기본 상위 종목 수
	DefaultTopN = 5
	// DefaultUniverseLimit 한 번의 실행에서 평가하는 종목 수
	DefaultUniverseLimit = 10

	macroProgress = 10

	outcomeScored  = "scored"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// Providers groups the data sources a run reads from
type Providers struct {
	Macro        contracts.MacroProvider
	Prices       contracts.PriceProvider
	Fundamentals contracts.FundamentalsProvider
	Universe     contracts.UniverseProvider
}

// Coordinator runs full analysis passes over the ticker universe and
// scores single tickers on demand
// ⭐ SSOT: 전체 분석 실행은 여기서만
type Coordinator struct {
	providers Providers
	macro     *macro.Scorer
	engine    *fusion.Engine
	state     *RunState
	metrics   *metrics.Recorder

	topN          int
	universeLimit int
	workers       int

	// 백그라운드 실행은 요청 컨텍스트가 아닌 이 컨텍스트를 따름
	baseCtx context.Context
	wg      sync.WaitGroup
	logger  *logger.Logger
}

// NewCoordinator creates a coordinator. baseCtx bounds background runs.
func NewCoordinator(
	baseCtx context.Context,
	cfg *config.Config,
	providers Providers,
	engine *fusion.Engine,
	rec *metrics.Recorder,
	log *logger.Logger,
) *Coordinator {
	topN := cfg.Analysis.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	limit := cfg.Analysis.UniverseLimit
	if limit <= 0 {
		limit = DefaultUniverseLimit
	}
	workers := cfg.Analysis.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Coordinator{
		providers:     providers,
		macro:         macro.NewScorer(log),
		engine:        engine,
		state:         NewRunState(),
		metrics:       rec,
		topN:          topN,
		universeLimit: limit,
		workers:       workers,
		baseCtx:       baseCtx,
		logger:        log.WithComponent("analysis"),
	}
}

// State returns the shared run state
func (c *Coordinator) State() *RunState {
	return c.state
}

// Status returns the current run state
func (c *Coordinator) Status() contracts.AnalysisRunState {
	return c.state.Snapshot()
}

// Start launches a background run and returns the RUNNING state.
// When a run is already in flight its state is returned and nothing starts.
// A non-positive topN uses the configured default.
func (c *Coordinator) Start(topN int) contracts.AnalysisRunState {
	runID := uuid.New().String()
	snapshot, started := c.state.Start(runID)
	if !started {
		c.logger.WithField("run_id", snapshot.RunID).Info("Analysis already running")
		return snapshot
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(c.baseCtx, runID, c.resolveTopN(topN))
	}()
	return snapshot
}

// RunSync runs an analysis on the calling goroutine and returns the final
// state. started is false when another run was already in flight.
func (c *Coordinator) RunSync(ctx context.Context, topN int) (contracts.AnalysisRunState, bool) {
	runID := uuid.New().String()
	snapshot, started := c.state.Start(runID)
	if !started {
		return snapshot, false
	}
	c.run(ctx, runID, c.resolveTopN(topN))
	return c.state.Snapshot(), true
}

// Wait blocks until background runs return
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) resolveTopN(topN int) int {
	if topN <= 0 {
		return c.topN
	}
	return topN
}

func (c *Coordinator) run(ctx context.Context, runID string, topN int) {
	start := time.Now()
	log := c.logger.WithField("run_id", runID)

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(map[string]interface{}{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Analysis run panicked")
			c.finishFailed(runID, fmt.Errorf("panic: %v", r))
		}
	}()

	log.WithField("top_n", topN).Info("Starting analysis run")

	// 1. 매크로 (D1)
	reading := c.MacroReading(ctx)
	c.setProgress(runID, macroProgress)

	// 2. 유니버스
	tickers, err := c.providers.Universe.Tickers(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load ticker universe")
		c.finishFailed(runID, fmt.Errorf("load universe: %w", err))
		return
	}
	if len(tickers) > c.universeLimit {
		tickers = tickers[:c.universeLimit]
	}

	log.WithFields(map[string]interface{}{
		"tickers": len(tickers),
		"macro":   reading.Score,
		"regime":  reading.Regime,
	}).Info("Macro loaded, scoring universe")

	// 3. 종목별 점수
	scored := c.scoreAll(ctx, runID, tickers, reading)
	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("Analysis run cancelled")
		c.finishFailed(runID, err)
		return
	}

	// 4. 정렬 및 상위 N
	top := RankTop(scored, topN)
	c.state.Complete(runID, top)
	if c.metrics != nil {
		c.metrics.RunFinished(string(contracts.RunCompleted))
		c.metrics.Progress(100)
	}

	log.WithFields(map[string]interface{}{
		"scored":   len(scored),
		"results":  len(top),
		"duration": time.Since(start),
	}).Info("Analysis run completed")
}

func (c *Coordinator) finishFailed(runID string, err error) {
	c.state.Fail(runID, err)
	if c.metrics != nil {
		c.metrics.RunFinished(string(contracts.RunFailed))
		c.metrics.Progress(0)
	}
}

func (c *Coordinator) setProgress(runID string, pct int) {
	c.state.SetProgress(runID, pct)
	if c.metrics != nil {
		c.metrics.Progress(c.state.Snapshot().Progress)
	}
}

// scoreAll scores tickers on the worker pool. Failed and unscorable
// tickers are left out.
func (c *Coordinator) scoreAll(ctx context.Context, runID string, tickers []string, reading contracts.MacroReading) []contracts.ScoreResult {
	total := len(tickers)
	if total == 0 {
		return nil
	}

	// 결과는 유니버스 순서대로 저장되어 동점 순위가 실행마다 같음
	jobs := make(chan int)
	slots := make([]*contracts.ScoreResult, total)
	var (
		done int64
		wg   sync.WaitGroup
	)

	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				slots[i] = c.scoreTicker(ctx, tickers[i], reading)
				n := atomic.AddInt64(&done, 1)
				c.setProgress(runID, macroProgress+int(float64(n)/float64(total)*float64(100-macroProgress)))
			}
		}()
	}

feed:
	for i := range tickers {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	results := make([]contracts.ScoreResult, 0, total)
	for _, res := range slots {
		if res != nil {
			results = append(results, *res)
		}
	}
	return results
}

// scoreTicker never panics; any error excludes the ticker
func (c *Coordinator) scoreTicker(ctx context.Context, ticker string, reading contracts.MacroReading) (res *contracts.ScoreResult) {
	start := time.Now()
	outcome := outcomeScored
	log := c.logger.WithField("ticker", ticker)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Ticker scoring panicked")
			res = nil
			outcome = outcomeFailed
		}
		if c.metrics != nil {
			c.metrics.TickerProcessed(outcome, time.Since(start))
			if res != nil {
				c.metrics.FusionScore(res.Ticker, res.FusionScore)
			}
		}
	}()

	res, err := c.score(ctx, ticker, reading)
	switch {
	case err == nil:
		return res
	case errors.Is(err, ErrInsufficientData) || errors.Is(err, ErrNoPriceData):
		log.WithError(err).Debug("Ticker skipped")
		outcome = outcomeSkipped
	default:
		log.WithError(err).Warn("Error analyzing ticker")
		outcome = outcomeFailed
	}
	return nil
}

// AnalyzeSingle scores one ticker against the current macro reading
func (c *Coordinator) AnalyzeSingle(ctx context.Context, ticker string) (*contracts.ScoreResult, error) {
	ticker = fusion.NormalizeTicker(ticker)
	return c.score(ctx, ticker, c.MacroReading(ctx))
}

func (c *Coordinator) score(ctx context.Context, ticker string, reading contracts.MacroReading) (*contracts.ScoreResult, error) {
	prices := c.providers.Prices.PriceTable(ctx, ticker)
	if !prices.Available || prices.Value.Len() == 0 {
		if prices.Err != nil {
			return nil, fmt.Errorf("%s: %w: %v", ticker, ErrNoPriceData, prices.Err)
		}
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoPriceData)
	}

	// 펀더멘털이 없으면 빈 레코드 (중립 점수)
	fundamentals := contracts.FundamentalsRecord{}
	if c.providers.Fundamentals != nil {
		if f := c.providers.Fundamentals.Fundamentals(ctx, ticker); f.Available && f.Value != nil {
			fundamentals = f.Value
		}
	}

	res, err := c.engine.Score(ctx, ticker, prices.Value, fundamentals, reading)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%s: %w", ticker, ErrInsufficientData)
	}
	return res, nil
}

// MacroReading scores the current macro table. Unavailable data is neutral.
func (c *Coordinator) MacroReading(ctx context.Context) contracts.MacroReading {
	return c.MacroBreakdown(ctx).Reading()
}

// MacroBreakdown returns the full macro evaluation
func (c *Coordinator) MacroBreakdown(ctx context.Context) macro.Breakdown {
	var table *contracts.MacroSeriesTable
	if c.providers.Macro != nil {
		res := c.providers.Macro.MacroTable(ctx)
		if res.Available {
			table = res.Value
		} else if res.Err != nil {
			c.logger.WithError(res.Err).Warn("Macro data unavailable, using neutral score")
		}
	}

	b := c.macro.Evaluate(table)
	if c.metrics != nil {
		c.metrics.MacroScore(b.Score)
	}
	return b
}

// RankTop sorts by fusion score descending and keeps at most n results.
// Ties keep their input order.
func RankTop(results []contracts.ScoreResult, n int) []contracts.ScoreResult {
	sorted := append([]contracts.ScoreResult{}, results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FusionScore > sorted[j].FusionScore
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
