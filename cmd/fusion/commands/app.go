package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wonny/fusion/backend/internal/analysis"
	"github.com/wonny/fusion/backend/internal/external/fred"
	"github.com/wonny/fusion/backend/internal/external/wikipedia"
	"github.com/wonny/fusion/backend/internal/external/yahoo"
	"github.com/wonny/fusion/backend/internal/forecast"
	"github.com/wonny/fusion/backend/internal/fusion"
	"github.com/wonny/fusion/backend/internal/marketdata"
	"github.com/wonny/fusion/backend/internal/marketdata/pgstore"
	"github.com/wonny/fusion/backend/pkg/config"
	"github.com/wonny/fusion/backend/pkg/database"
	"github.com/wonny/fusion/backend/pkg/httputil"
	"github.com/wonny/fusion/backend/pkg/logger"
	"github.com/wonny/fusion/backend/pkg/metrics"
	"github.com/wonny/fusion/backend/pkg/redis"
)

// cachePrefix namespaces every Redis key of this service
const cachePrefix = "fusion"

// app holds the wired components shared by all commands
type app struct {
	cfg         *config.Config
	log         *logger.Logger
	metrics     *metrics.Recorder
	coordinator *analysis.Coordinator
	forecaster  *forecast.Service

	redis *redis.Client
	db    *database.DB
}

// newApp wires config → clients → providers → scorer/forecaster.
// ctx bounds background analysis runs. Logs go to logOut, or stdout when nil.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	log := logger.New(cfg)
	if logOut != nil {
		log = logger.NewWithWriter(logOut, cfg.LogLevel, cfg.Env)
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	// 1. Redis (optional)
	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, caching disabled")
	}
	a.redis = rc
	cache := redis.NewCache(rc, cachePrefix)

	// 2. Scoring weights
	scoring, err := config.LoadScoring(cfg.ScoringConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load scoring config: %w", err)
	}

	// 3. External clients
	hc := httputil.New(cfg, log)
	fredClient := fred.NewClient(hc, cfg.FRED, log)
	if !fredClient.Configured() {
		log.Warn("FRED_API_KEY not set, macro score stays neutral")
	}
	yahooClient := yahoo.NewClient(hc, cfg.Yahoo, log)
	wikiClient := wikipedia.NewClient(hc, cfg.Universe.SP500URL, log)

	// 4. Market data provider: postgres first, then Yahoo
	provider := marketdata.NewProvider(fredClient, yahooClient, wikiClient, cache, a.metrics, log)

	db, err := database.New(cfg)
	switch {
	case err == nil:
		a.db = db
		provider.WithPriceSource("postgres", pgstore.NewStore(db.Pool, cfg.Yahoo.HistoryDays))
		log.Info("Connected to database")
	case errors.Is(err, database.ErrNotConfigured):
		log.Debug("DATABASE_URL not set, using Yahoo prices only")
	default:
		log.WithError(err).Warn("Database unavailable, using Yahoo prices only")
	}
	provider.WithPriceSource("yahoo", yahooClient)

	// 5. Scoring and forecasting
	engine := fusion.NewEngine(scoring.Fusion, log)
	a.coordinator = analysis.NewCoordinator(ctx, cfg, analysis.Providers{
		Macro:        provider,
		Prices:       provider,
		Fundamentals: provider,
		Universe:     provider,
	}, engine, a.metrics, log)
	a.forecaster = forecast.NewService(cfg, provider, provider, cache, a.metrics, log)

	return a, nil
}

// Close waits for background runs and releases connections
func (a *app) Close() {
	a.coordinator.Wait()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close redis")
		}
	}
	a.db.Close()
}
