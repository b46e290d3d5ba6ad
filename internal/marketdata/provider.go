package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/pkg/logger"
	"github.com/wonny/fusion/backend/pkg/metrics"
	"github.com/wonny/fusion/backend/pkg/redis"
)

// MacroSource loads the raw macro table
type MacroSource interface {
	MacroTable(ctx context.Context) (*contracts.MacroSeriesTable, error)
}

// PriceSource loads daily bars for one ticker
type PriceSource interface {
	FetchPrices(ctx context.Context, ticker string) (*contracts.PriceTable, error)
}

// FundamentalsSource loads the fundamentals record of one ticker
type FundamentalsSource interface {
	FetchFundamentals(ctx context.Context, ticker string) (contracts.FundamentalsRecord, error)
}

// UniverseSource lists the tickers to analyze
type UniverseSource interface {
	Tickers(ctx context.Context) ([]string, error)
}

type namedPriceSource struct {
	name   string
	source PriceSource
}

// Provider adapts the external sources to the contracts provider
// interfaces. Source failures become unavailable results; the macro table
// and ticker universe are cached for a day.
// ⭐ SSOT: 시장 데이터 조회는 이 Provider를 통해서만
type Provider struct {
	macro        MacroSource
	prices       []namedPriceSource
	fundamentals FundamentalsSource
	universe     UniverseSource

	cache   *redis.Cache
	metrics *metrics.Recorder
	now     func() time.Time
	logger  *logger.Logger
}

// NewProvider creates a provider. Price sources are added with WithPriceSource.
func NewProvider(
	macro MacroSource,
	fundamentals FundamentalsSource,
	universe UniverseSource,
	cache *redis.Cache,
	rec *metrics.Recorder,
	log *logger.Logger,
) *Provider {
	return &Provider{
		macro:        macro,
		fundamentals: fundamentals,
		universe:     universe,
		cache:        cache,
		metrics:      rec,
		now:          time.Now,
		logger:       log.WithComponent("marketdata"),
	}
}

// WithPriceSource appends a price source. Sources are tried in the order added.
func (p *Provider) WithPriceSource(name string, source PriceSource) *Provider {
	p.prices = append(p.prices, namedPriceSource{name: name, source: source})
	return p
}

var (
	_ contracts.MacroProvider        = (*Provider)(nil)
	_ contracts.PriceProvider        = (*Provider)(nil)
	_ contracts.FundamentalsProvider = (*Provider)(nil)
	_ contracts.UniverseProvider     = (*Provider)(nil)
)

// MacroTable returns today's canonical macro table with NetLiquidity derived
func (p *Provider) MacroTable(ctx context.Context) contracts.Result[*contracts.MacroSeriesTable] {
	if p.macro == nil {
		return contracts.Unavailable[*contracts.MacroSeriesTable](errors.New("no macro source"))
	}

	key := redis.MacroTableKey(p.now().Format("2006-01-02"))
	var cached contracts.MacroSeriesTable
	if p.cacheGet(ctx, key, &cached) {
		return contracts.Ok(&cached)
	}

	raw, err := p.macro.MacroTable(ctx)
	if err != nil {
		p.providerError("macro", err)
		return contracts.Unavailable[*contracts.MacroSeriesTable](err)
	}

	// 별칭 정규화 후 파생 컬럼 계산
	table := raw.Canonicalize().WithNetLiquidity()
	if !table.Empty() {
		p.cacheSet(ctx, key, table, redis.TTLDaily)
	}
	return contracts.Ok(table)
}

// PriceTable returns the first non-empty table among the price sources
func (p *Provider) PriceTable(ctx context.Context, ticker string) contracts.Result[*contracts.PriceTable] {
	var errs []error
	for _, s := range p.prices {
		table, err := s.source.FetchPrices(ctx, ticker)
		if err != nil {
			p.providerError(s.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		if table.Len() == 0 {
			continue
		}
		p.logger.WithFields(map[string]interface{}{
			"ticker": ticker,
			"source": s.name,
			"bars":   table.Len(),
		}).Debug("Loaded prices")
		return contracts.Ok(table)
	}

	if len(errs) > 0 {
		return contracts.Unavailable[*contracts.PriceTable](errors.Join(errs...))
	}
	return contracts.Unavailable[*contracts.PriceTable](fmt.Errorf("no price data for %s", ticker))
}

// Fundamentals returns the ticker's fundamentals record
func (p *Provider) Fundamentals(ctx context.Context, ticker string) contracts.Result[contracts.FundamentalsRecord] {
	if p.fundamentals == nil {
		return contracts.Unavailable[contracts.FundamentalsRecord](errors.New("no fundamentals source"))
	}
	rec, err := p.fundamentals.FetchFundamentals(ctx, ticker)
	if err != nil {
		p.providerError("fundamentals", err)
		return contracts.Unavailable[contracts.FundamentalsRecord](err)
	}
	return contracts.Ok(rec)
}

// Tickers returns the analysis universe
func (p *Provider) Tickers(ctx context.Context) ([]string, error) {
	if p.universe == nil {
		return nil, errors.New("no universe source")
	}

	key := redis.UniverseKey()
	var cached []string
	if p.cacheGet(ctx, key, &cached) && len(cached) > 0 {
		return cached, nil
	}

	tickers, err := p.universe.Tickers(ctx)
	if err != nil {
		p.providerError("universe", err)
		return nil, err
	}
	if len(tickers) > 0 {
		p.cacheSet(ctx, key, tickers, redis.TTLDaily)
	}
	return tickers, nil
}

func (p *Provider) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if p.cache == nil {
		return false
	}
	hit, err := p.cache.Get(ctx, key, dest)
	if err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		return false
	}
	return hit
}

func (p *Provider) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, key, value, ttl); err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

func (p *Provider) providerError(source string, err error) {
	p.logger.WithError(err).WithField("source", source).Warn("Provider request failed")
	if p.metrics != nil {
		p.metrics.ProviderError(source)
	}
}
