package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Optional stores
	Database DatabaseConfig
	Redis    RedisConfig

	// Market data providers
	FRED     FREDConfig
	Yahoo    YahooConfig
	Universe UniverseConfig

	// Outbound HTTP
	HTTPRateLimitRPS float64
	HTTPTimeout      time.Duration

	// Core
	Analysis AnalysisConfig
	Forecast ForecastConfig

	// Optional YAML file overriding the fusion weights
	ScoringConfigPath string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds PostgreSQL configuration.
// URL is optional: without it prices come from the Yahoo provider only.
type DatabaseConfig struct {
	URL string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database source was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FREDConfig holds the St. Louis Fed API configuration
type FREDConfig struct {
	APIKey       string
	BaseURL      string
	LookbackDays int
}

// YahooConfig holds Yahoo Finance endpoints
type YahooConfig struct {
	ChartURL        string
	QuoteSummaryURL string
	HistoryDays     int
}

// UniverseConfig holds the ticker universe source
type UniverseConfig struct {
	SP500URL string
}

// AnalysisConfig controls full analysis runs
type AnalysisConfig struct {
	TopN          int
	UniverseLimit int
	Workers       int
	Schedule      string // cron (with seconds); empty disables the scheduler
	WarmForecasts bool   // 스케줄 실행 후 상위 종목 예측 선학습
}

// ForecastConfig controls the sequence forecasters
type ForecastConfig struct {
	Lookback      int
	Days          int
	Epochs        int
	BatchSize     int
	HistoryWindow int
	NPast         int
	NFuture       int
	MaxEpochs     int
	Simulations   int
	CacheTTL      time.Duration
	Seed          int64
	Workers       int // 동시 학습 수
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		FRED: FREDConfig{
			APIKey:       getEnv("FRED_API_KEY", ""),
			BaseURL:      getEnv("FRED_BASE_URL", "https://api.stlouisfed.org/fred"),
			LookbackDays: getEnvAsInt("FRED_LOOKBACK_DAYS", 365),
		},

		Yahoo: YahooConfig{
			ChartURL:        getEnv("YAHOO_CHART_URL", "https://query1.finance.yahoo.com/v8/finance/chart"),
			QuoteSummaryURL: getEnv("YAHOO_QUOTE_SUMMARY_URL", "https://query2.finance.yahoo.com/v10/finance/quoteSummary"),
			HistoryDays:     getEnvAsInt("YAHOO_HISTORY_DAYS", 730),
		},

		Universe: UniverseConfig{
			SP500URL: getEnv("WIKI_SP500_URL", "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"),
		},

		HTTPRateLimitRPS: getEnvAsFloat("HTTP_RATE_LIMIT_RPS", 5),
		HTTPTimeout:      getEnvAsDuration("HTTP_TIMEOUT", "30s"),

		Analysis: AnalysisConfig{
			TopN:          getEnvAsInt("ANALYSIS_TOP_N", 5),
			UniverseLimit: getEnvAsInt("ANALYSIS_UNIVERSE_LIMIT", 10),
			Workers:       getEnvAsInt("ANALYSIS_WORKERS", 4),
			Schedule:      getEnv("ANALYSIS_SCHEDULE", ""),
			WarmForecasts: getEnvAsBool("ANALYSIS_WARM_FORECASTS", false),
		},

		Forecast: ForecastConfig{
			Lookback:      getEnvAsInt("FORECAST_LOOKBACK", 60),
			Days:          getEnvAsInt("FORECAST_DAYS", 100),
			Epochs:        getEnvAsInt("FORECAST_EPOCHS", 5),
			BatchSize:     getEnvAsInt("FORECAST_BATCH_SIZE", 32),
			HistoryWindow: getEnvAsInt("FORECAST_HISTORY", 100),
			NPast:         getEnvAsInt("FORECAST_N_PAST", 60),
			NFuture:       getEnvAsInt("FORECAST_N_FUTURE", 30),
			MaxEpochs:     getEnvAsInt("FORECAST_MAX_EPOCHS", 50),
			Simulations:   getEnvAsInt("FORECAST_SIMULATIONS", 1000),
			CacheTTL:      getEnvAsDuration("FORECAST_CACHE_TTL", "1h"),
			Seed:          int64(getEnvAsInt("FORECAST_SEED", 0)),
			Workers:       getEnvAsInt("FORECAST_WORKERS", 1),
		},

		ScoringConfigPath: getEnv("SCORING_CONFIG", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are usable
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Analysis.TopN <= 0 {
		return fmt.Errorf("ANALYSIS_TOP_N must be positive")
	}
	if c.Analysis.Workers <= 0 {
		return fmt.Errorf("ANALYSIS_WORKERS must be positive")
	}

	if c.Forecast.Lookback <= 0 || c.Forecast.Days <= 0 {
		return fmt.Errorf("FORECAST_LOOKBACK and FORECAST_DAYS must be positive")
	}
	if c.Forecast.NPast <= 0 || c.Forecast.NFuture <= 0 {
		return fmt.Errorf("FORECAST_N_PAST and FORECAST_N_FUTURE must be positive")
	}

	if c.HTTPRateLimitRPS <= 0 {
		return fmt.Errorf("HTTP_RATE_LIMIT_RPS must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
