package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wonny/fusion/backend/internal/api"
	"github.com/wonny/fusion/backend/internal/api/handlers"
	"github.com/wonny/fusion/backend/internal/scheduler"
	"github.com/wonny/fusion/backend/internal/scheduler/jobs"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

ANALYSIS_SCHEDULE 이 설정되어 있으면 정기 분석 스케줄러도 함께 실행됩니다.

Endpoints:
  GET  /health                        - Health check
  GET  /metrics                       - Prometheus metrics
  POST /api/analyze?top_n=5           - 전체 분석 시작
  GET  /api/status                    - 분석 상태 조회
  GET  /api/analyze_single/{ticker}   - 단일 종목 점수
  GET  /api/macro                     - 매크로 점수 상세
  GET  /api/forecast/{ticker}         - LSTM 예측
  GET  /api/forecast/{ticker}/fan     - Fan chart
  GET  /ws/status                     - 분석 상태 스트림

Example:
  go run ./cmd/fusion api
  go run ./cmd/fusion api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본값 PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Fusion API Server ===")

	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Wire components; background runs stop with baseCtx
	baseCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	a, err := newApp(baseCtx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	log := a.log
	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Router
	var registry *prometheus.Registry
	if cfg.MetricsEnabled {
		registry = a.metrics.Registry()
	}
	router := api.NewRouter(api.Handlers{
		Analysis: handlers.NewAnalysisHandler(a.coordinator, log),
		Forecast: handlers.NewForecastHandler(a.forecaster, log),
		Stream:   handlers.NewStreamHandler(a.coordinator.State(), log),
	}, registry, log)

	server := api.New(cfg, log, router)

	// 4. Scheduler (optional)
	var sched *scheduler.Scheduler
	if cfg.Analysis.Schedule != "" {
		sched = scheduler.New(baseCtx, log)

		var warmer jobs.Forecaster
		if cfg.Analysis.WarmForecasts {
			warmer = a.forecaster
		}
		job := jobs.NewAnalysisJob(a.coordinator, warmer, cfg.Analysis.Schedule, cfg.Analysis.TopN, log)
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("schedule analysis: %w", err)
		}
		sched.Start()
	}

	// 5. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	if sched != nil {
		fmt.Printf("   Scheduled analysis: %s\n", cfg.Analysis.Schedule)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}
	cancelRuns()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
