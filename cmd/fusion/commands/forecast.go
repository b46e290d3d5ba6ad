package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/fusion/backend/internal/fusion"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast <ticker>",
	Short: "LSTM 가격 예측",
	Long: `종가 기반 재귀 LSTM 예측과 불확실성 밴드를 출력합니다.
--fan 을 지정하면 매크로 변수를 포함한 encoder-decoder 모델의
Monte Carlo fan chart 를 출력합니다.

Example:
  go run ./cmd/fusion forecast AAPL
  go run ./cmd/fusion forecast AAPL --fan --n-past 60 --n-future 30`,
	Args: cobra.ExactArgs(1),
	RunE: runForecast,
}

var (
	forecastFan     bool
	forecastNPast   int
	forecastNFuture int
)

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().BoolVar(&forecastFan, "fan", false, "fan chart 출력")
	forecastCmd.Flags().IntVar(&forecastNPast, "n-past", 0, "입력 윈도우 길이 (기본값 FORECAST_N_PAST)")
	forecastCmd.Flags().IntVar(&forecastNFuture, "n-future", 0, "예측 길이 (기본값 FORECAST_N_FUTURE)")
}

func runForecast(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	ticker := fusion.NormalizeTicker(args[0])
	if forecastFan {
		chart, err := a.forecaster.FanChart(ctx, ticker, forecastNPast, forecastNFuture)
		if err != nil {
			return fmt.Errorf("fan chart %s: %w", ticker, err)
		}
		return printJSON(cmd.OutOrStdout(), chart)
	}

	result, err := a.forecaster.Forecast(ctx, ticker)
	if err != nil {
		return fmt.Errorf("forecast %s: %w", ticker, err)
	}
	return printJSON(cmd.OutOrStdout(), result)
}
