package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/fusion/backend/internal/contracts"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [ticker]",
	Short: "종목 분석 실행",
	Long: `S&P 500 유니버스 전체를 분석해 상위 종목을 출력합니다.
티커를 지정하면 해당 종목만 점수를 계산합니다.

Example:
  go run ./cmd/fusion analyze
  go run ./cmd/fusion analyze --top-n 3 --universe 50
  go run ./cmd/fusion analyze AAPL`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeTopN     int
	analyzeUniverse int
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().IntVar(&analyzeTopN, "top-n", 0, "출력할 상위 종목 수 (기본값 ANALYSIS_TOP_N)")
	analyzeCmd.Flags().IntVar(&analyzeUniverse, "universe", 0, "평가할 종목 수 (기본값 ANALYSIS_UNIVERSE_LIMIT)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if analyzeUniverse > 0 {
		cfg.Analysis.UniverseLimit = analyzeUniverse
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		result, err := a.coordinator.AnalyzeSingle(ctx, args[0])
		if err != nil {
			return fmt.Errorf("analyze %s: %w", args[0], err)
		}
		return printJSON(cmd.OutOrStdout(), result)
	}

	state, _ := a.coordinator.RunSync(ctx, analyzeTopN)
	if err := printJSON(cmd.OutOrStdout(), state); err != nil {
		return err
	}
	if state.Status == contracts.RunFailed {
		return fmt.Errorf("analysis failed: %s", state.Error)
	}
	return nil
}
