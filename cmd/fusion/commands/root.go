package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wonny/fusion/backend/pkg/config"
)

var (
	// Global flags
	envFile     string
	scoringFile string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fusion",
	Short: "Fusion - 4D 종목 스코어링 및 LSTM 가격 예측",
	Long: `Fusion Unified CLI

Macro + Fundamental + Quant + Timing 4차원 점수로 종목을 평가하고
LSTM 모델로 가격 경로와 불확실성 밴드를 예측합니다.

Usage:
  go run ./cmd/fusion [command]

Examples:
  go run ./cmd/fusion api
  go run ./cmd/fusion analyze --top-n 5
  go run ./cmd/fusion forecast AAPL --fan
  go run ./cmd/fusion macro`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 명시한 env 파일이 .env 보다 우선
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load env file %s: %w", envFile, err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file loaded before .env")
	rootCmd.PersistentFlags().StringVar(&scoringFile, "scoring", "", "fusion weights YAML (overrides SCORING_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig loads config and applies global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if scoringFile != "" {
		cfg.ScoringConfigPath = scoringFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
