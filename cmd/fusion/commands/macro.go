package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "매크로 레짐 점수 조회",
	Long: `FRED 지표로 계산한 매크로 점수와 항목별 기여도를 출력합니다.

Example:
  go run ./cmd/fusion macro`,
	RunE: runMacro,
}

func init() {
	rootCmd.AddCommand(macroCmd)
}

func runMacro(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	return printJSON(cmd.OutOrStdout(), a.coordinator.MacroBreakdown(ctx))
}
