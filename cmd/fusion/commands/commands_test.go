package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"api", "analyze", "forecast", "macro"} {
		assert.True(t, names[want], want)
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Cleanup(func() {
		scoringFile = ""
		verbose = false
	})
	scoringFile = "weights.yaml"
	verbose = true

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "weights.yaml", cfg.ScoringConfigPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestForecastArgs(t *testing.T) {
	assert.Error(t, forecastCmd.Args(forecastCmd, nil))
	assert.NoError(t, forecastCmd.Args(forecastCmd, []string{"AAPL"}))
	assert.Error(t, analyzeCmd.Args(analyzeCmd, []string{"AAPL", "MSFT"}))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"top_n": 5}))
	assert.Equal(t, "{\n  \"top_n\": 5\n}\n", buf.String())
}
