package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascade-agent/pkg/trade"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
interval: 30s
cycle_timeout: 10s
start_paused: true
journal:
  enabled: true
  dir: ../data/journal
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 10*time.Second, cfg.CycleTimeout)
	assert.True(t, cfg.StartPaused)
	assert.Equal(t, "standard", cfg.RiskTier)
	assert.Equal(t, filepath.Join(filepath.Dir(dir), "data", "journal"), cfg.Journal.Dir)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 2*time.Minute, cfg.CycleTimeout)
	assert.False(t, cfg.Journal.Enabled)
}

func TestLoadConfigRejects(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("interval: soon\n"))
	assert.Error(t, err)

	_, err = LoadConfigFromReader(strings.NewReader("interval: 0s\n"))
	assert.Error(t, err)

	_, err = LoadConfigFromReader(strings.NewReader("intervl: 1m\n"))
	assert.Error(t, err)
}

func TestMarkToMarketRollsDailyBaseline(t *testing.T) {
	state := &trade.AgentState{}
	day1 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	markToMarket(state, 1000, day1)
	assert.Equal(t, 1000.0, state.StartValue)
	assert.Equal(t, 1000.0, state.DayOpenValue)
	assert.Zero(t, state.DailyPnLPct)

	markToMarket(state, 940, day1.Add(6*time.Hour))
	assert.InDelta(t, -60, state.DailyPnLUSD, 1e-9)
	assert.InDelta(t, -0.06, state.DailyPnLPct, 1e-9)

	markToMarket(state, 950, day1.Add(24*time.Hour))
	assert.Equal(t, 950.0, state.DayOpenValue)
	assert.Zero(t, state.DailyPnLUSD)
	assert.InDelta(t, -50, state.TotalPnLUSD, 1e-9)
}
