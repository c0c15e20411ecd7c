package backtest

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascade-agent/pkg/params"
)

var start = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestReplayRebalancesOverweightInstrument(t *testing.T) {
	p := params.Defaults()
	p.TargetAllocations = map[string]float64{"USDC": 0.4, "A": 0.35, "B": 0.25}

	frames := make([]Frame, 0, 4)
	for i := 0; i < 4; i++ {
		frames = append(frames, Frame{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Prices:    map[string]float64{"USDC": 1, "A": 10, "B": 5},
		})
	}
	e := &Engine{
		Feeder:          NewSeriesFeeder(frames),
		Params:          p,
		InitialBalances: map[string]float64{"USDC": 200, "A": 35, "B": 90},
	}
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Steps)
	assert.Zero(t, res.Errors)
	require.Equal(t, 1, res.Trades)
	assert.Equal(t, 1, res.ByStrategy["rebalance"])
	d := res.Details[0]
	assert.Equal(t, "sell", d.Action)
	assert.Equal(t, "B", d.From)
	assert.Equal(t, "USDC", d.To)
	assert.InDelta(t, 40, d.AmountIn, 1e-9)
	assert.InDelta(t, 1000, res.StartValue, 1e-9)
	assert.InDelta(t, 1000, res.EndValue, 1e-6)
	assert.Len(t, res.EquityCurve, 4)
}

func TestReplayMomentumWithFees(t *testing.T) {
	p := params.Defaults()
	p.Watchlist = []string{"WETH"}

	e := &Engine{
		Feeder:          NewSingleSeriesFeeder("WETH", "USDC", start, []float64{100, 103, 103, 103}),
		Params:          p,
		InitialBalances: map[string]float64{"USDC": 1000},
		FeeBps:          10,
	}
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, res.Trades)
	assert.Equal(t, 1, res.ByStrategy["momentum"])
	assert.Equal(t, 2, res.Details[0].Step)
	assert.Equal(t, "buy", res.Details[0].Action)
	assert.InDelta(t, 50, res.Details[0].ValueUSD, 1e-9)
	assert.InDelta(t, 0.05, res.FeesUSD, 1e-9)
	assert.Less(t, res.EndValue, res.StartValue)
	assert.False(t, math.IsNaN(res.Sharpe))
	assert.GreaterOrEqual(t, res.MaxDDPct, 0.0)
}

func TestReplayWritesReport(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.json")
	e := &Engine{
		Feeder:          NewSingleSeriesFeeder("WETH", "USDC", start, []float64{100, 100}),
		InitialBalances: map[string]float64{"USDC": 100},
		OutputPath:      out,
	}
	_, err := e.Run(context.Background())
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"steps": 2`)
}

func TestRunRequiresFeederAndBalances(t *testing.T) {
	_, err := (&Engine{}).Run(context.Background())
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	data := "timestamp,weth,USDC\n" +
		"2024-05-01T00:00:00Z,100,1\n" +
		"1714521660,101,\n"
	feeder, err := LoadCSV(strings.NewReader(data))
	require.NoError(t, err)

	ctx := context.Background()
	fr, ok, err := feeder.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, start, fr.Timestamp)
	assert.Equal(t, map[string]float64{"WETH": 100, "USDC": 1}, fr.Prices)

	fr, ok, err = feeder.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, start.Add(time.Minute), fr.Timestamp)
	assert.Equal(t, map[string]float64{"WETH": 101}, fr.Prices)

	_, ok, err = feeder.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadCSVRejectsBadRows(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("timestamp,WETH\n"))
	assert.Error(t, err)

	_, err = LoadCSV(strings.NewReader("timestamp,WETH\nyesterday,100\n"))
	assert.Error(t, err)

	_, err = LoadCSV(strings.NewReader("timestamp,WETH\n1714521600,abc\n"))
	assert.Error(t, err)
}

func TestMaxDrawdownAndSharpe(t *testing.T) {
	assert.InDelta(t, 20, maxDrawdownPct([]float64{100, 120, 96, 110}), 1e-9)
	assert.Zero(t, sharpe([]float64{100, 100, 100}))
	assert.Greater(t, sharpe([]float64{100, 101, 103, 104}), 0.0)
}
