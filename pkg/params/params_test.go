package params

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	p := Defaults()
	p.TargetAllocations = map[string]float64{"USDC": 0.5, "WETH": 0.5}
	p.Watchlist = []string{"WETH"}

	cp := p.Clone()
	cp.TargetAllocations["WETH"] = 0.9
	cp.Watchlist[0] = "WBTC"
	cp.Fallback.RotationNotionalsUSD[0] = 999

	assert.Equal(t, 0.5, p.TargetAllocations["WETH"])
	assert.Equal(t, "WETH", p.Watchlist[0])
	assert.Equal(t, 10.0, p.Fallback.RotationNotionalsUSD[0])
}

func TestNormalizeCanonicalisesIdentifiers(t *testing.T) {
	p := Defaults()
	p.StableInstrument = "usdc"
	p.Watchlist = []string{"weth"}
	p.TargetAllocations = map[string]float64{"usdc": 0.4, "USDC": 0.1, "weth": 0.5}
	p.Normalize()

	assert.Equal(t, "USDC", p.StableInstrument)
	assert.Equal(t, []string{"WETH"}, p.Watchlist)
	assert.InDelta(t, 0.5, p.TargetAllocations["USDC"], 1e-12)
}

func TestInstrumentsOrder(t *testing.T) {
	p := Defaults()
	p.Watchlist = []string{"WETH", "USDC"}
	p.TargetAllocations = map[string]float64{"USDC": 0.4, "ARB": 0.2, "WETH": 0.4}

	assert.Equal(t, []string{"ARB", "USDC", "WETH"}, p.TargetInstruments())
	assert.Equal(t, []string{"WETH", "ARB"}, p.Instruments())
}

func TestLint(t *testing.T) {
	p := Defaults()
	p.TargetAllocations = map[string]float64{"USDC": 0.5, "WETH": 0.4}
	p.Trend.ShortWindow = 30
	warnings := p.Lint()
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "sum to")

	ok := Defaults()
	ok.TargetAllocations = map[string]float64{"USDC": 0.5, "WETH": 0.5}
	assert.Empty(t, ok.Lint())
}

func TestStoreGetReturnsPrivateCopy(t *testing.T) {
	s := NewStore(nil)
	a := s.Get()
	a.RebalanceThreshold = 0.9
	assert.Equal(t, 0.05, s.Get().RebalanceThreshold)
}

func TestStoreUpdate(t *testing.T) {
	s := NewStore(nil)
	snapshot := s.Get()

	next := s.Update(func(p *Parameters) {
		p.Advisory.Enabled = true
		p.StableInstrument = "dai"
	})

	assert.True(t, next.Advisory.Enabled)
	assert.Equal(t, "DAI", next.StableInstrument)
	assert.Equal(t, uint64(1), s.Revision())
	// a snapshot taken earlier is unaffected
	assert.False(t, snapshot.Advisory.Enabled)
}

func TestStoreApplyJSONPartial(t *testing.T) {
	s := NewStore(nil)
	next, err := s.ApplyJSON([]byte(`{"rebalance_threshold":0.1,"risk":{"max_trades_per_hour":3}}`))
	require.NoError(t, err)

	assert.Equal(t, 0.1, next.RebalanceThreshold)
	assert.Equal(t, 3, next.Risk.MaxTradesPerHour)
	// untouched siblings keep their values
	assert.Equal(t, 0.05, next.Risk.MaxDailyLoss)
	assert.Equal(t, 10.0, next.MinTradeUSD)
	assert.Equal(t, uint64(1), next.Revision)
}

func TestStoreApplyJSONReplacesTargetAllocations(t *testing.T) {
	initial := Defaults()
	initial.TargetAllocations = map[string]float64{"USDC": 0.4, "WETH": 0.3, "WBTC": 0.3}
	s := NewStore(initial)

	next, err := s.ApplyJSON([]byte(`{"target_allocations":{"USDC":0.5,"weth":0.5}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"USDC": 0.5, "WETH": 0.5}, next.TargetAllocations)

	// a patch without the key leaves targets alone
	next, err = s.ApplyJSON([]byte(`{"min_trade_usd":12}`))
	require.NoError(t, err)
	assert.Len(t, next.TargetAllocations, 2)
}

func TestStoreApplyJSONAcceptsOutOfRange(t *testing.T) {
	s := NewStore(nil)
	next, err := s.ApplyJSON([]byte(`{"rebalance_threshold":0,"min_trade_usd":-5}`))
	require.NoError(t, err)
	assert.Zero(t, next.RebalanceThreshold)
	assert.Equal(t, -5.0, next.MinTradeUSD)
}

func TestStoreApplyJSONRejectsBadType(t *testing.T) {
	s := NewStore(nil)
	_, err := s.ApplyJSON([]byte(`{"rebalance_threshold":"high"}`))
	require.Error(t, err)
	assert.Equal(t, uint64(0), s.Revision())
	assert.Equal(t, 0.05, s.Get().RebalanceThreshold)
}

func TestStoreConcurrentReadersSeeWholeRevisions(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Update(func(p *Parameters) {
					p.Trend.ShortWindow = j
					p.Trend.LongWindow = j + 15
				})
			}
		}()
	}
	for i := 0; i < 500; i++ {
		p := s.Get()
		assert.Equal(t, p.Trend.ShortWindow+15, p.Trend.LongWindow)
	}
	wg.Wait()
	assert.Equal(t, uint64(800), s.Revision())
}

func TestLoadConfigFromReader(t *testing.T) {
	doc := `
stable_instrument: usdc
watchlist: [weth, wbtc]
target_allocations:
  usdc: 0.4
  weth: 0.35
  wbtc: 0.25
rebalance_threshold: 0.07
trend:
  short_window: 3
  long_window: 10
fallback:
  enabled: true
`
	p, err := LoadConfigFromReader(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "USDC", p.StableInstrument)
	assert.Equal(t, []string{"WETH", "WBTC"}, p.Watchlist)
	assert.InDelta(t, 0.35, p.TargetAllocations["WETH"], 1e-12)
	assert.Equal(t, 0.07, p.RebalanceThreshold)
	assert.Equal(t, 3, p.Trend.ShortWindow)
	// defaults survive for omitted keys
	assert.Equal(t, 0.1, p.Trend.BuyFraction)
	assert.True(t, p.Fallback.Enabled)
	assert.Equal(t, []float64{10, 15, 20}, p.Fallback.RotationNotionalsUSD)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("rebalance_treshold: 0.1\n"))
	assert.Error(t, err)
}
