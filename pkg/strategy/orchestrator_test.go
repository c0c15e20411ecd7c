package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascade-agent/pkg/discovery"
	"cascade-agent/pkg/market"
	"cascade-agent/pkg/trade"
)

type stageLog struct {
	calls []string
}

func (l *stageLog) stage(name string, fire bool) Stage {
	return Stage{Name: name, Eval: func(context.Context, *Input) (*trade.Instruction, error) {
		l.calls = append(l.calls, name)
		if !fire {
			return nil, nil
		}
		return &trade.Instruction{Action: trade.ActionHold}, nil
	}}
}

func TestDecideFirstFiringStageWins(t *testing.T) {
	log := &stageLog{}
	o := NewOrchestrator(market.NewMemoryHistory(0), WithStages(
		log.stage("a", false),
		log.stage("b", true),
		log.stage("c", true),
	))
	snap := snapshotAt(map[string]float64{"USDC": 100}, map[string]float64{"USDC": 1})

	instr, err := o.Decide(context.Background(), snap, testParams(), &trade.AgentState{Active: true})
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.Equal(t, "b", instr.Strategy)
	assert.Equal(t, []string{"a", "b"}, log.calls)
}

func TestDecideTreatsFaultsAsNoSignal(t *testing.T) {
	log := &stageLog{}
	o := NewOrchestrator(nil, WithStages(
		Stage{Name: "erroring", Eval: func(context.Context, *Input) (*trade.Instruction, error) {
			return nil, errors.New("boom")
		}},
		Stage{Name: "panicking", Eval: func(context.Context, *Input) (*trade.Instruction, error) {
			var m map[string]int
			m["x"]++
			return nil, nil
		}},
		log.stage("last", true),
	))
	snap := snapshotAt(map[string]float64{"USDC": 100}, map[string]float64{"USDC": 1})

	instr, err := o.Decide(context.Background(), snap, testParams(), nil)
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.Equal(t, "last", instr.Strategy)
}

func TestDecideWritesPricesThrough(t *testing.T) {
	h := market.NewMemoryHistory(0)
	o := NewOrchestrator(h, WithStages())
	snap := snapshotAt(map[string]float64{"USDC": 100, "WETH": 1}, map[string]float64{"USDC": 1, "WETH": 2000})

	_, err := o.Decide(context.Background(), snap, testParams(), nil)
	require.NoError(t, err)

	pts, _ := h.GetHistory(context.Background(), "WETH", 5)
	require.Len(t, pts, 1)
	assert.Equal(t, 2000.0, pts[0].Price)
	assert.Equal(t, t0, pts[0].Timestamp)
	vals := h.PortfolioValues(0)
	require.Len(t, vals, 1)
	assert.InDelta(t, 2100, vals[0].Price, 1e-9)
}

func TestDecideRebalancePreemptsOtherSignals(t *testing.T) {
	h := market.NewMemoryHistory(0)
	// a steady series followed by a jump would also trip breakout and momentum
	seedBefore(h, "WBTC", alternating(45000, 45010, 20)...)
	p := testParams()
	p.Watchlist = []string{"WETH", "WBTC"}
	p.TargetAllocations = map[string]float64{"USDC": 0.4, "WETH": 0.35, "WBTC": 0.25}
	snap := snapshotAt(
		map[string]float64{"USDC": 200, "WETH": 0.1, "WBTC": 0.01},
		map[string]float64{"USDC": 1, "WETH": 3500, "WBTC": 45000 * 1.05},
	)

	instr, err := NewOrchestrator(h).Decide(context.Background(), snap, p, &trade.AgentState{Active: true})
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.Equal(t, StageRebalance, instr.Strategy)
	assert.Equal(t, "WBTC", instr.From)
	assert.Equal(t, trade.ActionSell, instr.Action)
}

func TestDecideBalancedFlatMarketIsSilent(t *testing.T) {
	h := market.NewMemoryHistory(0)
	seedBefore(h, "WETH", repeat(100, 20)...)
	p := testParams()
	p.TargetAllocations = map[string]float64{"USDC": 0.5, "WETH": 0.5}
	snap := snapshotAt(map[string]float64{"USDC": 500, "WETH": 5}, map[string]float64{"USDC": 1, "WETH": 100})

	instr, err := NewOrchestrator(h).Decide(context.Background(), snap, p, &trade.AgentState{Active: true})
	require.NoError(t, err)
	assert.Nil(t, instr)
}

func TestDecideGuaranteedFallbackChain(t *testing.T) {
	p := testParams()
	p.Fallback.Enabled = true
	src := &fakeDiscoverer{cand: &discovery.Candidate{Instrument: "OP", Symbol: "OP", PriceUSD: 2}}
	o := NewOrchestrator(market.NewMemoryHistory(0), WithStages(), WithDiscoverer(src))

	// rotation can trade the primary pair
	snap := snapshotAt(map[string]float64{"USDC": 100}, map[string]float64{"USDC": 1, "WETH": 2000})
	instr, err := o.Decide(context.Background(), snap, p, nil)
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.Equal(t, StageRotation, instr.Strategy)

	// nothing is worth the rotation notional but discovery can still buy with $10 stable
	p.Fallback.RotationNotionalsUSD = []float64{500}
	snap = snapshotAt(map[string]float64{"USDC": 20}, map[string]float64{"USDC": 1, "WETH": 2000})
	instr, err = o.Decide(context.Background(), snap, p, nil)
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.Equal(t, StageDiscovery, instr.Strategy)
	assert.Equal(t, "OP", instr.To)

	p.Fallback.Enabled = false
	instr, err = o.Decide(context.Background(), snap, p, nil)
	require.NoError(t, err)
	assert.Nil(t, instr)
}

type fakeAdvisor struct {
	instr *trade.Instruction
	err   error
	req   *AdvisoryRequest
}

func (f *fakeAdvisor) Advise(_ context.Context, req *AdvisoryRequest) (*trade.Instruction, error) {
	f.req = req
	return f.instr, f.err
}

func TestDecideAdvisoryModeDelegatesVerbatim(t *testing.T) {
	log := &stageLog{}
	want := &trade.Instruction{ID: "llm-1", Action: trade.ActionBuy, From: "USDC", To: "WETH", Amount: 12, Strategy: StageAdvisory}
	adv := &fakeAdvisor{instr: want}
	o := NewOrchestrator(market.NewMemoryHistory(0), WithAdvisor(adv), WithStages(log.stage("cascade", true)))

	p := testParams()
	p.Advisory.Enabled = true
	p.LossSeeking.Enabled = true
	snap := snapshotAt(map[string]float64{"USDC": 100}, map[string]float64{"USDC": 1, "WETH": 2000})

	instr, err := o.Decide(context.Background(), snap, p, &trade.AgentState{Active: true})
	require.NoError(t, err)
	assert.Same(t, want, instr)
	assert.False(t, instr.Bypass)
	assert.Empty(t, log.calls)
	require.NotNil(t, adv.req)
	assert.Equal(t, p.Risk, adv.req.Limits)
	require.Len(t, adv.req.Insight, 1)
	assert.Equal(t, "WETH", adv.req.Insight[0].Instrument)
}

func TestDecideAdvisoryFailures(t *testing.T) {
	p := testParams()
	p.Advisory.Enabled = true
	snap := snapshotAt(map[string]float64{"USDC": 100}, map[string]float64{"USDC": 1})

	_, err := NewOrchestrator(nil).Decide(context.Background(), snap, p, nil)
	assert.ErrorIs(t, err, ErrNoAdvisor)

	_, err = NewOrchestrator(nil, WithAdvisor(&fakeAdvisor{err: errors.New("timeout")})).Decide(context.Background(), snap, p, nil)
	assert.ErrorContains(t, err, "advisory")
}

func TestDecideLossSeekingMarksBypass(t *testing.T) {
	h := market.NewMemoryHistory(0)
	seedBefore(h, "WETH", 100)
	p := testParams()
	p.LossSeeking.Enabled = true
	snap := snapshotAt(map[string]float64{"USDC": 100}, map[string]float64{"USDC": 1, "WETH": 120})

	instr, err := NewOrchestrator(h).Decide(context.Background(), snap, p, nil)
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.Equal(t, StageLossSeeking, instr.Strategy)
	assert.True(t, instr.Bypass)
}

func TestDecideLossSeekingFallsThroughToCascade(t *testing.T) {
	log := &stageLog{}
	p := testParams()
	p.LossSeeking.Enabled = true
	snap := snapshotAt(map[string]float64{"USDC": 100}, map[string]float64{"USDC": 1, "WETH": 120})

	instr, err := NewOrchestrator(market.NewMemoryHistory(0), WithStages(log.stage("cascade", true))).Decide(context.Background(), snap, p, nil)
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.False(t, instr.Bypass)
	assert.Equal(t, []string{"cascade"}, log.calls)
}

func TestModeFor(t *testing.T) {
	p := testParams()
	assert.Equal(t, ModeCascade, ModeFor(p))
	p.LossSeeking.Enabled = true
	assert.Equal(t, ModeLossSeeking, ModeFor(p))
	p.Advisory.Enabled = true
	assert.Equal(t, ModeAdvisory, ModeFor(p))
	assert.Equal(t, "advisory", ModeAdvisory.String())
}

// roundingHistory stores timestamps at microsecond resolution, rounded, the
// way a timestamptz column does.
type roundingHistory struct {
	*market.MemoryHistory
}

func (h roundingHistory) AppendHistory(ctx context.Context, ts time.Time, id string, price, value float64) error {
	return h.MemoryHistory.AppendHistory(ctx, ts.Round(time.Microsecond), id, price, value)
}

func TestDecideBreakoutSurvivesStoredTimestampRounding(t *testing.T) {
	for _, offset := range []time.Duration{0, 400 * time.Nanosecond, 600 * time.Nanosecond, 999 * time.Nanosecond} {
		h := roundingHistory{market.NewMemoryHistory(0)}
		seedBefore(h.MemoryHistory, "WETH", alternating(100, 100.5, 20)...)
		o := NewOrchestrator(h, WithStages(Stage{Name: StageBreakout, Eval: Breakout}))
		snap := market.NewSnapshot(t0.Add(offset),
			map[string]float64{"USDC": 1000},
			map[string]float64{"USDC": 1, "WETH": 103},
		)

		instr, err := o.Decide(context.Background(), snap, testParams(), &trade.AgentState{Active: true})
		require.NoError(t, err)
		require.NotNil(t, instr, "offset %v", offset)
		assert.Equal(t, StageBreakout, instr.Strategy)
		assert.Equal(t, trade.ActionBuy, instr.Action)
	}
}
