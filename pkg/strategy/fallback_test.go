package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascade-agent/pkg/discovery"
	"cascade-agent/pkg/risk"
	"cascade-agent/pkg/trade"
)

func rotationInput(balances map[string]float64) *Input {
	p := testParams()
	p.Fallback.Enabled = true
	return &Input{
		Params:   p,
		Snapshot: snapshotAt(balances, map[string]float64{"USDC": 1, "WETH": 2000, "WBTC": 50000, "ARB": 1}),
	}
}

func TestRotationAlternatesDirectionAndCyclesNotionals(t *testing.T) {
	r := NewRotation()
	in := rotationInput(map[string]float64{"USDC": 100, "WETH": 0.05})

	want := []struct {
		action trade.Action
		from   string
		amount float64
	}{
		{trade.ActionBuy, "USDC", 10},
		{trade.ActionSell, "WETH", 15.0 / 2000},
		{trade.ActionBuy, "USDC", 20},
		{trade.ActionSell, "WETH", 10.0 / 2000},
	}
	for i, w := range want {
		instr, err := r.Evaluate(context.Background(), in)
		require.NoError(t, err)
		require.NotNil(t, instr, "call %d", i)
		assert.Equal(t, w.action, instr.Action, "call %d", i)
		assert.Equal(t, w.from, instr.From, "call %d", i)
		assert.InDelta(t, w.amount, instr.Amount, 1e-12, "call %d", i)
		assert.Equal(t, 0.1, instr.Confidence)
	}
}

func TestRotationFallsBackToOppositeDirection(t *testing.T) {
	r := NewRotation()
	in := rotationInput(map[string]float64{"WETH": 1})

	for i := 0; i < 3; i++ {
		instr, err := r.Evaluate(context.Background(), in)
		require.NoError(t, err)
		require.NotNil(t, instr)
		assert.Equal(t, trade.ActionSell, instr.Action)
		assert.Equal(t, "WETH", instr.From)
	}
}

func TestRotationUsesSecondaryPairThenAnyHolding(t *testing.T) {
	r := NewRotation()
	r.last = trade.ActionBuy // next preferred direction is sell

	in := rotationInput(map[string]float64{"WBTC": 0.001})
	instr, err := r.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.Equal(t, "WBTC", instr.From)
	assert.Equal(t, "USDC", instr.To)

	r.Reset()
	r.last = trade.ActionBuy
	in = rotationInput(map[string]float64{"ARB": 50})
	instr, err = r.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.Equal(t, "ARB", instr.From)
	assert.Equal(t, "USDC", instr.To)
}

func TestRotationProposalPassesBalanceBuffer(t *testing.T) {
	// $10 of stable cannot fund a $10 buy once the buffer is kept back
	in := rotationInput(map[string]float64{"USDC": 10, "ARB": 1000})
	in.Params.Risk.ReferenceValue = 0

	instr, err := NewRotation().Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.Equal(t, trade.ActionSell, instr.Action)
	assert.Equal(t, "ARB", instr.From)

	v := risk.NewGate().Validate(in.Params, instr, in.Snapshot, &trade.AgentState{Active: true})
	assert.True(t, v.Accepted, v.Reason)
}

func TestDiscoverySkipsStableWithoutBuffer(t *testing.T) {
	src := &fakeDiscoverer{cand: &discovery.Candidate{Instrument: "OP", Symbol: "OP", PriceUSD: 2}}
	in := rotationInput(map[string]float64{"USDC": 10, "WETH": 0.01})

	instr, err := NewDiscoveryFallback(src).Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.Equal(t, "WETH", instr.From)
}

func TestRotationNothingTradable(t *testing.T) {
	r := NewRotation()
	instr, err := r.Evaluate(context.Background(), rotationInput(map[string]float64{"USDC": 2, "ARB": 3}))
	require.NoError(t, err)
	assert.Nil(t, instr)
}

type fakeDiscoverer struct {
	cand    *discovery.Candidate
	err     error
	filters discovery.Filters
}

func (f *fakeDiscoverer) Discover(_ context.Context, filters discovery.Filters) (*discovery.Candidate, error) {
	f.filters = filters
	return f.cand, f.err
}

func TestDiscoveryFundsFromStable(t *testing.T) {
	src := &fakeDiscoverer{cand: &discovery.Candidate{Instrument: "ARB", Symbol: "ARB", PriceUSD: 0.9}}
	d := NewDiscoveryFallback(src)
	in := rotationInput(map[string]float64{"USDC": 50, "WETH": 1})

	instr, err := d.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.Equal(t, trade.ActionBuy, instr.Action)
	assert.Equal(t, "USDC", instr.From)
	assert.Equal(t, "ARB", instr.To)
	assert.InDelta(t, 10, instr.Amount, 1e-12)
	assert.Equal(t, 0.9, instr.ToPriceUSD)
	assert.Equal(t, 0.05, instr.Confidence)
	assert.Subset(t, src.filters.Exclude, []string{"USDC", "WETH"})
	assert.Equal(t, 50_000.0, src.filters.MinLiquidityUSD)
}

func TestDiscoveryLiquidatesOtherHolding(t *testing.T) {
	src := &fakeDiscoverer{cand: &discovery.Candidate{Instrument: "OP", Symbol: "OP", PriceUSD: 2}}
	d := NewDiscoveryFallback(src)
	in := rotationInput(map[string]float64{"USDC": 3, "WETH": 0.01})

	instr, err := d.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, instr)
	assert.Equal(t, "WETH", instr.From)
	assert.Equal(t, "OP", instr.To)
	assert.InDelta(t, 10.0/2000, instr.Amount, 1e-12)
}

func TestDiscoveryNoCandidateOrError(t *testing.T) {
	in := rotationInput(map[string]float64{"USDC": 50})

	instr, err := NewDiscoveryFallback(&fakeDiscoverer{}).Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, instr)

	_, err = NewDiscoveryFallback(&fakeDiscoverer{err: errors.New("api down")}).Evaluate(context.Background(), in)
	assert.Error(t, err)

	instr, err = NewDiscoveryFallback(nil).Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, instr)
}
