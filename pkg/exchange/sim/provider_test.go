package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascade-agent/pkg/exchange"
	"cascade-agent/pkg/trade"
)

func swap(action trade.Action, from, to string, amount float64) *trade.Instruction {
	return trade.NewInstruction("test", action, from, to, amount, 0.5, "test")
}

func TestExecuteBuyAndSell(t *testing.T) {
	ts := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	p := New(WithBalances(map[string]float64{"usdc": 1000}), WithClock(func() time.Time { return ts }))
	p.SetPrices(map[string]float64{"USDC": 1, "WETH": 2000})
	ctx := context.Background()

	res, err := p.Execute(ctx, swap(trade.ActionBuy, "USDC", "WETH", 500))
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusFilled, res.Status)
	assert.InDelta(t, 0.25, res.AmountOut, 1e-12)
	assert.InDelta(t, 500.0, res.ValueUSD, 1e-9)
	assert.Equal(t, ts, res.ExecutedAt)
	assert.NotEmpty(t, res.TxID)

	bal, err := p.Balances(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 500.0, bal["USDC"], 1e-9)
	assert.InDelta(t, 0.25, bal["WETH"], 1e-12)

	_, err = p.Execute(ctx, swap(trade.ActionSell, "WETH", "USDC", 0.25))
	require.NoError(t, err)
	bal, _ = p.Balances(ctx)
	assert.InDelta(t, 1000.0, bal["USDC"], 1e-9)
	assert.NotContains(t, bal, "WETH", "fully sold holdings are removed")
	assert.Len(t, p.Fills(), 2)
	assert.InDelta(t, 1000.0, p.Value(), 1e-9)
}

func TestExecuteAppliesFeeAndSlippage(t *testing.T) {
	p := New(WithBalances(map[string]float64{"USDC": 1000}), WithFeeBps(30), WithSlippageBps(50))
	p.SetPrices(map[string]float64{"USDC": 1, "WETH": 1000})

	res, err := p.Execute(context.Background(), swap(trade.ActionBuy, "USDC", "WETH", 100))
	require.NoError(t, err)
	// 100 - 0.3 fee = 99.7, less 0.5% slippage = 99.2015 USD of WETH
	assert.InDelta(t, 0.0992015, res.AmountOut, 1e-9)
	assert.InDelta(t, 0.3, res.FeeUSD, 1e-9)
}

func TestExecuteTruncatesOutput(t *testing.T) {
	p := New(WithBalances(map[string]float64{"USDC": 10}))
	p.SetPrices(map[string]float64{"USDC": 1, "WBTC": 3})

	res, err := p.Execute(context.Background(), swap(trade.ActionBuy, "USDC", "WBTC", 1))
	require.NoError(t, err)
	assert.Equal(t, 0.33333333, res.AmountOut)
}

func TestExecuteErrors(t *testing.T) {
	ctx := context.Background()
	p := New(WithBalances(map[string]float64{"USDC": 50}))
	p.SetPrices(map[string]float64{"USDC": 1})

	_, err := p.Execute(ctx, swap(trade.ActionBuy, "USDC", "WETH", 100))
	assert.True(t, errors.Is(err, exchange.ErrInsufficientBalance))

	_, err = p.Execute(ctx, swap(trade.ActionBuy, "USDC", "WETH", 10))
	assert.True(t, errors.Is(err, exchange.ErrNoPrice))

	_, err = p.Execute(ctx, swap(trade.ActionBuy, "USDC", "USDC", 10))
	assert.True(t, errors.Is(err, exchange.ErrInvalidInstruction))

	_, err = p.Execute(ctx, swap(trade.ActionHold, "", "", 0))
	assert.True(t, errors.Is(err, exchange.ErrInvalidInstruction))

	_, err = p.Execute(ctx, nil)
	assert.Error(t, err)

	bal, _ := p.Balances(ctx)
	assert.InDelta(t, 50.0, bal["USDC"], 1e-12, "failed executions leave balances untouched")
}

func TestExecuteUsesQuotedDestinationPrice(t *testing.T) {
	p := New(WithBalances(map[string]float64{"USDC": 100}))
	p.SetPrices(map[string]float64{"USDC": 1})

	instr := swap(trade.ActionBuy, "USDC", "0x4200000000000000000000000000000000000006", 10)
	instr.ToPriceUSD = 2
	res, err := p.Execute(context.Background(), instr)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, res.AmountOut, 1e-12)
	assert.Equal(t, "0x4200000000000000000000000000000000000006", res.To)
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	p := New(WithBalances(map[string]float64{"USDC": 100}))
	p.SetPrices(map[string]float64{"USDC": 1, "WETH": 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Execute(ctx, swap(trade.ActionBuy, "USDC", "WETH", 10))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegisteredInExchangeRegistry(t *testing.T) {
	prov, err := exchange.GetProvider("sim", &exchange.ProviderConfig{
		InitialBalances: map[string]float64{"USDC": 42},
	})
	require.NoError(t, err)
	bal, err := prov.Balances(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 42.0, bal["USDC"], 1e-12)
}
