// Package backtest replays a price table through the full decision pipeline:
// cascade, risk gate and the paper venue, one agent cycle per frame.
package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"gonum.org/v1/gonum/stat"

	"cascade-agent/pkg/agent"
	"cascade-agent/pkg/exchange/sim"
	"cascade-agent/pkg/market"
	"cascade-agent/pkg/params"
	"cascade-agent/pkg/risk"
	"cascade-agent/pkg/strategy"
)

const defaultHistoryCapacity = 4096

// Engine wires a Feeder to a paper agent.
type Engine struct {
	Feeder          Feeder
	Params          *params.Parameters
	InitialBalances map[string]float64

	FeeBps      float64
	SlippageBps float64
	// Discoverer enables the discovery fallback when set.
	Discoverer strategy.Discoverer

	// Optional: write a JSON report to this path.
	OutputPath string
}

// Result summarises a replay.
type Result struct {
	Steps       int            `json:"steps"`
	Errors      int            `json:"errors"`
	Proposed    int            `json:"proposed"`
	Rejected    int            `json:"rejected"`
	Trades      int            `json:"trades"`
	ByStrategy  map[string]int `json:"by_strategy"`
	StartValue  float64        `json:"start_value"`
	EndValue    float64        `json:"end_value"`
	ReturnPct   float64        `json:"return_pct"`
	FeesUSD     float64        `json:"fees_usd"`
	MaxDDPct    float64        `json:"max_dd_pct"`
	Sharpe      float64        `json:"sharpe"`
	EquityCurve []float64      `json:"equity_curve"`
	Details     []TradeDetail  `json:"details"`
}

// TradeDetail records one executed swap.
type TradeDetail struct {
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`
	Strategy  string    `json:"strategy"`
	Action    string    `json:"action"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	AmountIn  float64   `json:"amount_in"`
	AmountOut float64   `json:"amount_out"`
	ValueUSD  float64   `json:"value_usd"`
	FeeUSD    float64   `json:"fee_usd"`
	Reason    string    `json:"reason"`
}

func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.Feeder == nil || len(e.InitialBalances) == 0 {
		return nil, errors.New("backtest: engine needs a feeder and initial balances")
	}
	p := params.Defaults()
	if e.Params != nil {
		p = e.Params.Clone()
	}
	// Replays have no model to consult.
	p.Advisory.Enabled = false

	clock := &replayClock{}
	prices := &replayPrices{}
	venue := sim.New(
		sim.WithBalances(e.InitialBalances),
		sim.WithFeeBps(e.FeeBps),
		sim.WithSlippageBps(e.SlippageBps),
		sim.WithClock(clock.Now),
	)
	var orchOpts []strategy.Option
	if e.Discoverer != nil {
		orchOpts = append(orchOpts, strategy.WithDiscoverer(e.Discoverer))
	}
	ag, err := agent.New(&agent.Config{
		Interval:     time.Minute,
		CycleTimeout: time.Minute,
		RiskTier:     "backtest",
	}, agent.Deps{
		Params:  params.NewStore(p),
		Market:  &market.Composite{Balances: venue, Prices: prices, Now: clock.Now},
		Decider: strategy.NewOrchestrator(market.NewMemoryHistory(defaultHistoryCapacity), orchOpts...),
		Gate:    risk.NewGate(risk.WithClock(clock.Now)),
		Venue:   venue,
	}, agent.WithClock(clock.Now))
	if err != nil {
		return nil, err
	}

	res := &Result{ByStrategy: make(map[string]int)}
	for {
		fr, ok, err := e.Feeder.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		res.Steps++
		clock.set(fr.Timestamp)
		prices.set(fr.Prices)

		report, err := ag.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.Errors++
			logx.WithContext(ctx).Errorf("backtest: step %d: %v", res.Steps, err)
		}
		if res.Steps == 1 && report.Snapshot != nil {
			res.StartValue = report.Snapshot.TotalValue
		}
		if report.Instruction != nil && report.Instruction.IsTrade() {
			res.Proposed++
		}
		if report.Verdict != nil && !report.Verdict.Accepted {
			res.Rejected++
		}
		if report.Executed() {
			instr, fill := report.Instruction, report.Execution
			res.Trades++
			res.ByStrategy[instr.Strategy]++
			res.FeesUSD += fill.FeeUSD
			res.Details = append(res.Details, TradeDetail{
				Step:      res.Steps,
				Timestamp: fr.Timestamp,
				Strategy:  instr.Strategy,
				Action:    string(instr.Action),
				From:      fill.From,
				To:        fill.To,
				AmountIn:  fill.AmountIn,
				AmountOut: fill.AmountOut,
				ValueUSD:  fill.ValueUSD,
				FeeUSD:    fill.FeeUSD,
				Reason:    instr.Reason,
			})
		}
		res.EquityCurve = append(res.EquityCurve, venue.Value())
	}

	if n := len(res.EquityCurve); n > 0 {
		res.EndValue = res.EquityCurve[n-1]
		if res.StartValue > 0 {
			res.ReturnPct = (res.EndValue/res.StartValue - 1) * 100
		}
		res.MaxDDPct = maxDrawdownPct(append([]float64{res.StartValue}, res.EquityCurve...))
		res.Sharpe = sharpe(res.EquityCurve)
	}

	if e.OutputPath != "" {
		if err := writeReport(e.OutputPath, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// replayClock is the shared time source of one replay.
type replayClock struct {
	mu  sync.RWMutex
	now time.Time
}

func (c *replayClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *replayClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// replayPrices serves the current frame. Every instrument in the frame is
// returned so history accumulates for instruments not yet held.
type replayPrices struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func (r *replayPrices) set(prices map[string]float64) {
	r.mu.Lock()
	r.prices = prices
	r.mu.Unlock()
}

func (r *replayPrices) Prices(context.Context, []string) (map[string]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64, len(r.prices))
	for id, px := range r.prices {
		out[id] = px
	}
	return out, nil
}

func maxDrawdownPct(series []float64) float64 {
	peak := series[0]
	mdd := 0.0
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > mdd {
			mdd = dd
		}
	}
	return mdd * 100
}

// sharpe is the per-step mean return over its population stdev, scaled by
// the square root of the number of steps.
func sharpe(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		rets = append(rets, equity[i]/equity[i-1]-1)
	}
	if len(rets) == 0 {
		return 0
	}
	m, sd := stat.PopMeanStdDev(rets, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return m / sd * math.Sqrt(float64(len(rets)))
}

func writeReport(path string, r *Result) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("backtest: encode report: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("backtest: write report: %w", err)
	}
	return nil
}
