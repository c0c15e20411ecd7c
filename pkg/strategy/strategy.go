// Package strategy turns a market snapshot into at most one trading
// instruction per cycle. Evaluators run in a fixed priority order and the
// first one that fires wins; two fallbacks guarantee activity when enabled.
package strategy

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/pkg/market"
	"cascade-agent/pkg/params"
	"cascade-agent/pkg/trade"
)

// Stage names, also stamped on the instructions they produce.
const (
	StageRebalance     = "rebalance"
	StageTrend         = "trend"
	StageBreakout      = "breakout"
	StageMeanReversion = "mean_reversion"
	StageMomentum      = "momentum"
	StageRotation      = "rotation"
	StageDiscovery     = "discovery"
	StageLossSeeking   = "loss_seeking"
	StageAdvisory      = "advisory"
)

// Input is everything an evaluator may read. All fields are read-only.
type Input struct {
	Snapshot *market.Snapshot
	Params   *params.Parameters
	History  market.HistoryReader
	State    *trade.AgentState
}

// EvaluatorFunc proposes an instruction or returns nil for no signal. An
// error is logged by the orchestrator and treated as no signal.
type EvaluatorFunc func(ctx context.Context, in *Input) (*trade.Instruction, error)

// Stage is a named evaluator in the cascade.
type Stage struct {
	Name string
	Eval EvaluatorFunc
}

// DefaultStages is the signal cascade in priority order.
func DefaultStages() []Stage {
	return []Stage{
		{Name: StageRebalance, Eval: Rebalance},
		{Name: StageTrend, Eval: TrendFollowing},
		{Name: StageBreakout, Eval: Breakout},
		{Name: StageMeanReversion, Eval: MeanReversion},
		{Name: StageMomentum, Eval: Momentum},
	}
}

func (in *Input) history(ctx context.Context, id string, count int) ([]market.HistoricalPoint, error) {
	if in.History == nil || count <= 0 {
		return nil, nil
	}
	pts, err := in.History.GetHistory(ctx, id, count)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", id, err)
	}
	return pts, nil
}

func (in *Input) stable() string {
	return in.Params.StableInstrument
}

// stablePrice treats an unpriced stable instrument as pegged at 1.
func (in *Input) stablePrice() float64 {
	if px, ok := in.Snapshot.Price(in.stable()); ok {
		return px
	}
	return 1
}

func (in *Input) stableBalance() float64 {
	return in.Snapshot.Balance(in.stable())
}

func (in *Input) buy(stage, id string, stableAmount, confidence float64, reason string) *trade.Instruction {
	return trade.NewInstruction(stage, trade.ActionBuy, in.stable(), id, stableAmount, confidence, reason)
}

func (in *Input) sell(stage, id string, amount, confidence float64, reason string) *trade.Instruction {
	return trade.NewInstruction(stage, trade.ActionSell, id, in.stable(), amount, confidence, reason)
}

func logSkip(ctx context.Context, stage, id, why string) {
	logx.WithContext(ctx).Debugf("strategy: %s skipped %s: %s", stage, id, why)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
