package strategy

import (
	"context"
	"fmt"
	"math"

	"cascade-agent/pkg/trade"
)

const rebalanceConfidence = 0.8

// Rebalance restores target weights. Instruments are visited in sorted
// order and the first whose weight drifts beyond the threshold produces the
// instruction. The stable instrument is the counter-asset and is never
// rebalanced against itself.
func Rebalance(ctx context.Context, in *Input) (*trade.Instruction, error) {
	p, snap := in.Params, in.Snapshot
	if snap.TotalValue <= 0 || len(p.TargetAllocations) == 0 {
		return nil, nil
	}
	for _, id := range p.TargetInstruments() {
		if id == in.stable() {
			continue
		}
		target := p.TargetAllocations[id]
		current := snap.Weight(id)
		deviation := current - target
		if math.Abs(deviation) <= p.RebalanceThreshold {
			continue
		}
		usd := math.Abs(deviation) * snap.TotalValue

		if deviation > 0 {
			price, ok := snap.Price(id)
			if !ok {
				logSkip(ctx, StageRebalance, id, "no price")
				continue
			}
			if usd < p.MinTradeUSD {
				logSkip(ctx, StageRebalance, id, "below minimum trade")
				continue
			}
			reason := fmt.Sprintf("overweight %.1f%% vs target %.1f%%", current*100, target*100)
			return in.sell(StageRebalance, id, usd/price, rebalanceConfidence, reason), nil
		}

		amount := usd / in.stablePrice()
		if !trade.Fundable(in.stableBalance(), amount) {
			logSkip(ctx, StageRebalance, id, "insufficient stable balance")
			continue
		}
		reason := fmt.Sprintf("underweight %.1f%% vs target %.1f%%", current*100, target*100)
		return in.buy(StageRebalance, id, amount, rebalanceConfidence, reason), nil
	}
	return nil, nil
}
