package strategy

import (
	"context"
	"fmt"
	"math"

	"cascade-agent/pkg/market"
	"cascade-agent/pkg/trade"
)

// Momentum follows the move since the previous observation. It is the
// weakest signal and only runs when every other evaluator is silent.
func Momentum(ctx context.Context, in *Input) (*trade.Instruction, error) {
	p, snap := in.Params, in.Snapshot
	cfg := p.Momentum
	for _, id := range p.Instruments() {
		price, ok := snap.Price(id)
		if !ok {
			continue
		}
		pts, err := in.history(ctx, id, 2)
		if err != nil {
			return nil, err
		}
		prior := market.Before(pts, snap.Timestamp)
		if len(prior) == 0 || prior[len(prior)-1].Price <= 0 {
			continue
		}
		prev := prior[len(prior)-1].Price
		change := (price - prev) / prev
		confidence := math.Min(0.6, 0.4+5*math.Abs(change))

		switch {
		case change > cfg.Threshold:
			size := cfg.BuyFraction * in.stableBalance()
			if size <= 0 {
				continue
			}
			return in.buy(StageMomentum, id, size, confidence, fmt.Sprintf("up %.2f%% since last observation", change*100)), nil
		case change < -cfg.Threshold:
			size := cfg.SellFraction * snap.Balance(id)
			if size <= 0 {
				continue
			}
			return in.sell(StageMomentum, id, size, confidence, fmt.Sprintf("down %.2f%% since last observation", -change*100)), nil
		}
	}
	return nil, nil
}
