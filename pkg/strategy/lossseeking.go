package strategy

import (
	"context"
	"fmt"

	"cascade-agent/pkg/market"
	"cascade-agent/pkg/trade"
)

const lossSeekingConfidence = 0.1

// LossSeeking deliberately trades against the cascade's logic: it buys the
// instrument that rose the most since its previous observation and, when no
// stable balance is left, sells the one that fell the most. Its output skips
// the normal risk checks.
func LossSeeking(ctx context.Context, in *Input) (*trade.Instruction, error) {
	p, snap := in.Params, in.Snapshot
	frac := p.LossSeeking.TradeFraction
	if frac <= 0 {
		return nil, nil
	}
	var (
		topID, bottomID string
		top, bottom     float64
	)
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
		change := (price - prior[len(prior)-1].Price) / prior[len(prior)-1].Price
		if topID == "" || change > top {
			topID, top = id, change
		}
		if snap.Balance(id) > 0 && (bottomID == "" || change < bottom) {
			bottomID, bottom = id, change
		}
	}
	if topID != "" {
		if size := frac * in.stableBalance(); size > 0 {
			return in.buy(StageLossSeeking, topID, size, lossSeekingConfidence,
				fmt.Sprintf("chasing %s after %+.2f%%", topID, top*100)), nil
		}
	}
	if bottomID != "" {
		size := frac * snap.Balance(bottomID)
		return in.sell(StageLossSeeking, bottomID, size, lossSeekingConfidence,
			fmt.Sprintf("dumping %s after %+.2f%%", bottomID, bottom*100)), nil
	}
	return nil, nil
}
