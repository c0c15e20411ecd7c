package strategy

import (
	"context"
	"fmt"

	"cascade-agent/pkg/market"
	"cascade-agent/pkg/market/indicators"
	"cascade-agent/pkg/trade"
)

const trendConfidence = 0.7

// TrendFollowing trades short/long moving average crossovers. The previous
// averages are taken over the series without its newest point; when the
// series holds exactly the long window, the previous long average covers
// one point fewer.
func TrendFollowing(ctx context.Context, in *Input) (*trade.Instruction, error) {
	p, snap := in.Params, in.Snapshot
	short, long := p.Trend.ShortWindow, p.Trend.LongWindow
	if short <= 0 || long <= 0 {
		return nil, nil
	}
	for _, id := range p.Instruments() {
		pts, err := in.history(ctx, id, long+1)
		if err != nil {
			return nil, err
		}
		if len(pts) < long || len(pts) < 2 {
			continue
		}
		prices := market.Prices(pts)
		prev := prices[:len(prices)-1]

		curShort, _ := indicators.TailMean(prices, short)
		curLong, _ := indicators.TailMean(prices, long)
		prevShort, _ := indicators.TailMean(prev, short)
		prevLong, _ := indicators.TailMean(prev, long)

		switch {
		case prevShort <= prevLong && curShort > curLong:
			size := p.Trend.BuyFraction * in.stableBalance()
			if size <= 0 {
				logSkip(ctx, StageTrend, id, "nothing to spend")
				continue
			}
			reason := fmt.Sprintf("golden cross: SMA%d %.6g over SMA%d %.6g", short, curShort, long, curLong)
			return in.buy(StageTrend, id, size, trendConfidence, reason), nil
		case prevShort >= prevLong && curShort < curLong:
			size := p.Trend.SellFraction * snap.Balance(id)
			if size <= 0 {
				logSkip(ctx, StageTrend, id, "no holding")
				continue
			}
			reason := fmt.Sprintf("death cross: SMA%d %.6g under SMA%d %.6g", short, curShort, long, curLong)
			return in.sell(StageTrend, id, size, trendConfidence, reason), nil
		}
	}
	return nil, nil
}
