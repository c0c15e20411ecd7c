package strategy

import (
	"context"
	"fmt"
	"math"

	"cascade-agent/pkg/market"
	"cascade-agent/pkg/market/indicators"
	"cascade-agent/pkg/trade"
)

// MeanReversion buys instruments trading well below their simple moving
// average and sells those well above it.
func MeanReversion(ctx context.Context, in *Input) (*trade.Instruction, error) {
	p, snap := in.Params, in.Snapshot
	cfg := p.MeanReversion
	if cfg.Lookback <= 0 {
		return nil, nil
	}
	for _, id := range p.Instruments() {
		price, ok := snap.Price(id)
		if !ok {
			continue
		}
		pts, err := in.history(ctx, id, cfg.Lookback)
		if err != nil {
			return nil, err
		}
		sma, ok := indicators.SMA(market.Prices(pts), cfg.Lookback)
		if !ok || sma == 0 {
			continue
		}
		dev := (price - sma) / sma
		confidence := math.Min(0.9, 0.5+2*math.Abs(dev))

		switch {
		case dev < -cfg.Threshold:
			size := math.Min(cfg.BuyFraction*in.stableBalance(), p.MaxPositionFraction*snap.TotalValue/in.stablePrice())
			if size <= 0 {
				logSkip(ctx, StageMeanReversion, id, "nothing to spend")
				continue
			}
			reason := fmt.Sprintf("price %.1f%% below %d-point mean", -dev*100, cfg.Lookback)
			return in.buy(StageMeanReversion, id, size, confidence, reason), nil
		case dev > cfg.Threshold:
			size := cfg.SellFraction * snap.Balance(id)
			if size <= 0 {
				logSkip(ctx, StageMeanReversion, id, "no holding")
				continue
			}
			reason := fmt.Sprintf("price %.1f%% above %d-point mean", dev*100, cfg.Lookback)
			return in.sell(StageMeanReversion, id, size, confidence, reason), nil
		}
	}
	return nil, nil
}
