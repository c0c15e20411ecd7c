package strategy

import (
	"context"
	"fmt"

	"cascade-agent/pkg/market"
	"cascade-agent/pkg/market/indicators"
	"cascade-agent/pkg/trade"
)

const defaultRangeWindow = 20

// Breakout trades a price escaping a quiet range. Volatility and range are
// measured over observations strictly older than the snapshot, so the price
// being tested is never part of its own range.
func Breakout(ctx context.Context, in *Input) (*trade.Instruction, error) {
	p, snap := in.Params, in.Snapshot
	cfg := p.Breakout
	if cfg.Lookback < 2 {
		return nil, nil
	}
	window := cfg.RangeWindow
	if window <= 0 {
		window = defaultRangeWindow
	}
	need := cfg.Lookback
	if window > need {
		need = window
	}
	for _, id := range p.Instruments() {
		price, ok := snap.Price(id)
		if !ok {
			continue
		}
		pts, err := in.history(ctx, id, need+1)
		if err != nil {
			return nil, err
		}
		prior := market.Prices(market.Before(pts, snap.Timestamp))
		if len(prior) < cfg.Lookback {
			continue
		}
		vol, ok := indicators.CoefficientOfVariation(prior[len(prior)-cfg.Lookback:])
		if !ok || vol >= cfg.VolatilityThreshold {
			continue
		}
		high, low, _ := indicators.Extremes(prior, window)
		upper := high * (1 + cfg.ConfirmationFactor)
		lower := low * (1 - cfg.ConfirmationFactor)
		span := high - low

		switch {
		case price > upper:
			size := cfg.BuyFraction * in.stableBalance()
			if size <= 0 {
				logSkip(ctx, StageBreakout, id, "nothing to spend")
				continue
			}
			reason := fmt.Sprintf("breakout above %.6g (range %.6g-%.6g, vol %.4f)", upper, low, high, vol)
			return in.buy(StageBreakout, id, size, breakoutConfidence(price-upper, span), reason), nil
		case price < lower:
			size := cfg.SellFraction * snap.Balance(id)
			if size <= 0 {
				logSkip(ctx, StageBreakout, id, "no holding")
				continue
			}
			reason := fmt.Sprintf("breakdown below %.6g (range %.6g-%.6g, vol %.4f)", lower, low, high, vol)
			return in.sell(StageBreakout, id, size, breakoutConfidence(lower-price, span), reason), nil
		}
	}
	return nil, nil
}

// breakoutConfidence grows with the excess relative to the range width,
// bounded to [0.7, 0.9]. A flat range means any excess is decisive.
func breakoutConfidence(excess, span float64) float64 {
	if span <= 0 {
		return 0.9
	}
	return clamp(0.7+excess/span, 0.7, 0.9)
}
