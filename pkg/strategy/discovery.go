package strategy

import (
	"context"
	"fmt"

	"cascade-agent/pkg/discovery"
	"cascade-agent/pkg/trade"
)

const (
	discoveryConfidence      = 0.05
	defaultDiscoveryNotional = 10.0
)

// Discoverer proposes a token the portfolio does not hold.
type Discoverer interface {
	Discover(ctx context.Context, f discovery.Filters) (*discovery.Candidate, error)
}

// DiscoveryFallback is the last guaranteed-trade fallback: buy a newly
// discovered token, paying with stable balance or, failing that, directly
// out of the largest other holding.
type DiscoveryFallback struct {
	src Discoverer
}

func NewDiscoveryFallback(src Discoverer) *DiscoveryFallback {
	return &DiscoveryFallback{src: src}
}

func (d *DiscoveryFallback) Evaluate(ctx context.Context, in *Input) (*trade.Instruction, error) {
	if d == nil || d.src == nil {
		return nil, nil
	}
	snap := in.Snapshot
	cfg := in.Params.Fallback.Discovery
	notional := cfg.NotionalUSD
	if notional <= 0 {
		notional = defaultDiscoveryNotional
	}
	exclude := append([]string{in.stable()}, cfg.Exclude...)
	for _, h := range snap.Holdings {
		exclude = append(exclude, h.Instrument)
	}
	cand, err := d.src.Discover(ctx, discovery.Filters{
		MinLiquidityUSD: cfg.MinLiquidityUSD,
		MinMarketCapUSD: cfg.MinMarketCapUSD,
		Exclude:         exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	if cand == nil {
		return nil, nil
	}
	reason := fmt.Sprintf("discovered %s (liquidity $%.0f, mcap $%.0f)", cand.Symbol, cand.LiquidityUSD, cand.MarketCapUSD)

	if trade.Fundable(in.stableBalance(), notional/in.stablePrice()) {
		instr := in.buy(StageDiscovery, cand.Instrument, notional/in.stablePrice(), discoveryConfidence, reason)
		instr.ToPriceUSD = cand.PriceUSD
		return instr, nil
	}
	for _, h := range snap.Holdings {
		if h.Instrument == in.stable() || h.Instrument == cand.Instrument || h.Price <= 0 || !trade.Fundable(h.Amount, notional/h.Price) {
			continue
		}
		instr := trade.NewInstruction(StageDiscovery, trade.ActionBuy, h.Instrument, cand.Instrument,
			notional/h.Price, discoveryConfidence, reason+", funded from "+h.Instrument)
		instr.ToPriceUSD = cand.PriceUSD
		return instr, nil
	}
	return nil, nil
}
