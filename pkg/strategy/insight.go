package strategy

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/pkg/market"
	"cascade-agent/pkg/market/indicators"
)

const insightDepth = 60

// InstrumentInsight summarises one instrument's recent history for the
// advisory collaborator.
type InstrumentInsight struct {
	Instrument string  `json:"instrument"`
	Price      float64 `json:"price"`
	Weight     float64 `json:"weight"`
	Target     float64 `json:"target"`
	Points     int     `json:"points"`
	Change     float64 `json:"change"`
	SMAShort   float64 `json:"sma_short"`
	SMALong    float64 `json:"sma_long"`
	EMA20      float64 `json:"ema20"`
	RSI14      float64 `json:"rsi14"`
	MACDHist   float64 `json:"macd_hist"`
	Volatility float64 `json:"volatility"`
}

// BuildInsight computes the digest for every priced watched or targeted
// instrument. Missing history yields zero-valued indicators.
func BuildInsight(ctx context.Context, in *Input) []InstrumentInsight {
	p, snap := in.Params, in.Snapshot
	depth := insightDepth
	if p.Trend.LongWindow+1 > depth {
		depth = p.Trend.LongWindow + 1
	}
	var out []InstrumentInsight
	for _, id := range p.Instruments() {
		price, ok := snap.Price(id)
		if !ok {
			continue
		}
		item := InstrumentInsight{
			Instrument: id,
			Price:      price,
			Weight:     snap.Weight(id),
			Target:     p.TargetAllocations[id],
		}
		pts, err := in.history(ctx, id, depth)
		if err != nil {
			logx.WithContext(ctx).Errorf("strategy: insight for %s: %v", id, err)
		}
		prices := market.Prices(pts)
		item.Points = len(prices)
		item.Change, _ = indicators.Change(prices, 1)
		item.SMAShort, _ = indicators.TailMean(prices, p.Trend.ShortWindow)
		item.SMALong, _ = indicators.TailMean(prices, p.Trend.LongWindow)
		item.EMA20, _ = indicators.Last(indicators.EMA(prices, 20))
		item.RSI14, _ = indicators.Last(indicators.RSI(prices, 14))
		_, _, hist := indicators.MACD(prices)
		item.MACDHist, _ = indicators.Last(hist)
		item.Volatility, _ = indicators.CoefficientOfVariation(prices)
		out = append(out, item)
	}
	return out
}
