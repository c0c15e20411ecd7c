// Package params holds the strategy parameter record shared by the decision
// cascade, the risk gate and the control surface.
package params

import (
	"fmt"
	"math"
	"sort"

	"cascade-agent/pkg/token"
)

// Parameters is the full tunable surface of the agent. Instances handed out
// by Store are private copies; mutate only through Store.Update.
type Parameters struct {
	Revision uint64 `yaml:"-" json:"revision"`

	StableInstrument    string             `yaml:"stable_instrument" json:"stable_instrument"`
	Watchlist           []string           `yaml:"watchlist" json:"watchlist"`
	TargetAllocations   map[string]float64 `yaml:"target_allocations" json:"target_allocations"`
	RebalanceThreshold  float64            `yaml:"rebalance_threshold" json:"rebalance_threshold"`
	MinTradeUSD         float64            `yaml:"min_trade_usd" json:"min_trade_usd"`
	MaxPositionFraction float64            `yaml:"max_position_fraction" json:"max_position_fraction"`

	MeanReversion MeanReversion `yaml:"mean_reversion" json:"mean_reversion"`
	Trend         Trend         `yaml:"trend" json:"trend"`
	Breakout      Breakout      `yaml:"breakout" json:"breakout"`
	Momentum      Momentum      `yaml:"momentum" json:"momentum"`
	Risk          RiskLimits    `yaml:"risk" json:"risk"`

	LossSeeking  LossSeeking `yaml:"loss_seeking" json:"loss_seeking"`
	Advisory     Advisory    `yaml:"advisory" json:"advisory"`
	Fallback     Fallback    `yaml:"fallback" json:"fallback"`
	DegradedRisk bool        `yaml:"degraded_risk" json:"degraded_risk"`
}

type MeanReversion struct {
	Lookback     int     `yaml:"lookback" json:"lookback"`
	Threshold    float64 `yaml:"threshold" json:"threshold"`
	BuyFraction  float64 `yaml:"buy_fraction" json:"buy_fraction"`
	SellFraction float64 `yaml:"sell_fraction" json:"sell_fraction"`
}

type Trend struct {
	ShortWindow  int     `yaml:"short_window" json:"short_window"`
	LongWindow   int     `yaml:"long_window" json:"long_window"`
	BuyFraction  float64 `yaml:"buy_fraction" json:"buy_fraction"`
	SellFraction float64 `yaml:"sell_fraction" json:"sell_fraction"`
}

type Breakout struct {
	Lookback            int     `yaml:"lookback" json:"lookback"`
	RangeWindow         int     `yaml:"range_window" json:"range_window"`
	VolatilityThreshold float64 `yaml:"volatility_threshold" json:"volatility_threshold"`
	ConfirmationFactor  float64 `yaml:"confirmation_factor" json:"confirmation_factor"`
	BuyFraction         float64 `yaml:"buy_fraction" json:"buy_fraction"`
	SellFraction        float64 `yaml:"sell_fraction" json:"sell_fraction"`
}

type Momentum struct {
	Threshold    float64 `yaml:"threshold" json:"threshold"`
	BuyFraction  float64 `yaml:"buy_fraction" json:"buy_fraction"`
	SellFraction float64 `yaml:"sell_fraction" json:"sell_fraction"`
}

// RiskLimits are the thresholds enforced by the risk gate. Loss and drawdown
// limits are fractions (0.05 = 5%).
type RiskLimits struct {
	MaxDailyLoss     float64 `yaml:"max_daily_loss" json:"max_daily_loss"`
	MaxTradesPerHour int     `yaml:"max_trades_per_hour" json:"max_trades_per_hour"`
	MaxDrawdown      float64 `yaml:"max_drawdown" json:"max_drawdown"`
	ReferenceValue   float64 `yaml:"reference_value" json:"reference_value"`
}

type LossSeeking struct {
	Enabled       bool    `yaml:"enabled" json:"enabled"`
	TradeFraction float64 `yaml:"trade_fraction" json:"trade_fraction"`
}

type Advisory struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Pair is a tradable (asset, quote) combination used by the rotation fallback.
type Pair struct {
	Asset string `yaml:"asset" json:"asset"`
	Quote string `yaml:"quote" json:"quote"`
}

type Fallback struct {
	Enabled              bool      `yaml:"enabled" json:"enabled"`
	RotationNotionalsUSD []float64 `yaml:"rotation_notionals_usd" json:"rotation_notionals_usd"`
	PrimaryPair          Pair      `yaml:"primary_pair" json:"primary_pair"`
	SecondaryPair        Pair      `yaml:"secondary_pair" json:"secondary_pair"`
	Discovery            Discovery `yaml:"discovery" json:"discovery"`
}

type Discovery struct {
	NotionalUSD     float64  `yaml:"notional_usd" json:"notional_usd"`
	MinLiquidityUSD float64  `yaml:"min_liquidity_usd" json:"min_liquidity_usd"`
	MinMarketCapUSD float64  `yaml:"min_market_cap_usd" json:"min_market_cap_usd"`
	Exclude         []string `yaml:"exclude" json:"exclude"`
}

// Defaults returns the baseline parameter set. TargetAllocations is left
// empty so a loaded file never merges with a hidden default portfolio.
func Defaults() *Parameters {
	return &Parameters{
		StableInstrument:    "USDC",
		RebalanceThreshold:  0.05,
		MinTradeUSD:         10,
		MaxPositionFraction: 0.3,
		MeanReversion:       MeanReversion{Lookback: 20, Threshold: 0.05, BuyFraction: 0.1, SellFraction: 0.1},
		Trend:               Trend{ShortWindow: 5, LongWindow: 20, BuyFraction: 0.1, SellFraction: 0.1},
		Breakout: Breakout{
			Lookback:            20,
			RangeWindow:         20,
			VolatilityThreshold: 0.02,
			ConfirmationFactor:  0.01,
			BuyFraction:         0.1,
			SellFraction:        0.25,
		},
		Momentum:    Momentum{Threshold: 0.02, BuyFraction: 0.05, SellFraction: 0.05},
		Risk:        RiskLimits{MaxDailyLoss: 0.05, MaxTradesPerHour: 10, MaxDrawdown: 0.2},
		LossSeeking: LossSeeking{TradeFraction: 0.1},
		Fallback: Fallback{
			RotationNotionalsUSD: []float64{10, 15, 20},
			PrimaryPair:          Pair{Asset: "WETH", Quote: "USDC"},
			SecondaryPair:        Pair{Asset: "WBTC", Quote: "USDC"},
			Discovery:            Discovery{NotionalUSD: 10, MinLiquidityUSD: 50_000, MinMarketCapUSD: 1_000_000},
		},
	}
}

// Clone returns a deep copy.
func (p *Parameters) Clone() *Parameters {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Watchlist = append([]string(nil), p.Watchlist...)
	if p.TargetAllocations != nil {
		cp.TargetAllocations = make(map[string]float64, len(p.TargetAllocations))
		for k, v := range p.TargetAllocations {
			cp.TargetAllocations[k] = v
		}
	}
	cp.Fallback.RotationNotionalsUSD = append([]float64(nil), p.Fallback.RotationNotionalsUSD...)
	cp.Fallback.Discovery.Exclude = append([]string(nil), p.Fallback.Discovery.Exclude...)
	return &cp
}

// Normalize canonicalises every instrument identifier in place.
func (p *Parameters) Normalize() {
	p.StableInstrument = token.Canonical(p.StableInstrument)
	for i, id := range p.Watchlist {
		p.Watchlist[i] = token.Canonical(id)
	}
	if len(p.TargetAllocations) > 0 {
		targets := make(map[string]float64, len(p.TargetAllocations))
		for id, w := range p.TargetAllocations {
			targets[token.Canonical(id)] += w
		}
		p.TargetAllocations = targets
	}
	for i, id := range p.Fallback.Discovery.Exclude {
		p.Fallback.Discovery.Exclude[i] = token.Canonical(id)
	}
	for _, pair := range []*Pair{&p.Fallback.PrimaryPair, &p.Fallback.SecondaryPair} {
		pair.Asset = token.Canonical(pair.Asset)
		pair.Quote = token.Canonical(pair.Quote)
	}
}

// TargetInstruments returns the allocation keys in their fixed enumeration
// order.
func (p *Parameters) TargetInstruments() []string {
	ids := make([]string, 0, len(p.TargetAllocations))
	for id := range p.TargetAllocations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Instruments returns the watchlist followed by any target instrument not
// already listed, excluding the stable instrument.
func (p *Parameters) Instruments() []string {
	seen := map[string]struct{}{p.StableInstrument: {}}
	out := make([]string, 0, len(p.Watchlist)+len(p.TargetAllocations))
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range p.Watchlist {
		add(id)
	}
	for _, id := range p.TargetInstruments() {
		add(id)
	}
	return out
}

// Lint reports inconsistencies that are accepted but almost certainly
// unintended. Nothing here blocks an update.
func (p *Parameters) Lint() []string {
	var warnings []string
	if len(p.TargetAllocations) > 0 {
		var sum float64
		for _, w := range p.TargetAllocations {
			sum += w
		}
		if math.Abs(sum-1) > 1e-6 {
			warnings = append(warnings, fmt.Sprintf("target allocations sum to %.6f, expected 1", sum))
		}
	}
	if p.Trend.ShortWindow >= p.Trend.LongWindow {
		warnings = append(warnings, fmt.Sprintf("trend short window %d is not below long window %d", p.Trend.ShortWindow, p.Trend.LongWindow))
	}
	if p.StableInstrument == "" {
		warnings = append(warnings, "stable instrument is empty")
	}
	if p.LossSeeking.Enabled && p.Advisory.Enabled {
		warnings = append(warnings, "advisory mode preempts loss-seeking mode")
	}
	return warnings
}
