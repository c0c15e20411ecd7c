package advisor

import (
	"fmt"
	"strings"

	"cascade-agent/pkg/strategy"
	"cascade-agent/pkg/token"
	"cascade-agent/pkg/trade"
)

// decisionContract is the structured reply requested from the model.
type decisionContract struct {
	Action     string  `json:"action" enum:"buy,sell,hold" description:"buy spends the stable instrument, sell returns to it"`
	Instrument string  `json:"instrument" description:"instrument to buy or sell; empty for hold"`
	AmountUSD  float64 `json:"amount_usd" description:"trade size in USD"`
	Confidence float64 `json:"confidence" description:"0 to 1"`
	Reason     string  `json:"reason"`
}

// toInstruction validates the reply against the request and converts it.
// Hold yields nil.
func (d decisionContract) toInstruction(cfg *Config, req *strategy.AdvisoryRequest) (*trade.Instruction, error) {
	action := trade.Action(strings.ToLower(strings.TrimSpace(d.Action)))
	if !action.Valid() {
		return nil, fmt.Errorf("unknown action %q", d.Action)
	}
	if action == trade.ActionHold {
		return nil, nil
	}

	snap, p := req.Snapshot, req.Params
	stable := p.StableInstrument
	id := token.Canonical(d.Instrument)
	switch {
	case id == "":
		return nil, fmt.Errorf("%s needs an instrument", action)
	case token.Equal(id, stable):
		return nil, fmt.Errorf("cannot %s the stable instrument %s", action, stable)
	case d.AmountUSD <= 0:
		return nil, fmt.Errorf("amount_usd must be positive, got %v", d.AmountUSD)
	case d.Confidence < 0 || d.Confidence > 1:
		return nil, fmt.Errorf("confidence %v outside [0,1]", d.Confidence)
	case d.Confidence < cfg.MinConfidence:
		return nil, fmt.Errorf("confidence %.2f below minimum %.2f", d.Confidence, cfg.MinConfidence)
	}
	if limit := cfg.MaxTradeFraction * snap.TotalValue; cfg.MaxTradeFraction > 0 && d.AmountUSD > limit+1e-9 {
		return nil, fmt.Errorf("amount_usd %.2f exceeds cap %.2f", d.AmountUSD, limit)
	}
	price, ok := snap.Price(id)
	if !ok {
		return nil, fmt.Errorf("no price for %s", id)
	}

	reason := strings.TrimSpace(d.Reason)
	if reason == "" {
		reason = "advisory decision"
	}
	if action == trade.ActionBuy {
		stablePx, ok := snap.Price(stable)
		if !ok {
			stablePx = 1
		}
		return trade.NewInstruction(strategy.StageAdvisory, action, stable, id, d.AmountUSD/stablePx, d.Confidence, reason), nil
	}
	if _, held := snap.Holding(id); !held {
		return nil, fmt.Errorf("cannot sell %s: not held", id)
	}
	return trade.NewInstruction(strategy.StageAdvisory, action, id, stable, d.AmountUSD/price, d.Confidence, reason), nil
}
