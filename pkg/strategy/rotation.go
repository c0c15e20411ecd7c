package strategy

import (
	"context"
	"fmt"
	"sync"

	"cascade-agent/pkg/params"
	"cascade-agent/pkg/trade"
)

const rotationConfidence = 0.1

// Rotation is the first guaranteed-trade fallback. Successive trades
// alternate direction and step through the configured USD notionals.
type Rotation struct {
	mu   sync.Mutex
	last trade.Action
	step int
}

func NewRotation() *Rotation {
	return &Rotation{}
}

// Evaluate proposes a small swap on the primary pair, then the secondary
// pair, then any holding that funds the notional plus the balance buffer. When the preferred
// direction is impossible the opposite one is tried.
func (r *Rotation) Evaluate(_ context.Context, in *Input) (*trade.Instruction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	notionals := in.Params.Fallback.RotationNotionalsUSD
	if len(notionals) == 0 {
		notionals = []float64{in.Params.MinTradeUSD}
	}
	notional := notionals[r.step%len(notionals)]
	if notional <= 0 {
		return nil, nil
	}
	preferred := trade.ActionBuy
	if r.last == trade.ActionBuy {
		preferred = trade.ActionSell
	}
	for _, dir := range []trade.Action{preferred, opposite(preferred)} {
		if instr := r.pick(in, dir, notional); instr != nil {
			r.last = dir
			r.step++
			return instr, nil
		}
	}
	return nil, nil
}

// Reset forgets the direction and notional position.
func (r *Rotation) Reset() {
	r.mu.Lock()
	r.last, r.step = "", 0
	r.mu.Unlock()
}

func (r *Rotation) pick(in *Input, dir trade.Action, notional float64) *trade.Instruction {
	snap := in.Snapshot
	fb := in.Params.Fallback
	for _, pair := range []params.Pair{fb.PrimaryPair, fb.SecondaryPair} {
		if pair.Asset == "" || pair.Quote == "" {
			continue
		}
		src, dst := pair.Quote, pair.Asset
		if dir == trade.ActionSell {
			src, dst = dst, src
		}
		if instr := swapNotional(in, dir, src, dst, notional); instr != nil {
			return instr
		}
	}
	for _, h := range snap.Holdings {
		switch {
		case dir == trade.ActionSell && h.Instrument != in.stable():
			if instr := swapNotional(in, dir, h.Instrument, in.stable(), notional); instr != nil {
				return instr
			}
		case dir == trade.ActionBuy && h.Instrument == in.stable() && fb.PrimaryPair.Asset != "":
			if instr := swapNotional(in, dir, h.Instrument, fb.PrimaryPair.Asset, notional); instr != nil {
				return instr
			}
		}
	}
	return nil
}

func swapNotional(in *Input, dir trade.Action, src, dst string, notional float64) *trade.Instruction {
	if src == dst {
		return nil
	}
	price, ok := in.Snapshot.Price(src)
	if !ok || !trade.Fundable(in.Snapshot.Balance(src), notional/price) {
		return nil
	}
	return trade.NewInstruction(StageRotation, dir, src, dst, notional/price, rotationConfidence,
		fmt.Sprintf("rotation %s $%.2f %s->%s", dir, notional, src, dst))
}

func opposite(a trade.Action) trade.Action {
	if a == trade.ActionBuy {
		return trade.ActionSell
	}
	return trade.ActionBuy
}
