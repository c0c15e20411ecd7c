// Package risk is the last line of defence between a proposed instruction
// and the venue. Validate never fails: every problem becomes a rejection
// reason.
package risk

import (
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/pkg/market"
	"cascade-agent/pkg/params"
	"cascade-agent/pkg/trade"
)

// BalanceBuffer is the headroom required above the traded amount.
const BalanceBuffer = trade.BalanceBuffer

const (
	frequencySpan = time.Hour
	epsilon       = 1e-9
)

// CheckMode selects which checks apply to an instruction.
type CheckMode int

const (
	ModeNormal CheckMode = iota
	// ModeMinimalOnly only requires a non-empty source balance.
	ModeMinimalOnly
)

func (m CheckMode) String() string {
	if m == ModeMinimalOnly {
		return "minimal"
	}
	return "normal"
}

// Verdict is the gate's decision.
type Verdict struct {
	Accepted bool      `json:"accepted"`
	Reason   string    `json:"reason"`
	Mode     CheckMode `json:"mode"`
	ValueUSD float64   `json:"value_usd"`
}

func accept(mode CheckMode, usd float64, reason string) Verdict {
	return Verdict{Accepted: true, Reason: reason, Mode: mode, ValueUSD: usd}
}

func reject(mode CheckMode, usd float64, format string, args ...any) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...), Mode: mode, ValueUSD: usd}
}

// Gate validates instructions and tracks trade frequency.
type Gate struct {
	window *Window
	now    func() time.Time
}

// Option customises a Gate.
type Option func(*Gate)

// WithClock overrides the time source used for the frequency window.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGate(opts ...Option) *Gate {
	g := &Gate{window: NewWindow(frequencySpan), now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ModeFor picks the check mode for instr under p.
func ModeFor(p *params.Parameters, instr *trade.Instruction) CheckMode {
	if (instr != nil && instr.Bypass) || (p != nil && p.DegradedRisk) {
		return ModeMinimalOnly
	}
	return ModeNormal
}

// TradeValueUSD values the instruction at the snapshot price of its source.
func TradeValueUSD(instr *trade.Instruction, snap *market.Snapshot) (float64, bool) {
	if instr == nil {
		return 0, false
	}
	px, ok := snap.Price(instr.From)
	if !ok {
		return 0, false
	}
	return instr.Amount * px, true
}

// Validate runs the checks for the instruction's mode in order and stops at
// the first failure. The parameter snapshot is passed in so one cycle uses a
// single consistent revision.
func (g *Gate) Validate(p *params.Parameters, instr *trade.Instruction, snap *market.Snapshot, state *trade.AgentState) Verdict {
	switch {
	case instr == nil:
		return reject(ModeNormal, 0, "no instruction")
	case p == nil || snap == nil:
		return reject(ModeNormal, 0, "missing parameters or snapshot")
	case !instr.Action.Valid():
		return reject(ModeNormal, 0, "unknown action %q", instr.Action)
	case instr.Action != trade.ActionHold && instr.Amount <= 0:
		return reject(ModeNormal, 0, "amount must be positive")
	}

	mode := ModeFor(p, instr)
	usd, priced := TradeValueUSD(instr, snap)
	balance := snap.Balance(instr.From)

	if mode == ModeMinimalOnly {
		if instr.Action == trade.ActionHold {
			return accept(mode, 0, "hold")
		}
		if balance <= 0 {
			return reject(mode, usd, "empty %s balance", instr.From)
		}
		return accept(mode, usd, "minimal checks passed")
	}

	if state == nil || !state.Active {
		return reject(mode, usd, "agent is not active")
	}
	if instr.Action == trade.ActionHold {
		return accept(mode, 0, "hold")
	}
	if loss := -state.DailyPnLPct; loss > p.Risk.MaxDailyLoss+epsilon {
		return reject(mode, usd, "daily loss limit exceeded: %.2f%% > %.2f%%", loss*100, p.Risk.MaxDailyLoss*100)
	}
	if !priced {
		return reject(mode, 0, "no price for %s", instr.From)
	}
	if usd+epsilon < p.MinTradeUSD {
		return reject(mode, usd, "trade value $%.2f below minimum $%.2f", usd, p.MinTradeUSD)
	}
	if instr.To != p.StableInstrument {
		post := snap.Value(instr.To) + usd
		if limit := p.MaxPositionFraction * snap.TotalValue; post > limit+epsilon {
			return reject(mode, usd, "position limit exceeded: %s would be $%.2f > $%.2f", instr.To, post, limit)
		}
	}
	if !trade.Fundable(balance, instr.Amount) {
		return reject(mode, usd, "insufficient %s balance: %.8g < %.8g", instr.From, balance, instr.Amount*(1+BalanceBuffer))
	}
	if n := g.window.Count(g.now()); n >= p.Risk.MaxTradesPerHour {
		return reject(mode, usd, "trade frequency limit exceeded: %d trades in the last hour", n)
	}
	ref := p.Risk.ReferenceValue
	if ref <= 0 {
		ref = state.StartValue
	}
	if ref > 0 {
		if dd := (ref - snap.TotalValue) / ref; dd > p.Risk.MaxDrawdown+epsilon {
			return reject(mode, usd, "max drawdown exceeded: %.2f%% > %.2f%%", dd*100, p.Risk.MaxDrawdown*100)
		}
	}
	return accept(mode, usd, "all checks passed")
}

// RecordTrade registers an executed trade with the frequency window. Call it
// only after the venue confirms execution.
func (g *Gate) RecordTrade(at time.Time, usd float64) {
	g.window.Record(at, usd)
}

// ResetWindow clears the frequency window. Operator action only.
func (g *Gate) ResetWindow() {
	g.window.Reset()
	logx.Info("risk: trade frequency window reset")
}

// RecentTrades returns the number of trades in the trailing hour.
func (g *Gate) RecentTrades() int {
	return g.window.Count(g.now())
}

// RecentVolumeUSD returns the notional traded in the trailing hour.
func (g *Gate) RecentVolumeUSD() float64 {
	return g.window.VolumeUSD(g.now())
}
