// Package trade holds the value types exchanged between the decision
// cascade, the risk gate and the execution venue.
package trade

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BalanceBuffer is the headroom a source balance must keep above the traded
// amount.
const BalanceBuffer = 0.01

// Fundable reports whether balance covers amount plus BalanceBuffer, with a
// small tolerance for float rounding.
func Fundable(balance, amount float64) bool {
	return balance+1e-9 >= amount*(1+BalanceBuffer)
}

// Action is the direction of a trading instruction.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold:
		return true
	}
	return false
}

// Instruction is a single swap proposal. Amount is denominated in units of
// the From instrument.
type Instruction struct {
	ID         string    `json:"id"`
	Action     Action    `json:"action"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Amount     float64   `json:"amount"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
	Strategy   string    `json:"strategy"`
	Bypass     bool      `json:"bypass,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	// ToPriceUSD carries a quote for a destination the snapshot does not price.
	ToPriceUSD float64 `json:"to_price_usd,omitempty"`
}

// NewInstruction stamps an instruction with a fresh ID and creation time.
func NewInstruction(strategy string, action Action, from, to string, amount, confidence float64, reason string) *Instruction {
	return &Instruction{
		ID:         uuid.NewString(),
		Action:     action,
		From:       from,
		To:         to,
		Amount:     amount,
		Reason:     reason,
		Confidence: confidence,
		Strategy:   strategy,
		CreatedAt:  time.Now().UTC(),
	}
}

// IsTrade reports whether the instruction asks the venue to move funds.
func (i *Instruction) IsTrade() bool {
	return i != nil && i.Action != ActionHold && i.Amount > 0
}

func (i *Instruction) String() string {
	if i == nil {
		return "<none>"
	}
	if i.Action == ActionHold {
		return fmt.Sprintf("hold (%s)", i.Strategy)
	}
	return fmt.Sprintf("%s %.8g %s->%s conf=%.2f (%s)", i.Action, i.Amount, i.From, i.To, i.Confidence, i.Strategy)
}

// AgentState is the running bookkeeping the risk gate consults. The decision
// cascade only reads it; the agent runner owns every mutation.
type AgentState struct {
	TotalTrades int     `json:"total_trades"`
	TotalPnLUSD float64 `json:"total_pnl_usd"`
	DailyPnLUSD float64 `json:"daily_pnl_usd"`
	// DailyPnLPct is a fraction of the day's opening value; -0.06 means down 6%.
	DailyPnLPct  float64   `json:"daily_pnl_pct"`
	DayOpenValue float64   `json:"day_open_value"`
	DayStart     time.Time `json:"day_start"`
	StartValue   float64   `json:"start_value"`
	LastTradeAt  time.Time `json:"last_trade_at"`
	Active       bool      `json:"active"`
	RiskTier     string    `json:"risk_tier"`
}

// Clone returns a copy safe to hand to readers.
func (s *AgentState) Clone() *AgentState {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
