// Package exchange defines the execution venue the agent submits approved
// instructions to, plus a small registry so venues can be selected from
// configuration.
package exchange

import (
	"context"

	"cascade-agent/pkg/trade"
)

// Provider executes swaps and reports the account's holdings. Implementations
// also satisfy market.BalanceSource.
type Provider interface {
	Execute(ctx context.Context, instr *trade.Instruction) (*ExecutionResult, error)
	Balances(ctx context.Context) (map[string]float64, error)
}

// MarkPricer is implemented by venues that fill at prices supplied by the
// caller rather than discovered on a book.
type MarkPricer interface {
	SetPrices(prices map[string]float64)
}
