package exchange

import (
	"errors"
	"fmt"
	"time"

	"cascade-agent/pkg/token"
	"cascade-agent/pkg/trade"
)

// Status is the venue-reported state of an execution.
type Status string

const (
	StatusFilled    Status = "filled"
	StatusSubmitted Status = "submitted"
)

// ExecutionResult describes a completed or accepted swap.
type ExecutionResult struct {
	TxID          string    `json:"tx_id"`
	InstructionID string    `json:"instruction_id"`
	Status        Status    `json:"status"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	AmountIn      float64   `json:"amount_in"`
	AmountOut     float64   `json:"amount_out"`
	PriceIn       float64   `json:"price_in"`
	PriceOut      float64   `json:"price_out"`
	ValueUSD      float64   `json:"value_usd"`
	FeeUSD        float64   `json:"fee_usd"`
	ExecutedAt    time.Time `json:"executed_at"`
}

var (
	ErrInvalidInstruction  = errors.New("exchange: invalid instruction")
	ErrInsufficientBalance = errors.New("exchange: insufficient balance")
	ErrNoPrice             = errors.New("exchange: no price")
)

// ValidateInstruction rejects instructions no venue can execute.
func ValidateInstruction(instr *trade.Instruction) error {
	switch {
	case instr == nil:
		return fmt.Errorf("%w: nil", ErrInvalidInstruction)
	case !instr.IsTrade():
		return fmt.Errorf("%w: %s is not a trade", ErrInvalidInstruction, instr)
	case instr.From == "" || instr.To == "":
		return fmt.Errorf("%w: missing instrument", ErrInvalidInstruction)
	case token.Equal(instr.From, instr.To):
		return fmt.Errorf("%w: %s to itself", ErrInvalidInstruction, instr.From)
	}
	return nil
}
