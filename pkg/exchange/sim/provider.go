// Package sim is a paper venue: balances live in memory and swaps fill at
// the last mark prices supplied by the caller, less fee and slippage.
package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cascade-agent/pkg/exchange"
	"cascade-agent/pkg/token"
	"cascade-agent/pkg/trade"
)

const (
	amountPlaces = 8
	dust         = 1e-12
	balanceSlack = 1e-9
)

func init() {
	exchange.RegisterProvider("sim", func(_ string, cfg *exchange.ProviderConfig) (exchange.Provider, error) {
		return New(
			WithBalances(cfg.InitialBalances),
			WithFeeBps(cfg.FeeBps),
			WithSlippageBps(cfg.SlippageBps),
		), nil
	})
}

// Provider is the in-memory venue.
type Provider struct {
	mu sync.Mutex

	balances    map[string]float64
	marks       map[string]float64
	fills       []exchange.ExecutionResult
	feeBps      float64
	slippageBps float64
	now         func() time.Time
}

var (
	_ exchange.Provider   = (*Provider)(nil)
	_ exchange.MarkPricer = (*Provider)(nil)
)

// Option customises the paper venue.
type Option func(*Provider)

// WithBalances seeds the starting holdings.
func WithBalances(balances map[string]float64) Option {
	return func(p *Provider) {
		for id, amt := range balances {
			if amt > 0 {
				p.balances[token.Canonical(id)] += amt
			}
		}
	}
}

// WithFeeBps charges a fee on the input value, in basis points.
func WithFeeBps(bps float64) Option {
	return func(p *Provider) { p.feeBps = bps }
}

// WithSlippageBps worsens every fill by bps basis points.
func WithSlippageBps(bps float64) Option {
	return func(p *Provider) { p.slippageBps = bps }
}

// WithClock overrides the execution timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New constructs an empty paper venue.
func New(opts ...Option) *Provider {
	p := &Provider{
		balances: make(map[string]float64),
		marks:    make(map[string]float64),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetPrices replaces mark prices for the given instruments. Non-positive
// prices are ignored.
func (p *Provider) SetPrices(prices map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, px := range prices {
		if px > 0 {
			p.marks[token.Canonical(id)] = px
		}
	}
}

// Deposit credits amount of id, for funding and tests.
func (p *Provider) Deposit(id string, amount float64) {
	if amount <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[token.Canonical(id)] += amount
}

// Balances returns a copy of current holdings.
func (p *Provider) Balances(context.Context) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]float64, len(p.balances))
	for id, amt := range p.balances {
		out[id] = amt
	}
	return out, nil
}

// Execute fills instr immediately. The output amount is truncated to eight
// decimal places.
func (p *Provider) Execute(ctx context.Context, instr *trade.Instruction) (*exchange.ExecutionResult, error) {
	if err := exchange.ValidateInstruction(instr); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from, to := token.Canonical(instr.From), token.Canonical(instr.To)

	p.mu.Lock()
	defer p.mu.Unlock()

	held := p.balances[from]
	if held+balanceSlack < instr.Amount {
		return nil, fmt.Errorf("%w: %s has %.8g, need %.8g", exchange.ErrInsufficientBalance, from, held, instr.Amount)
	}
	priceIn, ok := p.marks[from]
	if !ok {
		return nil, fmt.Errorf("%w: %s", exchange.ErrNoPrice, from)
	}
	priceOut, ok := p.marks[to]
	if !ok {
		if instr.ToPriceUSD <= 0 {
			return nil, fmt.Errorf("%w: %s", exchange.ErrNoPrice, to)
		}
		priceOut = instr.ToPriceUSD
		p.marks[to] = priceOut
	}

	amountIn := decimal.NewFromFloat(instr.Amount)
	if amountIn.GreaterThan(decimal.NewFromFloat(held)) {
		amountIn = decimal.NewFromFloat(held)
	}
	value := amountIn.Mul(decimal.NewFromFloat(priceIn))
	fee := value.Mul(decimal.NewFromFloat(p.feeBps)).Div(decimal.NewFromInt(10_000))
	slip := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(p.slippageBps).Div(decimal.NewFromInt(10_000)))
	amountOut := value.Sub(fee).Mul(slip).Div(decimal.NewFromFloat(priceOut)).Truncate(amountPlaces)

	in, _ := amountIn.Float64()
	out, _ := amountOut.Float64()
	valueUSD, _ := value.Float64()
	feeUSD, _ := fee.Float64()

	p.balances[from] -= in
	if p.balances[from] <= dust {
		delete(p.balances, from)
	}
	if out > 0 {
		p.balances[to] += out
	}

	res := exchange.ExecutionResult{
		TxID:          "sim-" + uuid.NewString(),
		InstructionID: instr.ID,
		Status:        exchange.StatusFilled,
		From:          from,
		To:            to,
		AmountIn:      in,
		AmountOut:     out,
		PriceIn:       priceIn,
		PriceOut:      priceOut,
		ValueUSD:      valueUSD,
		FeeUSD:        feeUSD,
		ExecutedAt:    p.now().UTC(),
	}
	p.fills = append(p.fills, res)
	return &res, nil
}

// Fills returns every execution so far, oldest first.
func (p *Provider) Fills() []exchange.ExecutionResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]exchange.ExecutionResult(nil), p.fills...)
}

// Value marks every holding at the current prices. Unpriced holdings count
// as zero.
func (p *Provider) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.balances))
	for id := range p.balances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	total := 0.0
	for _, id := range ids {
		total += p.balances[id] * p.marks[id]
	}
	return total
}
