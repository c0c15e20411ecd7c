package market

import (
	"context"
	"fmt"
	"time"

	"cascade-agent/pkg/token"
)

// Provider builds the snapshot for one decision cycle.
type Provider interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}

// PriceSource quotes USD prices for a set of instruments. Instruments the
// source cannot price are omitted from the result.
type PriceSource interface {
	Prices(ctx context.Context, instruments []string) (map[string]float64, error)
}

// BalanceSource reports the account's holdings in instrument units.
type BalanceSource interface {
	Balances(ctx context.Context) (map[string]float64, error)
}

// Composite joins a balance source and a price source into a Provider. Every
// instrument in Track, and whatever TrackFunc returns at fetch time, is
// priced even when not currently held so history keeps accumulating for
// watched instruments.
type Composite struct {
	Balances  BalanceSource
	Prices    PriceSource
	Track     []string
	TrackFunc func() []string
	Now       func() time.Time
}

func (c *Composite) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	if c.Balances == nil || c.Prices == nil {
		return nil, fmt.Errorf("market: composite provider missing sources")
	}
	balances, err := c.Balances.Balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("market: fetch balances: %w", err)
	}
	seen := make(map[string]struct{}, len(balances)+len(c.Track))
	ids := make([]string, 0, len(balances)+len(c.Track))
	add := func(id string) {
		id = token.Canonical(id)
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range c.Track {
		add(id)
	}
	if c.TrackFunc != nil {
		for _, id := range c.TrackFunc() {
			add(id)
		}
	}
	for id := range balances {
		add(id)
	}
	prices, err := c.Prices.Prices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("market: fetch prices: %w", err)
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return NewSnapshot(now(), balances, prices), nil
}

// StaticPrices is a fixed price table.
type StaticPrices map[string]float64

func (s StaticPrices) Prices(_ context.Context, instruments []string) (map[string]float64, error) {
	out := make(map[string]float64, len(instruments))
	for _, id := range instruments {
		if px, ok := s[token.Canonical(id)]; ok {
			out[token.Canonical(id)] = px
		}
	}
	return out, nil
}
