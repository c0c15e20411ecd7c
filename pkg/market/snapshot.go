// Package market builds the per-cycle portfolio snapshot and exposes the
// historical price series the evaluators read.
package market

import (
	"sort"
	"time"

	"cascade-agent/pkg/token"
)

// Holding is one instrument position valued at the snapshot price.
type Holding struct {
	Instrument string  `json:"instrument"`
	Symbol     string  `json:"symbol"`
	Amount     float64 `json:"amount"`
	Price      float64 `json:"price"`
	Value      float64 `json:"value"`
}

// Snapshot is the read-only market view for one decision cycle.
type Snapshot struct {
	Timestamp  time.Time          `json:"timestamp"`
	TotalValue float64            `json:"total_value"`
	Holdings   []Holding          `json:"holdings"`
	Prices     map[string]float64 `json:"prices"`

	index map[string]int
}

// NewSnapshot values balances at prices and orders holdings by descending
// value, ties broken by instrument id. Identifiers are canonicalised and the
// timestamp is truncated to TimestampPrecision so it survives a round trip
// through the history store unchanged.
func NewSnapshot(ts time.Time, balances, prices map[string]float64) *Snapshot {
	s := &Snapshot{
		Timestamp: ts.UTC().Truncate(TimestampPrecision),
		Prices:    make(map[string]float64, len(prices)),
	}
	for id, px := range prices {
		s.Prices[token.Canonical(id)] = px
	}
	for id, amount := range balances {
		id = token.Canonical(id)
		px := s.Prices[id]
		s.Holdings = append(s.Holdings, Holding{
			Instrument: id,
			Symbol:     id,
			Amount:     amount,
			Price:      px,
			Value:      amount * px,
		})
	}
	sort.SliceStable(s.Holdings, func(i, j int) bool {
		if s.Holdings[i].Value != s.Holdings[j].Value {
			return s.Holdings[i].Value > s.Holdings[j].Value
		}
		return s.Holdings[i].Instrument < s.Holdings[j].Instrument
	})
	for _, h := range s.Holdings {
		s.TotalValue += h.Value
	}
	s.reindex()
	return s
}

func (s *Snapshot) reindex() {
	s.index = make(map[string]int, len(s.Holdings))
	for i, h := range s.Holdings {
		s.index[h.Instrument] = i
	}
}

// Holding returns the position for id, if any.
func (s *Snapshot) Holding(id string) (Holding, bool) {
	if s == nil {
		return Holding{}, false
	}
	id = token.Canonical(id)
	if s.index == nil {
		// decoded or literal snapshots carry no index
		for _, h := range s.Holdings {
			if h.Instrument == id {
				return h, true
			}
		}
		return Holding{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return Holding{}, false
	}
	return s.Holdings[i], true
}

// Balance returns the held amount of id, zero when absent.
func (s *Snapshot) Balance(id string) float64 {
	h, _ := s.Holding(id)
	return h.Amount
}

// Value returns the USD value of the position in id.
func (s *Snapshot) Value(id string) float64 {
	h, _ := s.Holding(id)
	return h.Value
}

// Price returns the snapshot price for id.
func (s *Snapshot) Price(id string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	px, ok := s.Prices[token.Canonical(id)]
	return px, ok && px > 0
}

// Weight returns the position value as a fraction of the total.
func (s *Snapshot) Weight(id string) float64 {
	if s == nil || s.TotalValue <= 0 {
		return 0
	}
	return s.Value(id) / s.TotalValue
}

// Instruments returns priced instrument ids in sorted order.
func (s *Snapshot) Instruments() []string {
	ids := make([]string, 0, len(s.Prices))
	for id := range s.Prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
