package strategy

import (
	"context"
	"time"

	"cascade-agent/pkg/market"
	"cascade-agent/pkg/params"
)

var t0 = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func snapshotAt(balances, prices map[string]float64) *market.Snapshot {
	return market.NewSnapshot(t0, balances, prices)
}

func testParams() *params.Parameters {
	p := params.Defaults()
	p.Watchlist = []string{"WETH"}
	p.Normalize()
	return p
}

// seedBefore records prices at one-minute spacing ending one minute before t0.
func seedBefore(h *market.MemoryHistory, id string, prices ...float64) {
	h.Seed(id, t0.Add(-time.Minute), prices...)
}

// seedWithCurrent seeds prior prices and then the current observation at t0,
// matching what the orchestrator's write-through leaves behind.
func seedWithCurrent(h *market.MemoryHistory, id string, current float64, prior ...float64) {
	seedBefore(h, id, prior...)
	_ = h.AppendHistory(context.Background(), t0, id, current, 0)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func alternating(a, b float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = a
		} else {
			out[i] = b
		}
	}
	return out
}
