package agent

import (
	"context"
	"sync"
	"time"

	"cascade-agent/pkg/trade"
)

// StateStore persists the agent's running bookkeeping. Load returns nil, nil
// when nothing has been stored yet.
type StateStore interface {
	Load(ctx context.Context) (*trade.AgentState, error)
	Save(ctx context.Context, state *trade.AgentState) error
}

// MemoryStateStore keeps state in process.
type MemoryStateStore struct {
	mu    sync.Mutex
	state *trade.AgentState
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

func (m *MemoryStateStore) Load(context.Context) (*trade.AgentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone(), nil
}

func (m *MemoryStateStore) Save(_ context.Context, state *trade.AgentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state.Clone()
	return nil
}

// markToMarket refreshes the PnL fields from the current portfolio value.
// The daily baseline resets on the first cycle of each UTC day and the
// lifetime baseline is the first value ever observed.
func markToMarket(state *trade.AgentState, value float64, at time.Time) {
	day := at.UTC().Truncate(24 * time.Hour)
	if state.StartValue <= 0 {
		state.StartValue = value
	}
	if !state.DayStart.Equal(day) || state.DayOpenValue <= 0 {
		state.DayStart = day
		state.DayOpenValue = value
	}
	state.TotalPnLUSD = value - state.StartValue
	state.DailyPnLUSD = value - state.DayOpenValue
	state.DailyPnLPct = 0
	if state.DayOpenValue > 0 {
		state.DailyPnLPct = state.DailyPnLUSD / state.DayOpenValue
	}
}
