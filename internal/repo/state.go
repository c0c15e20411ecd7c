package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cascade-agent/internal/model"
	"cascade-agent/pkg/agent"
	"cascade-agent/pkg/trade"
)

// DefaultStateID keys the single agent_state row of a deployment.
const DefaultStateID = "default"

var _ agent.StateStore = (*StateRepo)(nil)

// StateRepo persists the agent state as one JSON row so pause state and the
// daily baseline survive restarts.
type StateRepo struct {
	model model.AgentStateModel
	id    string
}

func NewStateRepo(m model.AgentStateModel, id string) *StateRepo {
	if id == "" {
		id = DefaultStateID
	}
	return &StateRepo{model: m, id: id}
}

// Load returns nil, nil when no state was saved yet.
func (r *StateRepo) Load(ctx context.Context) (*trade.AgentState, error) {
	row, err := r.model.FindOne(ctx, r.id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repo: load agent state: %w", err)
	}
	var state trade.AgentState
	if err := json.Unmarshal([]byte(row.State), &state); err != nil {
		return nil, fmt.Errorf("repo: decode agent state: %w", err)
	}
	return &state, nil
}

func (r *StateRepo) Save(ctx context.Context, state *trade.AgentState) error {
	if state == nil {
		return errors.New("repo: nil agent state")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("repo: encode agent state: %w", err)
	}
	return r.model.Upsert(ctx, &model.AgentState{
		Id:          r.id,
		State:       string(raw),
		Active:      state.Active,
		TotalTrades: int64(state.TotalTrades),
	})
}
