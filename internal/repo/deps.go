package repo

import (
	"errors"

	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"cascade-agent/internal/model"
)

// Dependencies bundles the models and shared infrastructure required by
// repository implementations.
type Dependencies struct {
	DBConn sqlx.SqlConn

	AgentStateModel model.AgentStateModel
}

// Set exposes strongly typed repositories to application logic.
type Set struct {
	State *StateRepo
}

// New constructs the repository set, validating required dependencies.
func New(deps Dependencies) (*Set, error) {
	if deps.DBConn == nil {
		return nil, errors.New("repo: missing DBConn dependency")
	}
	if deps.AgentStateModel == nil {
		return nil, errors.New("repo: missing AgentStateModel dependency")
	}
	return &Set{State: NewStateRepo(deps.AgentStateModel, DefaultStateID)}, nil
}
