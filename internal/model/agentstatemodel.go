package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ AgentStateModel = (*customAgentStateModel)(nil)

type (
	// AgentStateModel is an interface to be customized, add more methods here,
	// and implement the added methods in customAgentStateModel.
	AgentStateModel interface {
		agentStateModel
		Upsert(ctx context.Context, data *AgentState) error
	}

	customAgentStateModel struct {
		*defaultAgentStateModel
	}
)

// NewAgentStateModel returns a model for the database table.
func NewAgentStateModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) AgentStateModel {
	return &customAgentStateModel{
		defaultAgentStateModel: newAgentStateModel(conn, c, opts...),
	}
}

// Upsert writes the row keyed by Id and drops its cache entry.
func (m *customAgentStateModel) Upsert(ctx context.Context, data *AgentState) error {
	key := fmt.Sprintf("%s%v", cachePublicAgentStateIdPrefix, data.Id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf(`insert into %s (id, state, active, total_trades, updated_at)
values ($1, $2, $3, $4, NOW())
on conflict (id) do update set
    state = excluded.state,
    active = excluded.active,
    total_trades = excluded.total_trades,
    updated_at = NOW()`, m.tableName())
		return conn.ExecCtx(ctx, query, data.Id, data.State, data.Active, data.TotalTrades)
	}, key)
	if err != nil {
		return fmt.Errorf("agent_state.Upsert: %w", err)
	}
	return nil
}
