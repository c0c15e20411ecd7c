package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/stores/builder"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var (
	agentStateFieldNames = builder.RawFieldNames(&AgentState{}, true)
	agentStateRows       = strings.Join(agentStateFieldNames, ",")

	cachePublicAgentStateIdPrefix = "cache:public:agentState:id:"
)

type (
	agentStateModel interface {
		FindOne(ctx context.Context, id string) (*AgentState, error)
		Delete(ctx context.Context, id string) error
	}

	defaultAgentStateModel struct {
		sqlc.CachedConn
		table string
	}

	AgentState struct {
		Id          string    `db:"id"`
		State       string    `db:"state"`
		Active      bool      `db:"active"`
		TotalTrades int64     `db:"total_trades"`
		UpdatedAt   time.Time `db:"updated_at"`
	}
)

func newAgentStateModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultAgentStateModel {
	return &defaultAgentStateModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."agent_state"`,
	}
}

func (m *defaultAgentStateModel) Delete(ctx context.Context, id string) error {
	publicAgentStateIdKey := fmt.Sprintf("%s%v", cachePublicAgentStateIdPrefix, id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (result sql.Result, err error) {
		query := fmt.Sprintf("delete from %s where id = $1", m.table)
		return conn.ExecCtx(ctx, query, id)
	}, publicAgentStateIdKey)
	return err
}

func (m *defaultAgentStateModel) FindOne(ctx context.Context, id string) (*AgentState, error) {
	publicAgentStateIdKey := fmt.Sprintf("%s%v", cachePublicAgentStateIdPrefix, id)
	var resp AgentState
	err := m.QueryRowCtx(ctx, &resp, publicAgentStateIdKey, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", agentStateRows, m.table)
		return conn.QueryRowCtx(ctx, v, query, id)
	})
	switch err {
	case nil:
		return &resp, nil
	case sqlc.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultAgentStateModel) tableName() string {
	return m.table
}
