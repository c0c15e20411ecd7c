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
	"github.com/zeromicro/go-zero/core/stringx"
)

var (
	decisionCyclesFieldNames        = builder.RawFieldNames(&DecisionCycles{}, true)
	decisionCyclesRows              = strings.Join(decisionCyclesFieldNames, ",")
	decisionCyclesRowsExpectAutoSet = strings.Join(stringx.Remove(decisionCyclesFieldNames, "created_at"), ",")

	cachePublicDecisionCyclesIdPrefix = "cache:public:decisionCycles:id:"
)

type (
	decisionCyclesModel interface {
		Insert(ctx context.Context, data *DecisionCycles) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*DecisionCycles, error)
	}

	defaultDecisionCyclesModel struct {
		sqlc.CachedConn
		table string
	}

	DecisionCycles struct {
		Id             string         `db:"id"`
		StartedAt      time.Time      `db:"started_at"`
		FinishedAt     time.Time      `db:"finished_at"`
		Mode           string         `db:"mode"`
		ParamsRevision int64          `db:"params_revision"`
		TotalValueUsd  float64        `db:"total_value_usd"`
		Instruction    sql.NullString `db:"instruction"`
		Verdict        sql.NullString `db:"verdict"`
		Executed       bool           `db:"executed"`
		Skipped        string         `db:"skipped"`
		ErrorMessage   sql.NullString `db:"error_message"`
		CreatedAt      time.Time      `db:"created_at"`
	}
)

func newDecisionCyclesModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultDecisionCyclesModel {
	return &defaultDecisionCyclesModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."decision_cycles"`,
	}
}

func (m *defaultDecisionCyclesModel) FindOne(ctx context.Context, id string) (*DecisionCycles, error) {
	publicDecisionCyclesIdKey := fmt.Sprintf("%s%v", cachePublicDecisionCyclesIdPrefix, id)
	var resp DecisionCycles
	err := m.QueryRowCtx(ctx, &resp, publicDecisionCyclesIdKey, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", decisionCyclesRows, m.table)
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

func (m *defaultDecisionCyclesModel) Insert(ctx context.Context, data *DecisionCycles) (sql.Result, error) {
	query := fmt.Sprintf("insert into %s (%s) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		m.table, decisionCyclesRowsExpectAutoSet)
	return m.ExecNoCacheCtx(ctx, query, data.Id, data.StartedAt, data.FinishedAt, data.Mode, data.ParamsRevision,
		data.TotalValueUsd, data.Instruction, data.Verdict, data.Executed, data.Skipped, data.ErrorMessage)
}

func (m *defaultDecisionCyclesModel) tableName() string {
	return m.table
}
