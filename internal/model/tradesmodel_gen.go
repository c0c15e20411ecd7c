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
	tradesFieldNames        = builder.RawFieldNames(&Trades{}, true)
	tradesRows              = strings.Join(tradesFieldNames, ",")
	tradesRowsExpectAutoSet = strings.Join(stringx.Remove(tradesFieldNames, "id", "created_at"), ",")

	cachePublicTradesIdPrefix = "cache:public:trades:id:"
)

type (
	tradesModel interface {
		Insert(ctx context.Context, data *Trades) (sql.Result, error)
		FindOne(ctx context.Context, id int64) (*Trades, error)
	}

	defaultTradesModel struct {
		sqlc.CachedConn
		table string
	}

	Trades struct {
		Id             int64          `db:"id"`
		CycleId        string         `db:"cycle_id"`
		Strategy       string         `db:"strategy"`
		Action         string         `db:"action"`
		FromInstrument string         `db:"from_instrument"`
		ToInstrument   string         `db:"to_instrument"`
		AmountIn       float64        `db:"amount_in"`
		AmountOut      float64        `db:"amount_out"`
		ValueUsd       float64        `db:"value_usd"`
		FeeUsd         float64        `db:"fee_usd"`
		Confidence     float64        `db:"confidence"`
		Reason         string         `db:"reason"`
		TxId           sql.NullString `db:"tx_id"`
		RiskMode       string         `db:"risk_mode"`
		ExecutedAt     time.Time      `db:"executed_at"`
		CreatedAt      time.Time      `db:"created_at"`
	}
)

func newTradesModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultTradesModel {
	return &defaultTradesModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."trades"`,
	}
}

func (m *defaultTradesModel) FindOne(ctx context.Context, id int64) (*Trades, error) {
	publicTradesIdKey := fmt.Sprintf("%s%v", cachePublicTradesIdPrefix, id)
	var resp Trades
	err := m.QueryRowCtx(ctx, &resp, publicTradesIdKey, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", tradesRows, m.table)
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

func (m *defaultTradesModel) Insert(ctx context.Context, data *Trades) (sql.Result, error) {
	query := fmt.Sprintf("insert into %s (%s) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)",
		m.table, tradesRowsExpectAutoSet)
	return m.ExecNoCacheCtx(ctx, query, data.CycleId, data.Strategy, data.Action, data.FromInstrument,
		data.ToInstrument, data.AmountIn, data.AmountOut, data.ValueUsd, data.FeeUsd, data.Confidence,
		data.Reason, data.TxId, data.RiskMode, data.ExecutedAt)
}

func (m *defaultTradesModel) tableName() string {
	return m.table
}
