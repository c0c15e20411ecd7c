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
	priceHistoryFieldNames        = builder.RawFieldNames(&PriceHistory{}, true)
	priceHistoryRows              = strings.Join(priceHistoryFieldNames, ",")
	priceHistoryRowsExpectAutoSet = strings.Join(stringx.Remove(priceHistoryFieldNames, "id", "created_at"), ",")

	cachePublicPriceHistoryIdPrefix = "cache:public:priceHistory:id:"
)

type (
	priceHistoryModel interface {
		Insert(ctx context.Context, data *PriceHistory) (sql.Result, error)
		FindOne(ctx context.Context, id int64) (*PriceHistory, error)
	}

	defaultPriceHistoryModel struct {
		sqlc.CachedConn
		table string
	}

	PriceHistory struct {
		Id             int64     `db:"id"`
		Instrument     string    `db:"instrument"`
		Ts             time.Time `db:"ts"`
		Price          float64   `db:"price"`
		PortfolioValue float64   `db:"portfolio_value"`
		CreatedAt      time.Time `db:"created_at"`
	}
)

func newPriceHistoryModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultPriceHistoryModel {
	return &defaultPriceHistoryModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."price_history"`,
	}
}

func (m *defaultPriceHistoryModel) FindOne(ctx context.Context, id int64) (*PriceHistory, error) {
	publicPriceHistoryIdKey := fmt.Sprintf("%s%v", cachePublicPriceHistoryIdPrefix, id)
	var resp PriceHistory
	err := m.QueryRowCtx(ctx, &resp, publicPriceHistoryIdKey, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", priceHistoryRows, m.table)
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

func (m *defaultPriceHistoryModel) Insert(ctx context.Context, data *PriceHistory) (sql.Result, error) {
	query := fmt.Sprintf("insert into %s (%s) values ($1, $2, $3, $4)", m.table, priceHistoryRowsExpectAutoSet)
	return m.ExecNoCacheCtx(ctx, query, data.Instrument, data.Ts, data.Price, data.PortfolioValue)
}

func (m *defaultPriceHistoryModel) tableName() string {
	return m.table
}
