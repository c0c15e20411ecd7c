package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ TradesModel = (*customTradesModel)(nil)

type (
	// TradesModel is an interface to be customized, add more methods here,
	// and implement the added methods in customTradesModel.
	TradesModel interface {
		tradesModel
		Recent(ctx context.Context, limit int) ([]Trades, error)
		Since(ctx context.Context, since time.Time) ([]Trades, error)
	}

	customTradesModel struct {
		*defaultTradesModel
	}
)

// NewTradesModel returns a model for the database table.
func NewTradesModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) TradesModel {
	return &customTradesModel{
		defaultTradesModel: newTradesModel(conn, c, opts...),
	}
}

// Recent returns the newest executed swaps first.
func (m *customTradesModel) Recent(ctx context.Context, limit int) ([]Trades, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`select %s from %s order by executed_at desc, id desc limit $1`, tradesRows, m.tableName())
	var rows []Trades
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("trades.Recent query: %w", err)
	}
	return rows, nil
}

// Since returns swaps executed at or after since, oldest first. It seeds the
// risk window after a restart.
func (m *customTradesModel) Since(ctx context.Context, since time.Time) ([]Trades, error) {
	query := fmt.Sprintf(`select %s from %s where executed_at >= $1 order by executed_at asc, id asc`,
		tradesRows, m.tableName())
	var rows []Trades
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("trades.Since query: %w", err)
	}
	return rows, nil
}
