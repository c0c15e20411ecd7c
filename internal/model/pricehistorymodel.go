package model

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ PriceHistoryModel = (*customPriceHistoryModel)(nil)

type (
	// PriceHistoryModel is an interface to be customized, add more methods here,
	// and implement the added methods in customPriceHistoryModel.
	PriceHistoryModel interface {
		priceHistoryModel
		Recent(ctx context.Context, instrument string, limit int) ([]PriceHistory, error)
		LatestFor(ctx context.Context, instruments []string) ([]PriceHistory, error)
		PortfolioSince(ctx context.Context, since time.Time) ([]PriceHistory, error)
	}

	customPriceHistoryModel struct {
		*defaultPriceHistoryModel
	}
)

// NewPriceHistoryModel returns a model for the database table.
func NewPriceHistoryModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) PriceHistoryModel {
	return &customPriceHistoryModel{
		defaultPriceHistoryModel: newPriceHistoryModel(conn, c, opts...),
	}
}

// Recent returns up to limit rows for instrument, newest first.
func (m *customPriceHistoryModel) Recent(ctx context.Context, instrument string, limit int) ([]PriceHistory, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`select %s from %s where instrument = $1 order by ts desc, id desc limit $2`,
		priceHistoryRows, m.tableName())
	var rows []PriceHistory
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, instrument, limit); err != nil {
		return nil, fmt.Errorf("price_history.Recent query: %w", err)
	}
	return rows, nil
}

// LatestFor returns the newest row of each listed instrument.
func (m *customPriceHistoryModel) LatestFor(ctx context.Context, instruments []string) ([]PriceHistory, error) {
	if len(instruments) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`select distinct on (instrument) %s from %s
where instrument = any($1)
order by instrument, ts desc, id desc`, priceHistoryRows, m.tableName())
	var rows []PriceHistory
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, pq.Array(instruments)); err != nil {
		return nil, fmt.Errorf("price_history.LatestFor query: %w", err)
	}
	return rows, nil
}

// PortfolioSince returns one row per recorded timestamp at or after since,
// oldest first, carrying the portfolio value seen at that moment.
func (m *customPriceHistoryModel) PortfolioSince(ctx context.Context, since time.Time) ([]PriceHistory, error) {
	query := fmt.Sprintf(`select distinct on (ts) %s from %s
where ts >= $1 and portfolio_value > 0
order by ts asc, id asc`, priceHistoryRows, m.tableName())
	var rows []PriceHistory
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("price_history.PortfolioSince query: %w", err)
	}
	return rows, nil
}
