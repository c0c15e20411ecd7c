package model

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ ConversationsModel = (*customConversationsModel)(nil)

type (
	// ConversationsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customConversationsModel.
	ConversationsModel interface {
		conversationsModel
		Recent(ctx context.Context, limit int) ([]Conversations, error)
	}

	customConversationsModel struct {
		*defaultConversationsModel
	}
)

// NewConversationsModel returns a model for the database table.
func NewConversationsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) ConversationsModel {
	return &customConversationsModel{
		defaultConversationsModel: newConversationsModel(conn, c, opts...),
	}
}

// Recent returns the newest advisor round trips first.
func (m *customConversationsModel) Recent(ctx context.Context, limit int) ([]Conversations, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`select %s from %s order by requested_at desc, id desc limit $1`, conversationsRows, m.tableName())
	var rows []Conversations
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("conversations.Recent query: %w", err)
	}
	return rows, nil
}
