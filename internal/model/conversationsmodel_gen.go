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
	conversationsFieldNames        = builder.RawFieldNames(&Conversations{}, true)
	conversationsRows              = strings.Join(conversationsFieldNames, ",")
	conversationsRowsExpectAutoSet = strings.Join(stringx.Remove(conversationsFieldNames, "id", "created_at"), ",")

	cachePublicConversationsIdPrefix = "cache:public:conversations:id:"
)

type (
	conversationsModel interface {
		Insert(ctx context.Context, data *Conversations) (sql.Result, error)
		FindOne(ctx context.Context, id int64) (*Conversations, error)
	}

	defaultConversationsModel struct {
		sqlc.CachedConn
		table string
	}

	Conversations struct {
		Id               int64          `db:"id"`
		Model            string         `db:"model"`
		PromptDigest     string         `db:"prompt_digest"`
		Prompt           string         `db:"prompt"`
		Response         string         `db:"response"`
		PromptTokens     int64          `db:"prompt_tokens"`
		CompletionTokens int64          `db:"completion_tokens"`
		ErrorMessage     sql.NullString `db:"error_message"`
		RequestedAt      time.Time      `db:"requested_at"`
		CreatedAt        time.Time      `db:"created_at"`
	}
)

func newConversationsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultConversationsModel {
	return &defaultConversationsModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."conversations"`,
	}
}

func (m *defaultConversationsModel) FindOne(ctx context.Context, id int64) (*Conversations, error) {
	publicConversationsIdKey := fmt.Sprintf("%s%v", cachePublicConversationsIdPrefix, id)
	var resp Conversations
	err := m.QueryRowCtx(ctx, &resp, publicConversationsIdKey, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", conversationsRows, m.table)
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

func (m *defaultConversationsModel) Insert(ctx context.Context, data *Conversations) (sql.Result, error) {
	query := fmt.Sprintf("insert into %s (%s) values ($1, $2, $3, $4, $5, $6, $7, $8)",
		m.table, conversationsRowsExpectAutoSet)
	return m.ExecNoCacheCtx(ctx, query, data.Model, data.PromptDigest, data.Prompt, data.Response,
		data.PromptTokens, data.CompletionTokens, data.ErrorMessage, data.RequestedAt)
}

func (m *defaultConversationsModel) tableName() string {
	return m.table
}
