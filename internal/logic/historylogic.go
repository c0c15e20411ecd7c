package logic

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	enginepersist "cascade-agent/internal/persistence/engine"
	"cascade-agent/internal/svc"
	"cascade-agent/internal/types"
	"cascade-agent/pkg/journal"
	"cascade-agent/pkg/market"
)

type HistoryLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewHistoryLogic(ctx context.Context, svcCtx *svc.ServiceContext) *HistoryLogic {
	return &HistoryLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *HistoryLogic) Trades() (*types.TradesResponse, error) {
	entries, err := l.svcCtx.Persistence.RecentTrades(l.ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []enginepersist.TradeEntry{}
	}
	return &types.TradesResponse{Trades: entries}, nil
}

// PortfolioHistory serves recorded portfolio values from Postgres, or from the
// in-memory history when no database is configured.
func (l *HistoryLogic) PortfolioHistory(req *types.PortfolioHistoryRequest) (*types.PortfolioHistoryResponse, error) {
	since := time.Now().Add(-time.Duration(req.SinceMinutes) * time.Minute)
	var points []market.HistoricalPoint
	switch h := l.svcCtx.History.(type) {
	case interface {
		PortfolioSince(context.Context, time.Time) ([]market.HistoricalPoint, error)
	}:
		var err error
		if points, err = h.PortfolioSince(l.ctx, since); err != nil {
			return nil, err
		}
	case *market.MemoryHistory:
		for _, p := range h.PortfolioValues(0) {
			if !p.Timestamp.Before(since) {
				points = append(points, p)
			}
		}
	}
	if points == nil {
		points = []market.HistoricalPoint{}
	}
	return &types.PortfolioHistoryResponse{Points: points}, nil
}

func (l *HistoryLogic) Journal(req *types.JournalRequest) (*types.JournalResponse, error) {
	cfg := l.svcCtx.Config.AgentOrDefault()
	if !cfg.Journal.Enabled {
		return &types.JournalResponse{Cycles: []*journal.CycleRecord{}}, nil
	}
	records, err := journal.ReadRecent(cfg.Journal.Dir, req.Limit)
	if err != nil {
		return nil, err
	}
	return &types.JournalResponse{Cycles: records}, nil
}

func (l *HistoryLogic) Conversations(req *types.ConversationsRequest) (*types.ConversationsResponse, error) {
	entries, err := l.svcCtx.Persistence.RecentConversations(l.ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []enginepersist.ConversationEntry{}
	}
	return &types.ConversationsResponse{Conversations: entries}, nil
}
