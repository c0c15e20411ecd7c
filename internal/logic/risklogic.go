package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/internal/svc"
	"cascade-agent/internal/types"
)

type RiskLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewRiskLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RiskLogic {
	return &RiskLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *RiskLogic) Window() (*types.RiskWindowResponse, error) {
	return &types.RiskWindowResponse{
		RecentTrades:    l.svcCtx.Gate.RecentTrades(),
		RecentVolumeUSD: l.svcCtx.Gate.RecentVolumeUSD(),
	}, nil
}

func (l *RiskLogic) ResetWindow() (*types.RiskWindowResponse, error) {
	l.svcCtx.Gate.ResetWindow()
	return l.Window()
}
