package logic

import (
	"context"
	"errors"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/internal/svc"
	"cascade-agent/internal/types"
)

type ParamsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewParamsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ParamsLogic {
	return &ParamsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *ParamsLogic) GetParams() (*types.ParamsResponse, error) {
	p := l.svcCtx.Params.Get()
	return &types.ParamsResponse{Revision: p.Revision, Params: p, Warnings: p.Lint()}, nil
}

// UpdateParams merges a partial JSON document. The next cycle picks it up.
func (l *ParamsLogic) UpdateParams(raw []byte) (*types.ParamsResponse, error) {
	if len(raw) == 0 {
		return nil, errors.New("params: empty patch")
	}
	p, err := l.svcCtx.Params.ApplyJSON(raw)
	if err != nil {
		return nil, err
	}
	warnings := p.Lint()
	l.Infof("params updated to revision %d (%d warnings)", p.Revision, len(warnings))
	return &types.ParamsResponse{Revision: p.Revision, Params: p, Warnings: warnings}, nil
}
