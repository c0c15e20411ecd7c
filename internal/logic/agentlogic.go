package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/internal/svc"
	"cascade-agent/internal/types"
	"cascade-agent/pkg/strategy"
)

type AgentLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAgentLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AgentLogic {
	return &AgentLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *AgentLogic) Status() (*types.StatusResponse, error) {
	resp := &types.StatusResponse{
		Status:     l.svcCtx.Agent.Status(),
		Mode:       strategy.ModeFor(l.svcCtx.Params.Get()).String(),
		Advisor:    l.svcCtx.Advisor != nil,
		Discovery:  l.svcCtx.Discovery != nil,
		Persistent: l.svcCtx.Persistence != nil,
	}
	if l.svcCtx.Persistence != nil {
		summary, err := l.svcCtx.Persistence.LastCycle(l.ctx)
		if err != nil {
			l.Errorf("status: cached cycle: %v", err)
		}
		resp.Cached = summary
	}
	return resp, nil
}

func (l *AgentLogic) Pause() (*types.StatusResponse, error) {
	if err := l.svcCtx.Agent.Pause(l.ctx); err != nil {
		return nil, err
	}
	l.Info("agent paused by operator")
	return l.Status()
}

func (l *AgentLogic) Resume() (*types.StatusResponse, error) {
	if err := l.svcCtx.Agent.Resume(l.ctx); err != nil {
		return nil, err
	}
	l.Info("agent resumed by operator")
	return l.Status()
}

// RunCycle triggers one cycle outside the schedule. A failed cycle is still
// reported, with its error.
func (l *AgentLogic) RunCycle() (*types.CycleResponse, error) {
	report, err := l.svcCtx.Agent.RunCycle(l.ctx)
	resp := &types.CycleResponse{Report: report}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}
