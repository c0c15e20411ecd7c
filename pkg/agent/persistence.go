package agent

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/pkg/exchange"
	"cascade-agent/pkg/risk"
	"cascade-agent/pkg/trade"
)

// TradeEvent is emitted after the venue confirms an execution.
type TradeEvent struct {
	CycleID     string
	Instruction *trade.Instruction
	Verdict     risk.Verdict
	Result      *exchange.ExecutionResult
	OccurredAt  time.Time
}

// PersistenceHooks mirror cycle outcomes into durable storage. Hook errors
// are logged and never fail the cycle.
type PersistenceHooks interface {
	RecordCycle(ctx context.Context, report *CycleReport) error
	RecordTrade(ctx context.Context, event TradeEvent) error
}

type noopPersistenceHooks struct{}

func (noopPersistenceHooks) RecordCycle(context.Context, *CycleReport) error { return nil }

func (noopPersistenceHooks) RecordTrade(context.Context, TradeEvent) error { return nil }

func logPersistenceError(ctx context.Context, err error, msg string, fields map[string]any) {
	if err == nil {
		return
	}
	logx.WithContext(ctx).Errorf("agent: %s: %v fields=%v", msg, err, fields)
}
