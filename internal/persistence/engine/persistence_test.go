package engine

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascade-agent/internal/model"
	"cascade-agent/pkg/advisor"
	"cascade-agent/pkg/agent"
	"cascade-agent/pkg/exchange"
	"cascade-agent/pkg/market"
	"cascade-agent/pkg/risk"
	"cascade-agent/pkg/trade"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type stubResult struct{}

func (stubResult) LastInsertId() (int64, error) { return 0, nil }
func (stubResult) RowsAffected() (int64, error) { return 1, nil }

type fakeTrades struct {
	rows []model.Trades
}

func (f *fakeTrades) Insert(_ context.Context, data *model.Trades) (sql.Result, error) {
	f.rows = append(f.rows, *data)
	return stubResult{}, nil
}

func (f *fakeTrades) FindOne(context.Context, int64) (*model.Trades, error) {
	return nil, model.ErrNotFound
}

func (f *fakeTrades) Recent(_ context.Context, limit int) ([]model.Trades, error) {
	out := make([]model.Trades, 0, len(f.rows))
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.rows[i])
	}
	return out, nil
}

func (f *fakeTrades) Since(_ context.Context, since time.Time) ([]model.Trades, error) {
	var out []model.Trades
	for _, row := range f.rows {
		if !row.ExecutedAt.Before(since) {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeCycles struct {
	rows []model.DecisionCycles
	err  error
}

func (f *fakeCycles) Insert(_ context.Context, data *model.DecisionCycles) (sql.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rows = append(f.rows, *data)
	return stubResult{}, nil
}

func (f *fakeCycles) FindOne(context.Context, string) (*model.DecisionCycles, error) {
	return nil, model.ErrNotFound
}

func (f *fakeCycles) Recent(context.Context, int) ([]model.DecisionCycles, error) {
	return f.rows, nil
}

type fakeConversations struct {
	rows []model.Conversations
}

func (f *fakeConversations) Insert(_ context.Context, data *model.Conversations) (sql.Result, error) {
	f.rows = append(f.rows, *data)
	return stubResult{}, nil
}

func (f *fakeConversations) FindOne(context.Context, int64) (*model.Conversations, error) {
	return nil, model.ErrNotFound
}

func (f *fakeConversations) Recent(_ context.Context, limit int) ([]model.Conversations, error) {
	var out []model.Conversations
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.rows[i])
	}
	return out, nil
}

func newService(t *testing.T) (*Service, *fakeTrades, *fakeCycles, *fakeConversations) {
	t.Helper()
	trades, cycles, convs := &fakeTrades{}, &fakeCycles{}, &fakeConversations{}
	svc := NewService(Config{TradesModel: trades, DecisionModel: cycles, ConversationsModel: convs})
	require.NotNil(t, svc)
	return svc, trades, cycles, convs
}

func TestNewServiceNeedsModels(t *testing.T) {
	assert.Nil(t, NewService(Config{}))
}

func TestRecordCycle(t *testing.T) {
	svc, _, cycles, _ := newService(t)
	instr := trade.NewInstruction("trend", trade.ActionBuy, "USDC", "WETH", 100, 0.7, "uptrend")
	verdict := risk.Verdict{Accepted: false, Reason: "trade frequency limit reached"}
	report := &agent.CycleReport{
		CycleID:        "c-1",
		StartedAt:      testNow,
		FinishedAt:     testNow.Add(time.Second),
		Mode:           "normal",
		ParamsRevision: 3,
		Snapshot:       market.NewSnapshot(testNow, map[string]float64{"USDC": 500}, map[string]float64{"USDC": 1}),
		Instruction:    instr,
		Verdict:        &verdict,
		Skipped:        agent.SkipRejected,
	}
	require.NoError(t, svc.RecordCycle(context.Background(), report))

	require.Len(t, cycles.rows, 1)
	row := cycles.rows[0]
	assert.Equal(t, "c-1", row.Id)
	assert.Equal(t, int64(3), row.ParamsRevision)
	assert.InDelta(t, 500, row.TotalValueUsd, 1e-9)
	assert.False(t, row.Executed)
	assert.Equal(t, "rejected", row.Skipped)
	assert.True(t, row.Instruction.Valid)
	assert.Contains(t, row.Verdict.String, "trade frequency limit reached")
	assert.False(t, row.ErrorMessage.Valid)
}

func TestRecordCycleIgnoresDuplicates(t *testing.T) {
	svc, _, cycles, _ := newService(t)
	cycles.err = &pgconn.PgError{Code: "23505"}
	assert.NoError(t, svc.RecordCycle(context.Background(), &agent.CycleReport{CycleID: "dup"}))
}

func TestRecordTradeAndRecent(t *testing.T) {
	svc, trades, _, _ := newService(t)
	ctx := context.Background()
	instr := trade.NewInstruction("momentum", trade.ActionBuy, "USDC", "WETH", 50, 0.6, "breakout")
	event := agent.TradeEvent{
		CycleID:     "c-2",
		Instruction: instr,
		Verdict:     risk.Verdict{Accepted: true, ValueUSD: 50},
		Result: &exchange.ExecutionResult{
			TxID:       "paper-1",
			From:       "USDC",
			To:         "WETH",
			AmountIn:   50,
			AmountOut:  0.025,
			ValueUSD:   50,
			FeeUSD:     0.05,
			ExecutedAt: testNow,
		},
		OccurredAt: testNow,
	}
	require.NoError(t, svc.RecordTrade(ctx, event))
	require.Len(t, trades.rows, 1)
	assert.Equal(t, "normal", trades.rows[0].RiskMode)
	assert.Equal(t, "paper-1", trades.rows[0].TxId.String)

	entries, err := svc.RecentTrades(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "momentum", entries[0].Strategy)
	assert.InDelta(t, 0.025, entries[0].AmountOut, 1e-12)

	assert.NoError(t, svc.RecordTrade(ctx, agent.TradeEvent{}))
	assert.Len(t, trades.rows, 1)
}

func TestSeedRiskWindow(t *testing.T) {
	svc, trades, _, _ := newService(t)
	trades.rows = []model.Trades{
		{ValueUsd: 10, ExecutedAt: testNow.Add(-2 * time.Hour)},
		{ValueUsd: 20, ExecutedAt: testNow.Add(-30 * time.Minute)},
		{ValueUsd: 30, ExecutedAt: testNow.Add(-time.Minute)},
	}
	gate := risk.NewGate(risk.WithClock(func() time.Time { return testNow }))

	n, err := svc.SeedRiskWindow(context.Background(), gate, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, gate.RecentTrades())
	assert.InDelta(t, 50, gate.RecentVolumeUSD(), 1e-9)
}

func TestRecordConversation(t *testing.T) {
	svc, _, _, convs := newService(t)
	require.NoError(t, svc.RecordConversation(context.Background(), advisor.ConversationRecord{
		Model:        "gpt-test",
		PromptDigest: "abc",
		Response:     `{"action":"hold"}`,
		PromptTokens: 120,
		Timestamp:    testNow,
	}))
	require.Len(t, convs.rows, 1)
	assert.Equal(t, int64(120), convs.rows[0].PromptTokens)
	assert.False(t, convs.rows[0].ErrorMessage.Valid)
	assert.Equal(t, testNow, convs.rows[0].RequestedAt)
}

func TestRecentConversations(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.RecordConversation(ctx, advisor.ConversationRecord{
		Model: "gpt-test", PromptDigest: "first", Timestamp: testNow,
	}))
	require.NoError(t, svc.RecordConversation(ctx, advisor.ConversationRecord{
		Model: "gpt-test", PromptDigest: "second", Err: "timeout", Timestamp: testNow.Add(time.Minute),
	}))

	entries, err := svc.RecentConversations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].PromptDigest)
	assert.Equal(t, "timeout", entries[0].Error)
	assert.Empty(t, entries[1].Error)

	var nilSvc *Service
	entries, err = nilSvc.RecentConversations(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestLastCycleWithoutCache(t *testing.T) {
	svc, _, _, _ := newService(t)
	summary, err := svc.LastCycle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, summary)
}
