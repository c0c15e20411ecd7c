package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"

	cachekeys "cascade-agent/internal/cache"
	"cascade-agent/internal/model"
	"cascade-agent/pkg/advisor"
	"cascade-agent/pkg/agent"
	"cascade-agent/pkg/risk"
)

var (
	_ agent.PersistenceHooks       = (*Service)(nil)
	_ advisor.ConversationRecorder = (*Service)(nil)
)

const recentTradesLimit = 50

// Service mirrors agent cycles, executed swaps and advisor conversations to
// Postgres and keeps the hot summaries in Redis.
type Service struct {
	tradesModel        model.TradesModel
	decisionModel      model.DecisionCyclesModel
	conversationsModel model.ConversationsModel
	cache              gocache.Cache
	ttl                cachekeys.TTLSet
}

// Config enumerates dependencies needed to persist agent events.
type Config struct {
	TradesModel        model.TradesModel
	DecisionModel      model.DecisionCyclesModel
	ConversationsModel model.ConversationsModel
	Cache              gocache.Cache
	TTL                cachekeys.TTLSet
}

// NewService returns nil when the mandatory models are missing so callers can
// fall back to the agent's noop hooks.
func NewService(cfg Config) *Service {
	if cfg.TradesModel == nil || cfg.DecisionModel == nil {
		return nil
	}
	return &Service{
		tradesModel:        cfg.TradesModel,
		decisionModel:      cfg.DecisionModel,
		conversationsModel: cfg.ConversationsModel,
		cache:              cfg.Cache,
		ttl:                cfg.TTL,
	}
}

// CycleSummary is the cached view of the latest cycle.
type CycleSummary struct {
	CycleID       string    `json:"cycle_id"`
	StartedAt     time.Time `json:"started_at"`
	Mode          string    `json:"mode"`
	TotalValueUSD float64   `json:"total_value_usd"`
	Strategy      string    `json:"strategy,omitempty"`
	Executed      bool      `json:"executed"`
	Skipped       string    `json:"skipped,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// TradeEntry is the cached and API view of one executed swap.
type TradeEntry struct {
	CycleID    string    `json:"cycle_id"`
	Strategy   string    `json:"strategy"`
	Action     string    `json:"action"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	AmountIn   float64   `json:"amount_in"`
	AmountOut  float64   `json:"amount_out"`
	ValueUSD   float64   `json:"value_usd"`
	FeeUSD     float64   `json:"fee_usd"`
	Reason     string    `json:"reason"`
	TxID       string    `json:"tx_id,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}

// RecordCycle stores one decision cycle.
func (s *Service) RecordCycle(ctx context.Context, report *agent.CycleReport) error {
	if s == nil || report == nil {
		return nil
	}
	row := &model.DecisionCycles{
		Id:             report.CycleID,
		StartedAt:      report.StartedAt.UTC(),
		FinishedAt:     report.FinishedAt.UTC(),
		Mode:           report.Mode,
		ParamsRevision: int64(report.ParamsRevision),
		Executed:       report.Executed(),
		Skipped:        report.Skipped,
		Instruction:    jsonColumn(report.Instruction),
		ErrorMessage:   nullString(report.Error),
	}
	if report.Snapshot != nil {
		row.TotalValueUsd = report.Snapshot.TotalValue
	}
	if report.Verdict != nil {
		row.Verdict = jsonColumn(report.Verdict)
	}
	if _, err := s.decisionModel.Insert(ctx, row); err != nil && !isUniqueViolation(err) {
		return err
	}
	s.cacheCycleSummary(ctx, report, row.TotalValueUsd)
	return nil
}

// RecordTrade stores one executed swap and invalidates the recent trades cache.
func (s *Service) RecordTrade(ctx context.Context, event agent.TradeEvent) error {
	if s == nil || event.Instruction == nil || event.Result == nil {
		return nil
	}
	instr, res := event.Instruction, event.Result
	executedAt := res.ExecutedAt
	if executedAt.IsZero() {
		executedAt = event.OccurredAt
	}
	row := &model.Trades{
		CycleId:        event.CycleID,
		Strategy:       instr.Strategy,
		Action:         string(instr.Action),
		FromInstrument: res.From,
		ToInstrument:   res.To,
		AmountIn:       res.AmountIn,
		AmountOut:      res.AmountOut,
		ValueUsd:       res.ValueUSD,
		FeeUsd:         res.FeeUSD,
		Confidence:     instr.Confidence,
		Reason:         instr.Reason,
		TxId:           nullString(res.TxID),
		RiskMode:       event.Verdict.Mode.String(),
		ExecutedAt:     executedAt.UTC(),
	}
	if _, err := s.tradesModel.Insert(ctx, row); err != nil {
		return err
	}
	s.invalidate(ctx, cachekeys.RecentTradesKey())
	return nil
}

// RecordConversation stores one advisor round trip.
func (s *Service) RecordConversation(ctx context.Context, rec advisor.ConversationRecord) error {
	if s == nil || s.conversationsModel == nil {
		return nil
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.conversationsModel.Insert(ctx, &model.Conversations{
		Model:            rec.Model,
		PromptDigest:     rec.PromptDigest,
		Prompt:           rec.Prompt,
		Response:         rec.Response,
		PromptTokens:     int64(rec.PromptTokens),
		CompletionTokens: int64(rec.CompletionTokens),
		ErrorMessage:     nullString(rec.Err),
		RequestedAt:      ts.UTC(),
	})
	return err
}

// ConversationEntry is the API view of one advisor round trip. Prompts are
// left out; the digest identifies them.
type ConversationEntry struct {
	Model            string    `json:"model"`
	PromptDigest     string    `json:"prompt_digest"`
	Response         string    `json:"response"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	Error            string    `json:"error,omitempty"`
	RequestedAt      time.Time `json:"requested_at"`
}

// RecentConversations lists the newest advisor calls, newest first.
func (s *Service) RecentConversations(ctx context.Context, limit int) ([]ConversationEntry, error) {
	if s == nil || s.conversationsModel == nil {
		return nil, nil
	}
	rows, err := s.conversationsModel.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, ConversationEntry{
			Model:            row.Model,
			PromptDigest:     row.PromptDigest,
			Response:         row.Response,
			PromptTokens:     row.PromptTokens,
			CompletionTokens: row.CompletionTokens,
			Error:            row.ErrorMessage.String,
			RequestedAt:      row.RequestedAt,
		})
	}
	return out, nil
}

// RecentTrades serves the newest swaps, through Redis when available.
func (s *Service) RecentTrades(ctx context.Context) ([]TradeEntry, error) {
	if s == nil {
		return nil, nil
	}
	load := func() ([]TradeEntry, error) {
		rows, err := s.tradesModel.Recent(ctx, recentTradesLimit)
		if err != nil {
			return nil, err
		}
		return tradeEntries(rows), nil
	}
	if s.cache == nil {
		return load()
	}
	var entries []TradeEntry
	err := s.cache.TakeWithExpireCtx(ctx, &entries, cachekeys.RecentTradesKey(), func(val any, _ time.Duration) error {
		loaded, err := load()
		if err != nil {
			return err
		}
		*val.(*[]TradeEntry) = loaded
		return nil
	})
	return entries, err
}

// LastCycle returns the cached summary of the latest cycle, or nil.
func (s *Service) LastCycle(ctx context.Context) (*CycleSummary, error) {
	if s == nil || s.cache == nil {
		return nil, nil
	}
	var summary CycleSummary
	if err := s.cache.GetCtx(ctx, cachekeys.LastCycleKey(), &summary); err != nil {
		if s.cache.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

// SeedRiskWindow replays swaps from the last hour into gate so the frequency
// limit survives a restart.
func (s *Service) SeedRiskWindow(ctx context.Context, gate *risk.Gate, now time.Time) (int, error) {
	if s == nil || gate == nil {
		return 0, nil
	}
	rows, err := s.tradesModel.Since(ctx, now.Add(-time.Hour))
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		gate.RecordTrade(row.ExecutedAt, row.ValueUsd)
	}
	return len(rows), nil
}

func (s *Service) cacheCycleSummary(ctx context.Context, report *agent.CycleReport, value float64) {
	if s.cache == nil {
		return
	}
	summary := CycleSummary{
		CycleID:       report.CycleID,
		StartedAt:     report.StartedAt.UTC(),
		Mode:          report.Mode,
		TotalValueUSD: value,
		Executed:      report.Executed(),
		Skipped:       report.Skipped,
		Error:         report.Error,
	}
	if report.Instruction != nil {
		summary.Strategy = report.Instruction.Strategy
	}
	ttl := s.ttl.Duration(cachekeys.TTLLong)
	if ttl <= 0 {
		return
	}
	key := cachekeys.LastCycleKey()
	if err := s.cache.SetWithExpireCtx(ctx, key, summary, ttl); err != nil {
		logx.WithContext(ctx).Errorf("enginepersist: cache cycle key=%s err=%v", key, err)
	}
}

func (s *Service) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DelCtx(ctx, key); err != nil && !s.cache.IsNotFound(err) {
		logx.WithContext(ctx).Errorf("enginepersist: del key=%s err=%v", key, err)
	}
}

func tradeEntries(rows []model.Trades) []TradeEntry {
	out := make([]TradeEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, TradeEntry{
			CycleID:    row.CycleId,
			Strategy:   row.Strategy,
			Action:     row.Action,
			From:       row.FromInstrument,
			To:         row.ToInstrument,
			AmountIn:   row.AmountIn,
			AmountOut:  row.AmountOut,
			ValueUSD:   row.ValueUsd,
			FeeUSD:     row.FeeUsd,
			Reason:     row.Reason,
			TxID:       row.TxId.String,
			ExecutedAt: row.ExecutedAt,
		})
	}
	return out
}

func jsonColumn(v any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
