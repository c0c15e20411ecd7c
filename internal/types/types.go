package types

import (
	enginepersist "cascade-agent/internal/persistence/engine"
	"cascade-agent/pkg/agent"
	"cascade-agent/pkg/journal"
	"cascade-agent/pkg/market"
	"cascade-agent/pkg/params"
)

type ParamsResponse struct {
	Revision uint64             `json:"revision"`
	Params   *params.Parameters `json:"params"`
	Warnings []string           `json:"warnings,omitempty"`
}

type StatusResponse struct {
	agent.Status
	Mode       string                      `json:"mode"`
	Advisor    bool                        `json:"advisor"`
	Discovery  bool                        `json:"discovery"`
	Persistent bool                        `json:"persistent"`
	Cached     *enginepersist.CycleSummary `json:"cached_cycle,omitempty"`
}

type CycleResponse struct {
	Report *agent.CycleReport `json:"report"`
	Error  string             `json:"error,omitempty"`
}

type RiskWindowResponse struct {
	RecentTrades    int     `json:"recent_trades"`
	RecentVolumeUSD float64 `json:"recent_volume_usd"`
}

type TradesResponse struct {
	Trades []enginepersist.TradeEntry `json:"trades"`
}

type PortfolioHistoryRequest struct {
	SinceMinutes int `form:"since_minutes,default=1440"`
}

type PortfolioHistoryResponse struct {
	Points []market.HistoricalPoint `json:"points"`
}

type JournalRequest struct {
	Limit int `form:"limit,default=20"`
}

type JournalResponse struct {
	Cycles []*journal.CycleRecord `json:"cycles"`
}

type ConversationsRequest struct {
	Limit int `form:"limit,default=20"`
}

type ConversationsResponse struct {
	Conversations []enginepersist.ConversationEntry `json:"conversations"`
}
