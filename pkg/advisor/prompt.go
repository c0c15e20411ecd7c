package advisor

import (
	_ "embed"
	"fmt"
	"text/template"
	"time"

	"cascade-agent/pkg/llm"
	"cascade-agent/pkg/market"
	"cascade-agent/pkg/params"
	"cascade-agent/pkg/strategy"
	"cascade-agent/pkg/trade"
)

//go:embed default_prompt.tmpl
var defaultPrompt string

var promptFuncs = template.FuncMap{
	"usd": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"pct": func(v float64) string { return fmt.Sprintf("%.2f%%", v*100) },
}

// promptData is the template payload.
type promptData struct {
	Now                 string
	Stable              string
	TotalValue          float64
	Holdings            []market.Holding
	Insight             []strategy.InstrumentInsight
	Limits              params.RiskLimits
	MinTradeUSD         float64
	MaxTradeUSD         float64
	MaxPositionFraction float64
	State               trade.AgentState
}

func loadTemplate(path string) (*llm.PromptTemplate, error) {
	if path == "" {
		return llm.ParsePromptTemplate("advisor", defaultPrompt, promptFuncs)
	}
	return llm.NewPromptTemplate(path, promptFuncs)
}

func buildPromptData(cfg *Config, req *strategy.AdvisoryRequest, now time.Time) promptData {
	p, snap := req.Params, req.Snapshot
	data := promptData{
		Now:                 now.UTC().Format(time.RFC3339),
		Stable:              p.StableInstrument,
		TotalValue:          snap.TotalValue,
		Holdings:            snap.Holdings,
		Insight:             req.Insight,
		Limits:              req.Limits,
		MinTradeUSD:         p.MinTradeUSD,
		MaxTradeUSD:         cfg.MaxTradeFraction * snap.TotalValue,
		MaxPositionFraction: p.MaxPositionFraction,
	}
	if req.State != nil {
		data.State = *req.State
	}
	return data
}
