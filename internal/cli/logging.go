package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/internal/config"
	"cascade-agent/pkg/confkit"
	"cascade-agent/pkg/strategy"
)

// ConfigSummaryLines describes what the process will run with: where state
// lives, which venue and feed it talks to and how the cascade is set up.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	env := cfg.Env
	if cfg.IsTestEnv() {
		env += " (paper venue enforced)"
	}
	lines := []string{
		"Environment: " + env,
		"Storage: " + storageMode(cfg),
	}

	ag := cfg.AgentOrDefault()
	lines = append(lines, fmt.Sprintf("Agent: every %s, timeout %s, start paused %t, journal %s",
		ag.Interval, ag.CycleTimeout, ag.StartPaused, journalState(ag.Journal.Enabled, ag.Journal.Dir)))

	p := cfg.ParamsOrDefault()
	lines = append(lines, fmt.Sprintf("Cascade: mode %s, stable %s, watchlist [%s], fallback %t, degraded risk %t",
		strategy.ModeFor(p), p.StableInstrument, strings.Join(p.Watchlist, ","), p.Fallback.Enabled, p.DegradedRisk))

	if m := cfg.Market.Value; m != nil {
		lines = append(lines, fmt.Sprintf("Price feed: %s (%s)", m.Default, m.Providers[m.Default].Type))
	} else {
		lines = append(lines, "Price feed: not configured")
	}
	if ex := cfg.Exchange.Value; ex != nil {
		names := make([]string, 0, len(ex.Providers))
		for name, pc := range ex.Providers {
			names = append(names, name+"="+pc.Type)
		}
		sort.Strings(names)
		lines = append(lines, fmt.Sprintf("Venue: default %q, providers %s", ex.Default, strings.Join(names, " ")))
	} else {
		lines = append(lines, "Venue: not configured")
	}

	lines = append(lines,
		sectionLine("Advisor", cfg.Advisor),
		sectionLine("LLM", cfg.LLM),
		sectionLine("Discovery", cfg.Discovery),
		"Recorder schedule: "+cfg.Recorder.Schedule,
	)
	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	logx.Info("configuration summary")
	for _, line := range ConfigSummaryLines(cfg) {
		logx.Infof("config • %s", line)
	}
}

func storageMode(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Postgres.DSN) == "" {
		return "in-memory (history and state lost on restart)"
	}
	return fmt.Sprintf("postgres (pool %d/%d), redis %s", cfg.Postgres.MaxOpen, cfg.Postgres.MaxIdle, cfg.Redis.Host)
}

func journalState(enabled bool, dir string) string {
	if !enabled {
		return "off"
	}
	return dir
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case section.Value == nil:
		return name + ": off"
	case strings.TrimSpace(section.File) != "":
		return name + ": " + section.File
	default:
		return name + ": inline"
	}
}

