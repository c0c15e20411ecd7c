package cache

import (
	"strings"
	"time"

	"cascade-agent/internal/config"
)

// Namespace is the Redis key prefix for the agent.
const Namespace = "cascade"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Price Keys -------------------------------------------------------------

// PriceLatestKey holds the newest recorded point of one instrument.
func PriceLatestKey(instrument string) string {
	return formatKey("price", "latest", strings.ToUpper(instrument))
}

// PricesKey holds the aggregated instrument -> price map of the last snapshot.
func PricesKey() string {
	return formatKey("prices")
}

// --- Agent Keys -------------------------------------------------------------

// AgentStateKey caches the serialised agent state.
func AgentStateKey(id string) string {
	return formatKey("agent", "state", id)
}

// LastCycleKey caches the summary of the most recent cycle.
func LastCycleKey() string {
	return formatKey("agent", "cycle", "last")
}

// RecentTradesKey caches the newest executed swaps.
func RecentTradesKey() string {
	return formatKey("trades", "recent")
}

// LockKey is a short-lived lock guarding a named job.
func LockKey(name string) string {
	return formatKey("lock", name)
}
