package market

import (
	"context"
	"sync"
	"time"

	"cascade-agent/pkg/token"
)

// HistoricalPoint is one recorded price observation.
type HistoricalPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// HistoryReader returns up to count most recent points for an instrument,
// ordered oldest first. Fewer points than requested is not an error.
type HistoryReader interface {
	GetHistory(ctx context.Context, instrument string, count int) ([]HistoricalPoint, error)
}

// HistoryWriter appends one observation for an instrument together with the
// portfolio value at that moment.
type HistoryWriter interface {
	AppendHistory(ctx context.Context, ts time.Time, instrument string, price, portfolioValue float64) error
}

// HistoryStore is both.
type HistoryStore interface {
	HistoryReader
	HistoryWriter
}

// Prices extracts the price column.
func Prices(points []HistoricalPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}

// TimestampPrecision is the resolution of stored history timestamps
// (Postgres timestamptz keeps microseconds).
const TimestampPrecision = time.Microsecond

// Before returns the prefix of points strictly older than ts, compared at
// TimestampPrecision so a stored copy of the point at ts is never prior.
func Before(points []HistoricalPoint, ts time.Time) []HistoricalPoint {
	ts = ts.Truncate(TimestampPrecision)
	n := len(points)
	for n > 0 && !points[n-1].Timestamp.Before(ts) {
		n--
	}
	return points[:n]
}

const defaultHistoryCapacity = 1024

// MemoryHistory keeps a bounded ring of points per instrument.
type MemoryHistory struct {
	mu       sync.RWMutex
	capacity int
	series   map[string][]HistoricalPoint
	values   []HistoricalPoint
}

// NewMemoryHistory creates an in-memory store retaining capacity points per
// instrument (1024 when capacity <= 0).
func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &MemoryHistory{capacity: capacity, series: make(map[string][]HistoricalPoint)}
}

func (m *MemoryHistory) GetHistory(_ context.Context, instrument string, count int) ([]HistoricalPoint, error) {
	if count <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	series := m.series[token.Canonical(instrument)]
	if len(series) > count {
		series = series[len(series)-count:]
	}
	return append([]HistoricalPoint(nil), series...), nil
}

func (m *MemoryHistory) AppendHistory(_ context.Context, ts time.Time, instrument string, price, portfolioValue float64) error {
	id := token.Canonical(instrument)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[id] = appendBounded(m.series[id], HistoricalPoint{Timestamp: ts.UTC(), Price: price}, m.capacity)
	if n := len(m.values); n == 0 || !m.values[n-1].Timestamp.Equal(ts.UTC()) {
		m.values = appendBounded(m.values, HistoricalPoint{Timestamp: ts.UTC(), Price: portfolioValue}, m.capacity)
	}
	return nil
}

// PortfolioValues returns up to count recorded portfolio values, oldest first.
func (m *MemoryHistory) PortfolioValues(count int) []HistoricalPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vals := m.values
	if count > 0 && len(vals) > count {
		vals = vals[len(vals)-count:]
	}
	return append([]HistoricalPoint(nil), vals...)
}

// Seed appends a series of prices at one-minute spacing ending at end.
func (m *MemoryHistory) Seed(instrument string, end time.Time, prices ...float64) {
	start := end.Add(-time.Duration(len(prices)-1) * time.Minute)
	for i, px := range prices {
		_ = m.AppendHistory(context.Background(), start.Add(time.Duration(i)*time.Minute), instrument, px, 0)
	}
}

func appendBounded(series []HistoricalPoint, p HistoricalPoint, capacity int) []HistoricalPoint {
	series = append(series, p)
	if over := len(series) - capacity; over > 0 {
		series = append(series[:0:0], series[over:]...)
	}
	return series
}
