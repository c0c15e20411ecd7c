package backtest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"cascade-agent/pkg/token"
)

// Frame is one replay step: every instrument's USD price at Timestamp.
type Frame struct {
	Timestamp time.Time
	Prices    map[string]float64
}

// Feeder yields frames oldest first.
type Feeder interface {
	Next(ctx context.Context) (Frame, bool, error)
}

// SeriesFeeder replays an in-memory frame list.
type SeriesFeeder struct {
	frames []Frame
	idx    int
}

func NewSeriesFeeder(frames []Frame) *SeriesFeeder {
	return &SeriesFeeder{frames: frames}
}

// NewSingleSeriesFeeder builds frames for one instrument quoted against a
// stable instrument fixed at 1, one minute apart starting at start.
func NewSingleSeriesFeeder(instrument, stable string, start time.Time, prices []float64) *SeriesFeeder {
	frames := make([]Frame, 0, len(prices))
	for i, px := range prices {
		frames = append(frames, Frame{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Prices:    map[string]float64{token.Canonical(instrument): px, token.Canonical(stable): 1},
		})
	}
	return NewSeriesFeeder(frames)
}

func (f *SeriesFeeder) Next(ctx context.Context) (Frame, bool, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, false, err
	}
	if f.idx >= len(f.frames) {
		return Frame{}, false, nil
	}
	fr := f.frames[f.idx]
	f.idx++
	return fr, true, nil
}

// LoadCSVFile reads frames from a CSV file, see LoadCSV.
func LoadCSVFile(path string) (*SeriesFeeder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("backtest: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV reads a wide price table: a header "timestamp,<instrument>,..."
// followed by one row per step. Timestamps are RFC3339 or unix seconds. An
// empty cell leaves that instrument unpriced for the step.
func LoadCSV(r io.Reader) (*SeriesFeeder, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("backtest: read csv: %w", err)
	}
	if len(records) < 2 {
		return nil, errors.New("backtest: csv needs a header and at least one row")
	}
	header := records[0]
	if len(header) < 2 {
		return nil, errors.New("backtest: csv header needs a timestamp and an instrument column")
	}
	instruments := make([]string, len(header))
	for i, col := range header[1:] {
		instruments[i+1] = token.Canonical(col)
	}

	frames := make([]Frame, 0, len(records)-1)
	for line, rec := range records[1:] {
		ts, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, fmt.Errorf("backtest: row %d: %w", line+2, err)
		}
		fr := Frame{Timestamp: ts, Prices: make(map[string]float64, len(rec)-1)}
		for i := 1; i < len(rec) && i < len(instruments); i++ {
			cell := strings.TrimSpace(rec[i])
			if cell == "" {
				continue
			}
			px, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("backtest: row %d column %s: %w", line+2, instruments[i], err)
			}
			fr.Prices[instruments[i]] = px
		}
		frames = append(frames, fr)
	}
	return NewSeriesFeeder(frames), nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
	}
	return ts.UTC(), nil
}
