// Package journal writes one JSON file per agent cycle for offline audit.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"cascade-agent/pkg/exchange"
	"cascade-agent/pkg/risk"
	"cascade-agent/pkg/trade"
)

// CycleRecord captures an end-to-end decision cycle.
type CycleRecord struct {
	CycleID        string                    `json:"cycle_id"`
	CycleNumber    int                       `json:"cycle_number"`
	Timestamp      time.Time                 `json:"timestamp"`
	Mode           string                    `json:"mode,omitempty"`
	ParamsRevision uint64                    `json:"params_revision"`
	TotalValueUSD  float64                   `json:"total_value_usd"`
	Holdings       map[string]float64        `json:"holdings_usd,omitempty"`
	Prices         map[string]float64        `json:"prices,omitempty"`
	Instruction    *trade.Instruction        `json:"instruction,omitempty"`
	Verdict        *risk.Verdict             `json:"verdict,omitempty"`
	Execution      *exchange.ExecutionResult `json:"execution,omitempty"`
	State          *trade.AgentState         `json:"state,omitempty"`
	Skipped        string                    `json:"skipped,omitempty"`
	Success        bool                      `json:"success"`
	ErrorMessage   string                    `json:"error_message,omitempty"`
	DurationMs     int64                     `json:"duration_ms"`
}

// Writer persists cycle records to a directory.
type Writer struct {
	dir   string
	mu    sync.Mutex
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer rooted at dir.
func NewWriter(dir string) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "journal"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", dir, err)
	}
	return &Writer{dir: dir, nowFn: time.Now}, nil
}

// Dir returns the directory records are written to.
func (w *Writer) Dir() string { return w.dir }

// WriteCycle assigns the next sequence number and writes rec to
// cycle_<timestamp>_<seq>.json, returning the file path.
func (w *Writer) WriteCycle(rec *CycleRecord) (string, error) {
	if rec == nil {
		return "", errors.New("journal: nil record")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	w.seq++
	rec.CycleNumber = w.seq
	name := fmt.Sprintf("cycle_%s_%05d.json", rec.Timestamp.UTC().Format("20060102_150405"), w.seq)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("journal: encode cycle: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("journal: write %s: %w", name, err)
	}
	return path, nil
}

// ReadRecent returns up to limit of the newest records in dir, newest first.
func ReadRecent(dir string, limit int) ([]*CycleRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("journal: list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "cycle_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	out := make([]*CycleRecord, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("journal: read %s: %w", name, err)
		}
		var rec CycleRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("journal: decode %s: %w", name, err)
		}
		out = append(out, &rec)
	}
	return out, nil
}
