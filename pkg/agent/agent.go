// Package agent runs the decision cycle: snapshot, cascade, risk gate,
// execution and bookkeeping. Cycles never overlap.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/pkg/exchange"
	"cascade-agent/pkg/journal"
	"cascade-agent/pkg/market"
	"cascade-agent/pkg/params"
	"cascade-agent/pkg/risk"
	"cascade-agent/pkg/strategy"
	"cascade-agent/pkg/trade"
)

// Why a cycle ended without a trade.
const (
	SkipPaused   = "paused"
	SkipNoSignal = "no signal"
	SkipHold     = "hold"
	SkipRejected = "rejected"
)

// Decider produces the cycle's candidate instruction.
type Decider interface {
	Decide(ctx context.Context, snap *market.Snapshot, p *params.Parameters, state *trade.AgentState) (*trade.Instruction, error)
}

var _ Decider = (*strategy.Orchestrator)(nil)

// Deps are the collaborators every agent needs.
type Deps struct {
	Params  *params.Store
	Market  market.Provider
	Decider Decider
	Gate    *risk.Gate
	Venue   exchange.Provider
	States  StateStore
}

// CycleReport is the outcome of one cycle.
type CycleReport struct {
	CycleID        string                    `json:"cycle_id"`
	StartedAt      time.Time                 `json:"started_at"`
	FinishedAt     time.Time                 `json:"finished_at"`
	Mode           string                    `json:"mode,omitempty"`
	ParamsRevision uint64                    `json:"params_revision"`
	Snapshot       *market.Snapshot          `json:"snapshot,omitempty"`
	Instruction    *trade.Instruction        `json:"instruction,omitempty"`
	Verdict        *risk.Verdict             `json:"verdict,omitempty"`
	Execution      *exchange.ExecutionResult `json:"execution,omitempty"`
	State          *trade.AgentState         `json:"state,omitempty"`
	Skipped        string                    `json:"skipped,omitempty"`
	Error          string                    `json:"error,omitempty"`
}

// Executed reports whether the cycle reached the venue successfully.
func (r *CycleReport) Executed() bool {
	return r != nil && r.Execution != nil
}

// Status is the control-surface view of the agent.
type Status struct {
	Paused          bool         `json:"paused"`
	Interval        string       `json:"interval"`
	Cycles          int          `json:"cycles"`
	ParamsRevision  uint64       `json:"params_revision"`
	RecentTrades    int          `json:"recent_trades"`
	RecentVolumeUSD float64      `json:"recent_volume_usd"`
	LastCycle       *CycleReport `json:"last_cycle,omitempty"`
}

// Agent owns the cycle loop.
type Agent struct {
	cfg     *Config
	params  *params.Store
	market  market.Provider
	decider Decider
	gate    *risk.Gate
	venue   exchange.Provider
	states  StateStore
	hooks   PersistenceHooks
	journal *journal.Writer
	now     func() time.Time

	cycleMu sync.Mutex
	paused  atomic.Bool

	mu     sync.RWMutex
	cycles int
	last   *CycleReport

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option customises an Agent.
type Option func(*Agent)

// WithPersistenceHooks mirrors cycle outcomes into durable storage.
func WithPersistenceHooks(h PersistenceHooks) Option {
	return func(a *Agent) {
		if h != nil {
			a.hooks = h
		}
	}
}

// WithJournal overrides the journal writer built from configuration.
func WithJournal(w *journal.Writer) Option {
	return func(a *Agent) { a.journal = w }
}

// WithClock overrides the cycle timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// New wires an agent. A nil cfg selects DefaultConfig and a nil state store
// keeps state in memory.
func New(cfg *Config, deps Deps, opts ...Option) (*Agent, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Params == nil:
		return nil, errors.New("agent: parameter store is required")
	case deps.Market == nil:
		return nil, errors.New("agent: market provider is required")
	case deps.Decider == nil:
		return nil, errors.New("agent: decider is required")
	case deps.Gate == nil:
		return nil, errors.New("agent: risk gate is required")
	case deps.Venue == nil:
		return nil, errors.New("agent: venue is required")
	}
	if deps.States == nil {
		deps.States = NewMemoryStateStore()
	}

	a := &Agent{
		cfg:     cfg,
		params:  deps.Params,
		market:  deps.Market,
		decider: deps.Decider,
		gate:    deps.Gate,
		venue:   deps.Venue,
		states:  deps.States,
		hooks:   noopPersistenceHooks{},
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.journal == nil && cfg.Journal.Enabled {
		w, err := journal.NewWriter(cfg.Journal.Dir)
		if err != nil {
			return nil, err
		}
		a.journal = w
	}
	a.paused.Store(cfg.StartPaused)
	return a, nil
}

// RunLoop runs a cycle immediately and then on every interval tick until ctx
// is done or Stop is called. Cycle errors are logged and the loop carries on.
func (a *Agent) RunLoop(ctx context.Context) error {
	if err := a.setActive(ctx, !a.paused.Load()); err != nil {
		logx.WithContext(ctx).Errorf("agent: sync state: %v", err)
	}
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	logx.WithContext(ctx).Infof("agent: loop started interval=%s paused=%t", a.cfg.Interval, a.paused.Load())
	for {
		if _, err := a.RunCycle(ctx); err != nil {
			logx.WithContext(ctx).Errorf("agent: cycle failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.stopCh:
			return nil
		case <-ticker.C:
		}
	}
}

// Stop signals RunLoop to exit after the current cycle.
func (a *Agent) Stop() { a.stopOnce.Do(func() { close(a.stopCh) }) }

// Pause stops new cycles from trading. An in-flight cycle completes first.
func (a *Agent) Pause(ctx context.Context) error {
	a.paused.Store(true)
	return a.setActive(ctx, false)
}

// Resume re-enables trading from the next cycle.
func (a *Agent) Resume(ctx context.Context) error {
	a.paused.Store(false)
	return a.setActive(ctx, true)
}

// Paused reports whether cycles are currently skipped.
func (a *Agent) Paused() bool { return a.paused.Load() }

// Status summarises the agent for the control surface.
func (a *Agent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Status{
		Paused:          a.paused.Load(),
		Interval:        a.cfg.Interval.String(),
		Cycles:          a.cycles,
		ParamsRevision:  a.params.Revision(),
		RecentTrades:    a.gate.RecentTrades(),
		RecentVolumeUSD: a.gate.RecentVolumeUSD(),
		LastCycle:       a.last,
	}
}

// RunCycle executes exactly one cycle. Calls are serialised, so a manual
// trigger never overlaps the loop. The report is returned even on error.
func (a *Agent) RunCycle(ctx context.Context) (*CycleReport, error) {
	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()

	report := &CycleReport{CycleID: uuid.NewString(), StartedAt: a.now().UTC()}
	err := a.runCycle(ctx, report)
	if err != nil {
		report.Error = err.Error()
	}
	report.FinishedAt = a.now().UTC()
	a.finish(ctx, report)
	return report, err
}

func (a *Agent) runCycle(ctx context.Context, report *CycleReport) error {
	if a.paused.Load() {
		report.Skipped = SkipPaused
		return nil
	}
	p := a.params.Get()
	report.ParamsRevision = p.Revision
	report.Mode = strategy.ModeFor(p).String()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.CycleTimeout)
	defer cancel()

	snap, err := a.market.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("agent: fetch snapshot: %w", err)
	}
	report.Snapshot = snap
	if mp, ok := a.venue.(exchange.MarkPricer); ok {
		mp.SetPrices(snap.Prices)
	}

	state, err := a.loadState(ctx)
	if err != nil {
		return err
	}
	markToMarket(state, snap.TotalValue, snap.Timestamp)
	defer func() {
		report.State = state.Clone()
		if err := a.states.Save(ctx, state); err != nil {
			logPersistenceError(ctx, err, "save state", map[string]any{"cycle": report.CycleID})
		}
	}()

	instr, err := a.decider.Decide(ctx, snap, p, state.Clone())
	if err != nil {
		return fmt.Errorf("agent: decide: %w", err)
	}
	report.Instruction = instr
	switch {
	case instr == nil:
		report.Skipped = SkipNoSignal
		return nil
	case instr.Action == trade.ActionHold:
		report.Skipped = SkipHold
		return nil
	}

	verdict := a.gate.Validate(p, instr, snap, state)
	report.Verdict = &verdict
	if !verdict.Accepted {
		report.Skipped = SkipRejected
		logx.WithContext(ctx).Infof("agent: rejected %s: %s", instr, verdict.Reason)
		return nil
	}

	res, err := a.venue.Execute(ctx, instr)
	if err != nil {
		return fmt.Errorf("agent: execute %s: %w", instr.ID, err)
	}
	report.Execution = res

	executedAt := res.ExecutedAt
	if executedAt.IsZero() {
		executedAt = a.now().UTC()
	}
	usd := res.ValueUSD
	if usd <= 0 {
		usd = verdict.ValueUSD
	}
	a.gate.RecordTrade(executedAt, usd)
	state.TotalTrades++
	state.LastTradeAt = executedAt

	logPersistenceError(ctx, a.hooks.RecordTrade(ctx, TradeEvent{
		CycleID:     report.CycleID,
		Instruction: instr,
		Verdict:     verdict,
		Result:      res,
		OccurredAt:  executedAt,
	}), "record trade", map[string]any{"cycle": report.CycleID, "tx": res.TxID})
	logx.WithContext(ctx).Infof("agent: executed %s tx=%s out=%.8g %s", instr, res.TxID, res.AmountOut, res.To)
	return nil
}

func (a *Agent) loadState(ctx context.Context) (*trade.AgentState, error) {
	state, err := a.states.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: load state: %w", err)
	}
	if state == nil {
		state = &trade.AgentState{Active: !a.paused.Load(), RiskTier: a.cfg.RiskTier}
	}
	return state, nil
}

func (a *Agent) setActive(ctx context.Context, active bool) error {
	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()
	state, err := a.loadState(ctx)
	if err != nil {
		return err
	}
	state.Active = active
	if err := a.states.Save(ctx, state); err != nil {
		return fmt.Errorf("agent: save state: %w", err)
	}
	return nil
}

func (a *Agent) finish(ctx context.Context, report *CycleReport) {
	a.mu.Lock()
	a.cycles++
	a.last = report
	a.mu.Unlock()

	logPersistenceError(ctx, a.hooks.RecordCycle(ctx, report), "record cycle", map[string]any{"cycle": report.CycleID})
	if a.journal != nil {
		if _, err := a.journal.WriteCycle(journalRecord(report)); err != nil {
			logx.WithContext(ctx).Errorf("agent: journal: %v", err)
		}
	}
	if report.Skipped != "" && report.Skipped != SkipPaused {
		logx.WithContext(ctx).Infof("agent: cycle %s ended without trade: %s", report.CycleID, report.Skipped)
	}
}

func journalRecord(r *CycleReport) *journal.CycleRecord {
	rec := &journal.CycleRecord{
		CycleID:        r.CycleID,
		Timestamp:      r.StartedAt,
		Mode:           r.Mode,
		ParamsRevision: r.ParamsRevision,
		Instruction:    r.Instruction,
		Verdict:        r.Verdict,
		Execution:      r.Execution,
		State:          r.State,
		Skipped:        r.Skipped,
		Success:        r.Error == "",
		ErrorMessage:   r.Error,
		DurationMs:     r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
	if snap := r.Snapshot; snap != nil {
		rec.TotalValueUSD = snap.TotalValue
		rec.Prices = snap.Prices
		rec.Holdings = make(map[string]float64, len(snap.Holdings))
		for _, h := range snap.Holdings {
			rec.Holdings[h.Instrument] = h.Value
		}
	}
	return rec
}
