package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/pkg/market"
	"cascade-agent/pkg/params"
	"cascade-agent/pkg/trade"
)

// Mode selects how a cycle is decided. It is resolved once per cycle before
// any evaluator runs.
type Mode int

const (
	ModeCascade Mode = iota
	ModeLossSeeking
	ModeAdvisory
)

func (m Mode) String() string {
	switch m {
	case ModeLossSeeking:
		return "loss_seeking"
	case ModeAdvisory:
		return "advisory"
	default:
		return "cascade"
	}
}

// ModeFor resolves the mode from parameters. Advisory preempts loss-seeking.
func ModeFor(p *params.Parameters) Mode {
	switch {
	case p.Advisory.Enabled:
		return ModeAdvisory
	case p.LossSeeking.Enabled:
		return ModeLossSeeking
	default:
		return ModeCascade
	}
}

// AdvisoryRequest is the context handed to an advisory collaborator.
type AdvisoryRequest struct {
	Snapshot *market.Snapshot
	Params   *params.Parameters
	Limits   params.RiskLimits
	Insight  []InstrumentInsight
	State    *trade.AgentState
}

// Advisor delegates the whole decision to an external collaborator.
type Advisor interface {
	Advise(ctx context.Context, req *AdvisoryRequest) (*trade.Instruction, error)
}

// ErrNoAdvisor is returned when advisory mode is on but nothing can advise.
var ErrNoAdvisor = errors.New("strategy: advisory mode enabled without an advisor")

// Orchestrator sequences the evaluators.
type Orchestrator struct {
	history   market.HistoryStore
	advisor   Advisor
	stages    []Stage
	rotation  *Rotation
	discovery *DiscoveryFallback
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

func WithAdvisor(a Advisor) Option {
	return func(o *Orchestrator) { o.advisor = a }
}

func WithDiscoverer(d Discoverer) Option {
	return func(o *Orchestrator) { o.discovery = NewDiscoveryFallback(d) }
}

// WithStages replaces the signal cascade.
func WithStages(stages ...Stage) Option {
	return func(o *Orchestrator) { o.stages = stages }
}

// NewOrchestrator wires the default cascade on top of history.
func NewOrchestrator(history market.HistoryStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		history:  history,
		stages:   DefaultStages(),
		rotation: NewRotation(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Rotation exposes the rotation fallback state for operator resets.
func (o *Orchestrator) Rotation() *Rotation {
	return o.rotation
}

// Decide returns the cycle's instruction or nil when nothing fired. Errors
// come only from the advisory collaborator; evaluator faults are logged and
// treated as no signal.
func (o *Orchestrator) Decide(ctx context.Context, snap *market.Snapshot, p *params.Parameters, state *trade.AgentState) (*trade.Instruction, error) {
	if snap == nil || p == nil {
		return nil, fmt.Errorf("strategy: decide needs a snapshot and parameters")
	}
	o.recordPrices(ctx, snap)

	in := &Input{Snapshot: snap, Params: p, History: o.history, State: state}

	switch ModeFor(p) {
	case ModeAdvisory:
		if o.advisor == nil {
			return nil, ErrNoAdvisor
		}
		instr, err := o.advisor.Advise(ctx, &AdvisoryRequest{
			Snapshot: snap,
			Params:   p,
			Limits:   p.Risk,
			Insight:  BuildInsight(ctx, in),
			State:    state,
		})
		if err != nil {
			return nil, fmt.Errorf("strategy: advisory: %w", err)
		}
		return instr, nil
	case ModeLossSeeking:
		if instr := o.run(ctx, Stage{Name: StageLossSeeking, Eval: LossSeeking}, in); instr != nil {
			instr.Bypass = true
			return instr, nil
		}
	}

	for _, st := range o.stages {
		if instr := o.run(ctx, st, in); instr != nil {
			return instr, nil
		}
	}
	if !p.Fallback.Enabled {
		return nil, nil
	}
	if instr := o.run(ctx, Stage{Name: StageRotation, Eval: o.rotation.Evaluate}, in); instr != nil {
		return instr, nil
	}
	if o.discovery != nil {
		return o.run(ctx, Stage{Name: StageDiscovery, Eval: o.discovery.Evaluate}, in), nil
	}
	return nil, nil
}

func (o *Orchestrator) recordPrices(ctx context.Context, snap *market.Snapshot) {
	if o.history == nil {
		return
	}
	for _, id := range snap.Instruments() {
		if err := o.history.AppendHistory(ctx, snap.Timestamp, id, snap.Prices[id], snap.TotalValue); err != nil {
			logx.WithContext(ctx).Errorf("strategy: record price %s: %v", id, err)
		}
	}
}

func (o *Orchestrator) run(ctx context.Context, st Stage, in *Input) (instr *trade.Instruction) {
	defer func() {
		if r := recover(); r != nil {
			logx.WithContext(ctx).Errorf("strategy: %s panicked: %v", st.Name, r)
			instr = nil
		}
	}()
	out, err := st.Eval(ctx, in)
	if err != nil {
		logx.WithContext(ctx).Errorf("strategy: %s: %v", st.Name, err)
		return nil
	}
	if out == nil {
		return nil
	}
	if out.Strategy == "" {
		out.Strategy = st.Name
	}
	logx.WithContext(ctx).Infof("strategy: %s fired: %s", st.Name, out)
	return out
}
